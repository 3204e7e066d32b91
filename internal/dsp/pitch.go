package dsp

import (
	"math"
	"sort"
)

// Pitch-tracking defaults used by EstimateTuning.
const (
	PitchFMin      = 150.0
	PitchFMax      = 4000.0
	PitchThreshold = 0.1
	TuningRes      = 0.01
)

// HzToOcts converts frequencies to fractional octave numbers, counted so that
// octave 4 starts at A440/16 shifted by tuning (in fractions of a bin).
func HzToOcts(f, tuning float64, binsPerOctave int) float64 {
	a440 := 440.0 * math.Pow(2, tuning/float64(binsPerOctave))
	return math.Log2(f / (a440 / 16))
}

// Piptrack finds spectral peaks with parabolic interpolation. For every bin
// that is a local maximum above threshold times the frame's peak and inside
// [fmin, fmax), pitches holds the refined frequency and mags the refined
// magnitude. All other cells are zero. s is a magnitude spectrogram
// [bin][frame] from an FFT of size nFFT.
func Piptrack(s [][]float64, sampleRate, nFFT int, fmin, fmax, threshold float64) ([][]float64, [][]float64) {
	nBins, nFrames := len(s), cols(s)
	pitches := newMatrix(nBins, nFrames)
	mags := newMatrix(nBins, nFrames)
	if nBins < 3 {
		return pitches, mags
	}

	fmin = math.Max(fmin, 0)
	fmax = math.Min(fmax, float64(sampleRate)/2)
	freqs := FFTFrequencies(sampleRate, nFFT)

	x := make([]float64, nBins)
	gated := make([]float64, nBins)
	for t := 0; t < nFrames; t++ {
		var peak float64
		for k := 0; k < nBins; k++ {
			x[k] = math.Abs(s[k][t])
			if x[k] > peak {
				peak = x[k]
			}
		}
		ref := threshold * peak
		for k, v := range x {
			if v > ref {
				gated[k] = v
			} else {
				gated[k] = 0
			}
		}

		for k := 1; k < nBins; k++ {
			if freqs[k] < fmin || freqs[k] >= fmax {
				continue
			}
			next := gated[nBins-1]
			if k+1 < nBins {
				next = gated[k+1]
			}
			if !(gated[k] > gated[k-1] && gated[k] >= next) {
				continue
			}

			var shift float64
			if k < nBins-1 {
				a := x[k+1] + x[k-1] - 2*x[k]
				b := (x[k+1] - x[k-1]) / 2
				if math.Abs(b) < math.Abs(a) {
					shift = -b / a
				}
			}
			var avg float64
			if k < nBins-1 {
				avg = (x[k+1] - x[k-1]) / 2
			} else {
				avg = x[k] - x[k-1]
			}

			pitches[k][t] = (float64(k) + shift) * float64(sampleRate) / float64(nFFT)
			mags[k][t] = x[k] + 0.5*avg*shift
		}
	}
	return pitches, mags
}

// EstimateTuning estimates the tuning deviation, in fractions of a bin, of a
// magnitude spectrogram. Only peaks at least as strong as the median peak
// contribute.
func EstimateTuning(s [][]float64, sampleRate, nFFT, binsPerOctave int) float64 {
	pitches, mags := Piptrack(s, sampleRate, nFFT, PitchFMin, PitchFMax, PitchThreshold)

	var voiced []float64
	for k := range pitches {
		for t, p := range pitches[k] {
			if p > 0 {
				voiced = append(voiced, mags[k][t])
			}
		}
	}
	var threshold float64
	if len(voiced) > 0 {
		threshold = median(voiced)
	}

	var selected []float64
	for k := range pitches {
		for t, p := range pitches[k] {
			if p > 0 && mags[k][t] >= threshold {
				selected = append(selected, p)
			}
		}
	}
	return PitchTuning(selected, TuningRes, binsPerOctave)
}

// PitchTuning returns the most common deviation of the given frequencies
// from the equal-tempered grid, as the left edge of the winning histogram
// bin in [-0.5, 0.5). It returns 0 when no positive frequency is given.
func PitchTuning(frequencies []float64, resolution float64, binsPerOctave int) float64 {
	var residuals []float64
	for _, f := range frequencies {
		if f <= 0 {
			continue
		}
		r := math.Mod(float64(binsPerOctave)*HzToOcts(f, 0, 12), 1)
		if r < 0 {
			r++
		}
		if r >= 0.5 {
			r--
		}
		residuals = append(residuals, r)
	}
	if len(residuals) == 0 {
		return 0
	}

	nBins := int(math.Ceil(1 / resolution))
	edges := make([]float64, nBins+1)
	step := 1.0 / float64(nBins)
	for i := range edges {
		edges[i] = -0.5 + float64(i)*step
	}
	edges[nBins] = 0.5

	counts := make([]int, nBins)
	for _, r := range residuals {
		if r < edges[0] || r > edges[nBins] {
			continue
		}
		idx := int((r - edges[0]) * float64(nBins) / (edges[nBins] - edges[0]))
		if idx == nBins {
			idx--
		}
		if r < edges[idx] {
			idx--
		}
		if idx < nBins-1 && r >= edges[idx+1] {
			idx++
		}
		counts[idx]++
	}

	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return edges[best]
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
