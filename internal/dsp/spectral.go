package dsp

import (
	"errors"
	"math"
	"sort"
)

// ZeroCrossingRate computes the fraction of sign changes in each centered
// frame. The signal is edge padded by frameLength/2 on both sides and
// magnitudes at or below 1e-10 count as positive zero.
func ZeroCrossingRate(y []float64, frameLength, hop int) []float64 {
	const threshold = 1e-10
	pad := frameLength / 2
	padded := make([]float64, len(y)+2*pad)
	for i := range padded {
		j := i - pad
		if j < 0 {
			j = 0
		} else if j >= len(y) {
			j = len(y) - 1
		}
		v := y[j]
		if math.Abs(v) <= threshold {
			v = 0
		}
		padded[i] = v
	}

	nFrames := 1 + (len(padded)-frameLength)/hop
	out := make([]float64, nFrames)
	for t := range out {
		frame := padded[t*hop : t*hop+frameLength]
		crossings := 0
		for i := 1; i < len(frame); i++ {
			if math.Signbit(frame[i]) != math.Signbit(frame[i-1]) {
				crossings++
			}
		}
		out[t] = float64(crossings) / float64(frameLength)
	}
	return out
}

// RMS computes root-mean-square energy of each centered, zero-padded frame.
func RMS(y []float64, frameLength, hop int) []float64 {
	pad := frameLength / 2
	padded := make([]float64, len(y)+2*pad)
	copy(padded[pad:], y)

	nFrames := 1 + (len(padded)-frameLength)/hop
	out := make([]float64, nFrames)
	for t := range out {
		var power float64
		for _, v := range padded[t*hop : t*hop+frameLength] {
			power += v * v
		}
		out[t] = math.Sqrt(power / float64(frameLength))
	}
	return out
}

// SpectralCentroid returns the magnitude-weighted mean frequency per frame.
func SpectralCentroid(s [][]float64, freqs []float64) []float64 {
	norm := cloneMatrix(s)
	NormalizeColumns(norm, NormL1)
	out := make([]float64, cols(s))
	for k, row := range norm {
		for t, v := range row {
			out[t] += freqs[k] * v
		}
	}
	return out
}

// SpectralBandwidth returns the p=2 spread of the spectrum around its
// centroid per frame.
func SpectralBandwidth(s [][]float64, freqs, centroid []float64) []float64 {
	norm := cloneMatrix(s)
	NormalizeColumns(norm, NormL1)
	out := make([]float64, cols(s))
	for k, row := range norm {
		for t, v := range row {
			d := freqs[k] - centroid[t]
			out[t] += v * d * d
		}
	}
	for t := range out {
		out[t] = math.Sqrt(out[t])
	}
	return out
}

// SpectralRolloff returns, per frame, the lowest bin frequency below which
// rollPercent of the spectral magnitude is concentrated.
func SpectralRolloff(s [][]float64, freqs []float64, rollPercent float64) []float64 {
	nFrames := cols(s)
	out := make([]float64, nFrames)
	for t := 0; t < nFrames; t++ {
		var total float64
		for k := range s {
			total += s[k][t]
		}
		threshold := rollPercent * total
		var cum float64
		out[t] = freqs[len(freqs)-1]
		for k := range s {
			cum += s[k][t]
			if cum >= threshold {
				out[t] = freqs[k]
				break
			}
		}
	}
	return out
}

// SpectralContrast computes octave-band peak/valley contrast in dB.
// The result has nBands+1 rows: a sub-band below fmin plus nBands octaves,
// the last one extended to Nyquist.
func SpectralContrast(s [][]float64, freqs []float64, sampleRate int, nBands int, fmin, quantile float64) ([][]float64, error) {
	nyquist := 0.5 * float64(sampleRate)
	octa := make([]float64, nBands+2)
	for i := 1; i < len(octa); i++ {
		octa[i] = fmin * math.Pow(2, float64(i-1))
	}
	for _, f := range octa[:len(octa)-1] {
		if f >= nyquist {
			return nil, errors.New("spectral contrast: frequency band exceeds Nyquist")
		}
	}

	nFrames := cols(s)
	peak := newMatrix(nBands+1, nFrames)
	valley := newMatrix(nBands+1, nFrames)
	column := make([]float64, 0, len(freqs))

	for k := 0; k <= nBands; k++ {
		fLow, fHigh := octa[k], octa[k+1]
		first, last := -1, -1
		for i, f := range freqs {
			if f >= fLow && f <= fHigh {
				if first < 0 {
					first = i
				}
				last = i
			}
		}
		if first < 0 {
			return nil, errors.New("spectral contrast: empty frequency band")
		}
		lo, hi := first, last+1
		if k > 0 && lo > 0 {
			lo--
		}
		if k == nBands {
			hi = len(freqs)
		}
		count := hi - lo
		subHi := hi
		if k < nBands {
			subHi--
		}

		idx := int(math.Max(math.RoundToEven(quantile*float64(count)), 1))
		for t := 0; t < nFrames; t++ {
			column = column[:0]
			for i := lo; i < subHi; i++ {
				column = append(column, s[i][t])
			}
			if len(column) == 0 {
				return nil, errors.New("spectral contrast: empty sub-band")
			}
			sort.Float64s(column)
			n := min(idx, len(column))
			var vs, ps float64
			for i := 0; i < n; i++ {
				vs += column[i]
				ps += column[len(column)-1-i]
			}
			valley[k][t] = vs / float64(n)
			peak[k][t] = ps / float64(n)
		}
	}

	peakDB := PowerToDB(peak, 1, 1e-10, 80)
	valleyDB := PowerToDB(valley, 1, 1e-10, 80)
	for k := range peakDB {
		for t := range peakDB[k] {
			peakDB[k][t] -= valleyDB[k][t]
		}
	}
	return peakDB, nil
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := newMatrix(len(m), cols(m))
	for i, row := range m {
		copy(out[i], row)
	}
	return out
}
