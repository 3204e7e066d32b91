package dsp

import (
	"context"
	"errors"
	"math"
)

// NoteC1 is the frequency of C1 in Hz.
var NoteC1 = 440 * math.Pow(2, (24-69)/12.0)

type cqFilter struct {
	offset int
	re, im []float64
	scale  float64
}

// cqFilters builds one Hann-windowed complex exponential per bin, with
// length Q·sr/f for quality factor Q derived from the bin spacing. Each
// filter is L1 normalised; the response is then multiplied by the length
// and divided by √length, so a unit sinusoid on bin k reads √length/2.
func cqFilters(sampleRate int, fmin float64, nBins, binsPerOctave int) []cqFilter {
	r := math.Pow(2, 2/float64(binsPerOctave))
	alpha := (r - 1) / (r + 1)
	q := 1 / alpha

	filters := make([]cqFilter, nBins)
	for k := range filters {
		freq := fmin * math.Pow(2, float64(k)/float64(binsPerOctave))
		length := q * float64(sampleRate) / freq

		start := int(math.Floor(-length / 2))
		stop := int(math.Floor(length / 2))
		n := stop - start
		win := Hann(n)

		re := make([]float64, n)
		im := make([]float64, n)
		var l1 float64
		for i := 0; i < n; i++ {
			phase := 2 * math.Pi * freq * float64(start+i) / float64(sampleRate)
			re[i] = win[i] * math.Cos(phase)
			im[i] = win[i] * math.Sin(phase)
			l1 += math.Hypot(re[i], im[i])
		}
		if l1 > 0 {
			for i := range re {
				re[i] /= l1
				im[i] /= l1
			}
		}
		filters[k] = cqFilter{offset: start, re: re, im: im, scale: math.Sqrt(length)}
	}
	return filters
}

// CQTMagnitude computes a constant-Q magnitude spectrogram [bin][frame] by
// direct correlation with the filter bank. Frames are centred on multiples
// of hop and the signal is treated as zero outside its bounds. ctx is
// checked before every bin.
func CQTMagnitude(ctx context.Context, y []float64, sampleRate, hop int, fmin float64, nBins, binsPerOctave int) ([][]float64, error) {
	if len(y) == 0 {
		return nil, errors.New("cqt: empty input")
	}
	if hop <= 0 || nBins <= 0 || binsPerOctave <= 0 {
		return nil, errors.New("cqt: sizes must be positive")
	}
	top := fmin * math.Pow(2, float64(nBins-1)/float64(binsPerOctave))
	if top >= float64(sampleRate)/2 {
		return nil, errors.New("cqt: highest bin exceeds Nyquist")
	}

	filters := cqFilters(sampleRate, fmin, nBins, binsPerOctave)
	nFrames := 1 + len(y)/hop
	out := newMatrix(nBins, nFrames)

	for k, f := range filters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for t := 0; t < nFrames; t++ {
			base := t*hop + f.offset
			lo := max(0, -base)
			hi := min(len(f.re), len(y)-base)
			var sr, si float64
			for i := lo; i < hi; i++ {
				v := y[base+i]
				sr += v * f.re[i]
				si += v * f.im[i]
			}
			out[k][t] = math.Hypot(sr, si) * f.scale
		}
	}
	return out, nil
}

// ChromaCQT computes a chromagram from a constant-Q transform of y. The
// tuning is estimated from a 2048-point STFT, the transform starts at the
// tuned fmin, and each frame is normalised by its strongest class.
func ChromaCQT(ctx context.Context, y []float64, sampleRate, hop int, fmin float64, nOctaves, binsPerOctave, nChroma int) ([][]float64, error) {
	const tuningFFT = 2048
	spec, err := STFTMagnitude(y, tuningFFT, tuningFFT/4, tuningFFT)
	if err != nil {
		return nil, err
	}
	tuning := EstimateTuning(spec, sampleRate, tuningFFT, binsPerOctave)

	nBins := nOctaves * binsPerOctave
	tuned := fmin * math.Pow(2, tuning/float64(binsPerOctave))
	c, err := CQTMagnitude(ctx, y, sampleRate, hop, tuned, nBins, binsPerOctave)
	if err != nil {
		return nil, err
	}

	chroma := MatMul(CQToChroma(nBins, binsPerOctave, nChroma, fmin), c)
	for _, row := range chroma {
		for j, v := range row {
			if v < 0 {
				row[j] = 0
			}
		}
	}
	NormalizeColumns(chroma, NormInf)
	return chroma, nil
}
