package dsp

import (
	"math"
)

// Chroma filter shape.
const (
	chromaCtrOct   = 5.0
	chromaOctWidth = 2.0
)

// ChromaFilterBank maps the nFFT/2+1 FFT bins onto nChroma pitch classes
// starting at C. Each FFT bin contributes a Gaussian bump centred on its
// pitch class, weighted toward octave 5. Result is [chroma][bin].
func ChromaFilterBank(sampleRate, nFFT, nChroma int, tuning float64) [][]float64 {
	nc := float64(nChroma)

	frqbins := make([]float64, nFFT)
	for k := 1; k < nFFT; k++ {
		f := float64(k) * float64(sampleRate) / float64(nFFT)
		frqbins[k] = nc * HzToOcts(f, tuning, nChroma)
	}
	frqbins[0] = frqbins[1] - 1.5*nc

	binwidth := make([]float64, nFFT)
	for k := 0; k < nFFT-1; k++ {
		binwidth[k] = math.Max(frqbins[k+1]-frqbins[k], 1)
	}
	binwidth[nFFT-1] = 1

	half := math.RoundToEven(nc / 2)
	wts := newMatrix(nChroma, nFFT)
	for c := 0; c < nChroma; c++ {
		for k := 0; k < nFFT; k++ {
			d := math.Mod(frqbins[k]-float64(c)+half+10*nc, nc)
			if d < 0 {
				d += nc
			}
			d -= half
			z := 2 * d / binwidth[k]
			wts[c][k] = math.Exp(-0.5 * z * z)
		}
	}
	NormalizeColumns(wts, NormL2)

	for k := 0; k < nFFT; k++ {
		z := (frqbins[k]/nc - chromaCtrOct) / chromaOctWidth
		w := math.Exp(-0.5 * z * z)
		for c := 0; c < nChroma; c++ {
			wts[c][k] *= w
		}
	}

	// Rotate so that row 0 is C rather than A.
	shift := 3 * (nChroma / 12)
	nBins := nFFT/2 + 1
	out := newMatrix(nChroma, nBins)
	for c := 0; c < nChroma; c++ {
		src := wts[(c+shift)%nChroma]
		copy(out[c], src[:nBins])
	}
	return out
}

// ChromaSTFT projects a spectrogram onto pitch classes and normalises each
// frame by its strongest class. The tuning is estimated from s itself.
func ChromaSTFT(s [][]float64, sampleRate, nChroma int) [][]float64 {
	nFFT := 2 * (len(s) - 1)
	tuning := EstimateTuning(s, sampleRate, nFFT, nChroma)
	fb := ChromaFilterBank(sampleRate, nFFT, nChroma, tuning)
	chroma := MatMul(fb, s)
	NormalizeColumns(chroma, NormInf)
	return chroma
}

// CQToChroma folds nInput constant-Q bins, starting at fmin with
// binsPerOctave resolution, into nChroma pitch classes starting at C.
// Result is [chroma][bin].
func CQToChroma(nInput, binsPerOctave, nChroma int, fmin float64) [][]float64 {
	merge := binsPerOctave / nChroma
	midi0 := math.Mod(12*math.Log2(fmin/440)+69, 12)
	roll := int(math.RoundToEven(midi0 * float64(nChroma) / 12))

	m := newMatrix(nChroma, nInput)
	for j := 0; j < nInput; j++ {
		// Bins are grouped so that each pitch class is centred on its
		// middle bin.
		pos := (j + merge/2) % binsPerOctave
		c := pos / merge
		c = ((c+roll)%nChroma + nChroma) % nChroma
		m[c][j] = 1
	}
	return m
}

// Tonnetz projects chroma onto the six tonal centroid dimensions: fifths,
// minor thirds and major thirds, each as an x/y pair.
func Tonnetz(chroma [][]float64) [][]float64 {
	nChroma := len(chroma)
	scale := []float64{7.0 / 6, 7.0 / 6, 3.0 / 2, 3.0 / 2, 2.0 / 3, 2.0 / 3}
	radius := []float64{1, 1, 1, 1, 0.5, 0.5}

	phi := newMatrix(len(scale), nChroma)
	for p, sc := range scale {
		for c := 0; c < nChroma; c++ {
			v := sc * float64(c) * 12 / float64(nChroma)
			if p%2 == 0 {
				v -= 0.5
			}
			phi[p][c] = radius[p] * math.Cos(math.Pi*v)
		}
	}

	norm := cloneMatrix(chroma)
	NormalizeColumns(norm, NormL1)
	return MatMul(phi, norm)
}
