// Package dsp holds the numerical kernels behind cry feature extraction.
//
// Every function here follows the conventions of the analysis chain the
// classifiers were trained with: matrices are laid out [coefficient][frame],
// frames are centered on multiples of the hop length, and windows are periodic.
package dsp

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Hann returns a periodic Hann window of length n.
// go-dsp only builds the symmetric form, so we take n points of an n+1 window.
func Hann(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{1}
	}
	return window.Hann(n + 1)[:n]
}

// PadCenter places x in the middle of a zero slice of length size.
func PadCenter(x []float64, size int) []float64 {
	out := make([]float64, size)
	lpad := (size - len(x)) / 2
	if lpad < 0 {
		copy(out, x[-lpad:])
		return out
	}
	copy(out[lpad:], x)
	return out
}

// FFTFrequencies returns the center frequency of each of the nFFT/2+1 bins.
func FFTFrequencies(sampleRate, nFFT int) []float64 {
	freqs := make([]float64, nFFT/2+1)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}
	return freqs
}

// CenteredFrameCount is the number of frames produced by centered analysis
// of n samples.
func CenteredFrameCount(n, frameLength, hop int) int {
	padded := n + 2*(frameLength/2)
	if padded < frameLength {
		return 0
	}
	return 1 + (padded-frameLength)/hop
}

// STFTMagnitude computes a centered, zero-padded short-time Fourier
// transform and returns |X| as [bin][frame]. The Hann window of winLength
// samples is zero padded to nFFT.
func STFTMagnitude(y []float64, nFFT, hop, winLength int) ([][]float64, error) {
	if nFFT <= 0 || hop <= 0 || winLength <= 0 {
		return nil, errors.New("stft: sizes must be positive")
	}
	if winLength > nFFT {
		return nil, errors.New("stft: window longer than FFT size")
	}
	if len(y) == 0 {
		return nil, errors.New("stft: empty input")
	}

	win := PadCenter(Hann(winLength), nFFT)
	pad := nFFT / 2
	padded := make([]float64, len(y)+2*pad)
	copy(padded[pad:], y)

	nFrames := 1 + (len(padded)-nFFT)/hop
	nBins := nFFT/2 + 1
	mag := newMatrix(nBins, nFrames)

	frame := make([]float64, nFFT)
	for t := 0; t < nFrames; t++ {
		start := t * hop
		for i := range frame {
			frame[i] = padded[start+i] * win[i]
		}
		spec := fft.FFTReal(frame)
		for k := 0; k < nBins; k++ {
			mag[k][t] = cmplx.Abs(spec[k])
		}
	}
	return mag, nil
}

// Power squares every element of m into a new matrix.
func Power(m [][]float64) [][]float64 {
	out := newMatrix(len(m), cols(m))
	for i, row := range m {
		for j, v := range row {
			out[i][j] = v * v
		}
	}
	return out
}

// MatMul returns a·b for a [n][k] and b [k][m].
func MatMul(a, b [][]float64) [][]float64 {
	m := cols(b)
	out := newMatrix(len(a), m)
	for i, row := range a {
		dst := out[i]
		for k, w := range row {
			if w == 0 {
				continue
			}
			src := b[k]
			for j := 0; j < m; j++ {
				dst[j] += w * src[j]
			}
		}
	}
	return out
}

func newMatrix(rows, columns int) [][]float64 {
	backing := make([]float64, rows*columns)
	m := make([][]float64, rows)
	for i := range m {
		m[i] = backing[i*columns : (i+1)*columns : (i+1)*columns]
	}
	return m
}

func cols(m [][]float64) int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}
