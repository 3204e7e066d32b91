package dsp

import (
	"math"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

// HzToMel converts a frequency to the Slaney mel scale.
func HzToMel(f float64) float64 {
	if f >= melMinLogHz {
		return melMinLogMel + math.Log(f/melMinLogHz)/melLogStep
	}
	return f / melFSp
}

// MelToHz is the inverse of HzToMel.
func MelToHz(m float64) float64 {
	if m >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(m-melMinLogMel))
	}
	return melFSp * m
}

// MelFrequencies returns n frequencies evenly spaced on the mel scale
// between fmin and fmax inclusive.
func MelFrequencies(n int, fmin, fmax float64) []float64 {
	lo, hi := HzToMel(fmin), HzToMel(fmax)
	out := make([]float64, n)
	for i := range out {
		m := lo
		if n > 1 {
			m = lo + float64(i)*(hi-lo)/float64(n-1)
		}
		out[i] = MelToHz(m)
	}
	return out
}

// MelFilterBank builds nMels triangular filters over the nFFT/2+1 FFT bins,
// area-normalised (Slaney norm). Result is [mel][bin].
func MelFilterBank(sampleRate, nFFT, nMels int, fmin, fmax float64) [][]float64 {
	fftFreqs := FFTFrequencies(sampleRate, nFFT)
	melF := MelFrequencies(nMels+2, fmin, fmax)

	weights := newMatrix(nMels, len(fftFreqs))
	for i := 0; i < nMels; i++ {
		lowerDiff := melF[i+1] - melF[i]
		upperDiff := melF[i+2] - melF[i+1]
		enorm := 2.0 / (melF[i+2] - melF[i])
		for k, f := range fftFreqs {
			lower := (f - melF[i]) / lowerDiff
			upper := (melF[i+2] - f) / upperDiff
			w := math.Max(0, math.Min(lower, upper))
			weights[i][k] = w * enorm
		}
	}
	return weights
}

// PowerToDB converts a power matrix to decibels relative to ref, flooring at
// amin and clipping everything more than topDB below the matrix peak.
// topDB <= 0 disables clipping.
func PowerToDB(s [][]float64, ref, amin, topDB float64) [][]float64 {
	out := newMatrix(len(s), cols(s))
	refDB := 10 * math.Log10(math.Max(amin, ref))
	peak := math.Inf(-1)
	for i, row := range s {
		for j, v := range row {
			d := 10*math.Log10(math.Max(amin, v)) - refDB
			out[i][j] = d
			if d > peak {
				peak = d
			}
		}
	}
	if topDB > 0 {
		floor := peak - topDB
		for _, row := range out {
			for j, v := range row {
				if v < floor {
					row[j] = floor
				}
			}
		}
	}
	return out
}

// DCTOrtho returns the first nOut rows of the orthonormal DCT-II basis for
// inputs of length nIn, as [coefficient][input].
func DCTOrtho(nIn, nOut int) [][]float64 {
	basis := newMatrix(nOut, nIn)
	n := float64(nIn)
	for k := 0; k < nOut; k++ {
		scale := math.Sqrt(2 / n)
		if k == 0 {
			scale = math.Sqrt(1 / n)
		}
		for i := 0; i < nIn; i++ {
			basis[k][i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*n))
		}
	}
	return basis
}

// Norm selects the column norm used by NormalizeColumns.
type Norm int

const (
	NormL1 Norm = iota
	NormL2
	NormInf
)

// NormalizeColumns scales every column of m in place to unit norm. Columns
// whose norm is below the smallest normal float64 are left untouched.
func NormalizeColumns(m [][]float64, norm Norm) {
	if len(m) == 0 {
		return
	}
	for j := 0; j < len(m[0]); j++ {
		var length float64
		for i := range m {
			v := math.Abs(m[i][j])
			switch norm {
			case NormL1:
				length += v
			case NormL2:
				length += v * v
			case NormInf:
				if v > length {
					length = v
				}
			}
		}
		if norm == NormL2 {
			length = math.Sqrt(length)
		}
		if length < tiny {
			continue
		}
		for i := range m {
			m[i][j] /= length
		}
	}
}

// tiny is the smallest positive normal float64.
const tiny = 2.2250738585072014e-308
