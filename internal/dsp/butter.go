package dsp

import (
	"errors"
	"math"
	"math/cmplx"
)

// ButterBandpass designs a digital Butterworth band-pass filter of the given
// prototype order and returns transfer-function coefficients (b, a) of
// length 2*order+1. Cutoffs are normalised to the Nyquist frequency and must
// satisfy 0 < low < high < 1.
//
// The design is the classic chain: analog low-pass prototype, low-pass to
// band-pass transform, bilinear transform with pre-warped edges (fs = 2),
// then expansion of the zeros and poles into polynomials.
func ButterBandpass(order int, low, high float64) ([]float64, []float64, error) {
	if order < 1 {
		return nil, nil, errors.New("butter: order must be positive")
	}
	if !(low > 0 && high < 1 && low < high) {
		return nil, nil, errors.New("butter: cutoffs must satisfy 0 < low < high < 1")
	}

	// Analog prototype: poles on the left half of the unit circle, no zeros.
	proto := make([]complex128, order)
	for i := range proto {
		m := float64(-order + 1 + 2*i)
		proto[i] = -cmplx.Exp(complex(0, math.Pi*m/float64(2*order)))
	}

	const fs = 2.0
	wLow := 2 * fs * math.Tan(math.Pi*low/fs)
	wHigh := 2 * fs * math.Tan(math.Pi*high/fs)
	bw := wHigh - wLow
	wo := math.Sqrt(wLow * wHigh)

	// Low-pass to band-pass: each pole splits into a pair, and the
	// degree difference becomes zeros at the origin.
	poles := make([]complex128, 0, 2*order)
	scaled := make([]complex128, order)
	for i, p := range proto {
		scaled[i] = p * complex(bw/2, 0)
	}
	for _, p := range scaled {
		poles = append(poles, p+cmplx.Sqrt(p*p-complex(wo*wo, 0)))
	}
	for _, p := range scaled {
		poles = append(poles, p-cmplx.Sqrt(p*p-complex(wo*wo, 0)))
	}
	gain := math.Pow(bw, float64(order))

	// Bilinear transform. The analog zeros at 0 map to +1, and the
	// remaining degree difference puts zeros at -1.
	fs2 := complex(2*fs, 0)
	zeros := make([]complex128, 0, 2*order)
	for i := 0; i < order; i++ {
		zeros = append(zeros, 1)
	}
	for i := 0; i < order; i++ {
		zeros = append(zeros, -1)
	}
	num := cmplx.Pow(fs2, complex(float64(order), 0))
	den := complex(1, 0)
	digitalPoles := make([]complex128, len(poles))
	for i, p := range poles {
		digitalPoles[i] = (fs2 + p) / (fs2 - p)
		den *= fs2 - p
	}
	gain *= real(num / den)

	b := realPoly(zeros)
	for i := range b {
		b[i] *= gain
	}
	a := realPoly(digitalPoles)
	return b, a, nil
}

// realPoly expands prod(x - r) and returns the real parts of the
// coefficients, highest power first.
func realPoly(roots []complex128) []float64 {
	c := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(c)+1)
		copy(next, c)
		for i := 1; i < len(next); i++ {
			next[i] -= r * c[i-1]
		}
		c = next
	}
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = real(v)
	}
	return out
}
