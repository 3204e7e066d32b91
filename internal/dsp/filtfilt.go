package dsp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrSignalTooShort is returned when a signal cannot be padded for
// forward-backward filtering.
var ErrSignalTooShort = errors.New("signal shorter than filter padding")

// FiltFiltPadLen is the odd-extension length used on each side of the
// signal: three times the longer coefficient vector.
func FiltFiltPadLen(b, a []float64) int {
	return 3 * max(len(a), len(b))
}

// LFilter runs a direct-form II transposed IIR filter over x, starting from
// state zi (len max(len(a),len(b))-1, nil for zero state). It returns the
// output and the final state. Coefficients are expected with a[0] == 1.
func LFilter(b, a, x, zi []float64) ([]float64, []float64) {
	n := max(len(a), len(b))
	bb := padCoeffs(b, n)
	aa := padCoeffs(a, n)

	z := make([]float64, n-1)
	copy(z, zi)
	y := make([]float64, len(x))
	if n == 1 {
		for i, v := range x {
			y[i] = bb[0] * v
		}
		return y, z
	}

	for m, xm := range x {
		ym := bb[0]*xm + z[0]
		for i := 0; i < n-2; i++ {
			z[i] = bb[i+1]*xm + z[i+1] - aa[i+1]*ym
		}
		z[n-2] = bb[n-1]*xm - aa[n-1]*ym
		y[m] = ym
	}
	return y, z
}

// LFilterZI returns the initial state that makes LFilter's step response
// start in steady state. It solves (I - companion(a)ᵀ)·zi = b[1:] - a[1:]·b[0].
func LFilterZI(b, a []float64) ([]float64, error) {
	n := max(len(a), len(b))
	if n < 2 {
		return nil, nil
	}
	bb := padCoeffs(b, n)
	aa := padCoeffs(a, n)

	size := n - 1
	m := mat.NewDense(size, size, nil)
	rhs := mat.NewVecDense(size, nil)
	for i := 0; i < size; i++ {
		m.Set(i, i, 1)
		m.Set(i, 0, m.At(i, 0)+aa[i+1])
		if i+1 < size {
			m.Set(i, i+1, m.At(i, i+1)-1)
		}
		rhs.SetVec(i, bb[i+1]-aa[i+1]*bb[0])
	}

	var zi mat.VecDense
	if err := zi.SolveVec(m, rhs); err != nil {
		return nil, fmt.Errorf("solving filter initial state: %w", err)
	}
	out := make([]float64, size)
	for i := range out {
		out[i] = zi.AtVec(i)
	}
	return out, nil
}

// FiltFilt applies the filter forward and backward so the result has zero
// phase and the same length as x. The signal is extended by odd reflection
// on both sides before filtering.
func FiltFilt(b, a, x []float64) ([]float64, error) {
	padlen := FiltFiltPadLen(b, a)
	if len(x) <= padlen {
		return nil, fmt.Errorf("%w: need more than %d samples, got %d", ErrSignalTooShort, padlen, len(x))
	}

	b, a = normalizeCoeffs(b, a)
	zi, err := LFilterZI(b, a)
	if err != nil {
		return nil, err
	}

	ext := oddExtend(x, padlen)

	y, _ := LFilter(b, a, ext, scaled(zi, ext[0]))
	y0 := y[len(y)-1]
	reverse(y)
	y, _ = LFilter(b, a, y, scaled(zi, y0))
	reverse(y)

	out := make([]float64, len(x))
	copy(out, y[padlen:len(y)-padlen])
	return out, nil
}

func oddExtend(x []float64, padlen int) []float64 {
	n := len(x)
	ext := make([]float64, n+2*padlen)
	for i := 0; i < padlen; i++ {
		ext[i] = 2*x[0] - x[padlen-i]
	}
	copy(ext[padlen:], x)
	for i := 0; i < padlen; i++ {
		ext[padlen+n+i] = 2*x[n-1] - x[n-2-i]
	}
	return ext
}

func normalizeCoeffs(b, a []float64) ([]float64, []float64) {
	if len(a) == 0 || a[0] == 1 {
		return b, a
	}
	a0 := a[0]
	nb := make([]float64, len(b))
	na := make([]float64, len(a))
	for i, v := range b {
		nb[i] = v / a0
	}
	for i, v := range a {
		na[i] = v / a0
	}
	return nb, na
}

func padCoeffs(c []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, c)
	return out
}

func scaled(v []float64, k float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * k
	}
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
