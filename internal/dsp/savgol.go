package dsp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrWindowTooLong is returned when a Savitzky-Golay window does not fit
// inside the signal.
var ErrWindowTooLong = errors.New("savgol window longer than signal")

// savgolProjection returns the (order+1)×width least-squares projection that
// maps a window of samples at positions -width/2..width/2 to polynomial
// coefficients, lowest power first.
func savgolProjection(width, order int) (*mat.Dense, error) {
	half := width / 2
	vander := mat.NewDense(width, order+1, nil)
	for i := 0; i < width; i++ {
		t := float64(i - half)
		p := 1.0
		for m := 0; m <= order; m++ {
			vander.Set(i, m, p)
			p *= t
		}
	}

	var normal mat.Dense
	normal.Mul(vander.T(), vander)
	var proj mat.Dense
	if err := proj.Solve(&normal, vander.T()); err != nil {
		return nil, fmt.Errorf("savgol design: %w", err)
	}
	return &proj, nil
}

// derivativeAt evaluates the deriv-th derivative of the polynomial with
// coefficients beta at t.
func derivativeAt(beta []float64, deriv int, t float64) float64 {
	var sum float64
	for m := deriv; m < len(beta); m++ {
		c := 1.0
		for j := 0; j < deriv; j++ {
			c *= float64(m - j)
		}
		p := 1.0
		for j := 0; j < m-deriv; j++ {
			p *= t
		}
		sum += beta[m] * c * p
	}
	return sum
}

// SavgolCoeffs returns the width correlation taps that estimate the deriv-th
// derivative at the window centre from a polynomial fit of the given order.
func SavgolCoeffs(width, order, deriv int) ([]float64, error) {
	if width%2 == 0 || width < 1 {
		return nil, errors.New("savgol: width must be a positive odd number")
	}
	if order >= width {
		return nil, errors.New("savgol: order must be less than width")
	}
	proj, err := savgolProjection(width, order)
	if err != nil {
		return nil, err
	}
	taps := make([]float64, width)
	if deriv > order {
		return taps, nil
	}
	fact := 1.0
	for j := 2; j <= deriv; j++ {
		fact *= float64(j)
	}
	for i := range taps {
		taps[i] = fact * proj.At(deriv, i)
	}
	return taps, nil
}

// SavgolFilter smooths or differentiates each row of x along its length.
// Interior points use the centred filter, and the first and last width/2
// points are evaluated on a polynomial fitted to the window at that edge.
func SavgolFilter(x [][]float64, width, order, deriv int) ([][]float64, error) {
	taps, err := SavgolCoeffs(width, order, deriv)
	if err != nil {
		return nil, err
	}
	n := cols(x)
	if n < width {
		return nil, fmt.Errorf("%w: width %d, length %d", ErrWindowTooLong, width, n)
	}
	proj, err := savgolProjection(width, order)
	if err != nil {
		return nil, err
	}

	half := width / 2
	out := newMatrix(len(x), n)
	beta := make([]float64, order+1)
	fit := func(window []float64) {
		for m := range beta {
			var s float64
			for i, v := range window {
				s += proj.At(m, i) * v
			}
			beta[m] = s
		}
	}

	for r, row := range x {
		for i := half; i < n-half; i++ {
			var s float64
			for j, c := range taps {
				s += c * row[i-half+j]
			}
			out[r][i] = s
		}

		fit(row[:width])
		for i := 0; i < half; i++ {
			out[r][i] = derivativeAt(beta, deriv, float64(i-half))
		}
		fit(row[n-width:])
		for i := n - half; i < n; i++ {
			out[r][i] = derivativeAt(beta, deriv, float64(i-(n-width)-half))
		}
	}
	return out, nil
}
