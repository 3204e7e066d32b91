// Package signal conditions raw cry recordings before feature extraction.
package signal

import (
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/CrySense/internal/dsp"
)

// ErrInvalidAudio is returned when a waveform cannot be conditioned.
var ErrInvalidAudio = errors.New("invalid audio")

const (
	// PreEmphasis is the first-order high-pass coefficient.
	PreEmphasis = 0.97

	// LowCutHz and HighCutHz bound the band-pass filter.
	LowCutHz  = 142.91
	HighCutHz = 6620.12

	// FilterOrder is the Butterworth prototype order.
	FilterOrder = 5
)

// PreEmphasize returns y[0] = x[0], y[i] = x[i] - alpha*x[i-1].
func PreEmphasize(x []float64, alpha float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	y := make([]float64, len(x))
	y[0] = x[0]
	for i := 1; i < len(x); i++ {
		y[i] = x[i] - alpha*x[i-1]
	}
	return y
}

// BandpassCoefficients returns the filter used by Condition at sampleRate.
func BandpassCoefficients(sampleRate int) ([]float64, []float64, error) {
	if sampleRate <= 0 {
		return nil, nil, fmt.Errorf("%w: sample rate %d", ErrInvalidAudio, sampleRate)
	}
	nyquist := 0.5 * float64(sampleRate)
	b, a, err := dsp.ButterBandpass(FilterOrder, LowCutHz/nyquist, HighCutHz/nyquist)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sample rate %d: %v", ErrInvalidAudio, sampleRate, err)
	}
	return b, a, nil
}

// MinSamples is the shortest waveform Condition accepts at sampleRate.
func MinSamples(sampleRate int) int {
	b, a, err := BandpassCoefficients(sampleRate)
	if err != nil {
		return 0
	}
	return dsp.FiltFiltPadLen(b, a) + 1
}

// Condition applies pre-emphasis followed by a zero-phase band-pass. The
// output has the same length as the input. The input is not modified.
func Condition(waveform []float64, sampleRate int) ([]float64, error) {
	if len(waveform) == 0 {
		return nil, fmt.Errorf("%w: empty waveform", ErrInvalidAudio)
	}
	b, a, err := BandpassCoefficients(sampleRate)
	if err != nil {
		return nil, err
	}
	for i, v := range waveform {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite sample at %d", ErrInvalidAudio, i)
		}
	}

	y, err := dsp.FiltFilt(b, a, PreEmphasize(waveform, PreEmphasis))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: filter became unstable", ErrInvalidAudio)
		}
	}
	return y, nil
}
