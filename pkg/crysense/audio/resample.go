package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples from one rate to another. The output
// always has round(len(samples)·to/from) samples.
func Resample(samples []float64, from, to int) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rates %d -> %d", ErrDecode, from, to)
	}
	if from == to || len(samples) == 0 {
		return samples, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("%w: resampling: %v", ErrDecode, err)
	}

	want := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	if len(out) >= want {
		return out[:want], nil
	}
	padded := make([]float64, want)
	copy(padded, out)
	return padded, nil
}
