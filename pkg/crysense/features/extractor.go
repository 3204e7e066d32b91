// Package features turns a conditioned cry signal into the fixed-length,
// named feature vector the classifiers consume.
package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/CrySense/internal/dsp"
)

// ErrExtraction is returned when any feature frame cannot be computed.
var ErrExtraction = errors.New("feature extraction failed")

// Frame names, in the order the vector builder consumes them.
const (
	FrameMFCC              = "mfcc"
	FrameMFCCDelta         = "mfcc_delta"
	FrameMFCCDelta2        = "mfcc_delta2"
	FrameZCR               = "zcr"
	FrameRMS               = "rms"
	FrameSpectralCentroid  = "spectral_centroid"
	FrameSpectralBandwidth = "spectral_bandwidth"
	FrameSpectralRolloff   = "spectral_rolloff"
	FrameSpectralContrast  = "spectral_contrast"
	FrameChroma            = "chroma"
	FrameMelSpec           = "mel_spec"
	FrameTonnetz           = "tonnetz"
)

// FrameOrder lists every frame the extractor produces.
var FrameOrder = []string{
	FrameMFCC,
	FrameMFCCDelta,
	FrameMFCCDelta2,
	FrameZCR,
	FrameRMS,
	FrameSpectralCentroid,
	FrameSpectralBandwidth,
	FrameSpectralRolloff,
	FrameSpectralContrast,
	FrameChroma,
	FrameMelSpec,
	FrameTonnetz,
}

// Frame is a 2-D feature matrix laid out [coefficient][time].
type Frame [][]float64

// Rows returns the number of coefficients.
func (f Frame) Rows() int { return len(f) }

// Len returns the number of time steps.
func (f Frame) Len() int {
	if len(f) == 0 {
		return 0
	}
	return len(f[0])
}

// Frames is the complete, ordered set of frames for one signal.
type Frames struct {
	byName map[string]Frame
}

// Get returns the named frame.
func (fs *Frames) Get(name string) (Frame, bool) {
	f, ok := fs.byName[name]
	return f, ok
}

// Names returns the frame names in builder order.
func (fs *Frames) Names() []string {
	names := make([]string, 0, len(fs.byName))
	for _, n := range FrameOrder {
		if _, ok := fs.byName[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

// Extractor computes feature frames with a fixed parameter set.
type Extractor struct {
	params      Params
	concurrency int

	// Filter banks depend only on the parameters.
	melBasis  [][]float64
	mfccBasis [][]float64
	dct       [][]float64
	freqs     []float64
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithConcurrency bounds the number of frames computed at once.
// n <= 0 uses GOMAXPROCS.
func WithConcurrency(n int) ExtractorOption {
	return func(e *Extractor) {
		e.concurrency = n
	}
}

// NewExtractor validates params and precomputes the filter banks.
func NewExtractor(params Params, opts ...ExtractorOption) (*Extractor, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature params: %w", err)
	}
	e := &Extractor{params: params}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency <= 0 {
		e.concurrency = runtime.GOMAXPROCS(0)
	}

	sr := float64(params.SampleRate)
	e.melBasis = dsp.MelFilterBank(params.SampleRate, params.NFFT, params.NMels, 0, sr/2)
	e.mfccBasis = dsp.MelFilterBank(params.SampleRate, params.NFFT, params.NMFCCMels, 0, sr/2)
	e.dct = dsp.DCTOrtho(params.NMFCCMels, params.NMFCC)
	e.freqs = dsp.FFTFrequencies(params.SampleRate, params.NFFT)
	return e, nil
}

// Params returns the extractor's parameter set.
func (e *Extractor) Params() Params { return e.params }

// Extract computes every frame in FrameOrder from a conditioned signal.
// Either all frames are returned or an error wrapping ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, signal []float64, sampleRate int) (*Frames, error) {
	p := e.params
	if sampleRate != p.SampleRate {
		return nil, fmt.Errorf("%w: sample rate %d, extractor expects %d", ErrExtraction, sampleRate, p.SampleRate)
	}
	if len(signal) == 0 {
		return nil, fmt.Errorf("%w: empty signal", ErrExtraction)
	}
	if n := dsp.CenteredFrameCount(len(signal), p.NFFT, p.HopLength); n < p.DeltaWidth {
		return nil, fmt.Errorf("%w: %d frames, derivative filter needs %d", ErrExtraction, n, p.DeltaWidth)
	}

	mag, err := dsp.STFTMagnitude(signal, p.NFFT, p.HopLength, p.WinLength)
	if err != nil {
		return nil, fmt.Errorf("%w: stft: %v", ErrExtraction, err)
	}
	power := dsp.Power(mag)

	slots := make([]Frame, len(FrameOrder))
	set := func(name string, f Frame) {
		for i, n := range FrameOrder {
			if n == name {
				slots[i] = f
				return
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	run := func(name string, fn func() error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	run(FrameMFCC, func() error {
		melDB := dsp.PowerToDB(dsp.MatMul(e.mfccBasis, power), 1, 1e-10, p.TopDB)
		mfcc := dsp.MatMul(e.dct, melDB)
		d1, err := dsp.SavgolFilter(mfcc, p.DeltaWidth, 1, 1)
		if err != nil {
			return err
		}
		d2, err := dsp.SavgolFilter(mfcc, p.DeltaWidth, 2, 2)
		if err != nil {
			return err
		}
		set(FrameMFCC, mfcc)
		set(FrameMFCCDelta, d1)
		set(FrameMFCCDelta2, d2)
		return nil
	})
	run(FrameZCR, func() error {
		set(FrameZCR, Frame{dsp.ZeroCrossingRate(signal, p.WinLength, p.HopLength)})
		return nil
	})
	run(FrameRMS, func() error {
		set(FrameRMS, Frame{dsp.RMS(signal, p.WinLength, p.HopLength)})
		return nil
	})
	run(FrameSpectralCentroid, func() error {
		centroid := dsp.SpectralCentroid(mag, e.freqs)
		set(FrameSpectralCentroid, Frame{centroid})
		set(FrameSpectralBandwidth, Frame{dsp.SpectralBandwidth(mag, e.freqs, centroid)})
		return nil
	})
	run(FrameSpectralRolloff, func() error {
		set(FrameSpectralRolloff, Frame{dsp.SpectralRolloff(mag, e.freqs, p.RollPercent)})
		return nil
	})
	run(FrameSpectralContrast, func() error {
		c, err := dsp.SpectralContrast(mag, e.freqs, p.SampleRate, p.NBands, p.ContrastFMin, 0.02)
		if err != nil {
			return err
		}
		set(FrameSpectralContrast, c)
		return nil
	})
	run(FrameChroma, func() error {
		set(FrameChroma, dsp.ChromaSTFT(mag, p.SampleRate, p.NChroma))
		return nil
	})
	run(FrameMelSpec, func() error {
		set(FrameMelSpec, dsp.MatMul(e.melBasis, power))
		return nil
	})
	run(FrameTonnetz, func() error {
		chroma, err := dsp.ChromaCQT(gctx, signal, p.SampleRate, p.CQTHop, dsp.NoteC1, p.CQTOctaves, p.CQTBinsPerOct, p.NChroma)
		if err != nil {
			return err
		}
		set(FrameTonnetz, dsp.Tonnetz(chroma))
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	frames := &Frames{byName: make(map[string]Frame, len(FrameOrder))}
	for i, name := range FrameOrder {
		if err := checkFrame(slots[i]); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, name, err)
		}
		frames.byName[name] = slots[i]
	}
	return frames, nil
}

func checkFrame(f Frame) error {
	if f.Rows() == 0 || f.Len() == 0 {
		return errors.New("empty frame")
	}
	for _, row := range f {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.New("non-finite value")
			}
		}
	}
	return nil
}

// Extract computes frames with a fresh extractor for params.
func Extract(ctx context.Context, signal []float64, sampleRate int, params Params) (*Frames, error) {
	e, err := NewExtractor(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return e.Extract(ctx, signal, sampleRate)
}
