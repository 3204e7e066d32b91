package features

import (
	"errors"
	"fmt"
	"slices"
)

// ErrFeatureLengthMismatch describes a vector whose length differs from the
// length a model expects. It is recoverable and never returned as a failure;
// it is carried on the Reconciliation record instead.
var ErrFeatureLengthMismatch = errors.New("feature length mismatch")

// FrameStats pairs a frame with the statistics taken from each of its rows.
type FrameStats struct {
	Frame string
	Stats []Stat
}

// StatTable is the order-significant recipe for the feature vector.
var StatTable = []FrameStats{
	{FrameMFCC, []Stat{StatMean, StatStd, StatSkew, StatMax, StatMin}},
	{FrameMFCCDelta, []Stat{StatMean, StatStd}},
	{FrameMFCCDelta2, []Stat{StatMean, StatStd}},
	{FrameZCR, []Stat{StatMean, StatStd, StatMax}},
	{FrameRMS, []Stat{StatMean, StatStd, StatMax, StatMin}},
	{FrameSpectralCentroid, []Stat{StatMean, StatStd, StatMax}},
	{FrameSpectralBandwidth, []Stat{StatMean, StatStd, StatMax}},
	{FrameSpectralRolloff, []Stat{StatMean, StatStd}},
	{FrameSpectralContrast, []Stat{StatMean, StatStd, StatMax}},
	{FrameChroma, []Stat{StatMean, StatStd}},
	{FrameMelSpec, []Stat{StatMean, StatStd}},
	{FrameTonnetz, []Stat{StatMean, StatStd}},
}

// Vector is a flat feature vector with index-aligned names.
type Vector struct {
	Values []float64 `json:"values"`
	Names  []string  `json:"names"`
}

// Len returns the number of features.
func (v Vector) Len() int { return len(v.Values) }

func featureName(frame string, row int, s Stat) string {
	return fmt.Sprintf("%s_%d_%s", frame, row+1, s)
}

// Build flattens frames into a vector following StatTable: frames in table
// order, rows ascending, statistics in canonical order.
func Build(frames *Frames) (Vector, error) {
	var v Vector
	for _, fs := range StatTable {
		f, ok := frames.Get(fs.Frame)
		if !ok {
			return Vector{}, fmt.Errorf("%w: missing frame %s", ErrExtraction, fs.Frame)
		}
		for r, row := range f {
			if len(row) == 0 {
				return Vector{}, fmt.Errorf("%w: %s row %d is empty", ErrExtraction, fs.Frame, r)
			}
			for _, s := range statOrder {
				if !slices.Contains(fs.Stats, s) {
					continue
				}
				v.Values = append(v.Values, s.compute(row))
				v.Names = append(v.Names, featureName(fs.Frame, r, s))
			}
		}
	}
	return v, nil
}

// RowCounts returns the number of rows each frame has under p.
func RowCounts(p Params) map[string]int {
	return map[string]int{
		FrameMFCC:              p.NMFCC,
		FrameMFCCDelta:         p.NMFCC,
		FrameMFCCDelta2:        p.NMFCC,
		FrameZCR:               1,
		FrameRMS:               1,
		FrameSpectralCentroid:  1,
		FrameSpectralBandwidth: 1,
		FrameSpectralRolloff:   1,
		FrameSpectralContrast:  p.NBands + 1,
		FrameChroma:            p.NChroma,
		FrameMelSpec:           p.NMels,
		FrameTonnetz:           6,
	}
}

// Names returns the feature names Build produces under p without computing
// any features.
func Names(p Params) []string {
	rows := RowCounts(p)
	var names []string
	for _, fs := range StatTable {
		for r := 0; r < rows[fs.Frame]; r++ {
			for _, s := range statOrder {
				if slices.Contains(fs.Stats, s) {
					names = append(names, featureName(fs.Frame, r, s))
				}
			}
		}
	}
	return names
}

// Action is what Reconcile did to a vector.
type Action string

const (
	ActionNone      Action = "none"
	ActionPadded    Action = "padded"
	ActionTruncated Action = "truncated"
)

// Reconciliation records a length adjustment.
type Reconciliation struct {
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
	Action   Action `json:"action"`
	Err      error  `json:"-"`
}

// Mismatched reports whether the vector had to be adjusted.
func (r Reconciliation) Mismatched() bool { return r.Action != ActionNone }

// Warner receives reconciliation warnings.
type Warner interface {
	Warnf(format string, args ...any)
}

// Reconcile fits v to the length of expectedNames by right-padding with
// zeros or truncating. Names of padded positions are taken from
// expectedNames. v itself is not modified.
func Reconcile(v Vector, expectedNames []string, log Warner) (Vector, Reconciliation) {
	expected, actual := len(expectedNames), v.Len()
	rec := Reconciliation{Expected: expected, Actual: actual, Action: ActionNone}
	if expected == actual {
		return v, rec
	}

	rec.Err = fmt.Errorf("%w: model expects %d features, got %d", ErrFeatureLengthMismatch, expected, actual)
	out := Vector{
		Values: make([]float64, expected),
		Names:  make([]string, expected),
	}
	if actual < expected {
		rec.Action = ActionPadded
		copy(out.Values, v.Values)
		copy(out.Names, v.Names)
		copy(out.Names[actual:], expectedNames[actual:])
	} else {
		rec.Action = ActionTruncated
		copy(out.Values, v.Values[:expected])
		copy(out.Names, v.Names[:expected])
	}
	if log != nil {
		log.Warnf("Feature length mismatch: model expects %d features, got %d (%s)", expected, actual, rec.Action)
	}
	return out, rec
}
