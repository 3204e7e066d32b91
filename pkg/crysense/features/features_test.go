package features

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/himanishpuri/CrySense/pkg/crysense/signal"
)

func cry(n int) []float64 {
	y := make([]float64, n)
	for i := range y {
		ts := float64(i) / 16000
		f0 := 450 + 80*math.Sin(2*math.Pi*3*ts)
		y[i] = 0.4*math.Sin(2*math.Pi*f0*ts) + 0.2*math.Sin(2*math.Pi*2*f0*ts) + 0.05*math.Sin(2*math.Pi*3100*ts)
	}
	return y
}

func conditioned(t *testing.T, n int) []float64 {
	t.Helper()
	y, err := signal.Condition(cry(n), 16000)
	if err != nil {
		t.Fatalf("Condition failed: %v", err)
	}
	return y
}

func TestNamesV1(t *testing.T) {
	names := Names(ParamsV1)
	if len(names) != 461 {
		t.Fatalf("Expected 461 names, got %d", len(names))
	}
	want := []string{"mfcc_1_mean", "mfcc_1_std", "mfcc_1_skew", "mfcc_1_max", "mfcc_1_min", "mfcc_2_mean"}
	for i, w := range want {
		if names[i] != w {
			t.Errorf("names[%d]: expected %s, got %s", i, w, names[i])
		}
	}
	if last := names[len(names)-1]; last != "tonnetz_6_std" {
		t.Errorf("Expected last name tonnetz_6_std, got %s", last)
	}
	seen := make(map[string]bool)
	for _, n := range names {
		if seen[n] {
			t.Errorf("Duplicate name %s", n)
		}
		seen[n] = true
	}
}

func TestExtractAndBuild(t *testing.T) {
	y := conditioned(t, 16000)
	e, err := NewExtractor(ParamsV1)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}

	frames, err := e.Extract(context.Background(), y, 16000)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got := len(frames.Names()); got != len(FrameOrder) {
		t.Fatalf("Expected %d frames, got %d", len(FrameOrder), got)
	}

	rows := RowCounts(ParamsV1)
	for _, name := range FrameOrder {
		f, _ := frames.Get(name)
		if f.Rows() != rows[name] {
			t.Errorf("%s: expected %d rows, got %d", name, rows[name], f.Rows())
		}
		want := 101
		if name == FrameTonnetz {
			want = 1 + 16000/512
		}
		if f.Len() != want {
			t.Errorf("%s: expected %d frames, got %d", name, want, f.Len())
		}
	}

	v, err := Build(frames)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if v.Len() != 461 {
		t.Fatalf("Expected 461 features, got %d", v.Len())
	}
	names := Names(ParamsV1)
	for i := range names {
		if v.Names[i] != names[i] {
			t.Fatalf("Name %d: expected %s, got %s", i, names[i], v.Names[i])
		}
		if math.IsNaN(v.Values[i]) || math.IsInf(v.Values[i], 0) {
			t.Fatalf("Feature %s is not finite", v.Names[i])
		}
	}

	// Same input, same output, whatever the scheduling.
	serial, err := NewExtractor(ParamsV1, WithConcurrency(1))
	if err != nil {
		t.Fatal(err)
	}
	frames2, err := serial.Extract(context.Background(), y, 16000)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := Build(frames2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range v.Values {
		if v.Values[i] != v2.Values[i] {
			t.Fatalf("Feature %s differs between runs", v.Names[i])
		}
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name       string
		signal     []float64
		sampleRate int
	}{
		{"empty", nil, 16000},
		{"too few frames", conditioned(t, 1200), 16000},
		{"wrong rate", conditioned(t, 16000), 22050},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(context.Background(), tt.signal, tt.sampleRate, ParamsV1)
			if !errors.Is(err, ErrExtraction) {
				t.Errorf("Expected ErrExtraction, got %v", err)
			}
		})
	}
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Extract(ctx, conditioned(t, 16000), 16000, ParamsV1); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBuildMissingFrame(t *testing.T) {
	frames := &Frames{byName: map[string]Frame{FrameMFCC: {{1, 2, 3}}}}
	if _, err := Build(frames); !errors.Is(err, ErrExtraction) {
		t.Errorf("Expected ErrExtraction, got %v", err)
	}
}

func TestStats(t *testing.T) {
	row := []float64{1, 2, 3, 4, 10}
	tests := []struct {
		stat Stat
		want float64
	}{
		{StatMean, 4},
		{StatStd, math.Sqrt(10)},
		{StatMax, 10},
		{StatMin, 1},
	}
	for _, tt := range tests {
		if got := tt.stat.compute(row); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: expected %f, got %f", tt.stat, tt.want, got)
		}
	}

	// Deviations from the mean are -3 -2 -1 0 6.
	wantSkew := ((-27 - 8 - 1 + 0 + 216) / 5.0) / math.Pow(10, 1.5)
	if got := StatSkew.compute(row); math.Abs(got-wantSkew) > 1e-12 {
		t.Errorf("skew: expected %f, got %f", wantSkew, got)
	}

	constant := []float64{2, 2, 2}
	if StatSkew.compute(constant) != 0 || StatKurt.compute(constant) != 0 || StatStd.compute(constant) != 0 {
		t.Error("Expected zero spread statistics for a constant row")
	}
}

type recordingWarner struct{ messages []string }

func (w *recordingWarner) Warnf(format string, args ...any) {
	w.messages = append(w.messages, format)
}

func TestReconcile(t *testing.T) {
	expected := []string{"a", "b", "c", "d"}
	tests := []struct {
		name   string
		values []float64
		want   []float64
		action Action
	}{
		{"equal", []float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}, ActionNone},
		{"short", []float64{1, 2}, []float64{1, 2, 0, 0}, ActionPadded},
		{"long", []float64{1, 2, 3, 4, 5, 6}, []float64{1, 2, 3, 4}, ActionTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := make([]string, len(tt.values))
			for i := range names {
				names[i] = strings.Repeat("x", i+1)
			}
			w := &recordingWarner{}
			out, rec := Reconcile(Vector{Values: tt.values, Names: names}, expected, w)

			if out.Len() != len(expected) || len(out.Names) != len(expected) {
				t.Fatalf("Expected length %d, got %d", len(expected), out.Len())
			}
			for i := range tt.want {
				if out.Values[i] != tt.want[i] {
					t.Errorf("Value %d: expected %f, got %f", i, tt.want[i], out.Values[i])
				}
			}
			if rec.Action != tt.action {
				t.Errorf("Expected action %s, got %s", tt.action, rec.Action)
			}
			if rec.Expected != 4 || rec.Actual != len(tt.values) {
				t.Errorf("Unexpected record %+v", rec)
			}
			if tt.action == ActionNone {
				if rec.Err != nil || len(w.messages) != 0 {
					t.Error("Expected no warning for matching lengths")
				}
				return
			}
			if !errors.Is(rec.Err, ErrFeatureLengthMismatch) {
				t.Errorf("Expected ErrFeatureLengthMismatch, got %v", rec.Err)
			}
			if len(w.messages) != 1 {
				t.Errorf("Expected one warning, got %d", len(w.messages))
			}
		})
	}
}

func TestReconcileDoesNotAliasInput(t *testing.T) {
	in := Vector{Values: []float64{1, 2, 3}, Names: []string{"a", "b", "c"}}
	out, _ := Reconcile(in, []string{"a", "b"}, nil)
	out.Values[0] = 99
	if in.Values[0] != 1 {
		t.Error("Reconcile aliased its input")
	}
}

func TestParamsValidate(t *testing.T) {
	if err := ParamsV1.Validate(); err != nil {
		t.Fatalf("ParamsV1 invalid: %v", err)
	}
	bad := ParamsV1
	bad.WinLength = 2048
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for window longer than FFT")
	}
	if _, err := NewExtractor(bad); err == nil {
		t.Error("Expected NewExtractor to reject invalid params")
	}
	if !ParamsV1.Equal(ParamsV1) || ParamsV1.Equal(bad) {
		t.Error("Equal is inconsistent")
	}
}
