package dsp

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

// Reference values below were produced by scipy.signal.butter and
// scipy.signal.filtfilt (defaults: padtype odd, padlen 3·max(len a, len b)).

func TestButterBandpassMatchesReference(t *testing.T) {
	tests := []struct {
		order int
		b, a  []float64
	}{
		{
			order: 1,
			b:     []float64{0.24523727525278563, 0, -0.24523727525278563},
			a:     []float64{1, -0.9329380346705198, 0.5095254494944288},
		},
		{
			order: 2,
			b:     []float64{0.06745527388907191, 0, -0.13491054777814382, 0, 0.06745527388907191},
			a:     []float64{1, -1.942468776547884, 2.119202397144283, -1.216651635515531, 0.41280159809618855},
		},
	}

	for _, tt := range tests {
		b, a, err := ButterBandpass(tt.order, 0.2, 0.4)
		if err != nil {
			t.Fatalf("order %d: failed to design filter: %v", tt.order, err)
		}
		if len(b) != len(tt.b) || len(a) != len(tt.a) {
			t.Fatalf("order %d: expected %d coefficients, got b=%d a=%d", tt.order, len(tt.b), len(b), len(a))
		}
		for i := range tt.b {
			if math.Abs(b[i]-tt.b[i]) > 1e-12 {
				t.Errorf("order %d b[%d]: expected %.17g, got %.17g", tt.order, i, tt.b[i], b[i])
			}
			if math.Abs(a[i]-tt.a[i]) > 1e-12 {
				t.Errorf("order %d a[%d]: expected %.17g, got %.17g", tt.order, i, tt.a[i], a[i])
			}
		}
	}
}

func TestButterBandpassHalfPowerAtCutoffs(t *testing.T) {
	low, high := 142.91/8000, 6620.12/8000
	b, a, err := ButterBandpass(5, low, high)
	if err != nil {
		t.Fatalf("Failed to design filter: %v", err)
	}

	response := func(w float64) float64 {
		z := cmplx.Exp(complex(0, -math.Pi*w))
		var num, den complex128
		zk := complex(1, 0)
		for i := range b {
			num += complex(b[i], 0) * zk
			den += complex(a[i], 0) * zk
			zk *= z
		}
		return cmplx.Abs(num / den)
	}

	for _, w := range []float64{low, high} {
		if got := response(w); math.Abs(got-math.Sqrt2/2) > 1e-6 {
			t.Errorf("gain at %f: expected %f, got %f", w, math.Sqrt2/2, got)
		}
	}
}

func TestLFilterZIMatchesReference(t *testing.T) {
	b := []float64{0.24523727525278563, 0, -0.24523727525278563}
	a := []float64{1, -0.9329380346705198, 0.5095254494944288}
	zi, err := LFilterZI(b, a)
	if err != nil {
		t.Fatalf("Failed to compute initial state: %v", err)
	}
	want := []float64{-0.24523727525278563, -0.24523727525278563}
	for i := range want {
		if math.Abs(zi[i]-want[i]) > 1e-12 {
			t.Errorf("zi[%d]: expected %.17g, got %.17g", i, want[i], zi[i])
		}
	}
}

func TestFiltFiltMatchesReference(t *testing.T) {
	b := []float64{0.24523727525278563, 0, -0.24523727525278563}
	a := []float64{1, -0.9329380346705198, 0.5095254494944288}
	x := []float64{0, 1, 0, -1, 2, 3, 1, 0, -2, -1, 0, 1}
	want := []float64{
		-0.006270003763, -0.445718039360, -0.888524579239, -0.557831646013,
		0.710793654306, 1.578203792389, 1.091506730846, -0.231922947976,
		-1.316566064084, -1.466803717737, -0.873148071217, -0.042661948565,
	}

	got, err := FiltFilt(b, a, x)
	if err != nil {
		t.Fatalf("FiltFilt failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("y[%d]: expected %.12f, got %.12f", i, want[i], got[i])
		}
	}
}

func TestMelScaleSlaneyBreakpoints(t *testing.T) {
	tests := []struct {
		hz, mel float64
	}{
		{0, 0},
		{200, 3},
		{1000, 15},
		{6400, 42},
	}
	for _, tt := range tests {
		if got := HzToMel(tt.hz); math.Abs(got-tt.mel) > 1e-9 {
			t.Errorf("HzToMel(%v): expected %v, got %v", tt.hz, tt.mel, got)
		}
	}
}

func TestMFCCOfSilence(t *testing.T) {
	const nMels, nMFCC, nFrames = 128, 20, 3
	power := make([][]float64, 1+2048/2)
	for i := range power {
		power[i] = make([]float64, nFrames)
	}

	mel := MatMul(MelFilterBank(22050, 2048, nMels, 0, 11025), power)
	mfcc := MatMul(DCTOrtho(nMels, nMFCC), PowerToDB(mel, 1, 1e-10, 80))

	// Every mel band floors at -100 dB, so only the DC coefficient survives.
	want0 := -100 * math.Sqrt(nMels)
	for f := 0; f < nFrames; f++ {
		if math.Abs(mfcc[0][f]-want0) > 1e-6 {
			t.Errorf("mfcc[0][%d]: expected %f, got %f", f, want0, mfcc[0][f])
		}
		for k := 1; k < nMFCC; k++ {
			if math.Abs(mfcc[k][f]) > 1e-6 {
				t.Errorf("mfcc[%d][%d]: expected 0, got %g", k, f, mfcc[k][f])
			}
		}
	}
}

func TestSpectralContrastOfFlatSpectrum(t *testing.T) {
	const nFFT = 1024
	s := make([][]float64, 1+nFFT/2)
	for i := range s {
		s[i] = []float64{1, 1}
	}

	c, err := SpectralContrast(s, FFTFrequencies(testRate, nFFT), testRate, 6, 200, 0.02)
	if err != nil {
		t.Fatalf("SpectralContrast failed: %v", err)
	}
	if len(c) != 7 {
		t.Fatalf("expected 7 bands, got %d", len(c))
	}
	for k := range c {
		for f, v := range c[k] {
			if math.Abs(v) > 1e-12 {
				t.Errorf("contrast[%d][%d]: expected 0, got %g", k, f, v)
			}
		}
	}
}

func TestTonnetzOfSingleClass(t *testing.T) {
	tests := []struct {
		class int
		want  []float64
	}{
		{class: 0, want: []float64{0, 1, 0, 1, 0, 0.5}},
		{class: 4, want: []float64{math.Sqrt(3) / 2, -0.5, 0, 1, math.Sqrt(3) / 4, -0.25}},
		{class: 7, want: []float64{0.5, math.Sqrt(3) / 2, 1, 0, math.Sqrt(3) / 4, -0.25}},
	}

	for _, tt := range tests {
		chroma := make([][]float64, 12)
		for c := range chroma {
			chroma[c] = []float64{0}
		}
		chroma[tt.class][0] = 3

		got := Tonnetz(chroma)
		for d := range tt.want {
			if math.Abs(got[d][0]-tt.want[d]) > 1e-12 {
				t.Errorf("class %d dim %d: expected %f, got %f", tt.class, d, tt.want[d], got[d][0])
			}
		}
	}
}

func TestCQTMagnitudeScale(t *testing.T) {
	const binsPerOctave = 36
	r := math.Pow(2, 2.0/binsPerOctave)
	q := (r + 1) / (r - 1)

	var prev float64
	for _, bin := range []int{36, 108, 180} {
		freq := NoteC1 * math.Pow(2, float64(bin)/binsPerOctave)
		length := q * testRate / freq

		c, err := CQTMagnitude(context.Background(), sine(freq, 3*testRate), testRate, 512, freq, 1, binsPerOctave)
		if err != nil {
			t.Fatalf("bin %d: CQTMagnitude failed: %v", bin, err)
		}
		got := c[0][len(c[0])/2]
		want := math.Sqrt(length) / 2
		if math.Abs(got-want) > 0.02*want {
			t.Errorf("bin %d: expected %f, got %f", bin, want, got)
		}
		if prev > 0 && got >= prev {
			t.Errorf("bin %d: response %f should fall below lower bin's %f", bin, got, prev)
		}
		prev = got
	}
}

func TestCQTMagnitudeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CQTMagnitude(ctx, sine(440, testRate), testRate, 512, NoteC1, 252, 36)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	_, err = ChromaCQT(ctx, sine(440, testRate), testRate, 512, NoteC1, 7, 36, 12)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled from ChromaCQT, got %v", err)
	}
}
