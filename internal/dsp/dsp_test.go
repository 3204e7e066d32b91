package dsp

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

const testRate = 16000

func sine(freq float64, n int) []float64 {
	y := make([]float64, n)
	for i := range y {
		y[i] = math.Sin(2 * math.Pi * freq * float64(i) / testRate)
	}
	return y
}

func argmaxColumn(m [][]float64, t int) int {
	best := 0
	for k := range m {
		if m[k][t] > m[best][t] {
			best = k
		}
	}
	return best
}

func TestHannIsPeriodic(t *testing.T) {
	got := Hann(4)
	want := []float64{0, 0.5, 1, 0.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Hann(4)[%d]: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestButterBandpass(t *testing.T) {
	low, high := 142.91/8000, 6620.12/8000
	b, a, err := ButterBandpass(5, low, high)
	if err != nil {
		t.Fatalf("Failed to design filter: %v", err)
	}
	if len(b) != 11 || len(a) != 11 {
		t.Fatalf("Expected 11 coefficients, got b=%d a=%d", len(b), len(a))
	}
	if math.Abs(a[0]-1) > 1e-12 {
		t.Errorf("Expected a[0] = 1, got %f", a[0])
	}

	// A band-pass numerator is k·(z²-1)^order.
	pattern := []float64{1, 0, -5, 0, 10, 0, -10, 0, 5, 0, -1}
	for i, p := range pattern {
		if math.Abs(b[i]-p*b[0]) > 1e-9*math.Abs(b[0]) {
			t.Errorf("b[%d]: expected %g, got %g", i, p*b[0], b[i])
		}
	}

	// Unit gain at the geometric centre of the pre-warped band.
	wo := math.Sqrt(4 * math.Tan(math.Pi*low/2) * 4 * math.Tan(math.Pi*high/2))
	f0 := 2 / math.Pi * math.Atan(wo/4)
	z := cmplx.Exp(complex(0, -math.Pi*f0))
	var num, den complex128
	zk := complex(1, 0)
	for i := range b {
		num += complex(b[i], 0) * zk
		den += complex(a[i], 0) * zk
		zk *= z
	}
	if gain := cmplx.Abs(num / den); math.Abs(gain-1) > 1e-6 {
		t.Errorf("Expected unit gain at band centre, got %f", gain)
	}
}

func TestButterBandpassRejectsBadCutoffs(t *testing.T) {
	cases := []struct{ low, high float64 }{
		{0, 0.5},
		{0.5, 0.2},
		{0.1, 1},
	}
	for _, c := range cases {
		if _, _, err := ButterBandpass(5, c.low, c.high); err == nil {
			t.Errorf("Expected error for cutoffs %v/%v", c.low, c.high)
		}
	}
}

func TestLFilterImpulse(t *testing.T) {
	x := make([]float64, 6)
	x[0] = 1
	y, _ := LFilter([]float64{1}, []float64{1, -0.5}, x, nil)
	for i, v := range y {
		want := math.Pow(0.5, float64(i))
		if math.Abs(v-want) > 1e-12 {
			t.Errorf("y[%d]: expected %f, got %f", i, want, v)
		}
	}
}

func TestFiltFilt(t *testing.T) {
	b, a, err := ButterBandpass(5, 142.91/8000, 6620.12/8000)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("preserves length and removes DC", func(t *testing.T) {
		x := make([]float64, 2000)
		for i := range x {
			x[i] = 0.7
		}
		y, err := FiltFilt(b, a, x)
		if err != nil {
			t.Fatalf("FiltFilt failed: %v", err)
		}
		if len(y) != len(x) {
			t.Fatalf("Expected length %d, got %d", len(x), len(y))
		}
		for i, v := range y {
			if math.Abs(v) > 1e-4 {
				t.Fatalf("Expected DC to be rejected, y[%d] = %g", i, v)
			}
		}
	})

	t.Run("passes in-band tone", func(t *testing.T) {
		x := sine(1000, 4000)
		y, err := FiltFilt(b, a, x)
		if err != nil {
			t.Fatal(err)
		}
		for i := 1000; i < 3000; i++ {
			if math.Abs(y[i]-x[i]) > 1e-2 {
				t.Fatalf("Expected in-band tone to pass unchanged, diff at %d = %g", i, y[i]-x[i])
			}
		}
	})

	t.Run("too short", func(t *testing.T) {
		_, err := FiltFilt(b, a, make([]float64, FiltFiltPadLen(b, a)))
		if !errors.Is(err, ErrSignalTooShort) {
			t.Errorf("Expected ErrSignalTooShort, got %v", err)
		}
	})
}

func TestSTFTMagnitude(t *testing.T) {
	s, err := STFTMagnitude(sine(1000, testRate), 1024, 160, 400)
	if err != nil {
		t.Fatalf("STFT failed: %v", err)
	}
	if len(s) != 513 {
		t.Errorf("Expected 513 bins, got %d", len(s))
	}
	if len(s[0]) != 101 {
		t.Errorf("Expected 101 frames, got %d", len(s[0]))
	}
	if CenteredFrameCount(testRate, 1024, 160) != 101 {
		t.Errorf("CenteredFrameCount disagrees with STFT")
	}
	if k := argmaxColumn(s, 50); k != 64 {
		t.Errorf("Expected 1 kHz peak at bin 64, got %d", k)
	}
}

func TestMelScale(t *testing.T) {
	if m := HzToMel(1000); math.Abs(m-15) > 1e-9 {
		t.Errorf("Expected 1 kHz = 15 mel, got %f", m)
	}
	for _, f := range []float64{0, 300, 999, 1000, 4000, 8000} {
		if back := MelToHz(HzToMel(f)); math.Abs(back-f) > 1e-6 {
			t.Errorf("Round trip of %f Hz gave %f", f, back)
		}
	}

	fb := MelFilterBank(testRate, 1024, 13, 0, testRate/2)
	if len(fb) != 13 || len(fb[0]) != 513 {
		t.Fatalf("Expected 13x513 filter bank, got %dx%d", len(fb), len(fb[0]))
	}
	for i, row := range fb {
		var sum float64
		for _, w := range row {
			if w < 0 {
				t.Fatalf("Filter %d has negative weight", i)
			}
			sum += w
		}
		if sum == 0 {
			t.Errorf("Filter %d is empty", i)
		}
	}
}

func TestDCTOrthoIsOrthonormal(t *testing.T) {
	d := DCTOrtho(8, 8)
	for i := range d {
		for j := range d {
			var dot float64
			for k := range d[i] {
				dot += d[i][k] * d[j][k]
			}
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(dot-want) > 1e-12 {
				t.Errorf("Row %d·%d: expected %f, got %f", i, j, want, dot)
			}
		}
	}
}

func TestPowerToDB(t *testing.T) {
	db := PowerToDB([][]float64{{1, 1e-3, 0}}, 1, 1e-10, 80)
	want := []float64{0, -30, -80}
	for i, w := range want {
		if math.Abs(db[0][i]-w) > 1e-9 {
			t.Errorf("db[%d]: expected %f, got %f", i, w, db[0][i])
		}
	}
}

func TestSavgolFilter(t *testing.T) {
	n := 20
	linear := make([]float64, n)
	quad := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		linear[i] = 3*x + 1
		quad[i] = x*x - 2*x
	}

	d1, err := SavgolFilter([][]float64{linear}, 9, 1, 1)
	if err != nil {
		t.Fatalf("SavgolFilter failed: %v", err)
	}
	for i, v := range d1[0] {
		if math.Abs(v-3) > 1e-9 {
			t.Errorf("First derivative at %d: expected 3, got %f", i, v)
		}
	}

	d2, err := SavgolFilter([][]float64{quad}, 9, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range d2[0] {
		if math.Abs(v-2) > 1e-8 {
			t.Errorf("Second derivative at %d: expected 2, got %f", i, v)
		}
	}

	if _, err := SavgolFilter([][]float64{make([]float64, 8)}, 9, 1, 1); !errors.Is(err, ErrWindowTooLong) {
		t.Errorf("Expected ErrWindowTooLong, got %v", err)
	}
}

func TestZeroCrossingRateAndRMS(t *testing.T) {
	alt := make([]float64, 2000)
	for i := range alt {
		alt[i] = 1
		if i%2 == 1 {
			alt[i] = -1
		}
	}
	zcr := ZeroCrossingRate(alt, 400, 160)
	if len(zcr) != CenteredFrameCount(len(alt), 400, 160) {
		t.Fatalf("Unexpected frame count %d", len(zcr))
	}
	if got := zcr[5]; math.Abs(got-399.0/400) > 1e-12 {
		t.Errorf("Expected interior ZCR 399/400, got %f", got)
	}

	rms := RMS(alt, 400, 160)
	if got := rms[5]; math.Abs(got-1) > 1e-12 {
		t.Errorf("Expected interior RMS 1, got %f", got)
	}
	if rms[0] >= 1 {
		t.Errorf("Expected zero padding to lower the first frame, got %f", rms[0])
	}
}

func TestSpectralShape(t *testing.T) {
	freqs := FFTFrequencies(testRate, 1024)
	s := newMatrix(513, 2)
	s[64][0] = 2
	s[64][1] = 1
	s[128][1] = 1

	centroid := SpectralCentroid(s, freqs)
	if math.Abs(centroid[0]-1000) > 1e-9 {
		t.Errorf("Expected centroid 1000 Hz, got %f", centroid[0])
	}
	if math.Abs(centroid[1]-1500) > 1e-9 {
		t.Errorf("Expected centroid 1500 Hz, got %f", centroid[1])
	}

	bw := SpectralBandwidth(s, freqs, centroid)
	if math.Abs(bw[0]) > 1e-9 || math.Abs(bw[1]-500) > 1e-9 {
		t.Errorf("Unexpected bandwidth %v", bw)
	}

	rolloff := SpectralRolloff(s, freqs, 0.95)
	if rolloff[0] != 1000 || rolloff[1] != 2000 {
		t.Errorf("Unexpected rolloff %v", rolloff)
	}
}

func TestSpectralContrastShape(t *testing.T) {
	s, err := STFTMagnitude(sine(440, 4000), 1024, 160, 400)
	if err != nil {
		t.Fatal(err)
	}
	c, err := SpectralContrast(s, FFTFrequencies(testRate, 1024), testRate, 7, 100, 0.02)
	if err != nil {
		t.Fatalf("SpectralContrast failed: %v", err)
	}
	if len(c) != 8 || len(c[0]) != len(s[0]) {
		t.Errorf("Expected 8x%d contrast, got %dx%d", len(s[0]), len(c), len(c[0]))
	}
	if _, err := SpectralContrast(s, FFTFrequencies(testRate, 1024), testRate, 8, 100, 0.02); err == nil {
		t.Error("Expected error when bands exceed Nyquist")
	}
}

func TestPitchTuning(t *testing.T) {
	if got := PitchTuning(nil, 0.01, 12); got != 0 {
		t.Errorf("Expected 0 tuning for no pitches, got %f", got)
	}
	if got := PitchTuning([]float64{440, 220, 880}, 0.01, 12); math.Abs(got) > 0.011 {
		t.Errorf("Expected near-zero tuning for A440, got %f", got)
	}
	sharp := 440 * math.Pow(2, 0.25/12)
	if got := PitchTuning([]float64{sharp, sharp}, 0.01, 12); math.Abs(got-0.25) > 0.011 {
		t.Errorf("Expected tuning near 0.25, got %f", got)
	}
}

func TestMedian(t *testing.T) {
	if m := median([]float64{3, 1, 2}); m != 2 {
		t.Errorf("Expected 2, got %f", m)
	}
	if m := median([]float64{4, 1, 3, 2}); m != 2.5 {
		t.Errorf("Expected 2.5, got %f", m)
	}
}

func TestCQToChroma(t *testing.T) {
	m := CQToChroma(252, 36, 12, NoteC1)
	for j := 0; j < 252; j++ {
		var count int
		for c := range m {
			if m[c][j] == 1 {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("Column %d maps to %d classes", j, count)
		}
	}
	cases := map[int]int{0: 0, 1: 0, 2: 1, 34: 11, 35: 0, 36: 0}
	for j, want := range cases {
		if m[want][j] != 1 {
			t.Errorf("Expected bin %d in class %d", j, want)
		}
	}
}

func TestChromaAndTonnetz(t *testing.T) {
	s, err := STFTMagnitude(sine(440, testRate), 1024, 160, 400)
	if err != nil {
		t.Fatal(err)
	}
	chroma := ChromaSTFT(s, testRate, 12)
	if len(chroma) != 12 || len(chroma[0]) != 101 {
		t.Fatalf("Expected 12x101 chroma, got %dx%d", len(chroma), len(chroma[0]))
	}
	// A is pitch class 9.
	if k := argmaxColumn(chroma, 50); k != 9 {
		t.Errorf("Expected A440 in class 9, got %d", k)
	}

	ton := Tonnetz(chroma)
	if len(ton) != 6 || len(ton[0]) != 101 {
		t.Errorf("Expected 6x101 tonnetz, got %dx%d", len(ton), len(ton[0]))
	}
	for p := range ton {
		for _, v := range ton[p] {
			if math.Abs(v) > 1+1e-9 {
				t.Fatalf("Tonnetz value out of range: %f", v)
			}
		}
	}
}

func TestCQTMagnitudePeak(t *testing.T) {
	c, err := CQTMagnitude(context.Background(), sine(440, testRate), testRate, 512, NoteC1, 252, 36)
	if err != nil {
		t.Fatalf("CQT failed: %v", err)
	}
	if len(c[0]) != 1+testRate/512 {
		t.Errorf("Expected %d frames, got %d", 1+testRate/512, len(c[0]))
	}
	if k := argmaxColumn(c, len(c[0])/2); k < 134 || k > 136 {
		t.Errorf("Expected A440 near bin 135, got %d", k)
	}
}
