package acoustic

import (
	"errors"
	"math"
	"math/cmplx"
	"reflect"
	"testing"

	"github.com/maastricht-university/alignment-qc/audio"
	cfg "github.com/maastricht-university/alignment-qc/config"
)

const testRate = 16000

func sine(freq, amp, seconds float64) *audio.Waveform {
	n := int(seconds * testRate)
	w := &audio.Waveform{SampleRate: testRate, Samples: make([]float64, n)}
	for i := range w.Samples {
		w.Samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return w
}

// vowel synthesises an impulse train at f0 through a cascade of two-pole
// resonators at the given formant frequencies and bandwidths.
func vowel(f0 float64, formants, bandwidths []float64, seconds float64) *audio.Waveform {
	n := int(seconds * testRate)
	x := make([]float64, n)
	period := int(math.Round(testRate / f0))
	for i := 0; i < n; i += period {
		x[i] = 1
	}
	for k, f := range formants {
		r := math.Exp(-math.Pi * bandwidths[k] / testRate)
		c1 := 2 * r * math.Cos(2*math.Pi*f/testRate)
		c2 := -r * r
		y := make([]float64, n)
		for i := range x {
			y[i] = x[i]
			if i >= 1 {
				y[i] += c1 * y[i-1]
			}
			if i >= 2 {
				y[i] += c2 * y[i-2]
			}
		}
		x = y
	}
	peak := 0.0
	for _, v := range x {
		peak = math.Max(peak, math.Abs(v))
	}
	for i := range x {
		x[i] *= 0.5 / peak
	}
	return &audio.Waveform{SampleRate: testRate, Samples: x}
}

func within(got, want, tol float64) bool { return math.Abs(got-want) <= tol }

func TestMeasureSinePitchAndIntensity(t *testing.T) {
	a := New(cfg.Default().Analysis)
	s := a.Prepare(sine(200, 0.5, 0.5))

	f, err := a.Measure(s, 0.1, 0.3, false)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if f.Pitch == nil {
		t.Fatal("pitch = nil for a 200 Hz tone")
	}
	if !within(f.Pitch.Mean, 200, 2) || f.Pitch.SD > 1 {
		t.Errorf("pitch = %+v, want mean ~200 Hz with small SD", *f.Pitch)
	}
	if f.Pitch.N != 20 {
		t.Errorf("pitch frames = %d, want 20", f.Pitch.N)
	}
	if f.Intensity == nil {
		t.Fatal("intensity = nil")
	}
	// 0.5 amplitude sine: mean square 0.125 -> 10*log10(0.125/4e-10).
	if want := 10 * math.Log10(0.125/4e-10); !within(f.Intensity.Mean, want, 0.5) {
		t.Errorf("intensity mean = %.2f dB, want %.2f", f.Intensity.Mean, want)
	}
	if f.Formants != nil {
		t.Error("formants computed for a non-vowel interval")
	}
}

func TestMeasureUnavailable(t *testing.T) {
	a := New(cfg.Default().Analysis)
	s := a.Prepare(sine(200, 0.5, 0.5))

	tests := []struct {
		name       string
		start, end float64
	}{
		{"shorter than analysis window", 0.1, 0.11},
		{"zero length", 0.2, 0.2},
		{"past the end", 0.4, 0.6},
		{"before the start", -0.1, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Measure(s, tt.start, tt.end, true)
			if !errors.Is(err, ErrMeasurementUnavailable) {
				t.Fatalf("err = %v, want ErrMeasurementUnavailable", err)
			}
		})
	}
}

func TestMeasureSilence(t *testing.T) {
	a := New(cfg.Default().Analysis)
	s := a.Prepare(&audio.Waveform{SampleRate: testRate, Samples: make([]float64, testRate)})
	f, err := a.Measure(s, 0.2, 0.4, true)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if f.Pitch != nil || f.Intensity != nil || f.Formants != nil {
		t.Errorf("features of silence = %+v, want all absent", f)
	}
}

func TestMeasureVowelFormants(t *testing.T) {
	a := New(cfg.Default().Analysis)
	s := a.Prepare(vowel(100, []float64{700, 1220, 2600}, []float64{80, 90, 120}, 0.4))

	f, err := a.Measure(s, 0.1, 0.25, true)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if f.Formants == nil {
		t.Fatal("formants = nil for a synthetic vowel")
	}
	for k, want := range []float64{700, 1220} {
		got, ok := f.Formants.Value(k + 1)
		if !ok {
			t.Fatalf("F%d not found", k+1)
		}
		if !within(got, want, 0.15*want) {
			t.Errorf("F%d = %.0f Hz, want ~%.0f", k+1, got, want)
		}
	}
	if f.Pitch == nil || !within(f.Pitch.Mean, 100, 3) {
		t.Errorf("pitch = %+v, want ~100 Hz", f.Pitch)
	}
}

func TestFormantsNeedMinimumDuration(t *testing.T) {
	a := New(cfg.Default().Analysis)
	s := a.Prepare(vowel(100, []float64{700, 1220, 2600}, []float64{80, 90, 120}, 0.4))
	f, err := a.Measure(s, 0.1, 0.128, true)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if f.Formants != nil {
		t.Error("formants computed below the formant minimum duration")
	}
}

func TestMeasureIsDeterministic(t *testing.T) {
	a := New(cfg.Default().Analysis)
	w := vowel(120, []float64{500, 1500, 2500}, []float64{60, 90, 120}, 0.3)
	first, err := a.Measure(a.Prepare(w), 0.05, 0.2, true)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Measure(a.Prepare(w), 0.05, 0.2, true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated measurement differs:\n%+v\n%+v", first, second)
	}
}

func TestFrameTimes(t *testing.T) {
	a := New(cfg.Default().Analysis)
	got := a.frameTimes(0, 0.025)
	want := []float64{0, 0.01, 0.02}
	if len(got) != len(want) {
		t.Fatalf("frameTimes = %v, want %v", got, want)
	}
	for i := range want {
		if !within(got[i], want[i], 1e-12) {
			t.Errorf("frameTimes[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAutocorrelateMatchesDirect(t *testing.T) {
	x := []float64{1, -2, 3, 0.5, -1}
	got := autocorrelate(x)
	for lag := range x {
		want := 0.0
		for i := 0; i+lag < len(x); i++ {
			want += x[i] * x[i+lag]
		}
		if !within(got[lag], want, 1e-9) {
			t.Errorf("r[%d] = %v, want %v", lag, got[lag], want)
		}
	}
}

func TestIFFTInvertsFFT(t *testing.T) {
	x := []complex128{1, 2i, -3, 4, 0.5, -1i, 0, 2}
	back := ifft(fft(x))
	for i := range x {
		if cmplx.Abs(back[i]-x[i]) > 1e-12 {
			t.Errorf("ifft(fft(x))[%d] = %v, want %v", i, back[i], x[i])
		}
	}
}

func TestResonancesFromKnownPole(t *testing.T) {
	const r, freq = 0.98, 1000.0
	theta := 2 * math.Pi * freq / testRate
	roots := polyRoots([]float64{1, -2 * r * math.Cos(theta), r * r})
	got := resonances(roots, testRate, 5500)
	if len(got) != 1 || !within(got[0], freq, 0.5) {
		t.Fatalf("resonances = %v, want [%v]", got, freq)
	}

	// A pole with a very wide bandwidth is not a formant.
	wide := 0.8
	roots = polyRoots([]float64{1, -2 * wide * math.Cos(theta), wide * wide})
	if got := resonances(roots, testRate, 5500); len(got) != 0 {
		t.Errorf("wide pole accepted: %v", got)
	}
}

func TestDecimateKeepsLowFrequencies(t *testing.T) {
	w := sine(300, 1, 0.2)
	y := decimate(w.Samples, 4)
	if len(y) != len(w.Samples)/4 {
		t.Fatalf("len = %d, want %d", len(y), len(w.Samples)/4)
	}
	peak := 0.0
	for _, v := range y[50 : len(y)-50] {
		peak = math.Max(peak, math.Abs(v))
	}
	if !within(peak, 1, 0.05) {
		t.Errorf("passband peak = %v, want ~1", peak)
	}
}
