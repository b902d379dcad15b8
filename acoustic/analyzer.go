// Package acoustic measures pitch, intensity and formants over spans of a
// waveform. All times are seconds, frequencies Hz and intensities dB SPL
// (re 2e-5). Results are deterministic for identical input.
package acoustic

import (
	"errors"
	"fmt"
	"math"

	"github.com/maastricht-university/alignment-qc/audio"
	cfg "github.com/maastricht-university/alignment-qc/config"
)

// ErrMeasurementUnavailable is returned when an interval is too short or
// lies outside the recording, so no feature can be computed for it.
var ErrMeasurementUnavailable = errors.New("measurement unavailable")

// Tracked is the number of formants reported per vowel.
const Tracked = 3

// Stats summarises a feature track over an interval.
type Stats struct {
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	// N is the number of frames that contributed.
	N int `json:"n"`
}

func (s Stats) Range() float64 { return s.Max - s.Min }

// Formants holds F1..F3 averaged over the measurement points. Found[k] is
// false when no point produced a candidate for formant k+1.
type Formants struct {
	Mean  [Tracked]float64
	SD    [Tracked]float64
	Found [Tracked]bool
}

// Value returns formant k (1-based) when it was found.
func (f *Formants) Value(k int) (float64, bool) {
	if f == nil || k < 1 || k > Tracked || !f.Found[k-1] {
		return 0, false
	}
	return f.Mean[k-1], true
}

// Features is the outcome of one interval measurement. A nil field means
// the feature does not apply or could not be estimated.
type Features struct {
	Formants  *Formants
	Pitch     *Stats
	Intensity *Stats
}

type Analyzer struct {
	cfg cfg.Analysis
}

func New(c cfg.Analysis) *Analyzer {
	return &Analyzer{cfg: c}
}

// Signal is a waveform prepared for repeated measurement. It is immutable
// and safe for concurrent use by Measure.
type Signal struct {
	wave *audio.Waveform
	rate float64
	peak float64

	pitchWin   []float64
	pitchWinAC []float64
	minLag     int
	maxLag     int

	intensityWin []float64

	lpc      []float64
	lpcRate  float64
	lpcWin   []float64
	lpcOrder int
}

// Prepare computes the per-recording state shared by all intervals.
func (a *Analyzer) Prepare(w *audio.Waveform) *Signal {
	s := &Signal{wave: w, rate: float64(w.SampleRate)}
	for _, v := range w.Samples {
		if m := math.Abs(v); m > s.peak {
			s.peak = m
		}
	}

	n := int(math.Round(3 / a.cfg.PitchFloor * s.rate))
	s.pitchWin = hann(n)
	s.pitchWinAC = autocorrelate(s.pitchWin)
	s.minLag = int(math.Floor(s.rate / a.cfg.PitchCeiling))
	if s.minLag < 2 {
		s.minLag = 2
	}
	s.maxLag = int(math.Ceil(s.rate / a.cfg.PitchFloor))
	if s.maxLag > n-2 {
		s.maxLag = n - 2
	}

	s.intensityWin = hann(int(math.Round(3.2 / a.cfg.IntensityMinPitch * s.rate)))

	// Resample only by integer factors, keeping at least twice the formant ceiling.
	factor := int(math.Floor(s.rate / (2 * a.cfg.MaxFormant)))
	if factor < 1 {
		factor = 1
	}
	s.lpcRate = s.rate / float64(factor)
	s.lpc = preEmphasize(decimate(w.Samples, factor), s.lpcRate, a.cfg.PreEmphasisFrom)
	s.lpcWin = gaussian(int(math.Round(2 * a.cfg.FormantWindow * s.lpcRate)))
	perBand := math.Ceil(float64(a.cfg.NumFormants) * (s.lpcRate / 2) / a.cfg.MaxFormant)
	s.lpcOrder = 2 * int(perBand)
	return s
}

// Measure computes the features of [start, end). Formants are estimated
// only when vowel is set.
func (a *Analyzer) Measure(s *Signal, start, end float64, vowel bool) (Features, error) {
	var f Features
	dur := end - start
	if !(dur >= a.cfg.MinDuration) {
		return f, fmt.Errorf("%w: interval of %.4fs is shorter than %.4fs", ErrMeasurementUnavailable, dur, a.cfg.MinDuration)
	}
	slack := 1 / s.rate
	if start < -slack || end > s.wave.Duration()+slack {
		return f, fmt.Errorf("%w: interval [%.4f, %.4f] lies outside the %.4fs recording",
			ErrMeasurementUnavailable, start, end, s.wave.Duration())
	}

	times := a.frameTimes(start, end)
	f.Pitch = a.pitch(s, times)
	f.Intensity = a.intensity(s, times)
	if vowel && dur >= a.cfg.FormantMinDuration {
		f.Formants = a.formants(s, start, end)
	}
	return f, nil
}

// frameTimes returns start, start+step, ... strictly before end.
func (a *Analyzer) frameTimes(start, end float64) []float64 {
	var times []float64
	for k := 0; ; k++ {
		t := start + float64(k)*a.cfg.TimeStep
		if t >= end {
			break
		}
		times = append(times, t)
	}
	return times
}

func summarize(values []float64) *Stats {
	if len(values) == 0 {
		return nil
	}
	st := &Stats{Min: values[0], Max: values[0], N: len(values)}
	sum := 0.0
	for _, v := range values {
		sum += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	st.Mean = sum / float64(len(values))
	ss := 0.0
	for _, v := range values {
		d := v - st.Mean
		ss += d * d
	}
	st.SD = math.Sqrt(ss / float64(len(values)))
	return st
}
