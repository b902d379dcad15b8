package quality

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/alignment-qc/config"
	"github.com/maastricht-university/alignment-qc/measure"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func phone(rec string, index int, label string, start, end float64) measure.PhonemeMeasurement {
	c := measure.NewClassifier(cfg.Default().Measure.SilenceLabels)
	return measure.PhonemeMeasurement{
		Recording: rec, Index: index, Label: label,
		Start: start, End: end, Duration: end - start,
		Vowel: measure.IsVowel(label), Class: c.Classify(label),
	}
}

func word(rec string, index int, label string, start, end float64) measure.WordMeasurement {
	return measure.WordMeasurement{Recording: rec, Index: index, Label: label, Start: start, End: end, Duration: end - start}
}

func TestTimingGapAndOverlap(t *testing.T) {
	in := Input{Phonemes: []measure.PhonemeMeasurement{
		phone("r", 0, "B", 0.0, 0.5),
		phone("r", 1, "AA1", 0.5, 0.9),
		phone("r", 2, "T", 1.0, 1.3),
	}}
	d := NewTimingDetector(cfg.Timing{Epsilon: 0.01, MajorJump: 0.05})
	got := d.Detect(in)
	if len(got) != 1 || got[0].Type != "gap" {
		t.Fatalf("issues = %+v, want exactly one gap", got)
	}
	if p := got[0].Primary(); p.Label != "T" || p.Start != 1.0 {
		t.Errorf("gap charged to %v, want the later interval", p)
	}
	if got[0].Severity != SeverityHigh {
		t.Errorf("100 ms gap severity = %v, want high", got[0].Severity)
	}

	in.Phonemes = []measure.PhonemeMeasurement{
		phone("r", 0, "B", 0.0, 0.505),
		phone("r", 1, "AA1", 0.5, 0.9),
		phone("r", 2, "T", 0.9, 1.3),
	}
	got = NewTimingDetector(cfg.Timing{Epsilon: 0.001, MajorJump: 0.05}).Detect(in)
	if len(got) != 1 || got[0].Type != "overlap" || got[0].Severity != SeverityMedium {
		t.Fatalf("issues = %+v, want one medium overlap", got)
	}
}

func TestTimingToleratesEqualityWithinEpsilon(t *testing.T) {
	in := Input{Phonemes: []measure.PhonemeMeasurement{
		phone("r", 0, "B", 0.0, 0.5),
		phone("r", 1, "AA1", 0.5005, 0.9),
		phone("r", 2, "T", 0.8995, 1.3),
	}}
	if got := NewTimingDetector(cfg.Default().Quality.Timing).Detect(in); len(got) != 0 {
		t.Errorf("issues = %+v, want none", got)
	}
}

func TestTimingSortsByStartWithinRecording(t *testing.T) {
	in := Input{Phonemes: []measure.PhonemeMeasurement{
		phone("b", 1, "T", 0.5, 1.0),
		phone("a", 0, "S", 0.0, 1.0),
		phone("b", 0, "AA1", 0.0, 0.5),
	}}
	if got := NewTimingDetector(cfg.Default().Quality.Timing).Detect(in); len(got) != 0 {
		t.Errorf("issues = %+v, want none for contiguous phones given out of order", got)
	}
}

func TestOutlierFlagsOnlyTheExtremeDuration(t *testing.T) {
	var ps []measure.PhonemeMeasurement
	start := 0.0
	for i, ms := range []float64{60, 65, 70, 68, 300} {
		ps = append(ps, phone("r", i, "AA1", start, start+ms/1000))
		start += 1
	}
	got := NewOutlierDetector(cfg.Default().Quality.Outlier).Detect(Input{Phonemes: ps})
	if len(got) != 1 {
		t.Fatalf("issues = %+v, want one", got)
	}
	if got[0].Type != "duration" || got[0].Primary().Start != 4 {
		t.Errorf("flagged %+v, want the 300 ms vowel", got[0])
	}
}

func TestOutlierAgainstIdenticalValues(t *testing.T) {
	durations := func(ms ...float64) []measure.PhonemeMeasurement {
		var ps []measure.PhonemeMeasurement
		for i, d := range ms {
			ps = append(ps, phone("r", i, "AA1", float64(i), float64(i)+d/1000))
		}
		return ps
	}
	det := NewOutlierDetector(cfg.Default().Quality.Outlier)

	got := det.Detect(Input{Phonemes: durations(60, 60, 60, 60, 300)})
	if len(got) != 1 {
		t.Fatalf("issues = %+v, want one", got)
	}
	if got[0].Primary().Start != 4 || got[0].Severity != SeverityHigh {
		t.Errorf("flagged %+v, want the 300 ms vowel at high severity", got[0])
	}

	if got := det.Detect(Input{Phonemes: durations(60, 60, 60, 60, 60)}); len(got) != 0 {
		t.Errorf("issues = %+v, want none for a constant group", got)
	}
}

func TestOutlierSkipsAbsentValuesAndSmallGroups(t *testing.T) {
	hz := func(v float64) *float64 { return &v }
	var ps []measure.PhonemeMeasurement
	for i, f1 := range []*float64{hz(700), hz(710), nil, hz(690), hz(2000)} {
		p := phone("r", i, "AA1", float64(i), float64(i)+0.1)
		p.F1 = f1
		ps = append(ps, p)
	}
	got := NewOutlierDetector(cfg.Default().Quality.Outlier).Detect(Input{Phonemes: ps})
	if len(got) != 1 || got[0].Type != "f1" || got[0].Primary().Start != 4 {
		t.Fatalf("issues = %+v, want the 2000 Hz F1 only", got)
	}

	// three values leave only two others per member
	got = NewOutlierDetector(cfg.Default().Quality.Outlier).Detect(Input{Phonemes: ps[:3]})
	if len(got) != 0 {
		t.Errorf("issues = %+v, want none below the minimum group size", got)
	}
}

func TestOutlierGroupsByClass(t *testing.T) {
	var ps []measure.PhonemeMeasurement
	// consonants are short, vowels long; neither is an outlier within its class
	for i := 0; i < 5; i++ {
		ps = append(ps, phone("r", 2*i, "T", float64(i), float64(i)+0.04+0.001*float64(i)))
		ps = append(ps, phone("r", 2*i+1, "IY1", float64(i)+0.5, float64(i)+0.65+0.001*float64(i)))
	}
	ps = append(ps, phone("r", 10, "sil", 6, 7.9))
	if got := NewOutlierDetector(cfg.Default().Quality.Outlier).Detect(Input{Phonemes: ps}); len(got) != 0 {
		t.Errorf("issues = %+v, want none", got)
	}
}

func TestConsistency(t *testing.T) {
	d := NewConsistencyDetector(cfg.Consistency{BoundaryEpsilon: 0.001, Tolerance: 0.1})
	tests := []struct {
		name   string
		phones []measure.PhonemeMeasurement
		want   string
	}{
		{"sum 0.95 passes", []measure.PhonemeMeasurement{
			phone("r", 0, "K", 0, 0.45), phone("r", 1, "AE1", 0.45, 0.95),
		}, ""},
		{"sum 0.70 fails", []measure.PhonemeMeasurement{
			phone("r", 0, "K", 0, 0.3), phone("r", 1, "AE1", 0.3, 0.7),
		}, "duration_mismatch"},
		{"no phones", []measure.PhonemeMeasurement{
			phone("r", 0, "K", 1.0, 1.5),
		}, "no_phonemes"},
		{"phones of another recording", []measure.PhonemeMeasurement{
			phone("other", 0, "K", 0, 1.0),
		}, "no_phonemes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(Input{Phonemes: tt.phones, Words: []measure.WordMeasurement{word("r", 0, "cat", 0, 1.0)}})
			if tt.want == "" {
				if len(got) != 0 {
					t.Errorf("issues = %+v, want none", got)
				}
				return
			}
			if len(got) != 1 || got[0].Type != tt.want {
				t.Fatalf("issues = %+v, want one %s", got, tt.want)
			}
			if p := got[0].Primary(); p.Kind != UnitWord || p.Label != "cat" {
				t.Errorf("primary = %v, want the word", p)
			}
		})
	}
}

func TestDurationBands(t *testing.T) {
	in := Input{Phonemes: []measure.PhonemeMeasurement{
		phone("r", 0, "AA1", 0, 0.01),   // vowel far too short
		phone("r", 1, "AA1", 1, 1.45),   // vowel too long
		phone("r", 2, "T", 2, 2.1),      // fine
		phone("r", 3, "S", 3, 3.3),      // consonant too long
		phone("r", 4, "sil", 4, 8.5),    // silence far too long
		phone("r", 5, "", 7, 7.001),     // short silence is fine
		phone("r", 6, "IY0", 8, 8.0295), // just short
	}}
	got := NewDurationDetector(cfg.Default().Quality.Duration).Detect(in)
	want := map[int]struct {
		kind string
		sev  Severity
	}{
		0: {"too_short_vowel", SeverityHigh},
		1: {"too_long_vowel", SeverityMedium},
		3: {"too_long_consonant", SeverityMedium},
		4: {"too_long_silence", SeverityHigh},
		8: {"too_short_vowel", SeverityMedium},
	}
	if len(got) != len(want) {
		t.Fatalf("issues = %+v, want %d", got, len(want))
	}
	for _, is := range got {
		idx := int(is.Primary().Start)
		w, ok := want[idx]
		if !ok || is.Type != w.kind || is.Severity != w.sev {
			t.Errorf("unexpected issue %+v", is)
		}
	}
}

func fixedClock() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func batch() Input {
	return Input{
		Phonemes: []measure.PhonemeMeasurement{
			phone("a", 0, "HH", 0, 0.08),
			phone("a", 1, "AH0", 0.08, 0.2),
			phone("a", 2, "L", 0.25, 0.3), // gap before, charged to L
			phone("a", 3, "OW1", 0.3, 0.31),
			phone("b", 0, "S", 0, 0.1),
			phone("b", 1, "IY1", 0.1, 0.3),
		},
		Words: []measure.WordMeasurement{
			word("a", 0, "hello", 0, 0.31),
			word("b", 0, "see", 0, 0.3),
			word("b", 1, "ghost", 0.3, 0.5),
		},
	}
}

func TestAssessCountsUnitsOnce(t *testing.T) {
	a := NewAssessor(cfg.Default().Quality, quietLogger(), WithClock(fixedClock))
	r := a.Assess(batch())

	if r.TotalUnits != 9 || r.TotalPhonemes != 6 || r.TotalWords != 3 {
		t.Fatalf("totals = %d/%d/%d", r.TotalUnits, r.TotalPhonemes, r.TotalWords)
	}
	// L (gap), OW1 (too short), hello (phones sum 0.26 vs 0.31), ghost (no phones)
	if r.Categories[CategoryTiming] != 1 || r.Categories[CategoryDuration] != 1 || r.Categories[CategoryConsistency] != 2 {
		t.Errorf("categories = %v", r.Categories)
	}
	if r.FlaggedUnits != 4 {
		t.Errorf("flagged = %d, want 4", r.FlaggedUnits)
	}
	if want := 4.0 / 9.0; r.ErrorRate != want {
		t.Errorf("error rate = %v, want %v", r.ErrorRate, want)
	}
	if r.Verdict != VerdictPoor {
		t.Errorf("verdict = %v, want poor", r.Verdict)
	}
	if _, ok := r.Categories[CategoryOutlier]; !ok {
		t.Error("categories should list every category")
	}
	for i := 1; i < len(r.Issues); i++ {
		a, b := r.Issues[i-1].Primary(), r.Issues[i].Primary()
		if a.Recording > b.Recording || (a.Recording == b.Recording && a.Start > b.Start) {
			t.Errorf("issues not sorted at %d: %v after %v", i, b, a)
		}
	}
}

func TestAssessIsIdempotent(t *testing.T) {
	a := NewAssessor(cfg.Default().Quality, quietLogger(), WithClock(fixedClock))
	in := batch()
	first := a.Assess(in)
	second := a.Assess(in)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reports differ:\n%+v\n%+v", first, second)
	}
}

func TestAssessEmptyBatch(t *testing.T) {
	r := NewAssessor(cfg.Default().Quality, quietLogger()).Assess(Input{})
	if r.Verdict != VerdictNoData || r.ErrorRate != 0 || r.Issues == nil {
		t.Errorf("report = %+v", r)
	}
}

func TestGrade(t *testing.T) {
	v := cfg.Default().Quality.Verdict
	for rate, want := range map[float64]Verdict{
		0: VerdictExcellent, 0.049: VerdictExcellent, 0.05: VerdictGood,
		0.099: VerdictGood, 0.1: VerdictFair, 0.2: VerdictPoor, 1: VerdictPoor,
	} {
		if got := Grade(rate, v); got != want {
			t.Errorf("Grade(%v) = %v, want %v", rate, got, want)
		}
	}
}

func TestReportEncodeAndRead(t *testing.T) {
	r := NewAssessor(cfg.Default().Quality, quietLogger(), WithClock(fixedClock)).Assess(batch())
	r.Skipped = []SkippedRecording{{Recording: "c", Stage: "parse", Reason: "bad"}}
	dir := t.TempDir()
	for _, format := range []string{"json", "yaml"} {
		var buf bytes.Buffer
		if err := r.Encode(&buf, format); err != nil {
			t.Fatalf("Encode(%s): %v", format, err)
		}
		path := filepath.Join(dir, "report."+format)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := ReadReport(path)
		if err != nil {
			t.Fatalf("ReadReport(%s): %v", format, err)
		}
		if got.FlaggedUnits != r.FlaggedUnits || got.Verdict != r.Verdict || !got.GeneratedAt.Equal(r.GeneratedAt) ||
			len(got.Issues) != len(r.Issues) || got.Categories[CategoryConsistency] != 2 || len(got.Skipped) != 1 {
			t.Errorf("%s round trip = %+v", format, got)
		}
	}
	if err := r.Encode(io.Discard, "xml"); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestCompare(t *testing.T) {
	mk := func(rate float64, flagged, timing int) *Report {
		return &Report{ErrorRate: rate, FlaggedUnits: flagged, Categories: map[Category]int{CategoryTiming: timing}}
	}
	tests := []struct {
		name        string
		first, sec  *Report
		want        Outcome
		timingDelta int
	}{
		{"second better", mk(0.2, 20, 5), mk(0.1, 10, 2), OutcomeSecondBetter, -3},
		{"first better", mk(0.05, 5, 1), mk(0.15, 15, 4), OutcomeFirstBetter, 3},
		{"mixed", mk(0.2, 10, 0), mk(0.1, 12, 0), OutcomeSimilar, 0},
		{"equal", mk(0.1, 10, 1), mk(0.1, 10, 1), OutcomeSimilar, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Compare(tt.first, tt.sec)
			if c.Outcome != tt.want || c.CategoryDelta[CategoryTiming] != tt.timingDelta {
				t.Errorf("Compare = %+v, want %v with timing delta %d", c, tt.want, tt.timingDelta)
			}
		})
	}
}
