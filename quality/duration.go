package quality

import (
	"fmt"

	cfg "github.com/maastricht-university/alignment-qc/config"
	"github.com/maastricht-university/alignment-qc/measure"
)

// DurationDetector checks phoneme durations against fixed per-class bands.
type DurationDetector struct {
	bands cfg.DurationBands
}

func NewDurationDetector(b cfg.DurationBands) *DurationDetector {
	return &DurationDetector{bands: b}
}

func (d *DurationDetector) Name() Category { return CategoryDuration }

func (d *DurationDetector) band(c measure.Class) cfg.Band {
	switch c {
	case measure.ClassVowel:
		return d.bands.Vowel
	case measure.ClassSilence:
		return d.bands.Silence
	default:
		return d.bands.Consonant
	}
}

func (d *DurationDetector) Detect(in Input) []Issue {
	var out []Issue
	for _, p := range in.Phonemes {
		b := d.band(p.Class)
		var kind string
		sev := SeverityMedium
		switch {
		case p.Duration < b.Min:
			kind = "too_short_" + string(p.Class)
			if p.Duration < b.Min/2 {
				sev = SeverityHigh
			}
		case p.Duration > b.Max:
			kind = "too_long_" + string(p.Class)
			if p.Duration > b.Max*2 {
				sev = SeverityHigh
			}
		default:
			continue
		}
		out = append(out, Issue{
			Category: CategoryDuration,
			Type:     kind,
			Severity: sev,
			Description: fmt.Sprintf("%q lasts %.1f ms, outside the %s band [%.1f, %.1f] ms",
				p.Label, p.Duration*1000, p.Class, b.Min*1000, b.Max*1000),
			Refs: []UnitKey{PhonemeKey(p)},
		})
	}
	return out
}
