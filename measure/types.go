// Package measure joins parsed annotation intervals with acoustic features
// into per-unit measurement records.
package measure

import "sort"

// PhonemeMeasurement is one phone interval of a recording. Nil acoustic
// fields mean "not applicable or unavailable", never zero.
type PhonemeMeasurement struct {
	Recording string  `json:"file"`
	Index     int     `json:"index"`
	Label     string  `json:"phoneme"`
	Start     float64 `json:"start_time"`
	End       float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	Vowel     bool    `json:"is_vowel"`
	Class     Class   `json:"class"`

	F1 *float64 `json:"f1_mean,omitempty"`
	F2 *float64 `json:"f2_mean,omitempty"`
	F3 *float64 `json:"f3_mean,omitempty"`

	PitchMean *float64 `json:"f0_mean,omitempty"`
	PitchSD   *float64 `json:"f0_std,omitempty"`
	PitchMin  *float64 `json:"f0_min,omitempty"`
	PitchMax  *float64 `json:"f0_max,omitempty"`

	IntensityMean *float64 `json:"intensity_mean,omitempty"`
	IntensitySD   *float64 `json:"intensity_std,omitempty"`
}

// Formant returns F1..F3 by number.
func (m *PhonemeMeasurement) Formant(k int) *float64 {
	switch k {
	case 1:
		return m.F1
	case 2:
		return m.F2
	case 3:
		return m.F3
	}
	return nil
}

type WordMeasurement struct {
	Recording string  `json:"file"`
	Index     int     `json:"index"`
	Label     string  `json:"word"`
	Start     float64 `json:"start_time"`
	End       float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
}

// Dataset is the corpus-wide collection. It is built once and read-only
// afterwards.
type Dataset struct {
	Phonemes []PhonemeMeasurement
	Words    []WordMeasurement
}

// Recordings returns the distinct recording ids in sorted order.
func (d *Dataset) Recordings() []string {
	seen := map[string]bool{}
	for _, p := range d.Phonemes {
		seen[p.Recording] = true
	}
	for _, w := range d.Words {
		seen[w.Recording] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sort orders both collections by recording id, then tier position.
func (d *Dataset) Sort() {
	sort.SliceStable(d.Phonemes, func(i, j int) bool {
		a, b := d.Phonemes[i], d.Phonemes[j]
		if a.Recording != b.Recording {
			return a.Recording < b.Recording
		}
		return a.Index < b.Index
	})
	sort.SliceStable(d.Words, func(i, j int) bool {
		a, b := d.Words[i], d.Words[j]
		if a.Recording != b.Recording {
			return a.Recording < b.Recording
		}
		return a.Index < b.Index
	})
}

// Append adds one recording's measurements.
func (d *Dataset) Append(m Measurements) {
	d.Phonemes = append(d.Phonemes, m.Phonemes...)
	d.Words = append(d.Words, m.Words...)
}

// Measurements are the records of a single recording.
type Measurements struct {
	Recording string
	Phonemes  []PhonemeMeasurement
	Words     []WordMeasurement
	// Unavailable counts phone intervals the analyzer could not measure.
	Unavailable int
}

func ptr(v float64) *float64 { return &v }
