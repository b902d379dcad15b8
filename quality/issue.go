// Package quality runs anomaly detectors over measurement collections and
// grades the alignment by the share of flagged units.
package quality

import (
	"fmt"

	"github.com/maastricht-university/alignment-qc/measure"
)

type Category string

const (
	CategoryDuration    Category = "duration_anomaly"
	CategoryTiming      Category = "timing"
	CategoryOutlier     Category = "statistical_outlier"
	CategoryConsistency Category = "word_phoneme_mismatch"
)

// Categories lists every category in report order.
var Categories = []Category{CategoryDuration, CategoryTiming, CategoryOutlier, CategoryConsistency}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type UnitKind string

const (
	UnitPhoneme UnitKind = "phoneme"
	UnitWord    UnitKind = "word"
)

// UnitKey identifies a measurement without holding on to it.
type UnitKey struct {
	Kind      UnitKind `json:"kind" yaml:"kind"`
	Recording string   `json:"recording" yaml:"recording"`
	Label     string   `json:"label" yaml:"label"`
	Start     float64  `json:"start" yaml:"start"`
}

func (k UnitKey) String() string {
	return fmt.Sprintf("%s %s %q@%.3f", k.Recording, k.Kind, k.Label, k.Start)
}

func PhonemeKey(m measure.PhonemeMeasurement) UnitKey {
	return UnitKey{Kind: UnitPhoneme, Recording: m.Recording, Label: m.Label, Start: m.Start}
}

func WordKey(m measure.WordMeasurement) UnitKey {
	return UnitKey{Kind: UnitWord, Recording: m.Recording, Label: m.Label, Start: m.Start}
}

// Issue is one detector finding. Refs[0] is the unit the issue is charged to.
type Issue struct {
	Category    Category  `json:"category" yaml:"category"`
	Type        string    `json:"type" yaml:"type"`
	Severity    Severity  `json:"severity" yaml:"severity"`
	Description string    `json:"description" yaml:"description"`
	Refs        []UnitKey `json:"refs" yaml:"refs"`
}

func (i Issue) Primary() UnitKey { return i.Refs[0] }

// Input is the read-only measurement set every detector inspects.
type Input struct {
	Phonemes []measure.PhonemeMeasurement
	Words    []measure.WordMeasurement
}

// Detector finds one category of anomaly. Detect must not modify in.
type Detector interface {
	Name() Category
	Detect(in Input) []Issue
}
