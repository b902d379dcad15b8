package store

import "time"

// Run is one stored batch with its report headline; the full report is
// kept as JSON.
type Run struct {
	ID            string    `gorm:"primaryKey;size:36"`
	GeneratedAt   time.Time `gorm:"column:generated_at;index"`
	TotalUnits    int       `gorm:"column:total_units"`
	TotalPhonemes int       `gorm:"column:total_phonemes"`
	TotalWords    int       `gorm:"column:total_words"`
	FlaggedUnits  int       `gorm:"column:flagged_units"`
	TotalIssues   int       `gorm:"column:total_issues"`
	ErrorRate     float64   `gorm:"column:error_rate"`
	Verdict       string    `gorm:"column:verdict;size:16"`
	Skipped       int       `gorm:"column:skipped"`
	Report        string    `gorm:"column:report;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (*Run) TableName() string { return "runs" }

type Phoneme struct {
	ID            uint     `gorm:"primaryKey"`
	RunID         string   `gorm:"column:run_id;size:36;index"`
	Recording     string   `gorm:"column:recording;index"`
	Index         int      `gorm:"column:idx"`
	Label         string   `gorm:"column:phoneme"`
	Start         float64  `gorm:"column:start_time"`
	End           float64  `gorm:"column:end_time"`
	Duration      float64  `gorm:"column:duration"`
	IsVowel       bool     `gorm:"column:is_vowel"`
	Class         string   `gorm:"column:class;size:16"`
	F1            *float64 `gorm:"column:f1_mean"`
	F2            *float64 `gorm:"column:f2_mean"`
	F3            *float64 `gorm:"column:f3_mean"`
	PitchMean     *float64 `gorm:"column:f0_mean"`
	PitchSD       *float64 `gorm:"column:f0_std"`
	PitchMin      *float64 `gorm:"column:f0_min"`
	PitchMax      *float64 `gorm:"column:f0_max"`
	IntensityMean *float64 `gorm:"column:intensity_mean"`
	IntensitySD   *float64 `gorm:"column:intensity_std"`
}

func (*Phoneme) TableName() string { return "phoneme_measurements" }

type Word struct {
	ID        uint    `gorm:"primaryKey"`
	RunID     string  `gorm:"column:run_id;size:36;index"`
	Recording string  `gorm:"column:recording;index"`
	Index     int     `gorm:"column:idx"`
	Label     string  `gorm:"column:word"`
	Start     float64 `gorm:"column:start_time"`
	End       float64 `gorm:"column:end_time"`
	Duration  float64 `gorm:"column:duration"`
}

func (*Word) TableName() string { return "word_measurements" }

// Issue is stored flat, keyed by its primary unit.
type Issue struct {
	ID          uint    `gorm:"primaryKey"`
	RunID       string  `gorm:"column:run_id;size:36;index"`
	Category    string  `gorm:"column:category;size:32;index"`
	Type        string  `gorm:"column:type;size:32"`
	Severity    string  `gorm:"column:severity;size:8"`
	Recording   string  `gorm:"column:recording"`
	UnitKind    string  `gorm:"column:unit_kind;size:8"`
	UnitLabel   string  `gorm:"column:unit_label"`
	UnitStart   float64 `gorm:"column:unit_start"`
	Refs        int     `gorm:"column:refs"`
	Description string  `gorm:"column:description;type:text"`
}

func (*Issue) TableName() string { return "quality_issues" }
