package orchestrator

import (
	"fmt"
	"time"

	"github.com/maastricht-university/alignment-qc/measure"
	"github.com/maastricht-university/alignment-qc/quality"
)

// Pair is one recording: a waveform and its boundary annotation.
type Pair struct {
	ID           string `json:"id"`
	AudioPath    string `json:"audio"`
	TextGridPath string `json:"textgrid"`
}

// MissingPairError reports a recording with only one of its two files.
type MissingPairError struct {
	ID      string
	Missing string // "audio" or "textgrid"
	Path    string // the file that was found
}

func (e *MissingPairError) Error() string {
	return fmt.Sprintf("%s: no %s file next to %s", e.ID, e.Missing, e.Path)
}

// Skip is a recording excluded from the batch.
type Skip = quality.SkippedRecording

// stages recorded in Skip.Stage
const (
	StageDiscover = "discover"
	StageAudio    = "audio"
	StageParse    = "parse"
	StageMeasure  = "measure"
)

type Result struct {
	RunID     string
	Dataset   *measure.Dataset
	Summary   measure.Summary
	Report    *quality.Report
	Skipped   []Skip
	Processed int
	OutputDir string
}

// Bundle is the run manifest written next to the tables.
type Bundle struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	AudioDir    string    `json:"audio_dir"`
	TextGridDir string    `json:"textgrid_dir"`
	Recordings  []Pair    `json:"recordings"`
	Skipped     []Skip    `json:"skipped"`
	Verdict     string    `json:"verdict"`
	ErrorRate   float64   `json:"error_rate"`
	Files       []string  `json:"files"`
}
