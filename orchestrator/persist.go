package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/maastricht-university/alignment-qc/measure"
)

const (
	SummaryFile = "analysis_summary.json"
	BundleFile  = "bundle.json"
)

// ReportFile names the report for the given format ("json" or "yaml").
func ReportFile(format string) string { return "quality_report." + format }

func mkRunDir(outputsRoot string, at time.Time, runID string) (string, error) {
	name := "run_" + at.Format("20060102-150405") + "_" + runID[:8]
	dir := filepath.Join(outputsRoot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Pipeline) persist(res *Result, pairs []Pair) error {
	at := p.now()
	dir, err := mkRunDir(p.cfg.Paths.Outputs, at, res.RunID)
	if err != nil {
		return err
	}
	res.OutputDir = dir

	if err := measure.WriteTables(dir, res.Dataset); err != nil {
		return err
	}
	files := []string{measure.PhonemeTableFile, measure.WordTableFile, SummaryFile}
	if err := writeJSON(filepath.Join(dir, SummaryFile), res.Summary); err != nil {
		return err
	}

	bundle := Bundle{
		RunID:       res.RunID,
		GeneratedAt: at,
		AudioDir:    p.cfg.Paths.Audio,
		TextGridDir: p.cfg.Paths.TextGrids,
		Recordings:  pairs,
		Skipped:     res.Skipped,
	}
	if res.Report != nil {
		name := ReportFile(p.cfg.Report.Format)
		if err := writeReport(filepath.Join(dir, name), res, p.cfg.Report.Format); err != nil {
			return err
		}
		files = append(files, name)
		bundle.Verdict = string(res.Report.Verdict)
		bundle.ErrorRate = res.Report.ErrorRate
	}
	bundle.Files = files
	if bundle.Recordings == nil {
		bundle.Recordings = []Pair{}
	}
	if bundle.Skipped == nil {
		bundle.Skipped = []Skip{}
	}
	return writeJSON(filepath.Join(dir, BundleFile), bundle)
}

func writeReport(path string, res *Result, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := res.Report.Encode(f, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
