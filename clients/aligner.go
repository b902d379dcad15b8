package clients

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/alignment-qc/config"
)

// --- Forced aligner ---
type AlignResult struct {
	OutputDir string
	TextGrids []string
	Elapsed   time.Duration
}

// Aligner drives the external forced-alignment tool. Only its output files
// are consumed.
type Aligner struct {
	cfg cfg.Aligner
	run Runner
	log logrus.FieldLogger
}

func NewAligner(c cfg.Aligner, r Runner, log logrus.FieldLogger) *Aligner {
	if r == nil {
		r = ExecRunner{}
	}
	return &Aligner{cfg: c, run: r, log: log}
}

// Validate checks the corpus against the pronunciation dictionary.
func (a *Aligner) Validate(ctx context.Context, corpusDir string) error {
	if err := requireDir(corpusDir); err != nil {
		return err
	}
	_, err := a.exec(ctx, "validate", corpusDir, a.cfg.Dictionary)
	return err
}

// Align runs `<command> align <corpus> <dictionary> <model> <output>` and
// lists the TextGrids found under outputDir afterwards.
func (a *Aligner) Align(ctx context.Context, corpusDir, outputDir string) (*AlignResult, error) {
	if err := requireDir(corpusDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	t0 := time.Now()
	if _, err := a.exec(ctx, "align", corpusDir, a.cfg.Dictionary, a.cfg.AcousticModel, outputDir); err != nil {
		return nil, err
	}
	grids, err := listTextGrids(outputDir)
	if err != nil {
		return nil, err
	}
	if len(grids) == 0 {
		return nil, fmt.Errorf("%s align produced no TextGrids in %s", a.cfg.Command, outputDir)
	}
	res := &AlignResult{OutputDir: outputDir, TextGrids: grids, Elapsed: time.Since(t0)}
	a.log.WithFields(logrus.Fields{
		"textgrids": len(grids),
		"elapsed":   res.Elapsed.Round(time.Millisecond),
	}).Info("alignment finished")
	return res, nil
}

func (a *Aligner) exec(ctx context.Context, sub string, args ...string) ([]byte, error) {
	argv := append([]string{sub}, args...)
	argv = append(argv, a.cfg.ExtraArgs...)
	a.log.WithField("args", strings.Join(argv, " ")).Infof("running %s", a.cfg.Command)

	stdout, stderr, err := a.run.Run(ctx, a.cfg.Command, argv...)
	if err != nil {
		return stdout, fmt.Errorf("%s %s: %w: %s", a.cfg.Command, sub, err, tail(stderr, 5))
	}
	return stdout, nil
}

func requireDir(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// listTextGrids walks dir since the aligner may nest output per speaker.
func listTextGrids(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".textgrid") {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// tail returns the last n non-empty lines of b.
func tail(b []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
