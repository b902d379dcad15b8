package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maastricht-university/alignment-qc/acoustic"
	"github.com/maastricht-university/alignment-qc/audio"
	"github.com/maastricht-university/alignment-qc/clients"
	cfg "github.com/maastricht-university/alignment-qc/config"
	"github.com/maastricht-university/alignment-qc/measure"
	"github.com/maastricht-university/alignment-qc/quality"
	"github.com/maastricht-university/alignment-qc/textgrid"
)

// Saver persists a finished run.
type Saver interface {
	SaveRun(ctx context.Context, runID string, d *measure.Dataset, r *quality.Report) error
}

type Pipeline struct {
	cfg      *cfg.Root
	measurer *measure.Aggregator
	assessor *quality.Assessor
	http     *clients.HTTP
	store    Saver
	log      logrus.FieldLogger
	now      func() time.Time
}

type Option func(*Pipeline)

// WithStore saves every run through s after the files are written.
func WithStore(s Saver) Option { return func(p *Pipeline) { p.store = s } }

// WithClock fixes the time used for run directories and report stamps.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func NewPipeline(c *cfg.Root, log logrus.FieldLogger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg: c,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(p)
	}
	p.measurer = measure.NewAggregator(c.Measure, acoustic.New(c.Analysis), log)
	p.assessor = quality.NewAssessor(c.Quality, log, quality.WithClock(p.now))
	if c.Report.WebhookURL != "" {
		p.http = clients.NewHTTP(c.Report.Timeout())
	}
	return p
}

// Run measures every recording pair under the configured paths, assesses
// the merged dataset and writes the run directory.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	return p.run(ctx, true)
}

// Measure is Run without the assessment; only tables, summary and bundle
// are written.
func (p *Pipeline) Measure(ctx context.Context) (*Result, error) {
	return p.run(ctx, false)
}

func (p *Pipeline) run(ctx context.Context, assess bool) (*Result, error) {
	audioDir, gridDir := p.cfg.Paths.Audio, p.cfg.Paths.TextGrids
	pairs, missing, err := Discover(audioDir, gridDir)
	if err != nil {
		return nil, fmt.Errorf("discover recordings: %w", err)
	}
	var skipped []Skip
	for _, m := range missing {
		p.log.WithFields(logrus.Fields{"recording": m.ID, "stage": StageDiscover}).Warn(m.Error())
		skipped = append(skipped, Skip{Recording: m.ID, Stage: StageDiscover, Reason: m.Error()})
	}

	ds, procSkips, err := p.collect(ctx, pairs)
	if err != nil {
		return nil, err
	}
	skipped = append(skipped, procSkips...)
	sort.SliceStable(skipped, func(i, j int) bool { return skipped[i].Recording < skipped[j].Recording })

	res := &Result{
		RunID:     uuid.NewString(),
		Dataset:   ds,
		Summary:   measure.Summarize(ds, p.now()),
		Skipped:   skipped,
		Processed: len(pairs) - len(procSkips),
	}
	if assess {
		res.Report = p.assessor.Assess(quality.Input{Phonemes: ds.Phonemes, Words: ds.Words})
		res.Report.Skipped = skipped
	}

	p.log.WithFields(logrus.Fields{
		"processed": res.Processed,
		"skipped":   len(skipped),
		"phonemes":  len(ds.Phonemes),
		"words":     len(ds.Words),
	}).Info("batch measured")

	if err := p.persist(res, pairs); err != nil {
		return nil, fmt.Errorf("persist run: %w", err)
	}
	if p.store != nil && res.Report != nil {
		if err := p.store.SaveRun(ctx, res.RunID, ds, res.Report); err != nil {
			return res, fmt.Errorf("store run: %w", err)
		}
	}
	if p.http != nil && res.Report != nil {
		if _, err := p.http.PostReport(ctx, p.cfg.Report.WebhookURL, res.RunID, res.Report); err != nil {
			p.log.WithError(err).Warn("report delivery failed")
		}
	}
	return res, nil
}

// collect processes pairs concurrently. A failing recording becomes a Skip;
// only cancellation aborts the batch. Results are merged in pair order and
// then sorted, so the dataset does not depend on scheduling.
func (p *Pipeline) collect(ctx context.Context, pairs []Pair) (*measure.Dataset, []Skip, error) {
	results := make([]measure.Measurements, len(pairs))
	skips := make([]*Skip, len(pairs))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(p.cfg.Pipeline.Workers, 1))
	for i, pair := range pairs {
		eg.Go(func() error {
			m, skip, err := p.process(gctx, pair)
			if err != nil {
				return err
			}
			results[i], skips[i] = m, skip
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	ds := &measure.Dataset{}
	var out []Skip
	for i := range pairs {
		if skips[i] != nil {
			out = append(out, *skips[i])
			continue
		}
		ds.Append(results[i])
	}
	ds.Sort()
	return ds, out, nil
}

func (p *Pipeline) process(ctx context.Context, pair Pair) (measure.Measurements, *Skip, error) {
	log := p.log.WithField("recording", pair.ID)
	skip := func(stage string, err error) (measure.Measurements, *Skip, error) {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return measure.Measurements{}, nil, ctxErr
		}
		log.WithField("stage", stage).Warnf("skipping recording: %v", err)
		return measure.Measurements{}, &Skip{Recording: pair.ID, Stage: stage, Reason: err.Error()}, nil
	}

	wave, _, err := audio.ReadWAVFile(pair.AudioPath)
	if err != nil {
		return skip(StageAudio, err)
	}
	doc, err := textgrid.ParseFile(pair.TextGridPath)
	if err != nil {
		return skip(StageParse, err)
	}
	m, err := p.measurer.Measure(ctx, measure.Recording{ID: pair.ID, Wave: wave, Doc: doc})
	if err != nil {
		return skip(StageMeasure, err)
	}
	log.WithFields(logrus.Fields{
		"phonemes":    len(m.Phonemes),
		"words":       len(m.Words),
		"unavailable": m.Unavailable,
	}).Debug("recording measured")
	return m, nil, nil
}
