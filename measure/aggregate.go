package measure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maastricht-university/alignment-qc/acoustic"
	"github.com/maastricht-university/alignment-qc/audio"
	cfg "github.com/maastricht-university/alignment-qc/config"
	"github.com/maastricht-university/alignment-qc/textgrid"
)

// ErrNoPhoneTier is returned for documents without a phone tier.
var ErrNoPhoneTier = errors.New("document has no phone tier")

// Recording pairs a waveform with its parsed annotation.
type Recording struct {
	ID   string
	Wave *audio.Waveform
	Doc  *textgrid.Document
}

type Aggregator struct {
	cfg      cfg.Measure
	analyzer *acoustic.Analyzer
	classes  Classifier
	log      logrus.FieldLogger
}

func NewAggregator(c cfg.Measure, analyzer *acoustic.Analyzer, log logrus.FieldLogger) *Aggregator {
	return &Aggregator{
		cfg:      c,
		analyzer: analyzer,
		classes:  NewClassifier(c.SilenceLabels),
		log:      log,
	}
}

func (g *Aggregator) Classifier() Classifier { return g.classes }

// Measure builds the phoneme and word records of one recording. Interval
// measurements run concurrently up to measure.interval_workers; each writes
// only its own slot, so output order follows the tier.
func (g *Aggregator) Measure(ctx context.Context, rec Recording) (Measurements, error) {
	out := Measurements{Recording: rec.ID}
	phones := rec.Doc.PhoneTier()
	if phones == nil {
		return out, ErrNoPhoneTier
	}
	log := g.log.WithField("recording", rec.ID)

	if words := rec.Doc.WordTier(); words != nil {
		for i, iv := range words.Intervals {
			// blank word intervals are pauses
			if strings.TrimSpace(iv.Label) == "" {
				continue
			}
			out.Words = append(out.Words, WordMeasurement{
				Recording: rec.ID,
				Index:     i,
				Label:     iv.Label,
				Start:     iv.Start,
				End:       iv.End,
				Duration:  iv.Duration(),
			})
		}
	} else {
		log.Warn("no word tier; word-level checks will see no words")
	}

	type job struct {
		index int
		iv    textgrid.Interval
	}
	var jobs []job
	for i, iv := range phones.Intervals {
		if g.cfg.SkipEmptyLabels && strings.TrimSpace(iv.Label) == "" {
			continue
		}
		jobs = append(jobs, job{i, iv})
	}

	sig := g.analyzer.Prepare(rec.Wave)
	slots := make([]PhonemeMeasurement, len(jobs))
	missing := make([]bool, len(jobs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(g.cfg.IntervalWorkers, 1))
	for k, j := range jobs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := g.phoneme(sig, rec.ID, j.index, j.iv)
			if err != nil {
				if !errors.Is(err, acoustic.ErrMeasurementUnavailable) {
					return fmt.Errorf("interval %d (%s): %w", j.index+1, j.iv.Label, err)
				}
				missing[k] = true
				log.WithFields(logrus.Fields{
					"phoneme": j.iv.Label,
					"start":   j.iv.Start,
				}).Debugf("acoustic measurement unavailable: %v", err)
			}
			slots[k] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return out, err
	}

	out.Phonemes = slots
	for _, miss := range missing {
		if miss {
			out.Unavailable++
		}
	}
	return out, nil
}

// phoneme always returns the duration fields; acoustic fields are filled
// only when the analyzer succeeded.
func (g *Aggregator) phoneme(sig *acoustic.Signal, id string, index int, iv textgrid.Interval) (PhonemeMeasurement, error) {
	m := PhonemeMeasurement{
		Recording: id,
		Index:     index,
		Label:     iv.Label,
		Start:     iv.Start,
		End:       iv.End,
		Duration:  iv.Duration(),
		Vowel:     IsVowel(iv.Label),
		Class:     g.classes.Classify(iv.Label),
	}
	f, err := g.analyzer.Measure(sig, iv.Start, iv.End, m.Vowel)
	if err != nil {
		return m, err
	}
	if f.Formants != nil {
		for k := 1; k <= acoustic.Tracked; k++ {
			if v, ok := f.Formants.Value(k); ok {
				switch k {
				case 1:
					m.F1 = ptr(v)
				case 2:
					m.F2 = ptr(v)
				case 3:
					m.F3 = ptr(v)
				}
			}
		}
	}
	if p := f.Pitch; p != nil {
		m.PitchMean, m.PitchSD, m.PitchMin, m.PitchMax = ptr(p.Mean), ptr(p.SD), ptr(p.Min), ptr(p.Max)
	}
	if in := f.Intensity; in != nil {
		m.IntensityMean, m.IntensitySD = ptr(in.Mean), ptr(in.SD)
	}
	return m, nil
}
