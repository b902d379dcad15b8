package quality

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	cfg "github.com/maastricht-university/alignment-qc/config"
)

type Verdict string

const (
	VerdictExcellent Verdict = "excellent"
	VerdictGood      Verdict = "good"
	VerdictFair      Verdict = "fair"
	VerdictPoor      Verdict = "poor"
	VerdictNoData    Verdict = "no_data"
)

// Grade maps an error rate (fraction) to a verdict using exclusive upper cutoffs.
func Grade(rate float64, c cfg.Verdict) Verdict {
	switch {
	case rate < c.Excellent:
		return VerdictExcellent
	case rate < c.Good:
		return VerdictGood
	case rate < c.Fair:
		return VerdictFair
	default:
		return VerdictPoor
	}
}

// SkippedRecording is a recording excluded from the batch and why.
type SkippedRecording struct {
	Recording string `json:"recording" yaml:"recording"`
	Stage     string `json:"stage" yaml:"stage"`
	Reason    string `json:"reason" yaml:"reason"`
}

type Report struct {
	GeneratedAt   time.Time          `json:"timestamp" yaml:"timestamp"`
	TotalUnits    int                `json:"total_units" yaml:"total_units"`
	TotalPhonemes int                `json:"total_phonemes" yaml:"total_phonemes"`
	TotalWords    int                `json:"total_words" yaml:"total_words"`
	FlaggedUnits  int                `json:"flagged_units" yaml:"flagged_units"`
	TotalIssues   int                `json:"total_issues" yaml:"total_issues"`
	Categories    map[Category]int   `json:"categories" yaml:"categories"`
	Types         map[string]int     `json:"types" yaml:"types"`
	ErrorRate     float64            `json:"error_rate" yaml:"error_rate"`
	Verdict       Verdict            `json:"verdict" yaml:"verdict"`
	Issues        []Issue            `json:"issues" yaml:"issues"`
	Skipped       []SkippedRecording `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

type Assessor struct {
	cfg       cfg.Quality
	detectors []Detector
	now       func() time.Time
	log       logrus.FieldLogger
}

type Option func(*Assessor)

// WithClock fixes the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Assessor) { a.now = now }
}

// WithDetectors replaces the default detector set.
func WithDetectors(ds ...Detector) Option {
	return func(a *Assessor) { a.detectors = ds }
}

func NewAssessor(c cfg.Quality, log logrus.FieldLogger, opts ...Option) *Assessor {
	a := &Assessor{
		cfg: c,
		detectors: []Detector{
			NewDurationDetector(c.Duration),
			NewTimingDetector(c.Timing),
			NewOutlierDetector(c.Outlier),
			NewConsistencyDetector(c.Consistency),
		},
		now: func() time.Time { return time.Now().UTC() },
		log: log,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assess runs every detector concurrently over in and builds the report.
// A unit counts once toward FlaggedUnits however many issues name it as
// their primary reference.
func (a *Assessor) Assess(in Input) *Report {
	results := make([][]Issue, len(a.detectors))
	var eg errgroup.Group
	for i, d := range a.detectors {
		eg.Go(func() error {
			results[i] = d.Detect(in)
			return nil
		})
	}
	_ = eg.Wait()

	r := &Report{
		GeneratedAt:   a.now(),
		TotalPhonemes: len(in.Phonemes),
		TotalWords:    len(in.Words),
		Categories:    make(map[Category]int, len(Categories)),
		Types:         map[string]int{},
		Issues:        []Issue{},
	}
	r.TotalUnits = r.TotalPhonemes + r.TotalWords
	for _, c := range Categories {
		r.Categories[c] = 0
	}

	flagged := map[UnitKey]bool{}
	for i, issues := range results {
		a.log.WithField("detector", a.detectors[i].Name()).Infof("%d issues", len(issues))
		for _, is := range issues {
			r.Categories[is.Category]++
			r.Types[is.Type]++
			flagged[is.Primary()] = true
		}
		r.Issues = append(r.Issues, issues...)
	}
	sortIssues(r.Issues)

	r.TotalIssues = len(r.Issues)
	r.FlaggedUnits = len(flagged)
	if r.TotalUnits == 0 {
		r.Verdict = VerdictNoData
		return r
	}
	r.ErrorRate = float64(r.FlaggedUnits) / float64(r.TotalUnits)
	r.Verdict = Grade(r.ErrorRate, a.cfg.Verdict)
	return r
}

func categoryRank(c Category) int {
	for i, x := range Categories {
		if x == c {
			return i
		}
	}
	return len(Categories)
}

func sortIssues(is []Issue) {
	sort.SliceStable(is, func(i, j int) bool {
		a, b := is[i].Primary(), is[j].Primary()
		if a.Recording != b.Recording {
			return a.Recording < b.Recording
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if ra, rb := categoryRank(is[i].Category), categoryRank(is[j].Category); ra != rb {
			return ra < rb
		}
		return is[i].Type < is[j].Type
	})
}
