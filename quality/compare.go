package quality

import "math"

type Outcome string

const (
	OutcomeFirstBetter  Outcome = "first_better"
	OutcomeSecondBetter Outcome = "second_better"
	OutcomeSimilar      Outcome = "similar"
)

// Comparison contrasts two reports, e.g. alignments of one corpus made
// with different acoustic models. Deltas are second minus first.
type Comparison struct {
	First          *Report          `json:"-" yaml:"-"`
	Second         *Report          `json:"-" yaml:"-"`
	ErrorRateDelta float64          `json:"error_rate_delta" yaml:"error_rate_delta"`
	FlaggedDelta   int              `json:"flagged_delta" yaml:"flagged_delta"`
	CategoryDelta  map[Category]int `json:"category_delta" yaml:"category_delta"`
	Outcome        Outcome          `json:"outcome" yaml:"outcome"`
}

const rateTolerance = 1e-9

// Compare declares a winner only when the error rate and the flagged unit
// count agree; mixed results are similar.
func Compare(first, second *Report) Comparison {
	c := Comparison{
		First:          first,
		Second:         second,
		ErrorRateDelta: second.ErrorRate - first.ErrorRate,
		FlaggedDelta:   second.FlaggedUnits - first.FlaggedUnits,
		CategoryDelta:  make(map[Category]int, len(Categories)),
		Outcome:        OutcomeSimilar,
	}
	for _, cat := range Categories {
		c.CategoryDelta[cat] = second.Categories[cat] - first.Categories[cat]
	}

	switch {
	case math.Abs(c.ErrorRateDelta) <= rateTolerance:
	case c.ErrorRateDelta < 0 && c.FlaggedDelta <= 0:
		c.Outcome = OutcomeSecondBetter
	case c.ErrorRateDelta > 0 && c.FlaggedDelta >= 0:
		c.Outcome = OutcomeFirstBetter
	}
	return c
}
