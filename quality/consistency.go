package quality

import (
	"fmt"
	"math"
	"strings"

	cfg "github.com/maastricht-university/alignment-qc/config"
)

// ConsistencyDetector compares each word with the phones inside its span.
type ConsistencyDetector struct {
	cfg cfg.Consistency
}

func NewConsistencyDetector(c cfg.Consistency) *ConsistencyDetector {
	return &ConsistencyDetector{cfg: c}
}

func (d *ConsistencyDetector) Name() Category { return CategoryConsistency }

func (d *ConsistencyDetector) Detect(in Input) []Issue {
	phones := map[string]int{}
	groups := byRecording(in.Phonemes)
	for i, g := range groups {
		phones[g[0].Recording] = i
	}

	eps := d.cfg.BoundaryEpsilon
	var out []Issue
	for _, w := range in.Words {
		if strings.TrimSpace(w.Label) == "" {
			continue
		}
		var inside []UnitKey
		sum := 0.0
		if gi, ok := phones[w.Recording]; ok {
			for _, p := range groups[gi] {
				if p.Start >= w.Start-eps && p.End <= w.End+eps {
					inside = append(inside, PhonemeKey(p))
					sum += p.Duration
				}
			}
		}

		if len(inside) == 0 {
			out = append(out, Issue{
				Category:    CategoryConsistency,
				Type:        "no_phonemes",
				Severity:    SeverityHigh,
				Description: fmt.Sprintf("word %q at %.3fs contains no phones", w.Label, w.Start),
				Refs:        []UnitKey{WordKey(w)},
			})
			continue
		}
		diff := math.Abs(w.Duration - sum)
		if diff <= d.cfg.Tolerance {
			continue
		}
		out = append(out, Issue{
			Category: CategoryConsistency,
			Type:     "duration_mismatch",
			Severity: SeverityMedium,
			Description: fmt.Sprintf("word %q lasts %.1f ms but its %d phones sum to %.1f ms",
				w.Label, w.Duration*1000, len(inside), sum*1000),
			Refs: append([]UnitKey{WordKey(w)}, inside...),
		})
	}
	return out
}
