package quality

import (
	"fmt"
	"math"
	"sort"

	cfg "github.com/maastricht-university/alignment-qc/config"
	"github.com/maastricht-university/alignment-qc/measure"
)

// TimingDetector walks each recording's phones in time order and flags
// gaps and overlaps between neighbours larger than epsilon.
type TimingDetector struct {
	cfg cfg.Timing
}

func NewTimingDetector(c cfg.Timing) *TimingDetector {
	return &TimingDetector{cfg: c}
}

func (d *TimingDetector) Name() Category { return CategoryTiming }

func (d *TimingDetector) Detect(in Input) []Issue {
	var out []Issue
	for _, phones := range byRecording(in.Phonemes) {
		for i := 0; i+1 < len(phones); i++ {
			cur, next := phones[i], phones[i+1]
			jump := next.Start - cur.End
			var kind string
			sev := SeverityLow
			switch {
			case jump > d.cfg.Epsilon:
				kind = "gap"
			case jump < -d.cfg.Epsilon:
				kind = "overlap"
				sev = SeverityMedium
			default:
				continue
			}
			if math.Abs(jump) > d.cfg.MajorJump {
				sev = SeverityHigh
			}
			out = append(out, Issue{
				Category: CategoryTiming,
				Type:     kind,
				Severity: sev,
				Description: fmt.Sprintf("%.1f ms %s between %q and %q at %.3fs",
					math.Abs(jump)*1000, kind, cur.Label, next.Label, cur.End),
				Refs: []UnitKey{PhonemeKey(next), PhonemeKey(cur)},
			})
		}
	}
	return out
}

// byRecording groups phonemes per recording, in recording order, each
// group sorted by start time then tier position.
func byRecording(ps []measure.PhonemeMeasurement) [][]measure.PhonemeMeasurement {
	groups := map[string][]measure.PhonemeMeasurement{}
	var ids []string
	for _, p := range ps {
		if _, ok := groups[p.Recording]; !ok {
			ids = append(ids, p.Recording)
		}
		groups[p.Recording] = append(groups[p.Recording], p)
	}
	sort.Strings(ids)
	out := make([][]measure.PhonemeMeasurement, 0, len(ids))
	for _, id := range ids {
		g := groups[id]
		sort.SliceStable(g, func(i, j int) bool {
			if g[i].Start != g[j].Start {
				return g[i].Start < g[j].Start
			}
			return g[i].Index < g[j].Index
		})
		out = append(out, g)
	}
	return out
}
