package quality

import (
	"fmt"
	"math"
	"sort"

	cfg "github.com/maastricht-university/alignment-qc/config"
	"github.com/maastricht-university/alignment-qc/measure"
)

// feature extracts one value from a phoneme; nil means absent.
type feature struct {
	name  string
	value func(m *measure.PhonemeMeasurement) *float64
}

var outlierFeatures = []feature{
	{"duration", func(m *measure.PhonemeMeasurement) *float64 { return &m.Duration }},
	{"f1", func(m *measure.PhonemeMeasurement) *float64 { return m.F1 }},
	{"f2", func(m *measure.PhonemeMeasurement) *float64 { return m.F2 }},
	{"f3", func(m *measure.PhonemeMeasurement) *float64 { return m.F3 }},
	{"pitch_mean", func(m *measure.PhonemeMeasurement) *float64 { return m.PitchMean }},
	{"intensity_mean", func(m *measure.PhonemeMeasurement) *float64 { return m.IntensityMean }},
}

// OutlierDetector flags feature values far from the rest of their group.
// Each value is compared with the mean and sample SD of the other members,
// so a single extreme value cannot mask itself by inflating the spread.
type OutlierDetector struct {
	cfg cfg.Outlier
}

func NewOutlierDetector(c cfg.Outlier) *OutlierDetector {
	return &OutlierDetector{cfg: c}
}

func (d *OutlierDetector) Name() Category { return CategoryOutlier }

func (d *OutlierDetector) group(m *measure.PhonemeMeasurement) string {
	if d.cfg.GroupBy == cfg.GroupByPhoneme {
		return m.Label
	}
	return string(m.Class)
}

func (d *OutlierDetector) Detect(in Input) []Issue {
	groups := map[string][]int{}
	var names []string
	for i := range in.Phonemes {
		m := &in.Phonemes[i]
		if m.Class == measure.ClassSilence && !d.cfg.IncludeSilence {
			continue
		}
		g := d.group(m)
		if _, ok := groups[g]; !ok {
			names = append(names, g)
		}
		groups[g] = append(groups[g], i)
	}
	sort.Strings(names)

	var out []Issue
	for _, f := range outlierFeatures {
		for _, g := range names {
			out = append(out, d.detectGroup(in.Phonemes, groups[g], g, f)...)
		}
	}
	return out
}

func (d *OutlierDetector) detectGroup(ps []measure.PhonemeMeasurement, members []int, group string, f feature) []Issue {
	var idx []int
	var vals []float64
	for _, i := range members {
		if v := f.value(&ps[i]); v != nil && !math.IsNaN(*v) {
			idx = append(idx, i)
			vals = append(vals, *v)
		}
	}
	n := len(vals)
	if n-1 < d.cfg.MinGroupSize {
		return nil
	}

	mean, m2 := 0.0, 0.0
	for k, v := range vals {
		delta := v - mean
		mean += delta / float64(k+1)
		m2 += delta * (v - mean)
	}

	var out []Issue
	for k, v := range vals {
		// statistics of the group without v
		restMean := (float64(n)*mean - v) / float64(n-1)
		restM2 := m2 - (v-mean)*(v-restMean)
		if restM2 < 0 {
			restM2 = 0
		}
		sd := math.Sqrt(restM2 / float64(n-2))
		scale := math.Max(1, math.Abs(restMean))
		p := ps[idx[k]]

		// the others agree exactly: any real difference is an outlier
		if sd <= 1e-12*scale {
			if math.Abs(v-restMean) <= 1e-9*scale {
				continue
			}
			out = append(out, Issue{
				Category: CategoryOutlier,
				Type:     f.name,
				Severity: SeverityHigh,
				Description: fmt.Sprintf("%q %s %.4g differs from the %s value %.4g shared by all others",
					p.Label, f.name, v, group, restMean),
				Refs: []UnitKey{PhonemeKey(p)},
			})
			continue
		}

		z := math.Abs(v-restMean) / sd
		if z <= d.cfg.Sigma {
			continue
		}
		sev := SeverityMedium
		if z > 2*d.cfg.Sigma {
			sev = SeverityHigh
		}
		out = append(out, Issue{
			Category: CategoryOutlier,
			Type:     f.name,
			Severity: sev,
			Description: fmt.Sprintf("%q %s %.4g is %.1f SD from the %s mean %.4g",
				p.Label, f.name, v, z, group, restMean),
			Refs: []UnitKey{PhonemeKey(p)},
		})
	}
	return out
}
