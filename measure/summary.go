package measure

import (
	"math"
	"time"
)

type DurationStats struct {
	Mean float64 `json:"mean_duration"`
	SD   float64 `json:"std_duration"`
	Min  float64 `json:"min_duration"`
	Max  float64 `json:"max_duration"`
}

type VowelFormants struct {
	F1Mean  float64    `json:"f1_mean"`
	F2Mean  float64    `json:"f2_mean"`
	F1Range [2]float64 `json:"f1_range"`
	F2Range [2]float64 `json:"f2_range"`
}

// Summary is the corpus-level overview written next to the tables.
type Summary struct {
	GeneratedAt    time.Time      `json:"timestamp"`
	TotalFiles     int            `json:"total_files"`
	TotalPhonemes  int            `json:"total_phonemes"`
	TotalWords     int            `json:"total_words"`
	VowelsAnalyzed int            `json:"vowels_analyzed"`
	PhonemeStats   DurationStats  `json:"phoneme_stats"`
	WordStats      DurationStats  `json:"word_stats"`
	VowelFormants  *VowelFormants `json:"vowel_formants,omitempty"`
}

// Summarize computes dataset totals. Spreads are sample standard deviations.
func Summarize(d *Dataset, at time.Time) Summary {
	s := Summary{
		GeneratedAt:   at,
		TotalFiles:    len(d.Recordings()),
		TotalPhonemes: len(d.Phonemes),
		TotalWords:    len(d.Words),
	}

	pd := make([]float64, 0, len(d.Phonemes))
	var f1, f2 []float64
	for _, p := range d.Phonemes {
		pd = append(pd, p.Duration)
		if !p.Vowel {
			continue
		}
		s.VowelsAnalyzed++
		if p.F1 != nil {
			f1 = append(f1, *p.F1)
		}
		if p.F2 != nil {
			f2 = append(f2, *p.F2)
		}
	}
	wd := make([]float64, 0, len(d.Words))
	for _, w := range d.Words {
		wd = append(wd, w.Duration)
	}
	s.PhonemeStats = durationStats(pd)
	s.WordStats = durationStats(wd)

	if len(f1) > 0 && len(f2) > 0 {
		m1, lo1, hi1 := meanRange(f1)
		m2, lo2, hi2 := meanRange(f2)
		s.VowelFormants = &VowelFormants{
			F1Mean: m1, F2Mean: m2,
			F1Range: [2]float64{lo1, hi1},
			F2Range: [2]float64{lo2, hi2},
		}
	}
	return s
}

func durationStats(v []float64) DurationStats {
	if len(v) == 0 {
		return DurationStats{}
	}
	mean, lo, hi := meanRange(v)
	return DurationStats{Mean: mean, SD: SampleSD(v, mean), Min: lo, Max: hi}
}

func meanRange(v []float64) (mean, lo, hi float64) {
	lo, hi = v[0], v[0]
	for _, x := range v {
		mean += x
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return mean / float64(len(v)), lo, hi
}

// SampleSD is the n-1 standard deviation of v around mean; 0 below two values.
func SampleSD(v []float64, mean float64) float64 {
	if len(v) < 2 {
		return 0
	}
	ss := 0.0
	for _, x := range v {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(v)-1))
}
