package acoustic

import "math"

// referencePressure is the 0 dB SPL reference in Pa, samples taken as Pa.
const referencePressure = 2e-5

func (a *Analyzer) intensity(s *Signal, times []float64) *Stats {
	var db []float64
	for _, t := range times {
		if v, ok := a.intensityAt(s, t); ok {
			db = append(db, v)
		}
	}
	return summarize(db)
}

// intensityAt returns the Hann-weighted mean power of the frame centred at
// t, after removing the weighted mean. Frames without energy are skipped.
func (a *Analyzer) intensityAt(s *Signal, t float64) (float64, bool) {
	x := s.wave.Samples
	from := int(math.Round(t*s.rate)) - len(s.intensityWin)/2

	var sw, swx float64
	for i, w := range s.intensityWin {
		j := from + i
		if j < 0 || j >= len(x) {
			continue
		}
		sw += w
		swx += w * x[j]
	}
	if sw == 0 {
		return 0, false
	}
	mean := swx / sw

	ms := 0.0
	for i, w := range s.intensityWin {
		j := from + i
		if j < 0 || j >= len(x) {
			continue
		}
		d := x[j] - mean
		ms += w * d * d
	}
	ms /= sw
	if ms <= 0 {
		return 0, false
	}
	return 10 * math.Log10(ms/(referencePressure*referencePressure)), true
}
