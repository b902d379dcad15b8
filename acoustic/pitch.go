package acoustic

import "math"

func (a *Analyzer) pitch(s *Signal, times []float64) *Stats {
	frame := make([]float64, len(s.pitchWin))
	var f0 []float64
	for _, t := range times {
		if hz, ok := a.pitchAt(s, frame, t); ok {
			f0 = append(f0, hz)
		}
	}
	return summarize(f0)
}

// pitchAt estimates F0 of the frame centred at t from the normalised
// autocorrelation, corrected for the window's own autocorrelation.
func (a *Analyzer) pitchAt(s *Signal, frame []float64, t float64) (float64, bool) {
	if s.peak == 0 {
		return 0, false
	}
	if frameAt(frame, s.wave.Samples, int(math.Round(t*s.rate))) == 0 {
		return 0, false
	}

	local, mean := 0.0, 0.0
	for _, v := range frame {
		mean += v
		local = math.Max(local, math.Abs(v))
	}
	if local < a.cfg.SilenceThreshold*s.peak {
		return 0, false
	}
	mean /= float64(len(frame))
	for i := range frame {
		frame[i] = (frame[i] - mean) * s.pitchWin[i]
	}

	r := autocorrelate(frame)
	if r[0] <= 0 {
		return 0, false
	}
	norm := func(lag int) float64 {
		return (r[lag] / r[0]) / (s.pitchWinAC[lag] / s.pitchWinAC[0])
	}

	best, bestScore := 0, math.Inf(-1)
	for lag := s.minLag; lag <= s.maxLag; lag++ {
		v := norm(lag)
		if v < norm(lag-1) || v < norm(lag+1) {
			continue
		}
		// Favour the higher candidate among near-equal peaks to avoid octave drops.
		score := v + a.cfg.OctaveCost*math.Log2(s.rate/(float64(lag)*a.cfg.PitchFloor))
		if score > bestScore {
			best, bestScore = lag, score
		}
	}
	if best == 0 {
		return 0, false
	}

	y0, y1, y2 := norm(best-1), norm(best), norm(best+1)
	lag, strength := float64(best), y1
	if d := y0 - 2*y1 + y2; d < 0 {
		delta := 0.5 * (y0 - y2) / d
		lag += delta
		strength = y1 - 0.25*(y0-y2)*delta
	}
	if strength < a.cfg.VoicingThreshold {
		return 0, false
	}
	hz := s.rate / lag
	if hz < a.cfg.PitchFloor || hz > a.cfg.PitchCeiling {
		return 0, false
	}
	return hz, true
}
