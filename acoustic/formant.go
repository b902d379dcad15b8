package acoustic

import (
	"math"
	"math/cmplx"
	"sort"
)

const (
	minFormant          = 50.0
	maxFormantBandwidth = 700.0
	rootIterations      = 500
	rootTolerance       = 1e-12
)

func (a *Analyzer) formants(s *Signal, start, end float64) *Formants {
	var tracks [Tracked][]float64
	frame := make([]float64, len(s.lpcWin))
	points := a.cfg.FormantPoints

	for p := 0; p < points; p++ {
		t := (start + end) / 2
		if points > 1 {
			t = start + (end-start)*float64(p)/float64(points-1)
		}
		if frameAt(frame, s.lpc, int(math.Round(t*s.lpcRate))) < len(frame)/4 {
			continue
		}
		for i := range frame {
			frame[i] *= s.lpcWin[i]
		}
		coeffs, ok := burg(frame, s.lpcOrder)
		if !ok {
			continue
		}
		cands := resonances(polyRoots(coeffs), s.lpcRate, a.cfg.MaxFormant)
		for k := 0; k < Tracked && k < a.cfg.NumFormants && k < len(cands); k++ {
			tracks[k] = append(tracks[k], cands[k])
		}
	}

	out := &Formants{}
	found := false
	for k, track := range tracks {
		if st := summarize(track); st != nil {
			out.Mean[k], out.SD[k], out.Found[k] = st.Mean, st.SD, true
			found = true
		}
	}
	if !found {
		return nil
	}
	return out
}

// burg fits an all-pole model of the given order. The result a has
// a[0] = 1 and defines the prediction-error filter sum a[i] z^-i.
func burg(x []float64, order int) ([]float64, bool) {
	n := len(x) - 1
	if n <= order {
		return nil, false
	}
	ak := make([]float64, order+1)
	ak[0] = 1
	f := append([]float64(nil), x...)
	b := append([]float64(nil), x...)

	dk := 0.0
	for _, v := range f {
		dk += 2 * v * v
	}
	dk -= f[0]*f[0] + b[n]*b[n]
	if dk <= 0 {
		return nil, false
	}

	for k := 0; k < order; k++ {
		mu := 0.0
		for i := 0; i <= n-k-1; i++ {
			mu += f[i+k+1] * b[i]
		}
		mu *= -2 / dk

		for i := 0; i <= (k+1)/2; i++ {
			t1 := ak[i] + mu*ak[k+1-i]
			t2 := ak[k+1-i] + mu*ak[i]
			ak[i], ak[k+1-i] = t1, t2
		}
		for i := 0; i <= n-k-1; i++ {
			t1 := f[i+k+1] + mu*b[i]
			t2 := b[i] + mu*f[i+k+1]
			f[i+k+1], b[i] = t1, t2
		}

		dk = (1-mu*mu)*dk - f[k+1]*f[k+1] - b[n-k-1]*b[n-k-1]
		if dk <= 0 {
			return nil, false
		}
	}
	return ak, true
}

// polyRoots finds the roots of the monic polynomial c[0] z^m + ... + c[m]
// with the Durand-Kerner iteration from fixed starting points.
func polyRoots(c []float64) []complex128 {
	m := len(c) - 1
	if m < 1 {
		return nil
	}
	lead := c[0]
	roots := make([]complex128, m)
	seed, z := complex(0.4, 0.9), complex(1, 0)
	for i := range roots {
		roots[i] = z
		z *= seed
	}

	eval := func(x complex128) complex128 {
		acc := complex(1, 0)
		for _, ci := range c[1:] {
			acc = acc*x + complex(ci/lead, 0)
		}
		return acc
	}

	for iter := 0; iter < rootIterations; iter++ {
		worst := 0.0
		for i := range roots {
			den := complex(1, 0)
			for j := range roots {
				if j != i {
					den *= roots[i] - roots[j]
				}
			}
			if den == 0 {
				den = complex(rootTolerance, 0)
			}
			step := eval(roots[i]) / den
			roots[i] -= step
			worst = math.Max(worst, cmplx.Abs(step))
		}
		if worst < rootTolerance {
			break
		}
	}
	return roots
}

// resonances converts upper-half-plane roots into formant frequencies,
// keeping sharp peaks strictly inside (minFormant, ceiling-minFormant).
func resonances(roots []complex128, rate, ceiling float64) []float64 {
	var out []float64
	for _, r := range roots {
		if imag(r) <= 0 {
			continue
		}
		freq := cmplx.Phase(r) * rate / (2 * math.Pi)
		bw := -math.Log(cmplx.Abs(r)) * rate / math.Pi
		if math.IsNaN(freq) || math.IsNaN(bw) || freq <= minFormant || freq >= ceiling-minFormant || bw >= maxFormantBandwidth {
			continue
		}
		out = append(out, freq)
	}
	sort.Float64s(out)
	return out
}
