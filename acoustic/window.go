package acoustic

import "math"

// hann returns an n-point Hann window.
func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// gaussian returns the n-point Gaussian window used for LPC analysis,
// shifted and scaled so the edges reach zero.
func gaussian(n int) []float64 {
	w := make([]float64, n)
	mid := 0.5 * float64(n-1)
	edge := math.Exp(-12)
	denom := float64(n+1) * float64(n+1)
	for i := range w {
		d := float64(i) - mid
		w[i] = (math.Exp(-48*d*d/denom) - edge) / (1 - edge)
	}
	return w
}

// hamming returns an n-point Hamming window.
func hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// frameAt copies n samples centred on sample c into dst, zero-padding
// where the frame runs past either end of x. It reports how many samples
// came from x.
func frameAt(dst, x []float64, c int) int {
	n := len(dst)
	from := c - n/2
	valid := 0
	for i := range dst {
		j := from + i
		if j < 0 || j >= len(x) {
			dst[i] = 0
			continue
		}
		dst[i] = x[j]
		valid++
	}
	return valid
}

// preEmphasize applies a first-order high-pass y[n] = x[n] - a*x[n-1]
// with a chosen so the filter is 3 dB up at from Hz.
func preEmphasize(x []float64, rate, from float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	a := math.Exp(-2 * math.Pi * from / rate)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - a*x[i-1]
	}
	return out
}

// decimate low-pass filters x below the new Nyquist frequency and keeps
// every factor-th sample.
func decimate(x []float64, factor int) []float64 {
	if factor <= 1 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	taps := 8*factor + 1
	half := taps / 2
	cutoff := 0.5 / float64(factor)
	win := hamming(taps)
	h := make([]float64, taps)
	sum := 0.0
	for i := range h {
		k := float64(i - half)
		if k == 0 {
			h[i] = 2 * cutoff
		} else {
			h[i] = math.Sin(2*math.Pi*cutoff*k) / (math.Pi * k)
		}
		h[i] *= win[i]
		sum += h[i]
	}
	for i := range h {
		h[i] /= sum
	}

	out := make([]float64, (len(x)+factor-1)/factor)
	for o := range out {
		c := o * factor
		acc := 0.0
		for i, tap := range h {
			j := c + i - half
			if j < 0 || j >= len(x) {
				continue
			}
			acc += tap * x[j]
		}
		out[o] = acc
	}
	return out
}
