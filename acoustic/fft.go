package acoustic

import (
	"math"
	"math/cmplx"
)

// fft computes the radix-2 Cooley-Tukey FFT. len(x) must be a power of 2.
func fft(x []complex128) []complex128 {
	n := len(x)
	if n <= 1 {
		out := make([]complex128, n)
		copy(out, x)
		return out
	}

	bits := 0
	for v := n; v > 1; v >>= 1 {
		bits++
	}
	result := make([]complex128, n)
	for i := 0; i < n; i++ {
		result[bitReverse(i, bits)] = x[i]
	}

	for size := 2; size <= n; size *= 2 {
		halfSize := size / 2
		w := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			wn := complex(1, 0)
			for k := 0; k < halfSize; k++ {
				u := result[start+k]
				t := wn * result[start+k+halfSize]
				result[start+k] = u + t
				result[start+k+halfSize] = u - t
				wn *= w
			}
		}
	}
	return result
}

// ifft is the inverse of fft, scaled by 1/n.
func ifft(x []complex128) []complex128 {
	n := len(x)
	conj := make([]complex128, n)
	for i, v := range x {
		conj[i] = cmplx.Conj(v)
	}
	out := fft(conj)
	scale := 1 / float64(n)
	for i, v := range out {
		out[i] = complex(real(v)*scale, -imag(v)*scale)
	}
	return out
}

func bitReverse(x, bits int) int {
	var result int
	for i := 0; i < bits; i++ {
		result = (result << 1) | (x & 1)
		x >>= 1
	}
	return result
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// autocorrelate returns the linear (non-circular) autocorrelation of x for
// lags 0..len(x)-1, computed through a zero-padded power spectrum.
func autocorrelate(x []float64) []float64 {
	size := nextPow2(2 * len(x))
	buf := make([]complex128, size)
	for i, v := range x {
		buf[i] = complex(v, 0)
	}
	spec := fft(buf)
	for i, v := range spec {
		re, im := real(v), imag(v)
		spec[i] = complex(re*re+im*im, 0)
	}
	r := ifft(spec)
	out := make([]float64, len(x))
	for i := range out {
		out[i] = real(r[i])
	}
	return out
}
