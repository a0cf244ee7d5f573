package dsp

import "math"

// Reorder rotates native-order DFT bins into ascending frequency order:
// dst[i] = bins[(N/2 + i) mod N]. dst is reused when it has enough capacity.
func Reorder(dst, bins []complex128) []complex128 {
	n := len(bins)
	dst = resize(dst, n)

	half := n / 2
	copy(dst, bins[half:])
	copy(dst[n-half:], bins[:half])
	return dst
}

// PSD converts native-order DFT bins into log power values in ascending
// frequency order, 10·log10(|bin|² / (2π·N)).
//
// Bins with zero power produce -Inf. That is not an error: everything that
// derives a range from the result must skip non-finite values (see
// FiniteRange).
func PSD(dst []float64, bins []complex128) []float64 {
	n := len(bins)
	dst = resize(dst, n)
	if n == 0 {
		return dst
	}

	k := 1 / (2 * math.Pi * float64(n))

	j := n / 2
	for i := range dst {
		re, im := real(bins[j]), imag(bins[j])
		dst[i] = 10 * math.Log10((re*re+im*im)*k)

		if j++; j == n {
			j = 0
		}
	}
	return dst
}

// FiniteRange returns the minimum and maximum of the finite values. ok is
// false when there are none.
func FiniteRange(values []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
