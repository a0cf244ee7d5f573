package dsp

import "math"

// Rescale peak-hold decimates data to exactly width values and maps them
// linearly into [0, height].
//
// Each output pixel takes the maximum of every source sample whose
// fractional index range overlaps it; averaging would shrink the dynamic
// range and hide narrowband signals. The amplitude range is taken from the
// finite peaks only, non-finite peaks are drawn at 0.
//
// A flat series, or one without finite values, has no range to normalize by
// and yields ErrDegenerateRange.
func Rescale(data []float64, width int, height float64) ([]float64, error) {
	if width <= 0 {
		return nil, ErrInvalidWidth
	}
	if len(data) == 0 {
		return nil, ErrNoData
	}

	peaks := make([]float64, width)
	samplesPerPixel := float64(len(data)) / float64(width)

	for px := range peaks {
		lo := int(math.Floor(float64(px) * samplesPerPixel))
		hi := int(math.Ceil(float64(px+1) * samplesPerPixel))

		lo = min(lo, len(data)-1)
		hi = min(max(hi, lo+1), len(data))

		peaks[px] = peak(data[lo:hi])
	}

	lo, hi, ok := FiniteRange(peaks)
	if !ok || hi == lo {
		return nil, ErrDegenerateRange
	}

	span := hi - lo
	for i, v := range peaks {
		if !isFinite(v) {
			peaks[i] = 0
			continue
		}
		peaks[i] = (v - lo) / span * height
	}

	return peaks, nil
}

// peak returns the maximum value, ignoring NaN.
func peak(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
