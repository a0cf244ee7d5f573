package dsp

import "fmt"

// rtl data is unsigned 8-bit, centered at 127
const iqCenter = 127.0

// iqTable maps a raw 8-bit sample to [-1.0; +1.0]. Byte 255 would map to
// 128/127, it saturates at 1.
var iqTable = func() (t [256]float64) {
	for b := range t {
		t[b] = min((float64(b)-iqCenter)/iqCenter, 1)
	}
	return t
}()

// Normalize converts interleaved 8-bit I/Q bytes into centered floats,
// writing into dst. dst must have the same length as capture, and the length
// must be even.
func Normalize(dst []float64, capture []byte) error {
	if err := checkIQLength(len(dst), len(capture)); err != nil {
		return err
	}

	for i, b := range capture {
		dst[i] = iqTable[b]
	}
	return nil
}

// CorrectDC removes the mean real and the mean imaginary component from an
// interleaved (re, im) sequence in place.
func CorrectDC(data []float64) error {
	if len(data)%2 != 0 {
		return newValidationError(fmt.Sprintf("dsp: odd interleaved length: %d", len(data)))
	}
	if len(data) == 0 {
		return nil
	}

	var reSum, imSum float64
	for i := 0; i < len(data); i += 2 {
		reSum += data[i]
		imSum += data[i+1]
	}

	n := float64(len(data) / 2)
	reMean, imMean := reSum/n, imSum/n

	for i := 0; i < len(data); i += 2 {
		data[i] -= reMean
		data[i+1] -= imMean
	}
	return nil
}

// Ingest normalizes a capture into dst and optionally applies DC correction.
// dst is typically the input buffer of a Plan.
func Ingest(dst []float64, capture []byte, dcCorrect bool) error {
	if err := Normalize(dst, capture); err != nil {
		return err
	}
	if dcCorrect {
		return CorrectDC(dst)
	}
	return nil
}

func checkIQLength(dstLen, captureLen int) error {
	if captureLen%2 != 0 {
		return newValidationError(fmt.Sprintf("dsp: capture length must be even: %d", captureLen))
	}
	if dstLen != captureLen {
		return newValidationError(fmt.Sprintf("dsp: capture length %d does not match buffer length %d", captureLen, dstLen))
	}
	return nil
}
