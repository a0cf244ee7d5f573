//go:build !(linux || darwin || freebsd)

package dsp

import "unsafe"

const alignment = 64 // cache line, enough for AVX-512 loads

func allocAligned(size int) ([]byte, error) {
	buf := make([]byte, size+alignment)
	off := int(uintptr(unsafe.Pointer(&buf[0])) & (alignment - 1))
	if off != 0 {
		off = alignment - off
	}
	return buf[off : off+size : off+size], nil
}

func freeAligned([]byte) error {
	return nil
}
