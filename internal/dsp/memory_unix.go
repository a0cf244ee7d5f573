//go:build linux || darwin || freebsd

package dsp

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// allocAligned maps anonymous memory, which is always page aligned. The
// mapping lives outside of the Go heap and must be released by freeAligned.
func allocAligned(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("dsp: mapping %d bytes: %w", size, err)
	}
	return mem, nil
}

func freeAligned(mem []byte) error {
	if mem == nil {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("dsp: unmapping %d bytes: %w", len(mem), err)
	}
	return nil
}
