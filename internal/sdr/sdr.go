package sdr

import "context"

// Driver is a tunable receiver delivering raw captures of interleaved
// unsigned 8-bit I/Q samples. All methods may fail; implementations report
// failures as *driver.DeviceError.
type Driver interface {
	// Configure sets the sample rate and the tuner bandwidth, both in Hz.
	Configure(sampleRate, bandwidth int64) error

	// ResetBuffer drops any samples buffered by the device.
	ResetBuffer() error

	// Tune sets the center frequency in Hz.
	Tune(frequency int64) error

	// ReadCapture blocks until buf is completely filled with I/Q bytes
	// captured at the current center frequency.
	ReadCapture(ctx context.Context, buf []byte) error

	// Close releases the device.
	Close() error
}

// Opener opens the device with the given index.
type Opener func(index int) (Driver, error)
