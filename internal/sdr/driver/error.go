package driver

import (
	"errors"
	"fmt"
)

// Device operations reported by DeviceError
const (
	OpOpen      = "open"
	OpConfigure = "configure"
	OpReset     = "reset"
	OpTune      = "tune"
	OpRead      = "read"
	OpClose     = "close"
)

// ErrDeviceClosed is returned when a closed device is used
var ErrDeviceClosed = errors.New("device is closed")

// ConfigError is a custom error type for configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// RuntimeError is a custom error type for runtime errors
type RuntimeError struct {
	msg string
}

func NewRuntimeError(msg string) *RuntimeError {
	return &RuntimeError{msg}
}

func (e *RuntimeError) Error() string {
	return e.msg
}

// DeviceError reports a failed device operation. It is terminal for the scan
// that hit it.
type DeviceError struct {
	Op        string // One of the Op* constants
	Frequency int64  // Center frequency in Hz, 0 if the operation is not tied to one
	Err       error
}

func NewDeviceError(op string, frequency int64, err error) *DeviceError {
	return &DeviceError{Op: op, Frequency: frequency, Err: err}
}

func (e *DeviceError) Error() string {
	if e.Frequency > 0 {
		return fmt.Sprintf("device %s at %d Hz: %v", e.Op, e.Frequency, e.Err)
	}
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
