package dsp

import "errors"

var (
	// ErrInvalidLength is returned when a buffer length violates the pipeline contract
	ErrInvalidLength = errors.New("invalid buffer length")

	// ErrPlanClosed is returned when a released plan is executed
	ErrPlanClosed = errors.New("transform plan is closed")

	// ErrNoData is returned when there is nothing to rescale
	ErrNoData = errors.New("no data")

	// ErrInvalidWidth is returned when the target width is not positive
	ErrInvalidWidth = errors.New("invalid target width")

	// ErrDegenerateRange is returned when the finite values of a series span
	// no range (flat series or no finite values at all)
	ErrDegenerateRange = errors.New("degenerate amplitude range")
)

// ValidationError describes a malformed buffer handed to a DSP stage.
type ValidationError struct {
	msg string
}

func newValidationError(msg string) *ValidationError {
	return &ValidationError{msg}
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Is reports ErrInvalidLength, so callers can match with errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidLength
}
