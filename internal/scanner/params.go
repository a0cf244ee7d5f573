package scanner

import (
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/roman-kulish/radio-scanner/internal/spectrum"
)

const (
	// captureAlign is the transfer block size of the RTL2832U USB interface
	captureAlign = 512

	// MaxCaptureSize caps the capture of a single step in bytes
	MaxCaptureSize = 64 << 20
)

// Params describes one scan. It is passed by value and never changes while
// the scan runs.
type Params struct {
	DeviceIndex int           `json:"deviceIndex"`
	From        int64         `json:"from"`       // Lower edge of the band of interest in Hz
	To          int64         `json:"to"`         // Upper edge of the band of interest in Hz
	Bandwidth   int64         `json:"bandwidth"`  // Tuner bandwidth in Hz
	SampleRate  int64         `json:"sampleRate"` // Samples per second
	Dwell       time.Duration `json:"dwell"`      // Capture length per step
}

func (p Params) Validate() error {
	if p.DeviceIndex < 0 {
		return fmt.Errorf("%w: device index must not be negative: %d", ErrInvalidParams, p.DeviceIndex)
	}
	if p.Bandwidth < 2 {
		return fmt.Errorf("%w: bandwidth must be at least 2 Hz: %d", ErrInvalidParams, p.Bandwidth)
	}
	if p.From <= 0 {
		return fmt.Errorf("%w: start frequency must be positive: %d", ErrInvalidParams, p.From)
	}
	if p.To <= p.From {
		return fmt.Errorf("%w: end frequency must be greater than start: %d <= %d", ErrInvalidParams, p.To, p.From)
	}
	if p.From-p.Bandwidth <= 0 {
		return fmt.Errorf("%w: start frequency must exceed the bandwidth: %d <= %d", ErrInvalidParams, p.From, p.Bandwidth)
	}
	if p.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive: %d", ErrInvalidParams, p.SampleRate)
	}
	if p.Dwell <= 0 {
		return fmt.Errorf("%w: dwell must be positive: %s", ErrInvalidParams, p.Dwell)
	}
	if size := CaptureSize(p.Dwell, p.SampleRate); size > MaxCaptureSize {
		return fmt.Errorf("%w: dwell %s at %d Hz needs more than %d bytes per capture",
			ErrInvalidParams, p.Dwell, p.SampleRate, MaxCaptureSize)
	}

	return nil
}

// CaptureSize returns the capture length in bytes for one step: two bytes
// per complex sample for the whole dwell, rounded up to a multiple of 512.
// Sizes that do not fit an int saturate at math.MaxInt.
func CaptureSize(dwell time.Duration, sampleRate int64) int {
	if dwell <= 0 || sampleRate <= 0 {
		return 0
	}

	const second = uint64(time.Second)

	// dwell·rate in 128 bits, rounded up to whole samples
	hi, lo := bits.Mul64(uint64(dwell), uint64(sampleRate))
	lo, carry := bits.Add64(lo, second-1, 0)
	hi += carry
	if hi >= second {
		return math.MaxInt
	}

	samples, _ := bits.Div64(hi, lo, second)
	if samples > (math.MaxInt-captureAlign)/2 {
		return math.MaxInt
	}

	size := int(samples) * 2
	return (size + captureAlign - 1) / captureAlign * captureAlign
}

// SweepPlan is the sequence of tuning steps of a scan. Scanning starts one
// bandwidth below the band and stops at the first center at or above two
// bandwidths past it, advancing half a bandwidth per step so that adjacent
// captures overlap.
type SweepPlan struct {
	First int64 // First center frequency in Hz
	Guard int64 // Centers stay strictly below the guard
	Step  int64 // Distance between neighbouring centers in Hz
	Steps int
}

func NewSweepPlan(p Params) SweepPlan {
	first := p.From - p.Bandwidth
	guard := p.To + 2*p.Bandwidth
	step := p.Bandwidth / 2

	return SweepPlan{
		First: first,
		Guard: guard,
		Step:  step,
		Steps: int((guard - first + step - 1) / step),
	}
}

// Center returns the center frequency of step i.
func (s SweepPlan) Center(i int) int64 {
	return s.First + int64(i)*s.Step
}

// Last returns the center frequency of the last step.
func (s SweepPlan) Last() int64 {
	return s.Center(s.Steps - 1)
}

// Range describes the sweep for a sample store collecting binsPerStep
// values per step.
func (s SweepPlan) Range(binsPerStep int) spectrum.Range {
	return spectrum.Range{
		FrequencyStart: s.First,
		FrequencyEnd:   s.Last(),
		Steps:          s.Steps,
		BinsPerStep:    binsPerStep,
	}
}
