// Package sim provides a deterministic simulated receiver for tests and dry
// runs.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/roman-kulish/radio-scanner/internal/sdr"
	"github.com/roman-kulish/radio-scanner/internal/sdr/driver"
)

const Device = "simulator"

// ErrInjected is the cause of every failure injected by a Failure rule
var ErrInjected = errors.New("injected failure")

// Tone is a carrier present in every capture whose passband contains it.
type Tone struct {
	Frequency int64   `yaml:"frequency" json:"frequency"` // Absolute frequency in Hz
	Amplitude float64 `yaml:"amplitude" json:"amplitude"` // Peak amplitude in [0, 1]
}

// Failure makes calls of one driver operation fail.
type Failure struct {
	Op    string `yaml:"op" json:"op"`       // One of the driver.Op* constants
	At    int    `yaml:"at" json:"at"`       // 1-based number of the first failing call
	Count int    `yaml:"count" json:"count"` // Consecutive failing calls, 0 means every call from At on
}

func (f Failure) matches(call int) bool {
	if call < f.At {
		return false
	}
	return f.Count == 0 || call < f.At+f.Count
}

// Config describes the simulated signal. Without tones and noise every
// capture byte is Constant.
type Config struct {
	Constant byte      `yaml:"constant" json:"constant"`
	Tones    []Tone    `yaml:"tones" json:"tones"`
	Noise    float64   `yaml:"noise" json:"noise"` // Gaussian noise deviation in normalized units
	Seed     uint64    `yaml:"seed" json:"seed"`
	Failures []Failure `yaml:"failures" json:"failures"`
}

func (c *Config) Validate() error {
	for i, tone := range c.Tones {
		if tone.Frequency <= 0 {
			return fmt.Errorf("sim.Config: tone %d: frequency must be positive: %d", i, tone.Frequency)
		}
		if tone.Amplitude < 0 || tone.Amplitude > 1 {
			return fmt.Errorf("sim.Config: tone %d: amplitude must be between 0 and 1: %.2f given", i, tone.Amplitude)
		}
	}
	if c.Noise < 0 {
		return fmt.Errorf("sim.Config: noise must not be negative: %.2f given", c.Noise)
	}
	for i, f := range c.Failures {
		if f.At < 1 {
			return fmt.Errorf("sim.Config: failure %d: call number must be at least 1: %d given", i, f.At)
		}
		if f.Count < 0 {
			return fmt.Errorf("sim.Config: failure %d: count must not be negative: %d given", i, f.Count)
		}
	}
	return nil
}

// Receiver is a simulated sdr.Driver. It records every tuned frequency and
// counts calls per operation.
type Receiver struct {
	config Config

	mu         sync.Mutex
	rng        *rand.Rand
	calls      map[string]int
	tuned      []int64
	sampleRate int64
	bandwidth  int64
	frequency  int64
	closed     bool
}

func New(config Config) (*Receiver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Receiver{
		config: config,
		rng:    rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
		calls:  make(map[string]int),
	}, nil
}

// Opener returns an sdr.Opener handing out this receiver. Opening reopens a
// closed receiver; the call history is kept.
func (r *Receiver) Opener() sdr.Opener {
	return func(index int) (sdr.Driver, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if err := r.call(driver.OpOpen, 0); err != nil {
			return nil, err
		}
		r.closed = false
		return r, nil
	}
}

func (r *Receiver) Configure(sampleRate, bandwidth int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.call(driver.OpConfigure, 0); err != nil {
		return err
	}
	if sampleRate <= 0 || bandwidth <= 0 {
		return driver.NewDeviceError(driver.OpConfigure, 0,
			driver.NewConfigError(fmt.Sprintf("sim: invalid sample rate %d or bandwidth %d", sampleRate, bandwidth)))
	}

	r.sampleRate = sampleRate
	r.bandwidth = bandwidth
	return nil
}

func (r *Receiver) ResetBuffer() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.call(driver.OpReset, 0)
}

func (r *Receiver) Tune(frequency int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.call(driver.OpTune, frequency); err != nil {
		return err
	}

	r.frequency = frequency
	r.tuned = append(r.tuned, frequency)
	return nil
}

func (r *Receiver) ReadCapture(ctx context.Context, buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return driver.NewDeviceError(driver.OpRead, r.frequency, err)
	}
	if err := r.call(driver.OpRead, r.frequency); err != nil {
		return err
	}
	if len(buf)%2 != 0 {
		return driver.NewDeviceError(driver.OpRead, r.frequency, fmt.Errorf("capture length must be even: %d", len(buf)))
	}

	r.fill(buf)
	return nil
}

func (r *Receiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.call(driver.OpClose, 0); err != nil {
		return err
	}
	r.closed = true
	return nil
}

// Tuned returns every frequency passed to a successful Tune, in call order.
func (r *Receiver) Tuned() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.tuned)
}

// Calls returns the number of calls of the operation so far.
func (r *Receiver) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls[op]
}

// Closed reports whether the receiver is currently closed.
func (r *Receiver) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

// call counts the operation and applies closed state and failure rules.
func (r *Receiver) call(op string, frequency int64) error {
	r.calls[op]++

	if r.closed && op != driver.OpOpen && op != driver.OpClose {
		return driver.NewDeviceError(op, frequency, driver.ErrDeviceClosed)
	}

	n := r.calls[op]
	for _, f := range r.config.Failures {
		if f.Op == op && f.matches(n) {
			return driver.NewDeviceError(op, frequency, fmt.Errorf("%w: %s call %d", ErrInjected, op, n))
		}
	}
	return nil
}

func (r *Receiver) fill(buf []byte) {
	if len(r.config.Tones) == 0 && r.config.Noise == 0 {
		for i := range buf {
			buf[i] = r.config.Constant
		}
		return
	}

	// Tones outside the passband are not visible at this center frequency
	type offset struct {
		omega, amplitude float64
	}
	var offsets []offset
	for _, tone := range r.config.Tones {
		delta := tone.Frequency - r.frequency
		if 2*abs(delta) >= r.sampleRate {
			continue
		}
		offsets = append(offsets, offset{
			omega:     2 * math.Pi * float64(delta) / float64(r.sampleRate),
			amplitude: tone.Amplitude,
		})
	}

	for i := 0; i < len(buf); i += 2 {
		var re, im float64
		for _, o := range offsets {
			phase := o.omega * float64(i/2)
			re += o.amplitude * math.Cos(phase)
			im += o.amplitude * math.Sin(phase)
		}
		if r.config.Noise > 0 {
			re += r.rng.NormFloat64() * r.config.Noise
			im += r.rng.NormFloat64() * r.config.Noise
		}

		buf[i] = quantize(re)
		buf[i+1] = quantize(im)
	}
}

// quantize maps [-1, 1] onto the unsigned 8-bit I/Q scale centered at 127.
func quantize(v float64) byte {
	return byte(math.Round(min(max(v*127+127, 0), 255)))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
