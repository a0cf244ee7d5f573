package rtl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/roman-kulish/radio-scanner/internal/sdr"
	"github.com/roman-kulish/radio-scanner/internal/sdr/driver"
)

const (
	Runtime = "rtl_sdr"
	Device  = "RTL-SDR"

	// stderrGrace bounds the wait for the last diagnostics of a process that
	// closed its output
	stderrGrace = time.Second
)

var (
	errNotConfigured = errors.New("device is not configured")
	errNotTuned      = errors.New("device is not tuned")
)

// WithLogger sets the logger for the receiver
func WithLogger(logger *slog.Logger) func(r *Receiver) {
	return func(r *Receiver) {
		r.logger = logger.With(
			slog.String("device", Device),
			slog.Int("deviceIndex", r.index),
		)
	}
}

// Receiver drives an RTL-SDR dongle through the `rtl_sdr` tool. One process
// streams samples for each tuned frequency: consecutive captures at the same
// frequency read the same stream, so a warm-up capture really precedes the
// next one. Tuning, reconfiguring or resetting stops the process.
type Receiver struct {
	binPath string
	index   int
	config  Config

	mu         sync.Mutex
	sampleRate int64
	bandwidth  int64
	frequency  int64
	configured bool
	closed     bool
	stream     *stream

	logger *slog.Logger
}

// stream is a running `rtl_sdr` process
type stream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	done   chan struct{} // closed once stderr is drained

	mu       sync.Mutex
	lastLine string
}

func (s *stream) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLine
}

// Open locates the `rtl_sdr` runtime and returns a receiver for the device
// with the given index.
func Open(deviceIndex int, config *Config, options ...func(r *Receiver)) (*Receiver, error) {
	if err := config.Validate(); err != nil {
		return nil, driver.NewDeviceError(driver.OpOpen, 0, driver.NewConfigError(err.Error()))
	}

	binPath, err := driver.FindRuntime(Runtime)
	if err != nil {
		return nil, driver.NewDeviceError(driver.OpOpen, 0, fmt.Errorf("error finding runtime: %w", err))
	}

	r := Receiver{
		binPath: binPath,
		index:   deviceIndex,
		config:  *config,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&r)
	}

	return &r, nil
}

// NewOpener returns an sdr.Opener creating receivers with the given config.
func NewOpener(config *Config, options ...func(r *Receiver)) sdr.Opener {
	return func(index int) (sdr.Driver, error) {
		return Open(index, config, options...)
	}
}

// Configure validates and stores the sample rate. `rtl_sdr` does not expose
// the tuner bandwidth; the tuner picks one matching the sample rate.
func (r *Receiver) Configure(sampleRate, bandwidth int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return driver.NewDeviceError(driver.OpConfigure, 0, driver.ErrDeviceClosed)
	}
	if err := ValidateSampleRate(sampleRate); err != nil {
		return driver.NewDeviceError(driver.OpConfigure, 0, driver.NewConfigError(err.Error()))
	}
	if bandwidth <= 0 || bandwidth > sampleRate {
		return driver.NewDeviceError(driver.OpConfigure, 0,
			driver.NewConfigError(fmt.Sprintf("rtl: bandwidth must be within (0, %d] Hz: %d given", sampleRate, bandwidth)))
	}

	r.stopStream(false)

	r.sampleRate = sampleRate
	r.bandwidth = bandwidth
	r.configured = true

	return nil
}

// ResetBuffer stops the running process, the next capture starts a fresh one
// with an empty buffer.
func (r *Receiver) ResetBuffer() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return driver.NewDeviceError(driver.OpReset, 0, driver.ErrDeviceClosed)
	}

	r.stopStream(false)
	return nil
}

// Tune stops the running process; the next capture starts one at the new
// center frequency.
func (r *Receiver) Tune(frequency int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return driver.NewDeviceError(driver.OpTune, frequency, driver.ErrDeviceClosed)
	}
	if frequency <= 0 {
		return driver.NewDeviceError(driver.OpTune, frequency, fmt.Errorf("frequency must be positive: %d", frequency))
	}

	r.stopStream(false)

	r.frequency = frequency
	return nil
}

// ReadCapture fills buf with the next len(buf)/2 samples of the stream at the
// current center frequency, starting the stream if needed.
func (r *Receiver) ReadCapture(ctx context.Context, buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return driver.NewDeviceError(driver.OpRead, r.frequency, driver.ErrDeviceClosed)
	}
	if !r.configured {
		return driver.NewDeviceError(driver.OpRead, r.frequency, errNotConfigured)
	}
	if r.frequency == 0 {
		return driver.NewDeviceError(driver.OpRead, 0, errNotTuned)
	}
	if len(buf) == 0 || len(buf)%2 != 0 {
		return driver.NewDeviceError(driver.OpRead, r.frequency, fmt.Errorf("capture length must be even and positive: %d", len(buf)))
	}

	if err := r.capture(ctx, buf); err != nil {
		return driver.NewDeviceError(driver.OpRead, r.frequency, err)
	}
	return nil
}

func (r *Receiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopStream(false)
	r.closed = true
	return nil
}

func (r *Receiver) capture(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if r.stream == nil {
		s, err := r.startStream()
		if err != nil {
			return err
		}
		r.stream = s
	}

	stop := context.AfterFunc(ctx, r.stream.cancel)
	_, readErr := io.ReadFull(r.stream.stdout, buf)

	if !stop() {
		r.stopStream(false)
		return ctx.Err()
	}

	if readErr != nil {
		// stdout is closed, the process is gone
		if line := r.stopStream(true); line != "" {
			return fmt.Errorf("short capture: %w: %s", readErr, line)
		}
		return fmt.Errorf("short capture: %w", readErr)
	}

	return nil
}

func (r *Receiver) startStream() (*stream, error) {
	ctx, cancel := context.WithCancel(context.Background())

	args := r.config.Args(r.index, r.frequency, r.sampleRate, 0)
	cmd := exec.CommandContext(ctx, r.binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	s := stream{
		cmd:    cmd,
		stdout: stdout,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.handleStderr(&s, stderr)

	r.logger.Debug("capture stream started", slog.Int64("frequency", r.frequency))

	return &s, nil
}

// stopStream kills the running process and returns its last diagnostic line.
// When the process already exited, its diagnostics are read to the end
// first.
func (r *Receiver) stopStream(exited bool) string {
	s := r.stream
	if s == nil {
		return ""
	}
	r.stream = nil

	if exited {
		select {
		case <-s.done:
		case <-time.After(stderrGrace):
		}
	}

	s.cancel()
	if err := s.cmd.Wait(); err != nil {
		r.logger.Debug("capture stream stopped", slog.Any("error", err))
	}
	<-s.done

	return s.last()
}

// handleStderr logs the tool's diagnostics and keeps the last line.
func (r *Receiver) handleStderr(s *stream, stderr io.Reader) {
	defer close(s.done)

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.mu.Lock()
		s.lastLine = line
		s.mu.Unlock()

		r.logger.Debug(fmt.Sprintf("%s >> %s", Device, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		r.logger.Warn("error reading stderr", slog.Any("error", err))
	}
}
