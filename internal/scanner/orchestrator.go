package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/radio-scanner/internal/dsp"
	"github.com/roman-kulish/radio-scanner/internal/sdr"
	"github.com/roman-kulish/radio-scanner/internal/sdr/driver"
)

// terminalGrace is how long a canceled scan waits for the consumer to take
// the terminal event
const terminalGrace = 500 * time.Millisecond

const (
	StateIdle State = iota
	StateScanning
	StateComplete
	StateFailed
)

var (
	// ErrInvalidParams is returned by Start for parameters that cannot produce a scan
	ErrInvalidParams = errors.New("invalid scan parameters")

	// ErrScanInProgress is returned by Start while another scan is running
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrClosed is returned by Start after Close
	ErrClosed = errors.New("orchestrator is closed")
)

type State int32

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CaptureSink observes the raw capture of every step. It must not retain
// the capture slice.
type CaptureSink interface {
	WriteCapture(step int, centerFrequency int64, capture []byte) error
}

type Option func(o *Orchestrator)

// WithLogger sets the logger for the orchestrator
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithCaptureSink hands every raw capture to the sink
func WithCaptureSink(sink CaptureSink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// Orchestrator runs sweeps: it tunes the device step by step, transforms
// every capture into a PSD vector and publishes the results as events. One
// scan runs at a time; a finished orchestrator can start the next one.
type Orchestrator struct {
	open   sdr.Opener
	config Config

	state atomic.Int32
	wg    sync.WaitGroup

	mu     sync.Mutex
	plan   *dsp.Plan
	cancel context.CancelFunc
	closed bool

	sink   CaptureSink
	logger *slog.Logger
}

func New(open sdr.Opener, cfg Config, options ...Option) (*Orchestrator, error) {
	if open == nil {
		return nil, errors.New("scanner: device opener is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := Orchestrator{
		open:   open,
		config: cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&o)
	}

	return &o, nil
}

// State returns the state of the current or the last scan.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Start validates the parameters and runs the scan in the background. The
// returned channel delivers the scan events and is closed after the terminal
// event. Cancelling ctx stops the scan between steps; a consumer that stops
// reading after cancelling may miss the terminal event.
func (o *Orchestrator) Start(ctx context.Context, p Params) (<-chan Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}

	for {
		current := o.state.Load()
		if State(current) == StateScanning {
			return nil, ErrScanInProgress
		}
		if o.state.CompareAndSwap(current, int32(StateScanning)) {
			break
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	scanID := uuid.New()
	events := make(chan Event, o.config.EventBuffer)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		o.run(ctx, scanID, p, events)
	}()

	return events, nil
}

// Close stops a running scan, waits for it to publish its terminal event
// and releases the transform plan.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.plan == nil {
		return nil
	}

	err := o.plan.Close()
	o.plan = nil
	return err
}

func (o *Orchestrator) run(ctx context.Context, scanID uuid.UUID, p Params, events chan<- Event) {
	defer close(events)

	logger := o.logger.With(slog.String("scanID", scanID.String()))
	sweep := NewSweepPlan(p)

	steps, err := o.scan(ctx, scanID, p, sweep, events, logger)
	if err != nil {
		logger.Error("scan failed", slog.Int("steps", steps), slog.Any("error", err))

		o.state.Store(int32(StateFailed))
		o.deliver(ctx, events, Event{
			Kind:    EventError,
			ScanID:  scanID,
			Time:    time.Now(),
			Steps:   sweep.Steps,
			Message: err.Error(),
			Err:     err,
		}, logger)
		return
	}

	logger.Info("scan complete", slog.Int("steps", steps))

	o.state.Store(int32(StateComplete))
	o.deliver(ctx, events, Event{
		Kind:   EventComplete,
		ScanID: scanID,
		Time:   time.Now(),
		Steps:  sweep.Steps,
	}, logger)
}

// deliver sends the terminal event. Once the scan is canceled the consumer
// gets terminalGrace to take it, after that the event is dropped.
func (o *Orchestrator) deliver(ctx context.Context, events chan<- Event, ev Event, logger *slog.Logger) {
	select {
	case events <- ev:
		return
	case <-ctx.Done():
	}

	timer := time.NewTimer(terminalGrace)
	defer timer.Stop()

	select {
	case events <- ev:
	case <-timer.C:
		logger.Warn("terminal event dropped, nobody is reading", slog.String("kind", ev.Kind.String()))
	}
}

// scan runs the sweep and returns the number of published Data events.
func (o *Orchestrator) scan(ctx context.Context, scanID uuid.UUID, p Params, sweep SweepPlan, events chan<- Event, logger *slog.Logger) (int, error) {
	dev, err := o.open(p.DeviceIndex)
	if err != nil {
		return 0, deviceError(driver.OpOpen, 0, err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Warn("error closing device", slog.Any("error", err))
		}
	}()

	if err = dev.Configure(p.SampleRate, p.Bandwidth); err != nil {
		return 0, deviceError(driver.OpConfigure, 0, err)
	}
	if err = dev.ResetBuffer(); err != nil {
		return 0, deviceError(driver.OpReset, 0, err)
	}

	size := CaptureSize(p.Dwell, p.SampleRate)
	plan, err := o.acquirePlan(size/2, logger)
	if err != nil {
		return 0, err
	}

	st := stepper{
		dev:       dev,
		plan:      plan,
		capture:   make([]byte, size),
		dcCorrect: o.config.DCCorrection,
		sink:      o.sink,
		logger:    logger,
	}
	if o.config.SettleBytes > 0 {
		st.settle = make([]byte, o.config.SettleBytes)
	}

	emit := func(ev Event) bool {
		ev.ScanID = scanID
		ev.Time = time.Now()
		ev.Steps = sweep.Steps

		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	summary := fmt.Sprintf("scanning %s - %s in %d steps of %s, %s per capture",
		formatFrequency(sweep.First), formatFrequency(sweep.Last()), sweep.Steps,
		formatFrequency(sweep.Step), humanize.IBytes(uint64(size)))

	logger.Info(summary)
	if !emit(Event{Kind: EventInfo, Message: summary}) {
		return 0, canceled(ctx, 0)
	}

	var published int
	for i := range sweep.Steps {
		if ctx.Err() != nil {
			return published, canceled(ctx, i)
		}

		center := sweep.Center(i)

		var psd []float64
		for attempt := 0; ; attempt++ {
			psd, err = st.run(ctx, i, center)
			if err == nil || attempt >= o.config.StepRetries || ctx.Err() != nil {
				break
			}

			logger.Warn("step failed, retrying",
				slog.Int("step", i),
				slog.String("frequency", formatFrequency(center)),
				slog.Int("attempt", attempt+1),
				slog.Any("error", err))
		}

		if err != nil {
			if ctx.Err() != nil {
				return published, canceled(ctx, i)
			}

			var devErr *driver.DeviceError
			if o.config.FailurePolicy != FailurePolicySkip || !errors.As(err, &devErr) {
				return published, err
			}

			msg := fmt.Sprintf("skipping step %d at %s: %s", i, formatFrequency(center), err)
			logger.Warn(msg)
			if !emit(Event{Kind: EventInfo, Message: msg}) {
				return published, canceled(ctx, i)
			}
			continue
		}

		if !emit(Event{Kind: EventData, Step: i, CenterFrequency: center, PSD: psd}) {
			return published, canceled(ctx, i)
		}
		published++

		if n := o.config.ProgressSteps; n > 0 && (i+1)%n == 0 && i+1 < sweep.Steps {
			msg := fmt.Sprintf("scanned %d of %d steps, at %s", i+1, sweep.Steps, formatFrequency(center))
			logger.Debug(msg)
			if !emit(Event{Kind: EventInfo, Message: msg}) {
				return published, canceled(ctx, i+1)
			}
		}
	}

	if !emit(Event{Kind: EventInfo, Message: "scanning complete"}) {
		return published, canceled(ctx, sweep.Steps)
	}

	return published, nil
}

// acquirePlan returns the cached transform plan, rebuilding it when the
// transform size changes.
func (o *Orchestrator) acquirePlan(n int, logger *slog.Logger) (*dsp.Plan, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.plan != nil && o.plan.Len() == n {
		return o.plan, nil
	}

	if o.plan != nil {
		if err := o.plan.Close(); err != nil {
			logger.Warn("error releasing transform plan", slog.Any("error", err))
		}
		o.plan = nil
	}

	plan, err := dsp.NewPlan(n)
	if err != nil {
		return nil, fmt.Errorf("error creating transform plan: %w", err)
	}

	logger.Debug("transform plan created", slog.Int("size", n))

	o.plan = plan
	return plan, nil
}

// stepper captures and transforms a single step, reusing its buffers.
type stepper struct {
	dev       sdr.Driver
	plan      *dsp.Plan
	capture   []byte
	settle    []byte
	dcCorrect bool

	sink   CaptureSink
	logger *slog.Logger
}

func (s *stepper) run(ctx context.Context, step int, center int64) ([]float64, error) {
	if err := s.dev.Tune(center); err != nil {
		return nil, deviceError(driver.OpTune, center, err)
	}

	if len(s.settle) > 0 {
		if err := s.dev.ReadCapture(ctx, s.settle); err != nil {
			return nil, deviceError(driver.OpRead, center, err)
		}
	}

	if err := s.dev.ReadCapture(ctx, s.capture); err != nil {
		return nil, deviceError(driver.OpRead, center, err)
	}

	if s.sink != nil {
		if err := s.sink.WriteCapture(step, center, s.capture); err != nil {
			s.logger.Warn("error writing capture", slog.Int("step", step), slog.Any("error", err))
		}
	}

	if err := dsp.Ingest(s.plan.Input(), s.capture, s.dcCorrect); err != nil {
		return nil, fmt.Errorf("error ingesting capture at %d Hz: %w", center, err)
	}
	if err := s.plan.Execute(); err != nil {
		return nil, fmt.Errorf("error transforming capture at %d Hz: %w", center, err)
	}

	return dsp.PSD(nil, s.plan.Bins()), nil
}

// deviceError makes sure a driver failure surfaces as *driver.DeviceError.
func deviceError(op string, frequency int64, err error) error {
	var devErr *driver.DeviceError
	if errors.As(err, &devErr) {
		return err
	}
	return driver.NewDeviceError(op, frequency, err)
}

func canceled(ctx context.Context, step int) error {
	return fmt.Errorf("scan canceled at step %d: %w", step, ctx.Err())
}

func formatFrequency(hz int64) string {
	return humanize.SIWithDigits(float64(hz), 3, "Hz")
}
