package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radio-scanner/internal/dsp"
	"github.com/roman-kulish/radio-scanner/internal/dump"
	"github.com/roman-kulish/radio-scanner/internal/scanner"
	"github.com/roman-kulish/radio-scanner/internal/sdr"
	"github.com/roman-kulish/radio-scanner/internal/sdr/rtl"
	"github.com/roman-kulish/radio-scanner/internal/sdr/sim"
	"github.com/roman-kulish/radio-scanner/internal/spectrum"
	"github.com/roman-kulish/radio-scanner/internal/storage"
)

// Run performs one scan as configured: it starts the orchestrator, collects
// the PSD vectors, journals the session and renders the trace.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	opener, deviceType, err := createOpener(&config.Device, logger)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	params := config.Scan.Params(config.Device.Index)
	sweep := scanner.NewSweepPlan(params)
	captureSize := scanner.CaptureSize(params.Dwell, params.SampleRate)

	options := []scanner.Option{scanner.WithLogger(logger)}

	if config.Output.DumpFile != "" {
		matrix, err := dump.Create(config.Output.DumpFile, sweep.Steps, captureSize)
		if err != nil {
			return err
		}
		defer func() {
			if cErr := matrix.Close(); cErr != nil {
				logger.Warn("raw dump is incomplete", slog.Any("error", cErr))
			}
		}()

		options = append(options, scanner.WithCaptureSink(matrix))
	}

	var store storage.Store
	if config.Output.Journal != "" {
		store = storage.NewSqliteStore(config.Output.Journal)
		defer func() {
			if cErr := store.Close(); cErr != nil {
				logger.Warn("error closing journal", slog.Any("error", cErr))
			}
		}()
	}

	orchestrator, err := scanner.New(opener, config.Scan.Orchestrator, options...)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	defer func() {
		if cErr := orchestrator.Close(); cErr != nil {
			logger.Warn("error closing orchestrator", slog.Any("error", cErr))
		}
	}()

	events, err := orchestrator.Start(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to start scan: %w", err)
	}

	samples := spectrum.NewSamples()
	samples.Reset(sweep.Range(captureSize / 2))

	logger.Info("scan started",
		slog.Group("scan",
			slog.String("device", deviceType),
			slog.String("from", humanize.SIWithDigits(float64(params.From), 3, "Hz")),
			slog.String("to", humanize.SIWithDigits(float64(params.To), 3, "Hz")),
			slog.Int("steps", sweep.Steps),
			slog.String("capture", humanize.IBytes(uint64(captureSize))),
			slog.String("estimate", humanize.Comma(int64(samples.Capacity()))+" values"),
		))

	c := consumer{
		config:     config,
		deviceType: deviceType,
		params:     params,
		store:      store,
		samples:    samples,
		logger:     logger,
	}

	scanErr := c.consume(ctx, events)

	if c.sessionID != 0 {
		status := storage.StatusComplete
		var errMsg string
		if scanErr != nil {
			status, errMsg = storage.StatusFailed, scanErr.Error()
		}

		// The session is closed even when ctx is already cancelled
		if err = store.FinishSession(context.WithoutCancel(ctx), c.sessionID, status, c.dataSteps, errMsg); err != nil {
			logger.Warn("error finishing journal session", slog.Any("error", err))
		}
	}

	if scanErr != nil {
		return fmt.Errorf("scan failed: %w", scanErr)
	}

	if config.Output.Trace.File != "" {
		trace := TraceData{
			Centers:   c.centers,
			StepSpan:  float64(params.SampleRate),
			ScanStart: c.started,
			ScanEnd:   time.Now(),
		}
		return renderTrace(&config.Output.Trace, samples, trace, logger)
	}

	return nil
}

// consumer drains the scan events into the sample store and the journal
type consumer struct {
	config     *Config
	deviceType string
	params     scanner.Params
	store      storage.Store
	samples    *spectrum.Samples
	logger     *slog.Logger

	sessionID int64
	dataSteps int
	centers   []int64 // Center frequencies of the pushed vectors, in order
	started   time.Time
}

func (c *consumer) consume(ctx context.Context, events <-chan scanner.Event) error {
	var scanErr error

	for ev := range events {
		if c.started.IsZero() {
			c.started = ev.Time
			c.createSession(ctx, ev)
		}

		switch ev.Kind {
		case scanner.EventInfo:
			c.logger.Info(ev.Message, slog.String("scanID", ev.ScanID.String()))

		case scanner.EventData:
			c.samples.Push(ev.PSD)
			c.centers = append(c.centers, ev.CenterFrequency)
			c.dataSteps++

			c.logger.Debug("step",
				slog.Int("step", ev.Step+1),
				slog.Int("of", ev.Steps),
				slog.String("frequency", humanize.SIWithDigits(float64(ev.CenterFrequency), 3, "Hz")))

		case scanner.EventError:
			scanErr = ev.Err

		case scanner.EventComplete:
			c.logger.Info("scan complete",
				slog.Int("steps", c.dataSteps),
				slog.Int("values", c.samples.Len()),
				slog.Duration("elapsed", ev.Time.Sub(c.started)))
		}
	}

	return scanErr
}

func (c *consumer) createSession(ctx context.Context, ev scanner.Event) {
	if c.store == nil {
		return
	}

	sess := storage.Session{
		ScanID:         ev.ScanID,
		DeviceType:     c.deviceType,
		DeviceIndex:    c.params.DeviceIndex,
		FrequencyStart: c.params.From,
		FrequencyEnd:   c.params.To,
		Bandwidth:      c.params.Bandwidth,
		SampleRate:     c.params.SampleRate,
		Dwell:          c.params.Dwell,
		Steps:          ev.Steps,
		StartTime:      ev.Time,
	}

	id, err := c.store.CreateSession(ctx, &sess, c.config.Scan.Orchestrator)
	if err != nil {
		c.logger.Warn("error creating journal session", slog.Any("error", err))
		return
	}

	c.sessionID = id
}

func createOpener(config *DeviceConfig, logger *slog.Logger) (sdr.Opener, string, error) {
	switch config.Type {
	case DeviceRTLSDR:
		return rtl.NewOpener(&config.RTL, rtl.WithLogger(logger)), rtl.Device, nil

	case DeviceSimulator:
		dev, err := sim.New(config.Simulator)
		if err != nil {
			return nil, "", err
		}
		return dev.Opener(), sim.Device, nil

	default:
		return nil, "", fmt.Errorf("unknown device type '%s'", config.Type)
	}
}

func renderTrace(config *TraceConfig, samples *spectrum.Samples, trace TraceData, logger *slog.Logger) (err error) {
	lo, hi, ok := dsp.FiniteRange(samples.Values())
	if !ok || lo == hi {
		logger.Warn("no signal to render, trace skipped", slog.Int("values", samples.Len()))
		return nil
	}
	trace.PowerMin, trace.PowerMax = lo, hi

	renderer, err := NewTraceRenderer(*config)
	if err != nil {
		return fmt.Errorf("creating trace renderer: %w", err)
	}

	img, err := renderer.Render(samples, trace)
	if errors.Is(err, dsp.ErrDegenerateRange) {
		logger.Warn("flat trace, nothing to render")
		return nil
	}
	if err != nil {
		return fmt.Errorf("rendering trace: %w", err)
	}

	out, err := os.Create(config.File)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	logger.Info("rendering trace",
		slog.Group("image",
			slog.String("destination", config.File),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
			slog.String("power", fmt.Sprintf("%.1f..%.1f dB", lo, hi)),
		))

	return renderer.Encode(out, img)
}
