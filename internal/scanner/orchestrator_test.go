package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/radio-scanner/internal/sdr/driver"
	"github.com/roman-kulish/radio-scanner/internal/sdr/sim"
)

func newOrchestrator(t *testing.T, simConfig sim.Config, modify func(c *Config), options ...Option) (*Orchestrator, *sim.Receiver) {
	t.Helper()

	dev, err := sim.New(simConfig)
	require.NoError(t, err)

	cfg := DefaultConfig()
	if modify != nil {
		modify(&cfg)
	}

	o, err := New(dev.Opener(), cfg, options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })

	return o, dev
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()

	var out []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for scan events, %d received", len(out))
		}
	}
}

func filter(events []Event, kind EventKind) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// requireTerminal checks that the last event, and only the last one, is
// terminal and of the given kind.
func requireTerminal(t *testing.T, events []Event, kind EventKind) Event {
	t.Helper()

	require.NotEmpty(t, events)
	for i, ev := range events[:len(events)-1] {
		require.False(t, ev.Kind.Terminal(), "event %d (%s) is terminal but not last", i, ev.Kind)
	}

	last := events[len(events)-1]
	require.Equal(t, kind, last.Kind, "last event: %+v", last)
	return last
}

func TestOrchestrator_ConstantDevice(t *testing.T) {
	o, dev := newOrchestrator(t, sim.Config{}, func(c *Config) { c.ProgressSteps = 10 })
	assert.Equal(t, StateIdle, o.State())

	events, err := o.Start(context.Background(), testParams())
	require.NoError(t, err)

	all := collect(t, events)
	requireTerminal(t, all, EventComplete)

	data := filter(all, EventData)
	require.Len(t, data, 26)

	sweep := NewSweepPlan(testParams())
	scanID := all[0].ScanID
	for i, ev := range data {
		assert.Equal(t, i, ev.Step)
		assert.Equal(t, sweep.Center(i), ev.CenterFrequency)
		assert.Len(t, ev.PSD, 2048)
		assert.Equal(t, scanID, ev.ScanID)
		assert.Equal(t, 26, ev.Steps)
	}

	infos := filter(all, EventInfo)
	require.NotEmpty(t, infos)
	assert.True(t, strings.HasPrefix(infos[0].Message, "scanning 99 MHz"), infos[0].Message)
	assert.Equal(t, "scanning complete", all[len(all)-2].Message)

	var progress int
	for _, ev := range infos {
		if strings.HasPrefix(ev.Message, "scanned ") {
			progress++
		}
	}
	assert.Equal(t, 2, progress)

	assert.Equal(t, StateComplete, o.State())
	assert.True(t, dev.Closed())

	var centers []int64
	for i := range sweep.Steps {
		centers = append(centers, sweep.Center(i))
	}
	assert.Equal(t, centers, dev.Tuned())

	// One settle read and one capture per step
	assert.Equal(t, 52, dev.Calls(driver.OpRead))
	assert.Equal(t, 1, dev.Calls(driver.OpConfigure))
	assert.Equal(t, 1, dev.Calls(driver.OpReset))
}

func TestOrchestrator_SettleDisabled(t *testing.T) {
	o, dev := newOrchestrator(t, sim.Config{}, func(c *Config) { c.SettleBytes = 0 })

	events, err := o.Start(context.Background(), testParams())
	require.NoError(t, err)

	requireTerminal(t, collect(t, events), EventComplete)
	assert.Equal(t, 26, dev.Calls(driver.OpRead))
}

func TestOrchestrator_Tone(t *testing.T) {
	p := testParams()
	tone := int64(105_250_000)

	o, _ := newOrchestrator(t, sim.Config{Tones: []sim.Tone{{Frequency: tone, Amplitude: 0.5}}}, nil)

	events, err := o.Start(context.Background(), p)
	require.NoError(t, err)

	all := collect(t, events)
	requireTerminal(t, all, EventComplete)

	for _, ev := range filter(all, EventData) {
		if ev.CenterFrequency != 105_000_000 {
			continue
		}

		peak := 0
		for i, v := range ev.PSD {
			if v > ev.PSD[peak] {
				peak = i
			}
		}

		// Ascending order: bin N/2 is the center frequency
		n := len(ev.PSD)
		binWidth := float64(p.SampleRate) / float64(n)
		want := n/2 + int(float64(tone-ev.CenterFrequency)/binWidth)
		assert.InDelta(t, want, peak, 1)
		return
	}
	t.Fatalf("no data event at 105 MHz")
}

func TestOrchestrator_FailureAborts(t *testing.T) {
	failures := []sim.Failure{{Op: driver.OpTune, At: 3, Count: 1}}
	o, dev := newOrchestrator(t, sim.Config{Failures: failures}, nil)

	events, err := o.Start(context.Background(), testParams())
	require.NoError(t, err)

	all := collect(t, events)
	last := requireTerminal(t, all, EventError)

	assert.Len(t, filter(all, EventData), 2)
	assert.ErrorIs(t, last.Err, sim.ErrInjected)
	assert.Equal(t, last.Err.Error(), last.Message)

	var devErr *driver.DeviceError
	require.True(t, errors.As(last.Err, &devErr))
	assert.Equal(t, driver.OpTune, devErr.Op)
	assert.Equal(t, int64(100_000_000), devErr.Frequency)

	assert.Equal(t, StateFailed, o.State())
	assert.True(t, dev.Closed())
}

func TestOrchestrator_FailureSkips(t *testing.T) {
	failures := []sim.Failure{{Op: driver.OpTune, At: 3, Count: 1}}
	o, _ := newOrchestrator(t, sim.Config{Failures: failures}, func(c *Config) {
		c.FailurePolicy = FailurePolicySkip
	})

	events, err := o.Start(context.Background(), testParams())
	require.NoError(t, err)

	all := collect(t, events)
	requireTerminal(t, all, EventComplete)

	data := filter(all, EventData)
	require.Len(t, data, 25)
	for i := 1; i < len(data); i++ {
		assert.Greater(t, data[i].Step, data[i-1].Step)
		assert.Greater(t, data[i].CenterFrequency, data[i-1].CenterFrequency)
		assert.NotEqual(t, 2, data[i].Step)
	}

	var skipped bool
	for _, ev := range filter(all, EventInfo) {
		if strings.HasPrefix(ev.Message, "skipping step 2 at 100 MHz") {
			skipped = true
		}
	}
	assert.True(t, skipped, "skip must be reported")
	assert.Equal(t, StateComplete, o.State())
}

func TestOrchestrator_StepRetries(t *testing.T) {
	failures := []sim.Failure{{Op: driver.OpRead, At: 5, Count: 1}}
	o, dev := newOrchestrator(t, sim.Config{Failures: failures}, func(c *Config) {
		c.StepRetries = 1
	})

	events, err := o.Start(context.Background(), testParams())
	require.NoError(t, err)

	all := collect(t, events)
	requireTerminal(t, all, EventComplete)

	assert.Len(t, filter(all, EventData), 26)
	assert.Equal(t, 27, dev.Calls(driver.OpTune))
}

func TestOrchestrator_SetupFailuresAlwaysAbort(t *testing.T) {
	for _, op := range []string{driver.OpOpen, driver.OpConfigure, driver.OpReset} {
		t.Run(op, func(t *testing.T) {
			failures := []sim.Failure{{Op: op, At: 1}}
			o, _ := newOrchestrator(t, sim.Config{Failures: failures}, func(c *Config) {
				c.FailurePolicy = FailurePolicySkip
			})

			events, err := o.Start(context.Background(), testParams())
			require.NoError(t, err)

			all := collect(t, events)
			last := requireTerminal(t, all, EventError)
			assert.Empty(t, filter(all, EventData))

			var devErr *driver.DeviceError
			require.True(t, errors.As(last.Err, &devErr))
			assert.Equal(t, op, devErr.Op)
		})
	}
}

func TestOrchestrator_InProgressAndCancel(t *testing.T) {
	o, _ := newOrchestrator(t, sim.Config{}, func(c *Config) { c.EventBuffer = 0 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := o.Start(ctx, testParams())
	require.NoError(t, err)

	// Nobody reads yet, the scan is parked on the first event
	_, err = o.Start(context.Background(), testParams())
	assert.ErrorIs(t, err, ErrScanInProgress)
	assert.Equal(t, StateScanning, o.State())

	cancel()

	all := collect(t, events)
	last := requireTerminal(t, all, EventError)
	assert.ErrorIs(t, last.Err, context.Canceled)
	assert.Empty(t, filter(all, EventData))
	assert.Equal(t, StateFailed, o.State())

	// A finished orchestrator accepts the next scan
	events, err = o.Start(context.Background(), testParams())
	require.NoError(t, err)
	requireTerminal(t, collect(t, events), EventComplete)
}

func TestOrchestrator_CloseAfterConsumerLeft(t *testing.T) {
	o, _ := newOrchestrator(t, sim.Config{}, func(c *Config) { c.EventBuffer = 0 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := o.Start(ctx, testParams())
	require.NoError(t, err)

	first := <-events
	require.Equal(t, EventInfo, first.Kind)

	// The consumer cancels and walks away without draining
	cancel()

	closed := make(chan error, 1)
	go func() { closed <- o.Close() }()

	select {
	case err = <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return while the terminal event had no reader")
	}

	assert.Equal(t, StateFailed, o.State())

	// The channel is closed, at most the terminal event is left in it
	remaining := collect(t, events)
	assert.LessOrEqual(t, len(remaining), 1)
	for _, ev := range remaining {
		assert.Equal(t, EventError, ev.Kind)
	}
}

func TestOrchestrator_InvalidParams(t *testing.T) {
	o, dev := newOrchestrator(t, sim.Config{}, nil)

	p := testParams()
	p.To = p.From - 1

	events, err := o.Start(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.Nil(t, events)
	assert.Equal(t, StateIdle, o.State())
	assert.Zero(t, dev.Calls(driver.OpOpen))
}

func TestOrchestrator_PlanReuse(t *testing.T) {
	o, _ := newOrchestrator(t, sim.Config{}, nil)

	scan := func(p Params) {
		events, err := o.Start(context.Background(), p)
		require.NoError(t, err)
		requireTerminal(t, collect(t, events), EventComplete)
	}

	p := testParams()
	scan(p)
	first := o.plan
	require.NotNil(t, first)

	scan(p)
	assert.Same(t, first, o.plan)

	p.Dwell = 2 * time.Millisecond
	scan(p)
	assert.NotSame(t, first, o.plan)
	assert.Equal(t, 4096, o.plan.Len())
}

func TestOrchestrator_Close(t *testing.T) {
	o, _ := newOrchestrator(t, sim.Config{}, nil)

	events, err := o.Start(context.Background(), testParams())
	require.NoError(t, err)
	requireTerminal(t, collect(t, events), EventComplete)

	require.NoError(t, o.Close())
	assert.Nil(t, o.plan)
	assert.NoError(t, o.Close())

	_, err = o.Start(context.Background(), testParams())
	assert.ErrorIs(t, err, ErrClosed)
}

type recordingSink struct {
	mu      sync.Mutex
	centers []int64
	sizes   []int
	err     error
}

func (s *recordingSink) WriteCapture(step int, centerFrequency int64, capture []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.centers = append(s.centers, centerFrequency)
	s.sizes = append(s.sizes, len(capture))
	return s.err
}

func TestOrchestrator_CaptureSink(t *testing.T) {
	sink := recordingSink{err: errors.New("disk full")}
	o, _ := newOrchestrator(t, sim.Config{}, nil, WithCaptureSink(&sink))

	events, err := o.Start(context.Background(), testParams())
	require.NoError(t, err)

	// Sink failures never abort the scan
	requireTerminal(t, collect(t, events), EventComplete)

	sink.mu.Lock()
	defer sink.mu.Unlock()

	require.Len(t, sink.centers, 26)
	assert.Equal(t, int64(99_000_000), sink.centers[0])
	for _, size := range sink.sizes {
		assert.Equal(t, 4096, size)
	}
}

func TestNew(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)

	dev, err := sim.New(sim.Config{})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.FailurePolicy = "ignore"
	_, err = New(dev.Opener(), cfg)
	assert.Error(t, err)
}
