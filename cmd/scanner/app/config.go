package app

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/radio-scanner/internal/scanner"
	"github.com/roman-kulish/radio-scanner/internal/sdr/rtl"
	"github.com/roman-kulish/radio-scanner/internal/sdr/sim"
)

const (
	DeviceRTLSDR    DeviceType = "rtl-sdr"
	DeviceSimulator DeviceType = "simulator"

	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
)

type DeviceType string

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// Config represents the main application configuration
type Config struct {
	Settings Settings     `yaml:"settings"`
	Device   DeviceConfig `yaml:"device"`
	Scan     ScanConfig   `yaml:"scan"`
	Output   OutputConfig `yaml:"output"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel slog.Level `yaml:"logLevel"`
}

// DeviceConfig selects and configures the receiver
type DeviceConfig struct {
	Type      DeviceType `yaml:"type"`
	Index     int        `yaml:"index"`
	RTL       rtl.Config `yaml:"rtl"`
	Simulator sim.Config `yaml:"simulator"`
}

// ScanConfig holds the sweep parameters and the orchestrator tuning
type ScanConfig struct {
	From       Frequency `yaml:"from"`
	To         Frequency `yaml:"to"`
	Bandwidth  Frequency `yaml:"bandwidth"`
	SampleRate Frequency `yaml:"sampleRate"`
	Dwell      Duration  `yaml:"dwell"`

	Orchestrator scanner.Config `yaml:",inline"`
}

// OutputConfig represents the scan outputs, every one optional
type OutputConfig struct {
	Journal  string      `yaml:"journal"`  // Sqlite scan journal path
	DumpFile string      `yaml:"dumpFile"` // Raw capture matrix path
	Trace    TraceConfig `yaml:"trace"`
}

// TraceConfig represents the peak trace image settings
type TraceConfig struct {
	File   string      `yaml:"file"`
	Format ImageFormat `yaml:"format"`
	Width  int         `yaml:"width"`
	Height int         `yaml:"height"`
	Theme  ColorTheme  `yaml:"theme"`
}

// NewConfig returns the configuration with defaults applied
func NewConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Type: DeviceRTLSDR,
		},
		Scan: ScanConfig{
			From:         60_000_000,
			To:           1_700_000_000,
			Bandwidth:    1_000_000,
			SampleRate:   2_000_000,
			Dwell:        Duration(50 * time.Millisecond),
			Orchestrator: scanner.DefaultConfig(),
		},
		Output: OutputConfig{
			Trace: TraceConfig{
				Format: ImagePNG,
				Width:  1200,
				Height: 400,
				Theme:  ClassicTheme,
			},
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults and validates
// the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := NewConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	switch c.Device.Type {
	case DeviceRTLSDR:
		if err := c.Device.RTL.Validate(); err != nil {
			return fmt.Errorf("device: %w", err)
		}
		if err := rtl.ValidateSampleRate(int64(c.Scan.SampleRate)); err != nil {
			return fmt.Errorf("device: %w", err)
		}

	case DeviceSimulator:
		if err := c.Device.Simulator.Validate(); err != nil {
			return fmt.Errorf("device: %w", err)
		}

	default:
		return fmt.Errorf("device: unknown type '%s'", c.Device.Type)
	}

	if err := c.Scan.Params(c.Device.Index).Validate(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if err := c.Scan.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if c.Output.Trace.File != "" {
		if err := c.Output.Trace.Validate(); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}

	return nil
}

// Params returns the scan parameters for the device with the given index.
func (s *ScanConfig) Params(deviceIndex int) scanner.Params {
	return scanner.Params{
		DeviceIndex: deviceIndex,
		From:        int64(s.From),
		To:          int64(s.To),
		Bandwidth:   int64(s.Bandwidth),
		SampleRate:  int64(s.SampleRate),
		Dwell:       time.Duration(s.Dwell),
	}
}

func (t *TraceConfig) Validate() error {
	if _, ok := validImageFormats[t.Format]; !ok {
		return fmt.Errorf("invalid image format: %s", t.Format)
	}
	if _, ok := colorThemes[t.Theme]; !ok {
		return fmt.Errorf("invalid color theme: %s", t.Theme)
	}
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("invalid trace size: %dx%d", t.Width, t.Height)
	}
	return nil
}

// Frequency is a frequency in Hz. In YAML it is either a plain integer or
// an SI value such as "433.92M" or "1.7 GHz".
type Frequency int64

func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseFrequency(value.Value)
	if err != nil {
		return err
	}

	*f = v
	return nil
}

func (f Frequency) MarshalYAML() (any, error) {
	return f.String(), nil
}

func (f Frequency) String() string {
	return humanize.SIWithDigits(float64(f), 6, "Hz")
}

func ParseFrequency(s string) (Frequency, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Frequency(n), nil
	}

	v, unit, err := humanize.ParseSI(s)
	if err != nil {
		return 0, fmt.Errorf("app.Frequency: failed to parse %q: %w", s, err)
	}
	if unit != "" && !strings.EqualFold(unit, "Hz") {
		return 0, fmt.Errorf("app.Frequency: unexpected unit %q in %q", unit, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v > math.MaxInt64 {
		return 0, errors.New("app.Frequency: out of range: " + s)
	}

	return Frequency(math.Round(v)), nil
}

// Duration is a time.Duration written in YAML as "50ms", "1s" and so on.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
