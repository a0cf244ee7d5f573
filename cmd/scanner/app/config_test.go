package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/roman-kulish/radio-scanner/internal/scanner"
	"github.com/roman-kulish/radio-scanner/internal/sdr/rtl"
	"github.com/roman-kulish/radio-scanner/internal/sdr/sim"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
device:
  type: simulator
  index: 1
  simulator:
    seed: 7
    noise: 0.1
    tones:
      - frequency: 101000000
        amplitude: 0.5
scan:
  from: 88M
  to: 108 MHz
  bandwidth: 1M
  sampleRate: 2400000
  dwell: 20ms
  failurePolicy: skip
  stepRetries: 2
  settleBytes: 0
output:
  journal: journal.db
  trace:
    file: trace.jpeg
    format: jpeg
    theme: thermal
`)

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := NewConfig()
	want.Settings.LogLevel = slog.LevelDebug
	want.Device = DeviceConfig{
		Type:  DeviceSimulator,
		Index: 1,
		Simulator: sim.Config{
			Seed:  7,
			Noise: 0.1,
			Tones: []sim.Tone{{Frequency: 101_000_000, Amplitude: 0.5}},
		},
	}
	want.Scan.From = 88_000_000
	want.Scan.To = 108_000_000
	want.Scan.SampleRate = 2_400_000
	want.Scan.Dwell = Duration(20 * time.Millisecond)
	want.Scan.Orchestrator.FailurePolicy = scanner.FailurePolicySkip
	want.Scan.Orchestrator.StepRetries = 2
	want.Scan.Orchestrator.SettleBytes = 0
	want.Output.Journal = "journal.db"
	want.Output.Trace.File = "trace.jpeg"
	want.Output.Trace.Format = ImageJPEG
	want.Output.Trace.Theme = ThermalTheme

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	got, err := LoadConfig(writeConfig(t, "device:\n  rtl:\n    gain: 20\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := NewConfig()
	want.Device.RTL = rtl.Config{Gain: 20}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}

	p := got.Scan.Params(0)
	if p.From != 60_000_000 || p.To != 1_700_000_000 || p.Dwell != 50*time.Millisecond {
		t.Errorf("unexpected default params: %+v", p)
	}
	if !got.Scan.Orchestrator.DCCorrection {
		t.Errorf("DC correction must be on by default")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown device", "device:\n  type: hackrf\n"},
		{"unsupported sample rate", "scan:\n  sampleRate: 500k\n"},
		{"inverted range", "scan:\n  from: 200M\n  to: 100M\n"},
		{"bad frequency", "scan:\n  from: lots\n"},
		{"bad unit", "scan:\n  from: 100 MB\n"},
		{"bad dwell", "scan:\n  dwell: soon\n"},
		{"bad policy", "scan:\n  failurePolicy: ignore\n"},
		{"bad trace format", "output:\n  trace:\n    file: x.gif\n    format: gif\n"},
		{"bad trace size", "output:\n  trace:\n    file: x.png\n    width: 0\n"},
		{"bad sim config", "device:\n  type: simulator\n  simulator:\n    noise: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Errorf("LoadConfig() expected an error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("LoadConfig() expected an error for a missing file")
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{"100000000", 100_000_000, false},
		{"433.92M", 433_920_000, false},
		{"1.7G", 1_700_000_000, false},
		{"1.7 GHz", 1_700_000_000, false},
		{"250k", 250_000, false},
		{"250 kHz", 250_000, false},
		{"", 0, true},
		{"fast", 0, true},
		{"10 MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrequency(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFrequency(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
