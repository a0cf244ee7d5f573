package rtl

import (
	"fmt"
	"strconv"
)

const (
	// GainMax is the highest tuner gain, in dB, any supported tuner reports
	GainMax = 50

	BlockSizeMin = 512
	BlockSizeMax = 256 * 16384
)

// Sample rate bands accepted by the RTL2832U, in Hz (inclusive)
var sampleRateBands = [][2]int64{
	{225_001, 300_000},
	{900_001, 3_200_000},
}

// Config is the `rtl_sdr` tool configuration. Frequency and sample rate are
// set per tuning step by the receiver.
type Config struct {
	Gain     float64 `yaml:"gain" json:"gain"`         // -g tuner_gain in dB (default: automatic)
	PPMError int     `yaml:"ppmError" json:"ppmError"` // -p ppm_error (default: 0)

	BlockSize  int  `yaml:"blockSize" json:"blockSize"`   // -b output_block_size (default: 16 * 16384)
	SyncOutput bool `yaml:"syncOutput" json:"syncOutput"` // -S force sync output (default: async)
}

func (c *Config) Validate() error {
	if c.Gain < 0 || c.Gain > GainMax {
		return fmt.Errorf("rtl.Config: gain must be between 0 and %d dB: %.1f given", GainMax, c.Gain)
	}

	if c.BlockSize != 0 && (c.BlockSize < BlockSizeMin || c.BlockSize > BlockSizeMax || c.BlockSize%BlockSizeMin != 0) {
		return fmt.Errorf("rtl.Config: block size must be a multiple of %d between %d and %d: %d given",
			BlockSizeMin, BlockSizeMin, BlockSizeMax, c.BlockSize)
	}

	return nil
}

// ValidateSampleRate reports whether the RTL2832U can run at the given rate.
func ValidateSampleRate(sampleRate int64) error {
	for _, band := range sampleRateBands {
		if sampleRate >= band[0] && sampleRate <= band[1] {
			return nil
		}
	}
	return fmt.Errorf("rtl: unsupported sample rate %d Hz, must be within %d-%d or %d-%d Hz", sampleRate,
		sampleRateBands[0][0], sampleRateBands[0][1], sampleRateBands[1][0], sampleRateBands[1][1])
}

// Args returns the command line arguments for one `rtl_sdr` run of the given
// number of complex samples. Zero samples streams until the process is
// stopped.
// See `man rtl_sdr` for more information:
// https://manpages.debian.org/bookworm/rtl-sdr/rtl_sdr.1.en.html
func (c *Config) Args(deviceIndex int, frequency, sampleRate int64, samples int) []string {
	args := []string{
		"-d", strconv.Itoa(deviceIndex),
		"-f", strconv.FormatInt(frequency, 10),
		"-s", strconv.FormatInt(sampleRate, 10),
	}

	if samples > 0 {
		args = append(args, "-n", strconv.Itoa(samples))
	}

	if c.Gain > 0 {
		args = append(args, "-g", strconv.FormatFloat(c.Gain, 'f', -1, 64))
	}

	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}

	if c.BlockSize > 0 {
		args = append(args, "-b", strconv.Itoa(c.BlockSize))
	}

	if c.SyncOutput {
		args = append(args, "-S")
	}

	args = append(args, "-") // Always dump to stdout

	return args
}

