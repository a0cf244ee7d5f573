package sim

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/roman-kulish/radio-scanner/internal/sdr/driver"
)

func open(t *testing.T, config Config) *Receiver {
	t.Helper()

	r, err := New(config)
	require.NoError(t, err)

	d, err := r.Opener()(0)
	require.NoError(t, err)
	require.NoError(t, d.Configure(2_000_000, 1_000_000))
	require.NoError(t, d.ResetBuffer())

	return r
}

func TestReceiver_Constant(t *testing.T) {
	r := open(t, Config{Constant: 127})
	require.NoError(t, r.Tune(100_000_000))

	buf := make([]byte, 512)
	require.NoError(t, r.ReadCapture(context.Background(), buf))

	for i, b := range buf {
		if b != 127 {
			t.Fatalf("buf[%d] = %d, want 127", i, b)
		}
	}
}

func TestReceiver_Tone(t *testing.T) {
	const n = 1024

	// Offset of exactly 64 bins from the center frequency
	r := open(t, Config{Tones: []Tone{{Frequency: 100_000_000 + 64*2_000_000/n, Amplitude: 0.8}}})
	require.NoError(t, r.Tune(100_000_000))

	buf := make([]byte, 2*n)
	require.NoError(t, r.ReadCapture(context.Background(), buf))

	seq := make([]complex128, n)
	for i := range seq {
		seq[i] = complex((float64(buf[2*i])-127)/127, (float64(buf[2*i+1])-127)/127)
	}
	coeffs := fourier.NewCmplxFFT(n).Coefficients(nil, seq)

	peak := 0
	for k := range coeffs {
		if cmplx.Abs(coeffs[k]) > cmplx.Abs(coeffs[peak]) {
			peak = k
		}
	}
	assert.Equal(t, 64, peak)
}

func TestReceiver_ToneOutOfBand(t *testing.T) {
	r := open(t, Config{Constant: 127, Tones: []Tone{{Frequency: 200_000_000, Amplitude: 1}}})
	require.NoError(t, r.Tune(100_000_000))

	buf := make([]byte, 64)
	require.NoError(t, r.ReadCapture(context.Background(), buf))

	for i, b := range buf {
		assert.Equal(t, byte(127), b, "buf[%d]", i)
	}
}

func TestReceiver_NoiseIsSeeded(t *testing.T) {
	capture := func() []byte {
		r := open(t, Config{Noise: 0.2, Seed: 42})
		require.NoError(t, r.Tune(433_000_000))

		buf := make([]byte, 256)
		require.NoError(t, r.ReadCapture(context.Background(), buf))
		return buf
	}

	a, b := capture(), capture()
	assert.Equal(t, a, b)

	var varies bool
	for _, v := range a {
		if v != a[0] {
			varies = true
		}
	}
	assert.True(t, varies, "noise must vary the capture")
}

func TestReceiver_Failures(t *testing.T) {
	r := open(t, Config{Failures: []Failure{{Op: driver.OpTune, At: 2, Count: 1}}})

	require.NoError(t, r.Tune(1_000_000))

	err := r.Tune(2_000_000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInjected)

	var devErr *driver.DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, driver.OpTune, devErr.Op)
	assert.Equal(t, int64(2_000_000), devErr.Frequency)

	require.NoError(t, r.Tune(3_000_000))

	assert.Equal(t, []int64{1_000_000, 3_000_000}, r.Tuned())
	assert.Equal(t, 3, r.Calls(driver.OpTune))
}

func TestReceiver_Closed(t *testing.T) {
	r := open(t, Config{})
	require.NoError(t, r.Close())
	assert.True(t, r.Closed())

	assert.ErrorIs(t, r.Tune(100_000_000), driver.ErrDeviceClosed)
	assert.ErrorIs(t, r.ReadCapture(context.Background(), make([]byte, 2)), driver.ErrDeviceClosed)

	_, err := r.Opener()(0)
	require.NoError(t, err)
	assert.False(t, r.Closed())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"zero value", Config{}, false},
		{"tone", Config{Tones: []Tone{{Frequency: 1, Amplitude: 1}}}, false},
		{"tone amplitude", Config{Tones: []Tone{{Frequency: 1, Amplitude: 1.5}}}, true},
		{"tone frequency", Config{Tones: []Tone{{Amplitude: 0.5}}}, true},
		{"negative noise", Config{Noise: -0.1}, true},
		{"failure call number", Config{Failures: []Failure{{Op: driver.OpRead}}}, true},
		{"failure count", Config{Failures: []Failure{{Op: driver.OpRead, At: 1, Count: -1}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, byte(0), quantize(-1))
	assert.Equal(t, byte(127), quantize(0))
	assert.Equal(t, byte(254), quantize(1))
	assert.Equal(t, byte(255), quantize(2))
	assert.Equal(t, byte(0), quantize(math.Inf(-1)))
}
