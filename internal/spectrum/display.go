package spectrum

import (
	"fmt"
	"sync"

	"github.com/roman-kulish/radio-scanner/internal/dsp"
)

// Display turns the accumulated samples into a trace of the current pixel
// size. It can be resized at any time, e.g. when the consumer's window
// changes.
type Display struct {
	mu     sync.Mutex
	width  int
	height int
}

// NewDisplay creates a display of width x height pixels.
func NewDisplay(width, height int) (*Display, error) {
	d := &Display{}
	if err := d.Resize(width, height); err != nil {
		return nil, err
	}
	return d, nil
}

// Resize changes the target pixel size.
func (d *Display) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("spectrum: invalid display size %dx%d", width, height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.width, d.height = width, height
	return nil
}

// Size returns the current pixel size.
func (d *Display) Size() (width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

// Refresh rescales the current snapshot of s to the display size. The result
// has exactly width values in [0, height].
func (d *Display) Refresh(s *Samples) ([]float64, error) {
	width, height := d.Size()

	trace, err := dsp.Rescale(s.Values(), width, float64(height))
	if err != nil {
		return nil, fmt.Errorf("rescaling %d samples to %dx%d: %w", s.Len(), width, height, err)
	}
	return trace, nil
}
