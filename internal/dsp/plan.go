package dsp

import (
	"errors"
	"fmt"
	"unsafe"

	"gonum.org/v1/gonum/dsp/fourier"
)

const complexSize = int(unsafe.Sizeof(complex128(0)))

// Plan is a fixed-size forward DFT together with its input and output
// buffers. The buffers live in aligned memory that is acquired when the plan
// is created and released, all at once, by Close.
//
// The k-th output bin holds frequency k/(N·T) for k < N/2; bins N/2..N-1 hold
// the negative frequencies (k-N)/(N·T), which is the FFTW "in-order" layout.
//
// A Plan is not safe for concurrent use.
type Plan struct {
	n   int
	fft *fourier.CmplxFFT

	inMem, outMem []byte
	in, out       []complex128

	closed bool
}

// NewPlan creates a transform plan for n complex samples. This is expensive;
// create one per distinct size and reuse it.
func NewPlan(n int) (*Plan, error) {
	if n < 2 {
		return nil, newValidationError(fmt.Sprintf("dsp: transform size must be at least 2: %d given", n))
	}

	inMem, err := allocAligned(n * complexSize)
	if err != nil {
		return nil, fmt.Errorf("allocating input buffer: %w", err)
	}

	outMem, err := allocAligned(n * complexSize)
	if err != nil {
		if fErr := freeAligned(inMem); fErr != nil {
			err = errors.Join(err, fErr)
		}
		return nil, fmt.Errorf("allocating output buffer: %w", err)
	}

	p := Plan{
		n:      n,
		fft:    fourier.NewCmplxFFT(n),
		inMem:  inMem,
		outMem: outMem,
		in:     complexView(inMem, n),
		out:    complexView(outMem, n),
	}
	clear(p.in)
	clear(p.out)

	return &p, nil
}

// Len returns the transform size N.
func (p *Plan) Len() int {
	return p.n
}

// Input returns the 2N interleaved (re, im) input buffer. The slice is only
// valid until Close.
func (p *Plan) Input() []float64 {
	if p.closed {
		return nil
	}
	return floatView(p.in)
}

// Output returns the 2N interleaved (re, im) output buffer. Callers must not
// write to it; it is only valid until Close.
func (p *Plan) Output() []float64 {
	if p.closed {
		return nil
	}
	return floatView(p.out)
}

// Bins returns the output buffer as N complex bins in native order.
func (p *Plan) Bins() []complex128 {
	if p.closed {
		return nil
	}
	return p.out
}

// Execute runs one forward transform of the input buffer into the output
// buffer. The output is fully overwritten and nothing is allocated.
func (p *Plan) Execute() error {
	if p.closed {
		return ErrPlanClosed
	}
	p.fft.Coefficients(p.out, p.in)
	return nil
}

// Close releases the plan and both buffers. It is safe to call Close
// multiple times.
func (p *Plan) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	inErr := freeAligned(p.inMem)
	outErr := freeAligned(p.outMem)

	p.in, p.out = nil, nil
	p.inMem, p.outMem = nil, nil
	p.fft = nil

	return errors.Join(inErr, outErr)
}

func complexView(mem []byte, n int) []complex128 {
	return unsafe.Slice((*complex128)(unsafe.Pointer(&mem[0])), n)
}

// floatView exposes complex128 values as their (re, im) float64 pairs.
func floatView(c []complex128) []float64 {
	return unsafe.Slice((*float64)(unsafe.Pointer(&c[0])), 2*len(c))
}
