// Package dump writes raw captures as an Octave text matrix, one row per
// tuning step, for offline analysis.
package dump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrShape is returned for captures that do not fit the declared matrix
var ErrShape = errors.New("capture does not fit the matrix")

// MatrixWriter writes captures as rows of an Octave text matrix named
// raw_bytes. The header declares the expected shape; it is written with the
// first row.
type MatrixWriter struct {
	w      *bufio.Writer
	closer io.Closer

	rows, columns int
	written       int
	line          []byte
	err           error
}

// NewMatrixWriter returns a writer for a rows×columns matrix. The caller
// keeps ownership of w.
func NewMatrixWriter(w io.Writer, rows, columns int) (*MatrixWriter, error) {
	if rows <= 0 || columns <= 0 {
		return nil, fmt.Errorf("dump: invalid matrix shape %dx%d", rows, columns)
	}

	return &MatrixWriter{
		w:       bufio.NewWriter(w),
		rows:    rows,
		columns: columns,
		line:    make([]byte, 0, columns*4+1),
	}, nil
}

// Create creates the file at path and returns a writer owning it.
func Create(path string, rows, columns int) (*MatrixWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating dump file: %w", err)
	}

	m, err := NewMatrixWriter(f, rows, columns)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}

	m.closer = f
	return m, nil
}

// WriteCapture appends one row. It satisfies scanner.CaptureSink.
func (m *MatrixWriter) WriteCapture(step int, centerFrequency int64, capture []byte) error {
	if m.err != nil {
		return m.err
	}
	if len(capture) != m.columns {
		return fmt.Errorf("%w: step %d has %d bytes, %d expected", ErrShape, step, len(capture), m.columns)
	}
	if m.written == m.rows {
		return fmt.Errorf("%w: all %d rows written", ErrShape, m.rows)
	}

	if m.written == 0 {
		if m.err = m.writeHeader(); m.err != nil {
			return m.err
		}
	}

	m.line = m.line[:0]
	for _, b := range capture {
		m.line = append(m.line, ' ')
		m.line = strconv.AppendUint(m.line, uint64(b), 10)
	}
	m.line = append(m.line, '\n')

	if _, m.err = m.w.Write(m.line); m.err != nil {
		return m.err
	}

	m.written++
	return nil
}

// Rows returns the number of rows written so far.
func (m *MatrixWriter) Rows() int {
	return m.written
}

// Close flushes the matrix and closes the underlying file, if owned. A
// matrix with fewer rows than declared is reported with ErrShape.
func (m *MatrixWriter) Close() error {
	var errs []error

	if m.err == nil {
		if err := m.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("error flushing dump: %w", err))
		}
	}
	if m.closer != nil {
		if err := m.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing dump file: %w", err))
		}
		m.closer = nil
	}
	if m.written != m.rows {
		errs = append(errs, fmt.Errorf("%w: %d of %d rows written", ErrShape, m.written, m.rows))
	}

	return errors.Join(errs...)
}

func (m *MatrixWriter) writeHeader() error {
	_, err := fmt.Fprintf(m.w, "# Created by radio-scanner\n# name: raw_bytes\n# type: matrix\n# rows: %d\n# columns: %d\n",
		m.rows, m.columns)
	return err
}
