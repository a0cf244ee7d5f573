package spectrum

import "sync"

// maxPrealloc caps the number of values reserved up front, large sweeps
// still grow past it through append.
const maxPrealloc = 1 << 24

// Samples accumulates the PSD vectors of one scan session in arrival order.
// There is no eviction: the store grows until Reset starts a new session.
//
// Samples is safe for one writer and any number of concurrent readers.
// Readers always observe a prefix of the session that never changes under
// them.
type Samples struct {
	mu       sync.RWMutex
	rng      Range
	capacity int
	values   []float64
	vectors  int
}

// NewSamples creates an empty store.
func NewSamples() *Samples {
	return &Samples{}
}

// Reset drops the accumulated values and prepares the store for a new scan
// over r.
func (s *Samples) Reset(r Range) {
	capacity := r.Estimate()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rng = r
	s.capacity = capacity
	// never reuse the old array, snapshots handed out earlier keep pointing at it
	s.values = make([]float64, 0, min(capacity, maxPrealloc))
	s.vectors = 0
}

// Push appends one PSD vector. The values are copied.
func (s *Samples) Push(values []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = append(s.values, values...)
	s.vectors++
}

// Values returns a snapshot of everything pushed so far. The snapshot is
// never modified by later pushes or resets; callers must not modify it.
func (s *Samples) Values() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.values)
	return s.values[:n:n]
}

// Len returns the number of accumulated values.
func (s *Samples) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Vectors returns the number of pushed PSD vectors.
func (s *Samples) Vectors() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectors
}

// Range returns the range of the current session.
func (s *Samples) Range() Range {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rng
}

// Capacity returns the estimated number of values of the current session.
func (s *Samples) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}
