package dataset

import (
	"sync"

	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// Snapshot is a consistent copy of the store contents
type Snapshot struct {
	Series   []float64
	Appended int
	Origin   domain.SeriesOrigin
	Revision int64
}

// Store holds the current series. Writers are serialized by the caller (the
// state machine); the lock only keeps concurrent readers consistent.
type Store struct {
	mu       sync.RWMutex
	series   []float64
	appended int
	origin   domain.SeriesOrigin
	revision int64
}

// NewStore creates a store holding a manual series
func NewStore(initial []float64) *Store {
	return &Store{
		series: clone(initial),
		origin: domain.SeriesOriginManual,
	}
}

// Snapshot returns a copy of the current contents
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Series:   clone(s.series),
		Appended: s.appended,
		Origin:   s.origin,
		Revision: s.revision,
	}
}

// Series returns a copy of the current series
func (s *Store) Series() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.series)
}

// Len returns the current series length
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

// Replace swaps the whole series and resets the appended range
func (s *Store) Replace(series []float64, origin domain.SeriesOrigin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.series = clone(series)
	s.appended = 0
	s.origin = origin
	s.revision++
}

// Append extends the series with result values. The appended range becomes
// len(values) and the series is marked derived.
func (s *Store) Append(values []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.series = append(s.series, values...)
	s.appended = len(values)
	s.origin = domain.SeriesOriginDerived
	s.revision++
}

func clone(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}
