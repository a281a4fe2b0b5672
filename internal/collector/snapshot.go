package collector

import (
	"sync"
	"time"
)

// Store holds a probe's latest snapshot. Refreshes may overlap when a slow
// cycle is still finishing as the next one completes; Replace keeps the
// newest value by timestamp so a late completion can never regress the
// published measurement. The critical section is a single assignment — the
// value is built in full before the lock is taken.
type Store[T any] struct {
	mu    sync.Mutex
	at    time.Time
	value T
	ok    bool
}

// Replace publishes value unless a newer snapshot is already stored.
func (s *Store[T]) Replace(at time.Time, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ok && at.Before(s.at) {
		return
	}
	s.at = at
	s.value = value
	s.ok = true
}

// Load returns the stored snapshot and whether one exists yet.
func (s *Store[T]) Load() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.ok
}
