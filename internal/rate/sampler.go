// Package rate pairs successive readings of cumulative counters so callers
// can turn them into ratios over a known interval.
package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Reading is one timestamped set of counters.
type Reading[T any] struct {
	At       time.Time
	Counters T
}

// Sampler hands out (previous, current) reading pairs of a counter source.
// The first call seeds a baseline with an extra read; every call enforces a
// minimum spacing between the two readings of its pair so the delta covers a
// measurable interval. The current reading always becomes the next call's
// baseline, even when the caller ends up rejecting the pair, so one bad
// cycle never wedges the sampler.
type Sampler[T any] struct {
	minGap time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu   sync.Mutex
	prev *Reading[T]
}

// New creates a Sampler enforcing minGap between the readings of a pair.
func New[T any](minGap time.Duration) *Sampler[T] {
	return &Sampler[T]{
		minGap: minGap,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Pair returns the previous and current readings of the source. When the
// baseline is younger than the minimum gap, Pair waits out the remainder
// before taking the current reading; steady polling never waits because the
// previous cycle's reading is already old enough. A read error leaves the
// baseline untouched.
func (s *Sampler[T]) Pair(ctx context.Context, read func(context.Context) (T, error)) (Reading[T], Reading[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero Reading[T]

	if s.prev == nil {
		counters, err := read(ctx)
		if err != nil {
			return zero, zero, fmt.Errorf("seeding baseline: %w", err)
		}
		s.prev = &Reading[T]{At: s.now(), Counters: counters}
	}

	if remaining := s.minGap - s.now().Sub(s.prev.At); remaining > 0 {
		if err := s.sleep(ctx, remaining); err != nil {
			return zero, zero, err
		}
	}

	counters, err := read(ctx)
	if err != nil {
		return zero, zero, fmt.Errorf("reading counters: %w", err)
	}

	prev := *s.prev
	curr := Reading[T]{At: s.now(), Counters: counters}
	s.prev = &curr

	return prev, curr, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
