package routing

import (
	"context"
	"sync"
	"time"
)

// snapshot is a TTL cache for read-mostly tuning state. Decisions read a
// consistent value; refreshes happen out-of-band of the fan-out. A fetch
// failure keeps serving the previous value rather than failing the decision.
type snapshot[T any] struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       func() time.Time
	fetch     func(ctx context.Context) (T, error)
	value     T
	fetchedAt time.Time
	primed    bool
}

func newSnapshot[T any](ttl time.Duration, fallback T, fetch func(ctx context.Context) (T, error)) *snapshot[T] {
	return &snapshot[T]{
		ttl:   ttl,
		now:   time.Now,
		fetch: fetch,
		value: fallback,
	}
}

// Current returns the cached value, refreshing it when the TTL has lapsed.
func (s *snapshot[T]) Current(ctx context.Context) T {
	s.mu.RLock()
	if s.fresh() {
		value := s.value
		s.mu.RUnlock()
		return value
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fresh() {
		return s.value
	}

	value, err := s.fetch(ctx)
	if err != nil {
		return s.value
	}
	s.value = value
	s.fetchedAt = s.now()
	s.primed = true
	return s.value
}

func (s *snapshot[T]) fresh() bool {
	return s.primed && s.now().Sub(s.fetchedAt) < s.ttl
}
