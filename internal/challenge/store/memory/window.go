// Package memory is the in-process window store for unit tests. Same
// all-or-nothing reservation semantics as the Redis implementation, with a
// mutex standing in for the Lua script's atomicity.
package memory

import (
	"context"
	"sync"
	"time"

	"verigate/internal/challenge/store"
)

// WindowStore tracks event timestamps per window key.
type WindowStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// New creates an in-memory window store.
func New() *WindowStore {
	return &WindowStore{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test helper.
func (s *WindowStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *WindowStore) ReserveAll(ctx context.Context, window time.Duration, reservations []store.Reservation) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-window)

	var tripped []string
	for _, r := range reservations {
		key := r.Dimension + ":" + r.Key
		s.windows[key] = prune(s.windows[key], cutoff)
		if len(s.windows[key]) >= r.Limit {
			tripped = append(tripped, r.Dimension)
		}
	}
	if len(tripped) > 0 {
		return tripped, nil
	}

	for _, r := range reservations {
		key := r.Dimension + ":" + r.Key
		s.windows[key] = append(s.windows[key], now)
	}
	return nil, nil
}

func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(timestamps); i++ {
		if timestamps[i].After(cutoff) {
			break
		}
	}
	return timestamps[i:]
}

var _ store.WindowStore = (*WindowStore)(nil)
