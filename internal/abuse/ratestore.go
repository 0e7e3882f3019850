package abuse

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RateStore tracks accepted submissions per client identifier over a
// sliding window. Allow records the attempt at now and reports whether
// it fits under the limit; a denied attempt is not recorded.
type RateStore interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, error)
}

// sweepProbability is the chance that any single Allow call triggers a
// full scan for stale entries, so the map stays bounded without a
// background sweeper.
const sweepProbability = 0.01

// MemoryRateStore is a process-local sliding-window store. Fine for a
// single instance; multi-instance deployments should use the Redis
// store so all instances share one window.
type MemoryRateStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	limit   int
	window  time.Duration

	// sweepChance is overridable in tests.
	sweepChance float64
}

func NewMemoryRateStore(limit int, window time.Duration) *MemoryRateStore {
	return &MemoryRateStore{
		entries:     make(map[string][]time.Time),
		limit:       limit,
		window:      window,
		sweepChance: sweepProbability,
	}
}

func (s *MemoryRateStore) Allow(_ context.Context, key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rand.Float64() < s.sweepChance {
		s.sweepLocked(now)
	}

	valid := pruneBefore(s.entries[key], now.Add(-s.window))
	if len(valid) >= s.limit {
		if len(valid) == 0 {
			delete(s.entries, key)
		} else {
			s.entries[key] = valid
		}
		return false, nil
	}

	s.entries[key] = append(valid, now)
	return true, nil
}

func (s *MemoryRateStore) sweepLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	for key, times := range s.entries {
		valid := pruneBefore(times, cutoff)
		if len(valid) == 0 {
			delete(s.entries, key)
		} else {
			s.entries[key] = valid
		}
	}
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	var valid []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
