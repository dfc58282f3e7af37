package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	n         uint64
	expiresAt time.Time
}

// MemoryStore is a single-process Store for dev runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*counter), now: time.Now}
}

func (s *MemoryStore) IncrementBelow(_ context.Context, key string, limit uint64, ttl time.Duration) (bool, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.prune(now)

	c, ok := s.counters[key]
	if !ok {
		c = &counter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}
	if c.n >= limit {
		return false, c.n, nil
	}
	c.n++
	return true, c.n, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[key]
	if !ok || !s.now().Before(c.expiresAt) {
		return 0, nil
	}
	return c.n, nil
}

// prune drops expired buckets. Caller holds mu.
func (s *MemoryStore) prune(now time.Time) {
	for k, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, k)
		}
	}
}
