package usage

import (
	"context"
	"sync"

	"github.com/jmehdipour/intent-gateway/internal/model"
)

// MemoryStore is an in-process ledger with the same request-id idempotency
// as the MySQL table.
type MemoryStore struct {
	mu        sync.Mutex
	records   []model.UsageRecord
	byRequest map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byRequest: make(map[string]struct{})}
}

func (s *MemoryStore) Insert(_ context.Context, rec model.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byRequest[rec.RequestID]; dup {
		return nil
	}
	s.byRequest[rec.RequestID] = struct{}{}
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryStore) List(_ context.Context, customerID int64, fromDay, toDay string) ([]model.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.UsageRecord
	for _, r := range s.records {
		if customerID != 0 && r.CustomerID != customerID {
			continue
		}
		if r.DayBucket < fromDay || r.DayBucket > toDay {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
