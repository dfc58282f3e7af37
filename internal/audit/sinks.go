package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/jmehdipour/intent-gateway/internal/model"
	"github.com/jmehdipour/intent-gateway/internal/repository"
)

// ClickHouseSink writes straight to gateway.audit_log.
type ClickHouseSink struct {
	repo repository.AuditRepository
}

func NewClickHouseSink(repo repository.AuditRepository) *ClickHouseSink {
	return &ClickHouseSink{repo: repo}
}

func (s *ClickHouseSink) Write(ctx context.Context, e model.AuditEntry) error {
	return s.repo.InsertBatch(ctx, []model.AuditEntry{e})
}

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// KafkaSink publishes entries as JSON keyed by customer; the audit-sink
// worker loads them into ClickHouse.
type KafkaSink struct {
	pub Publisher
}

func NewKafkaSink(pub Publisher) *KafkaSink {
	return &KafkaSink{pub: pub}
}

func (s *KafkaSink) Write(ctx context.Context, e model.AuditEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.pub.Publish(ctx, []byte(strconv.FormatInt(e.CustomerID, 10)), b)
}

// MemorySink keeps entries in process, for dev runs and tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Write(_ context.Context, e model.AuditEntry) error {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Entries() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
