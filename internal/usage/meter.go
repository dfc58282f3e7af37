package usage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/metrics"
	"github.com/jmehdipour/intent-gateway/internal/model"
	"github.com/jmehdipour/intent-gateway/internal/util"
)

// Store is the append-only usage ledger; repository.UsageRepository and
// MemoryStore implement it.
type Store interface {
	Insert(ctx context.Context, rec model.UsageRecord) error
	List(ctx context.Context, customerID int64, fromDay, toDay string) ([]model.UsageRecord, error)
}

// Pricing maps a tool to its cost per admitted call.
type Pricing struct {
	Default uint64
	Tools   map[string]uint64
}

func PricingFromConfig(c config.PricingConfig) Pricing {
	return Pricing{Default: c.DefaultCost, Tools: c.Tools}
}

func (p Pricing) CostOf(tool string) uint64 {
	if c, ok := p.Tools[tool]; ok {
		return c
	}
	return p.Default
}

// Period is an inclusive range of UTC days.
type Period struct {
	From, To time.Time
}

type ToolUsage struct {
	Count     uint64 `json:"count"`
	TotalCost uint64 `json:"total_cost"`
}

type Summary struct {
	CustomerID int64                `json:"customer_id"`
	From       string               `json:"from"`
	To         string               `json:"to"`
	Tools      map[string]ToolUsage `json:"tools"`
	TotalCalls uint64               `json:"total_calls"`
	TotalCost  uint64               `json:"total_cost"`
}

// ToolNames returns the summary's tools sorted by name.
func (s Summary) ToolNames() []string {
	out := make([]string, 0, len(s.Tools))
	for name := range s.Tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Summarize folds records into per-tool counts and costs. It reads only.
func Summarize(recs []model.UsageRecord) Summary {
	s := Summary{Tools: make(map[string]ToolUsage)}
	for _, r := range recs {
		u := s.Tools[r.ToolName]
		u.Count++
		u.TotalCost += r.Cost
		s.Tools[r.ToolName] = u
		s.TotalCalls++
		s.TotalCost += r.Cost
	}
	return s
}

// Meter records billable calls and aggregates them per customer.
type Meter struct {
	store    Store
	pricing  Pricing
	timeout  time.Duration
	retries  uint64
	interval time.Duration
}

func NewMeter(store Store, pricing Pricing, cfg config.UsageConfig) *Meter {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Meter{
		store:    store,
		pricing:  pricing,
		timeout:  timeout,
		retries:  cfg.MaxRetries,
		interval: 50 * time.Millisecond,
	}
}

// Record appends one usage record. requestID makes retries safe: the store
// keeps a single record per request. admittedAt is the time the call's quota
// was reserved; the record is billed to that day. Errors are logged and
// returned for the caller to ignore.
func (m *Meter) Record(ctx context.Context, customerID int64, tool, requestID string, admittedAt time.Time) error {
	at := admittedAt.UTC()
	rec := model.UsageRecord{
		ID:         util.NewID(),
		RequestID:  requestID,
		CustomerID: customerID,
		ToolName:   tool,
		Cost:       m.pricing.CostOf(tool),
		Timestamp:  at,
		DayBucket:  model.DayBucket(at),
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.interval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, m.retries), ctx)

	err := backoff.Retry(func() error {
		wctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		return m.store.Insert(wctx, rec)
	}, b)
	if err != nil {
		metrics.SinkFailures.WithLabelValues("usage").Inc()
		logger.Log.Error("usage record lost",
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.Int64("customer_id", customerID),
			zap.String("tool", tool),
			zap.Uint64("cost", rec.Cost),
		)
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Aggregate summarizes a customer's records in the period.
func (m *Meter) Aggregate(ctx context.Context, customerID int64, p Period) (Summary, error) {
	from, to := model.DayBucket(p.From), model.DayBucket(p.To)
	if from > to {
		return Summary{}, fmt.Errorf("period from %s is after to %s", from, to)
	}
	recs, err := m.store.List(ctx, customerID, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("list usage: %w", err)
	}
	s := Summarize(recs)
	s.CustomerID, s.From, s.To = customerID, from, to
	return s, nil
}
