package usage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/model"
)

var testPricing = Pricing{Default: 1, Tools: map[string]uint64{"get_revenue_summary": 3}}

type flakyStore struct {
	*MemoryStore
	failures int32
	calls    atomic.Int32
}

func (s *flakyStore) Insert(ctx context.Context, rec model.UsageRecord) error {
	if s.calls.Add(1) <= s.failures {
		return errors.New("mysql down")
	}
	return s.MemoryStore.Insert(ctx, rec)
}

func newTestMeter(store Store, retries uint64) *Meter {
	m := NewMeter(store, testPricing, config.UsageConfig{WriteTimeout: time.Second, MaxRetries: retries})
	m.interval = time.Millisecond
	return m
}

func TestRecordAndAggregate(t *testing.T) {
	store := NewMemoryStore()
	m := newTestMeter(store, 0)
	at := time.Date(2025, 5, 24, 23, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, 1, "search_films", "r1", at))
	require.NoError(t, m.Record(ctx, 1, "search_films", "r2", at))
	require.NoError(t, m.Record(ctx, 1, "get_revenue_summary", "r3", at))
	require.NoError(t, m.Record(ctx, 2, "search_films", "r4", at))

	day := time.Date(2025, 5, 24, 0, 0, 0, 0, time.UTC)
	s, err := m.Aggregate(ctx, 1, Period{From: day, To: day})
	require.NoError(t, err)
	assert.Equal(t, ToolUsage{Count: 2, TotalCost: 2}, s.Tools["search_films"])
	assert.Equal(t, ToolUsage{Count: 1, TotalCost: 3}, s.Tools["get_revenue_summary"])
	assert.EqualValues(t, 3, s.TotalCalls)
	assert.EqualValues(t, 5, s.TotalCost)
	assert.Equal(t, []string{"get_revenue_summary", "search_films"}, s.ToolNames())

	// repeatable: aggregating twice gives the same answer
	again, err := m.Aggregate(ctx, 1, Period{From: day, To: day})
	require.NoError(t, err)
	assert.Equal(t, s, again)

	next := day.AddDate(0, 0, 1)
	empty, err := m.Aggregate(ctx, 1, Period{From: next, To: next})
	require.NoError(t, err)
	assert.Zero(t, empty.TotalCalls)
}

func TestRecordBillsAdmissionDay(t *testing.T) {
	store := NewMemoryStore()
	m := newTestMeter(store, 0)

	// admitted just before midnight, recorded after it
	admitted := time.Date(2025, 5, 24, 23, 59, 59, 0, time.UTC)
	require.NoError(t, m.Record(context.Background(), 1, "search_films", "late", admitted))

	recs, err := store.List(context.Background(), 1, "2025-05-24", "2025-05-24")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2025-05-24", recs[0].DayBucket)
	assert.Equal(t, admitted, recs[0].Timestamp)
}

func TestRecordRetriesWithoutDuplicates(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 1}
	m := newTestMeter(store, 3)

	require.NoError(t, m.Record(context.Background(), 1, "search_films", "req-1", time.Now()))
	// a duplicate delivery of the same request is absorbed
	require.NoError(t, m.Record(context.Background(), 1, "search_films", "req-1", time.Now()))

	recs, err := store.List(context.Background(), 1, "0000-01-01", "9999-12-31")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRecordFailureIsReported(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 100}
	m := newTestMeter(store, 1)

	assert.Error(t, m.Record(context.Background(), 1, "search_films", "req-1", time.Now()))
	assert.EqualValues(t, 2, store.calls.Load())
}

func TestSummarizeIsPure(t *testing.T) {
	recs := []model.UsageRecord{
		{ToolName: "a", Cost: 2},
		{ToolName: "b", Cost: 1},
		{ToolName: "a", Cost: 2},
	}
	before := append([]model.UsageRecord(nil), recs...)
	s := Summarize(recs)

	assert.Equal(t, before, recs)
	assert.Equal(t, ToolUsage{Count: 2, TotalCost: 4}, s.Tools["a"])
	assert.EqualValues(t, 5, s.TotalCost)
}

func TestAggregateRejectsInvertedPeriod(t *testing.T) {
	m := newTestMeter(NewMemoryStore(), 0)
	_, err := m.Aggregate(context.Background(), 1, Period{From: time.Now(), To: time.Now().AddDate(0, 0, -2)})
	assert.Error(t, err)
}

func TestPricingFromConfig(t *testing.T) {
	p := PricingFromConfig(config.PricingConfig{DefaultCost: 1, Tools: map[string]uint64{"x": 4}})
	assert.EqualValues(t, 4, p.CostOf("x"))
	assert.EqualValues(t, 1, p.CostOf("y"))
}
