package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/model"
)

type flakySink struct {
	failures int32
	calls    atomic.Int32
	inner    *MemorySink
}

func (s *flakySink) Write(ctx context.Context, e model.AuditEntry) error {
	if s.calls.Add(1) <= s.failures {
		return errors.New("sink down")
	}
	return s.inner.Write(ctx, e)
}

type capturePublisher struct {
	key, value []byte
}

func (p *capturePublisher) Publish(_ context.Context, key, value []byte) error {
	p.key, p.value = key, value
	return nil
}

func newTestLogger(sink Sink, retries uint64) *Logger {
	l := NewLogger(sink, config.AuditConfig{WriteTimeout: time.Second, MaxRetries: retries})
	l.interval = time.Millisecond
	return l
}

func TestAppendMasksAndFingerprints(t *testing.T) {
	sink := NewMemorySink()
	l := newTestLogger(sink, 0)
	args := map[string]any{"email": "mary@example.com", "customer_id": float64(1)}

	require.NoError(t, l.Append(context.Background(), model.AuditEntry{CustomerID: 1, ToolName: "get_customer_details"}, args))

	entries := sink.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.NotContains(t, string(e.MaskedArguments), "mary@example.com")
	assert.Equal(t, Fingerprint(args), e.ArgumentFingerprint)
}

func TestAppendRetriesThenSucceeds(t *testing.T) {
	sink := &flakySink{failures: 2, inner: NewMemorySink()}
	l := newTestLogger(sink, 2)

	require.NoError(t, l.Append(context.Background(), model.AuditEntry{ToolName: "x"}, nil))
	assert.EqualValues(t, 3, sink.calls.Load())
	assert.Len(t, sink.inner.Entries(), 1)
}

func TestAppendGivesUpWithWriteFailed(t *testing.T) {
	sink := &flakySink{failures: 100, inner: NewMemorySink()}
	l := newTestLogger(sink, 1)

	err := l.Append(context.Background(), model.AuditEntry{ToolName: "x"}, nil)
	var wf *WriteFailedError
	require.ErrorAs(t, err, &wf)
	assert.NotEmpty(t, wf.EntryID)
	assert.EqualValues(t, 2, sink.calls.Load())
}

func TestKafkaSinkPublishesJSON(t *testing.T) {
	pub := &capturePublisher{}
	l := newTestLogger(NewKafkaSink(pub), 0)

	require.NoError(t, l.Append(context.Background(), model.AuditEntry{CustomerID: 42, ToolName: "search_films", Success: true}, map[string]any{"title": "x"}))
	assert.Equal(t, "42", string(pub.key))

	var got model.AuditEntry
	require.NoError(t, json.Unmarshal(pub.value, &got))
	assert.Equal(t, "search_films", got.ToolName)
	assert.JSONEq(t, `{"title":"x"}`, string(got.MaskedArguments))
}
