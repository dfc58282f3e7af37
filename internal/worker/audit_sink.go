package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/kafka"
	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/metrics"
	"github.com/jmehdipour/intent-gateway/internal/model"
)

// Fetcher is the consumer side of the audit topic.
type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// BatchWriter persists audit entries in one round trip.
type BatchWriter interface {
	InsertBatch(ctx context.Context, entries []model.AuditEntry) error
}

// AuditSink drains the audit topic into ClickHouse:
// - fetches entries from Kafka,
// - buffers them until BatchSize or BatchWait,
// - inserts the batch, then commits the offsets it covered.
//
// Offsets are committed only after a successful insert, so a crash replays
// the batch. Entry ids make such duplicates detectable.
type AuditSink struct {
	Consumer Fetcher
	Store    BatchWriter

	BatchSize  int           // max buffered entries per flush
	BatchWait  time.Duration // max time to wait before flush
	RetryWait  time.Duration // first backoff step for failed inserts
	FetchPause time.Duration // pause after a fetch error
}

func NewAuditSink(consumer Fetcher, store BatchWriter) *AuditSink {
	return &AuditSink{
		Consumer:   consumer,
		Store:      store,
		BatchSize:  500,
		BatchWait:  500 * time.Millisecond,
		RetryWait:  200 * time.Millisecond,
		FetchPause: 200 * time.Millisecond,
	}
}

// Run blocks until ctx is cancelled. Whatever is buffered at that point is
// flushed with a short grace period.
func (w *AuditSink) Run(ctx context.Context) error {
	if w.Consumer == nil || w.Store == nil {
		return errors.New("audit-sink: consumer and store are required")
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 500 * time.Millisecond
	}

	msgCh := make(chan kafka.Message, w.BatchSize*2)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			m, err := w.Consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Log.Warn("audit-sink: kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.FetchPause):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	return w.runBatchWriter(ctx, msgCh)
}

type pending struct {
	msgs    []kafka.Message
	entries []model.AuditEntry
	// skipped are undecodable messages; committed with the next flush.
	skipped []kafka.Message
}

func (p *pending) size() int { return len(p.msgs) + len(p.skipped) }

func (p *pending) reset() {
	p.msgs = p.msgs[:0]
	p.entries = p.entries[:0]
	p.skipped = p.skipped[:0]
}

func (w *AuditSink) runBatchWriter(ctx context.Context, in <-chan kafka.Message) error {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var buf pending

	for {
		select {
		case <-ctx.Done():
			w.drain(&buf, in)
			return nil

		case m, ok := <-in:
			if !ok {
				w.drain(&buf, in)
				return nil
			}
			w.add(&buf, m)
			if buf.size() >= w.BatchSize {
				if err := w.flush(ctx, &buf); err != nil && ctx.Err() != nil {
					w.drain(&buf, in)
					return nil
				}
			}

		case <-tick.C:
			_ = w.flush(ctx, &buf)
		}
	}
}

func (w *AuditSink) add(buf *pending, m kafka.Message) {
	var e model.AuditEntry
	if err := json.Unmarshal(m.Value, &e); err != nil || e.ID == "" {
		metrics.AuditSinkFlushed.WithLabelValues("dropped").Inc()
		if err != nil {
			logger.Log.Warn("audit-sink: bad entry json", zap.Error(err), zap.Int64("offset", m.Offset))
		} else {
			logger.Log.Warn("audit-sink: entry missing id", zap.Int64("offset", m.Offset))
		}
		buf.skipped = append(buf.skipped, m)
		return
	}
	buf.msgs = append(buf.msgs, m)
	buf.entries = append(buf.entries, e)
}

// flush inserts the buffered entries, retrying with backoff until it succeeds
// or ctx ends. The buffer is kept on failure.
func (w *AuditSink) flush(ctx context.Context, buf *pending) error {
	if buf.size() == 0 {
		return nil
	}

	if len(buf.entries) > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = w.RetryWait
		eb.MaxElapsedTime = 0
		err := backoff.Retry(func() error {
			return w.Store.InsertBatch(ctx, buf.entries)
		}, backoff.WithContext(eb, ctx))
		if err != nil {
			logger.Log.Error("audit-sink: insert batch failed", zap.Error(err), zap.Int("entries", len(buf.entries)))
			return err
		}
	}

	msgs := append(buf.msgs, buf.skipped...)
	if err := w.Consumer.Commit(ctx, msgs...); err != nil {
		// the insert stands; a replay only duplicates ids
		logger.Log.Warn("audit-sink: commit failed", zap.Error(err))
	}

	metrics.AuditSinkFlushed.WithLabelValues("flushed").Add(float64(len(buf.entries)))
	logger.Log.Info("audit-sink: flushed", zap.Int("entries", len(buf.entries)), zap.Int("skipped", len(buf.skipped)))
	buf.reset()
	return nil
}

// drain moves whatever the fetcher already handed over into the buffer and
// flushes it once, outside the cancelled context.
func (w *AuditSink) drain(buf *pending, in <-chan kafka.Message) {
	for {
		select {
		case m, ok := <-in:
			if !ok {
				w.final(buf)
				return
			}
			w.add(buf, m)
		default:
			w.final(buf)
			return
		}
	}
}

func (w *AuditSink) final(buf *pending) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.flush(ctx, buf); err != nil {
		logger.Log.Error("audit-sink: final flush failed, entries will be replayed", zap.Int("entries", len(buf.entries)))
	}
}
