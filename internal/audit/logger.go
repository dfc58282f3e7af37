package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/metrics"
	"github.com/jmehdipour/intent-gateway/internal/model"
	"github.com/jmehdipour/intent-gateway/internal/util"
)

// Sink persists one audit entry.
type Sink interface {
	Write(ctx context.Context, e model.AuditEntry) error
}

// WriteFailedError means the entry could not be persisted after retries. It
// was logged to the process log instead; callers treat it as non-fatal.
type WriteFailedError struct {
	EntryID string
	Err     error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("audit write %s failed: %v", e.EntryID, e.Err)
}

func (e *WriteFailedError) Unwrap() error { return e.Err }

// Logger masks arguments and writes entries to a Sink with bounded retries.
type Logger struct {
	sink     Sink
	timeout  time.Duration
	retries  uint64
	interval time.Duration
}

func NewLogger(sink Sink, cfg config.AuditConfig) *Logger {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Logger{sink: sink, timeout: timeout, retries: cfg.MaxRetries, interval: 50 * time.Millisecond}
}

// Append fills id, time, masked arguments and fingerprint from args, then
// persists the entry. Raw args never reach the sink or the process log.
func (l *Logger) Append(ctx context.Context, e model.AuditEntry, args map[string]any) error {
	if e.ID == "" {
		e.ID = util.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.MaskedArguments = MaskArgs(args)
	e.ArgumentFingerprint = Fingerprint(args)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = l.interval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, l.retries), ctx)

	err := backoff.Retry(func() error {
		wctx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		return l.sink.Write(wctx, e)
	}, b)
	if err == nil {
		return nil
	}

	metrics.SinkFailures.WithLabelValues("audit").Inc()
	logger.Log.Error("audit sink write failed, entry logged here instead",
		zap.Error(err),
		zap.String("audit_id", e.ID),
		zap.Time("ts", e.Timestamp),
		zap.Int64("customer_id", e.CustomerID),
		zap.String("tool", e.ToolName),
		zap.ByteString("masked_arguments", e.MaskedArguments),
		zap.String("fingerprint", e.ArgumentFingerprint),
		zap.Bool("success", e.Success),
		zap.String("reason", e.Reason),
		zap.String("stage", e.Stage),
		zap.Int64("latency_ms", e.LatencyMs),
	)
	return &WriteFailedError{EntryID: e.ID, Err: err}
}
