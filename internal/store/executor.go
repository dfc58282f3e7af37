package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/logger"
)

// Row is one result row keyed by output name.
type Row map[string]any

// Executor runs registered query templates against the business store.
// Every query runs in a read-only transaction.
type Executor struct {
	db        *sqlx.DB
	templates map[string]string
	timeout   time.Duration
	br        *Breaker
}

func NewExecutor(db *sqlx.DB, templates map[string]string, cfg config.ExecutorConfig) *Executor {
	return &Executor{
		db:        db,
		templates: templates,
		timeout:   cfg.QueryTimeout,
		br:        NewBreaker(cfg.Breaker.FailThreshold, time.Duration(cfg.Breaker.OpenForMs)*time.Millisecond),
	}
}

// ExecuteQuery binds params positionally to the template and returns at
// most maxRows+1 rows so callers can tell the result was cut. maxRows <= 0
// reads everything.
func (e *Executor) ExecuteQuery(ctx context.Context, templateID string, params []any, maxRows int) ([]Row, error) {
	text, ok := e.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown template %q", ErrInvalid, templateID)
	}
	if n := strings.Count(text, "?"); n != len(params) {
		return nil, fmt.Errorf("%w: template %q takes %d params, got %d", ErrInvalid, templateID, n, len(params))
	}
	if !e.br.TryAcquire() {
		return nil, fmt.Errorf("%w: circuit open", ErrTransient)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rows, err := e.query(ctx, text, params, maxRows)
	err = classify(err)
	switch {
	case err == nil, errors.Is(err, ErrInvalid):
		e.br.OnSuccess()
	case errors.Is(err, context.Canceled):
		e.br.Release()
	default:
		e.br.OnFailure()
		logger.Log.Warn("business query failed", zap.String("template", templateID), zap.Error(err))
	}
	return rows, err
}

func (e *Executor) query(ctx context.Context, text string, params []any, maxRows int) ([]Row, error) {
	tx, err := e.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rs, err := tx.QueryxContext(ctx, text, params...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	out := make([]Row, 0)
	for rs.Next() {
		m := make(map[string]any)
		if err := rs.MapScan(m); err != nil {
			return nil, err
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, m)
		if maxRows > 0 && len(out) > maxRows {
			break
		}
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	if err := rs.Close(); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}
