package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/intent-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// AuditRepository reads and writes gateway.audit_log in ClickHouse.
type AuditRepository interface {
	InsertBatch(ctx context.Context, entries []model.AuditEntry) error
	ListByCustomer(ctx context.Context, customerID int64, tool string, limit, offset int) ([]model.AuditEntry, error)
}

type chAuditRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewAuditRepository(ch *sqlx.DB) AuditRepository {
	return &chAuditRepository{ch: ch}
}

const insertAudit = `
	INSERT INTO gateway.audit_log
	    (id, ts, customer_id, tool_name, masked_arguments, argument_fingerprint,
	     result_size, latency_ms, success, reason, stage, client_ip, user_agent)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertBatch sends all entries as one ClickHouse block.
func (r *chAuditRepository) InsertBatch(ctx context.Context, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, insertAudit)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		var size *int64
		if e.ResultSize != nil {
			n := int64(*e.ResultSize)
			size = &n
		}
		var success uint8
		if e.Success {
			success = 1
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Timestamp, e.CustomerID, e.ToolName, string(e.MaskedArguments), e.ArgumentFingerprint,
			size, e.LatencyMs, success, e.Reason, e.Stage, e.ClientIP, e.UserAgent,
		); err != nil {
			return fmt.Errorf("append audit %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (r *chAuditRepository) ListByCustomer(ctx context.Context, customerID int64, tool string, limit, offset int) ([]model.AuditEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, ts, customer_id, tool_name, masked_arguments, argument_fingerprint,
		       result_size, latency_ms, success, reason, stage, client_ip, user_agent
		FROM gateway.audit_log
		WHERE customer_id = ?
	`
	args := []any{customerID}

	if tool != "" {
		q += " AND tool_name = ?"
		args = append(args, tool)
	}

	q += " ORDER BY ts DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []auditRow
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]model.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entry())
	}
	return out, nil
}

// auditRow matches ClickHouse column types.
type auditRow struct {
	ID                  string    `db:"id"`
	Timestamp           time.Time `db:"ts"`
	CustomerID          int64     `db:"customer_id"`
	ToolName            string    `db:"tool_name"`
	MaskedArguments     string    `db:"masked_arguments"`
	ArgumentFingerprint string    `db:"argument_fingerprint"`
	ResultSize          *int64    `db:"result_size"`
	LatencyMs           int64     `db:"latency_ms"`
	Success             uint8     `db:"success"`
	Reason              string    `db:"reason"`
	Stage               string    `db:"stage"`
	ClientIP            string    `db:"client_ip"`
	UserAgent           string    `db:"user_agent"`
}

func (r auditRow) entry() model.AuditEntry {
	e := model.AuditEntry{
		ID:                  r.ID,
		Timestamp:           r.Timestamp,
		CustomerID:          r.CustomerID,
		ToolName:            r.ToolName,
		MaskedArguments:     []byte(r.MaskedArguments),
		ArgumentFingerprint: r.ArgumentFingerprint,
		LatencyMs:           r.LatencyMs,
		Success:             r.Success == 1,
		Reason:              r.Reason,
		Stage:               r.Stage,
		ClientIP:            r.ClientIP,
		UserAgent:           r.UserAgent,
	}
	if r.ResultSize != nil {
		n := int(*r.ResultSize)
		e.ResultSize = &n
	}
	return e
}
