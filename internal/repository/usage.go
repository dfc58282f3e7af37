package repository

import (
	"context"

	"github.com/jmehdipour/intent-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// UsageRepository is the append-only billing ledger in MySQL.
type UsageRepository interface {
	Insert(ctx context.Context, rec model.UsageRecord) error
	// List returns records whose day bucket is in [fromDay, toDay]. A zero
	// customerID lists every customer.
	List(ctx context.Context, customerID int64, fromDay, toDay string) ([]model.UsageRecord, error)
}

type usageRepo struct {
	db *sqlx.DB
}

func NewUsageRepository(db *sqlx.DB) UsageRepository { return &usageRepo{db: db} }

// Insert is idempotent on request_id.
func (r *usageRepo) Insert(ctx context.Context, rec model.UsageRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, request_id, customer_id, tool_name, cost, created_at, day_bucket)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id
	`, rec.ID, rec.RequestID, rec.CustomerID, rec.ToolName, rec.Cost, rec.Timestamp, rec.DayBucket)
	return err
}

func (r *usageRepo) List(ctx context.Context, customerID int64, fromDay, toDay string) ([]model.UsageRecord, error) {
	q := `
		SELECT id, request_id, customer_id, tool_name, cost, created_at, day_bucket
		  FROM usage_records
		 WHERE day_bucket BETWEEN ? AND ?`
	args := []any{fromDay, toDay}
	if customerID != 0 {
		q += " AND customer_id = ?"
		args = append(args, customerID)
	}
	q += " ORDER BY created_at, id"

	var out []model.UsageRecord
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}
