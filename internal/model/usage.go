package model

import "time"

// UsageRecord is one billable, admitted call. Never mutated after insert.
type UsageRecord struct {
	ID         string    `db:"id"         json:"id"`
	RequestID  string    `db:"request_id" json:"request_id"` // idempotency key
	CustomerID int64     `db:"customer_id" json:"customer_id"`
	ToolName   string    `db:"tool_name"  json:"tool_name"`
	Cost       uint64    `db:"cost"       json:"cost"`
	Timestamp  time.Time `db:"created_at" json:"timestamp"`
	DayBucket  string    `db:"day_bucket" json:"day_bucket"`
}
