package model

import "time"

// Customer is a provisioned gateway tenant. The gateway only reads it.
type Customer struct {
	ID         int64     `db:"id"`
	Name       string    `db:"name"`
	APIKeyHash string    `db:"api_key_hash"` // hex sha256 of the api key
	PlanID     string    `db:"plan_id"`
	Active     bool      `db:"active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
