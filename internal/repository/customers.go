package repository

import (
	"context"

	"github.com/jmehdipour/intent-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

type CustomersRepository interface {
	ListAll(ctx context.Context) ([]model.Customer, error)
	Upsert(ctx context.Context, c model.Customer) error
}

type CustomersRepositoryImpl struct {
	db *sqlx.DB
}

func NewCustomersRepository(db *sqlx.DB) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

// ListAll loads every customer; the directory keeps them in memory.
func (r *CustomersRepositoryImpl) ListAll(ctx context.Context) ([]model.Customer, error) {
	var out []model.Customer
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, name, api_key_hash, plan_id, active, created_at, updated_at
		  FROM gateway_customers
		 ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert is used by the seed command only; the gateway never writes customers.
func (r *CustomersRepositoryImpl) Upsert(ctx context.Context, c model.Customer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO gateway_customers (id, name, api_key_hash, plan_id, active)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		    name = VALUES(name),
		    api_key_hash = VALUES(api_key_hash),
		    plan_id = VALUES(plan_id),
		    active = VALUES(active)
	`, c.ID, c.Name, c.APIKeyHash, c.PlanID, c.Active)
	return err
}
