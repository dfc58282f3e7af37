package customer

import (
	"context"

	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/model"
)

// StaticSource serves the customers section of the config.
type StaticSource struct {
	customers []model.Customer
}

func NewStaticSource(cfgs []config.CustomerConfig) *StaticSource {
	return &StaticSource{customers: FromConfig(cfgs)}
}

func (s *StaticSource) ListAll(context.Context) ([]model.Customer, error) {
	out := make([]model.Customer, len(s.customers))
	copy(out, s.customers)
	return out, nil
}

// FromConfig hashes the configured keys; raw keys are dropped here.
func FromConfig(cfgs []config.CustomerConfig) []model.Customer {
	out := make([]model.Customer, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, model.Customer{
			ID:         c.ID,
			Name:       c.Name,
			APIKeyHash: HashKey(c.APIKey),
			PlanID:     c.PlanID,
			Active:     c.Active,
		})
	}
	return out
}
