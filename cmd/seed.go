package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/catalog"
	"github.com/jmehdipour/intent-gateway/internal/customer"
	"github.com/jmehdipour/intent-gateway/internal/db"
	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/plan"
	"github.com/jmehdipour/intent-gateway/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert the customers section of the config into MySQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Customers) == 0 {
			return fmt.Errorf("config has no customers to seed")
		}

		// refuse customers on plans that do not exist
		table, err := plan.Build(cfg.Plans, catalog.MustSakila())
		if err != nil {
			return fmt.Errorf("plans: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		repo := repository.NewCustomersRepository(sqlDB)
		for _, c := range customer.FromConfig(cfg.Customers) {
			if _, ok := table.Get(c.PlanID); !ok {
				return fmt.Errorf("customer %d: unknown plan %q", c.ID, c.PlanID)
			}
			if err := repo.Upsert(cmd.Context(), c); err != nil {
				return fmt.Errorf("upsert customer %d: %w", c.ID, err)
			}
			logger.Log.Info("customer seeded", zap.Int64("id", c.ID), zap.String("plan", c.PlanID))
		}

		fmt.Printf(">> Seeded %d customers\n", len(cfg.Customers))
		return nil
	},
}
