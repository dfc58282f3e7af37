package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/intent-gateway/internal/db"
	"github.com/jmehdipour/intent-gateway/internal/model"
	"github.com/jmehdipour/intent-gateway/internal/repository"
	"github.com/jmehdipour/intent-gateway/internal/usage"
)

var (
	usageCustomer int64
	usageFrom     string
	usageTo       string
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Billing ledger commands",
}

var usageReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate a customer's usage by tool over a day range",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := parsePeriod(usageFrom, usageTo, time.Now())
		if err != nil {
			return err
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		meter := usage.NewMeter(repository.NewUsageRepository(sqlDB), usage.PricingFromConfig(cfg.Pricing), cfg.Usage)
		s, err := meter.Aggregate(cmd.Context(), usageCustomer, p)
		if err != nil {
			return err
		}
		return printSummary(s)
	},
}

func init() {
	usageReportCmd.Flags().Int64Var(&usageCustomer, "customer", 0, "customer id (0 = all customers)")
	usageReportCmd.Flags().StringVar(&usageFrom, "from", "", "first day, YYYY-MM-DD (default today, UTC)")
	usageReportCmd.Flags().StringVar(&usageTo, "to", "", "last day, YYYY-MM-DD (default today, UTC)")
	usageCmd.AddCommand(usageReportCmd)
}

func parsePeriod(from, to string, now time.Time) (usage.Period, error) {
	today, _ := model.ParseDay(model.DayBucket(now))
	p := usage.Period{From: today, To: today}
	if from != "" {
		d, err := model.ParseDay(from)
		if err != nil {
			return usage.Period{}, fmt.Errorf("--from: %w", err)
		}
		p.From = d
	}
	if to != "" {
		d, err := model.ParseDay(to)
		if err != nil {
			return usage.Period{}, fmt.Errorf("--to: %w", err)
		}
		p.To = d
	}
	if p.To.Before(p.From) {
		return usage.Period{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return p, nil
}

func printSummary(s usage.Summary) error {
	fmt.Printf("usage %s .. %s\n", s.From, s.To)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tCALLS\tCOST")
	for _, name := range s.ToolNames() {
		u := s.Tools[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", name, u.Count, u.TotalCost)
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\n", s.TotalCalls, s.TotalCost)
	return tw.Flush()
}
