package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/intent-gateway/internal/db"
	"github.com/jmehdipour/intent-gateway/internal/repository"
)

var (
	auditCustomer int64
	auditTool     string
	auditLimit    int
	auditOffset   int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log commands",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a customer's most recent audit entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if auditCustomer <= 0 {
			return fmt.Errorf("--customer is required")
		}

		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		entries, err := repository.NewAuditRepository(chDB).ListByCustomer(cmd.Context(), auditCustomer, auditTool, auditLimit, auditOffset)
		if err != nil {
			return fmt.Errorf("list audit: %w", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tTOOL\tOK\tREASON\tSTAGE\tROWS\tLATENCY\tARGS")
		for _, e := range entries {
			rows := "-"
			if e.ResultSize != nil {
				rows = fmt.Sprint(*e.ResultSize)
			}
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\t%dms\t%s\n",
				e.Timestamp.UTC().Format(time.RFC3339), e.ToolName, e.Success, e.Reason, e.Stage,
				rows, e.LatencyMs, e.MaskedArguments)
		}
		return tw.Flush()
	},
}

func init() {
	auditListCmd.Flags().Int64Var(&auditCustomer, "customer", 0, "customer id")
	auditListCmd.Flags().StringVar(&auditTool, "tool", "", "only this tool")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "max entries (1-1000)")
	auditListCmd.Flags().IntVar(&auditOffset, "offset", 0, "entries to skip")
	auditCmd.AddCommand(auditListCmd)
}
