package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/db"
	"github.com/jmehdipour/intent-gateway/internal/logger"
)

var (
	migrationsDir  string
	migrateTargets []string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the gateway tables (MySQL customers/usage, ClickHouse audit log)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		for _, target := range migrateTargets {
			var conn *sqlx.DB
			switch target {
			case "mysql":
				conn, err = db.NewMySQLConnection(cfg.MySQL)
			case "clickhouse":
				conn, err = db.NewClickHouseConnection(cfg.ClickHouse)
			default:
				return fmt.Errorf("unknown migration target %q", target)
			}
			if err != nil {
				return fmt.Errorf("%s connect: %w", target, err)
			}
			err = applyDir(ctx, conn, filepath.Join(migrationsDir, target))
			_ = conn.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}
		}

		fmt.Println(">> Migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "migrations root (one sub-directory per target)")
	migrateCmd.Flags().StringSliceVar(&migrateTargets, "target", []string{"mysql", "clickhouse"}, "databases to migrate")
}

// applyDir runs every .sql file in dir in name order, one statement at a
// time; ClickHouse rejects multi-statement queries.
func applyDir(ctx context.Context, conn *sqlx.DB, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", f, err)
		}
		for _, stmt := range splitStatements(string(b)) {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec %s: %w", filepath.Base(f), err)
			}
		}
		logger.Log.Info("migration applied", zap.String("file", f))
	}
	return nil
}

// splitStatements splits on semicolons at line end and drops "--" comment
// lines. Migration files keep one statement per terminated block.
func splitStatements(sql string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			out = append(out, stmt)
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
