package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/intent-gateway/cmd/worker"
	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/logger"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:     "intent-gateway",
		Short:   "Metered, intent-based access to the business store",
		Version: version,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (defaults are embedded)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}

// loadConfig loads the config and initializes the stdout logger from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	return cfg, nil
}
