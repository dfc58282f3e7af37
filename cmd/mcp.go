package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/mcpserver"
)

const apiKeyEnv = "INTENTGW_API_KEY"

var mcpAPIKey string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tool catalog over MCP stdio for one customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		// stdout carries the protocol
		logger.InitStderr(cfg.Log.Level)

		key := strings.TrimSpace(mcpAPIKey)
		if key == "" {
			key = strings.TrimSpace(os.Getenv(apiKeyEnv))
		}
		if key == "" {
			return errors.New("an API key is required (--api-key or " + apiKeyEnv + ")")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, err := buildGateway(ctx, cfg)
		if err != nil {
			return err
		}
		defer g.Close()

		srv := mcpserver.NewServer(g.dispatcher, g.catalog, key, version)

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return g.directory.Run(ctx, cfg.Directory.RefreshInterval)
		})
		eg.Go(func() error {
			defer stop()
			return srv.Run(ctx)
		})
		return eg.Wait()
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpAPIKey, "api-key", "", "customer API key the session acts as (env "+apiKeyEnv+")")
}
