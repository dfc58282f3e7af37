package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmehdipour/intent-gateway/internal/config"
	httpSrv "github.com/jmehdipour/intent-gateway/internal/http"
	"github.com/jmehdipour/intent-gateway/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, err := buildGateway(ctx, cfg)
		if err != nil {
			return err
		}
		defer g.Close()

		// plans are hot-swapped on file change; everything else needs a restart
		if _, err := config.Watch(cfgPath, reloadPlans(g)); err != nil {
			return fmt.Errorf("watch config: %w", err)
		}

		server := httpSrv.NewServer(httpSrv.Deps{
			Dispatcher: g.dispatcher,
			Directory:  g.directory,
			Plans:      g.plans,
			Catalog:    g.catalog,
			Usage:      g.meter,
		})

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			logger.Log.Info("starting http", zap.String("addr", cfg.HTTP.Addr))
			if err := server.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			return g.directory.Run(ctx, cfg.Directory.RefreshInterval)
		})
		eg.Go(func() error {
			<-ctx.Done()
			logger.Log.Info("shutting down")
			timeout := cfg.HTTP.ShutdownTimeout
			if timeout <= 0 {
				timeout = 5 * time.Second
			}
			sctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return server.Shutdown(sctx)
		})

		return eg.Wait()
	},
}
