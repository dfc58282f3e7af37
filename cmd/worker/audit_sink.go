package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/db"
	"github.com/jmehdipour/intent-gateway/internal/kafka"
	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/metrics"
	"github.com/jmehdipour/intent-gateway/internal/repository"
	"github.com/jmehdipour/intent-gateway/internal/worker"
)

var metricsAddr string

var auditSinkCmd = &cobra.Command{
	Use:   "audit-sink",
	Short: "Drain the Kafka audit topic into ClickHouse",
	RunE:  runAuditSink,
}

func init() {
	auditSinkCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9091", "address for /metrics (empty disables)")
}

func runAuditSink(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) ClickHouse
	chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	// 3) kafka consumer
	consumer := kafka.NewAuditConsumer(cfg.Kafka)
	defer consumer.Close()

	w := worker.NewAuditSink(consumer, repository.NewAuditRepository(chDB))

	// tune knobs
	if cfg.AuditSink.BatchSize > 0 {
		w.BatchSize = cfg.AuditSink.BatchSize
	}
	if cfg.AuditSink.BatchWait > 0 {
		w.BatchWait = cfg.AuditSink.BatchWait
	}

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	logger.Log.Info("audit-sink started",
		zap.String("topic", cfg.Kafka.AuditTopic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait),
	)

	return w.Run(ctx)
}
