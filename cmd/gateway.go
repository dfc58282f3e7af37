package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/access"
	"github.com/jmehdipour/intent-gateway/internal/audit"
	"github.com/jmehdipour/intent-gateway/internal/catalog"
	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/customer"
	"github.com/jmehdipour/intent-gateway/internal/db"
	"github.com/jmehdipour/intent-gateway/internal/dispatcher"
	"github.com/jmehdipour/intent-gateway/internal/kafka"
	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/plan"
	"github.com/jmehdipour/intent-gateway/internal/ratelimit"
	"github.com/jmehdipour/intent-gateway/internal/repository"
	"github.com/jmehdipour/intent-gateway/internal/store"
	"github.com/jmehdipour/intent-gateway/internal/usage"
)

// gateway is everything serve and mcp share.
type gateway struct {
	catalog    *catalog.Catalog
	plans      *plan.Registry
	directory  *customer.Directory
	meter      *usage.Meter
	dispatcher *dispatcher.Dispatcher
	closers    []func() error
}

func (g *gateway) Close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i](); err != nil {
			logger.Log.Warn("close failed", zap.Error(err))
		}
	}
}

// buildGateway connects only the backends the config selects.
func buildGateway(ctx context.Context, cfg config.Config) (_ *gateway, err error) {
	g := &gateway{}
	defer func() {
		if err != nil {
			g.Close()
		}
	}()

	g.catalog, err = catalog.Sakila()
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	table, err := plan.Build(cfg.Plans, g.catalog)
	if err != nil {
		return nil, fmt.Errorf("plans: %w", err)
	}
	g.plans = plan.NewRegistry(table)

	var mysqlDB *sqlx.DB
	gatewayDB := func() (*sqlx.DB, error) {
		if mysqlDB != nil {
			return mysqlDB, nil
		}
		d, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		g.closers = append(g.closers, d.Close)
		mysqlDB = d
		return d, nil
	}

	// customers
	var src customer.Source
	switch cfg.Directory.Source {
	case "static":
		src = customer.NewStaticSource(cfg.Customers)
	case "mysql", "":
		d, err := gatewayDB()
		if err != nil {
			return nil, err
		}
		src = repository.NewCustomersRepository(d)
	default:
		return nil, fmt.Errorf("unknown directory source %q", cfg.Directory.Source)
	}
	g.directory = customer.NewDirectory(src)
	if err := g.directory.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	logger.Log.Info("customers loaded", zap.Int("count", g.directory.Len()), zap.String("source", cfg.Directory.Source))

	// quota counters
	var counters ratelimit.Store
	switch cfg.Quota.Backend {
	case "memory":
		counters = ratelimit.NewMemoryStore()
	case "redis", "":
		rds, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		g.closers = append(g.closers, rds.Close)
		counters = ratelimit.NewRedisStore(rds)
	default:
		return nil, fmt.Errorf("unknown quota backend %q", cfg.Quota.Backend)
	}

	// business store
	biz, err := db.NewBusinessConnection(cfg.Business)
	if err != nil {
		return nil, fmt.Errorf("business store connect: %w", err)
	}
	g.closers = append(g.closers, biz.Close)
	exec := store.NewExecutor(biz, g.catalog.Templates(), cfg.Executor)

	// audit
	var sink audit.Sink
	switch cfg.Audit.Sink {
	case "memory":
		sink = audit.NewMemorySink()
	case "kafka":
		p := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		g.closers = append(g.closers, p.Close)
		sink = audit.NewKafkaSink(p)
	case "clickhouse", "":
		ch, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("clickhouse connect: %w", err)
		}
		g.closers = append(g.closers, ch.Close)
		sink = audit.NewClickHouseSink(repository.NewAuditRepository(ch))
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}

	// usage ledger
	var ledger usage.Store
	switch cfg.Usage.Store {
	case "memory":
		ledger = usage.NewMemoryStore()
	case "mysql", "":
		d, err := gatewayDB()
		if err != nil {
			return nil, err
		}
		ledger = repository.NewUsageRepository(d)
	default:
		return nil, fmt.Errorf("unknown usage store %q", cfg.Usage.Store)
	}
	g.meter = usage.NewMeter(ledger, usage.PricingFromConfig(cfg.Pricing), cfg.Usage)

	g.dispatcher = dispatcher.New(dispatcher.Deps{
		Directory: g.directory,
		Plans:     g.plans,
		Access:    access.NewController(g.catalog),
		Limiter:   ratelimit.New(counters, cfg.Quota.KeyPrefix),
		Catalog:   g.catalog,
		Executor:  exec,
		Meter:     g.meter,
		Audit:     audit.NewLogger(sink, cfg.Audit),
	}, catalog.ParsePolicy(cfg.Limits.Policy))

	return g, nil
}

// reloadPlans swaps the plan table when the config file changes. A bad
// file keeps the current table.
func reloadPlans(g *gateway) func(config.Config, error) {
	return func(cfg config.Config, err error) {
		if err != nil {
			logger.Log.Error("config reload failed", zap.Error(err))
			return
		}
		table, err := plan.Build(cfg.Plans, g.catalog)
		if err != nil {
			logger.Log.Error("plan reload rejected", zap.Error(err))
			return
		}
		g.plans.Swap(table)
		logger.Log.Info("plans reloaded", zap.Int("plans", table.Len()))
	}
}
