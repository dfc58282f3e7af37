package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/catalog"
	"github.com/jmehdipour/intent-gateway/internal/dispatcher"
	"github.com/jmehdipour/intent-gateway/internal/http/middleware"
	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/metrics"
	"github.com/jmehdipour/intent-gateway/internal/plan"
	"github.com/jmehdipour/intent-gateway/internal/usage"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, call dispatcher.Call) (dispatcher.Result, error)
}

type Plans interface {
	Get(id string) (plan.Plan, error)
}

type Catalog interface {
	Names() []string
	Get(name string) (catalog.Tool, bool)
}

type UsageReader interface {
	Aggregate(ctx context.Context, customerID int64, p usage.Period) (usage.Summary, error)
}

// Deps are what the routes need. Directory authenticates read-only routes;
// tool calls go through Dispatcher only.
type Deps struct {
	Dispatcher Dispatcher
	Directory  middleware.Resolver
	Plans      Plans
	Catalog    Catalog
	Usage      UsageReader
}

type Server struct{ e *echo.Echo }

func NewServer(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.WARN)
	e.Use(echoMid.Recover(), requestLogger())

	metrics.MustRegister(prometheus.DefaultRegisterer)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// routes
	v1 := e.Group("/v1", middleware.Caller())
	v1.POST("/tools/:name", callToolHandler(deps.Dispatcher))

	authed := v1.Group("", middleware.APIKeyMiddleware(deps.Directory))
	authed.GET("/tools", listToolsHandler(deps.Plans, deps.Catalog))
	authed.GET("/usage", usageHandler(deps.Usage, time.Now))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

func requestLogger() echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			logger.Log.Info("http request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", middleware.RequestIDFromCtx(c)),
			)
			return nil
		},
	})
}
