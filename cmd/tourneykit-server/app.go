package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	jsonfile "tourneykit/adapters/jsonfile"
	mem "tourneykit/adapters/memory"
	redisAdapter "tourneykit/adapters/redis"
	sqlxAdapter "tourneykit/adapters/sqlx"
	"tourneykit/analytics"
	"tourneykit/api/httpapi"
	"tourneykit/config"
	"tourneykit/core"
	"tourneykit/engine"
	"tourneykit/integrations/webhook"
	"tourneykit/leaderboard"
	"tourneykit/logging"
	"tourneykit/metrics"
	"tourneykit/realtime"
	"tourneykit/tourney"
)

// App aggregates the assembled server components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Hub           *realtime.Hub
	Standings     *leaderboard.Standings
	Analytics     *analytics.Tracker
	Service       *engine.Service
	Handler       http.Handler
	Server        *http.Server
	MetricsServer MetricsServer
}

// MetricsServer serves Prometheus metrics on its own listener. Server is nil
// when metrics are disabled.
type MetricsServer struct {
	Server *http.Server
}

func provideConfig() (*config.Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)
	return logger
}

// provideRegistry returns a private registry so runtime collectors are
// opt-in through metrics.collect_system.
func provideRegistry(cfg *config.Config) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	if cfg.Metrics.CollectSystem {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return reg
}

func provideMetrics(cfg *config.Config, reg *prometheus.Registry) metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Noop{}
	}
	return metrics.NewService(reg)
}

func provideHub(m metrics.Metrics) *realtime.Hub {
	return realtime.NewHub(realtime.OnDrop(func(core.Event) { m.IncEventsDropped() }))
}

func provideStandings() *leaderboard.Standings {
	return leaderboard.NewStandings()
}

func provideAnalytics() *analytics.Tracker {
	return analytics.NewTracker()
}

func provideStorage(ctx context.Context, cfg *config.Config) (engine.Storage, func(), error) {
	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := store.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return store, cleanup, nil
}

func provideWebhook(cfg *config.Config, logger *slog.Logger) *webhook.Sink {
	if len(cfg.Webhooks.Endpoints) == 0 {
		return nil
	}
	types := make([]core.EventType, 0, len(cfg.Webhooks.Events))
	for _, e := range cfg.Webhooks.Events {
		types = append(types, core.EventType(e))
	}
	return webhook.New(cfg.Webhooks.Endpoints,
		webhook.WithClient(&http.Client{Timeout: cfg.Webhooks.Timeout}),
		webhook.WithTypes(types...),
		webhook.WithLogger(logger),
	)
}

func provideService(cfg *config.Config, logger *slog.Logger, m metrics.Metrics, hub *realtime.Hub, st *leaderboard.Standings, tr *analytics.Tracker, storage engine.Storage, sink *webhook.Sink) (*engine.Service, func()) {
	mode := engine.DispatchAsync
	if cfg.Events.DispatchMode == "sync" {
		mode = engine.DispatchSync
	}
	opts := []tourney.Option{
		tourney.WithStorage(storage),
		tourney.WithSuperAdmin(cfg.Authz.SuperAdminEmail),
		tourney.WithDispatchMode(mode),
		tourney.WithQueueSize(cfg.Events.QueueSize),
		tourney.WithRealtime(hub),
		tourney.WithStandings(st),
		tourney.WithAnalytics(tr),
		tourney.WithMetrics(m),
		tourney.WithLogger(logger),
	}
	if sink != nil {
		opts = append(opts, tourney.WithWebhook(sink))
	}
	svc := tourney.New(opts...)
	return svc, svc.Close
}

func provideHandler(svc *engine.Service, hub *realtime.Hub, st *leaderboard.Standings, tr *analytics.Tracker, cfg *config.Config, m metrics.Metrics, logger *slog.Logger) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		JWTSecret:        cfg.Security.JWTSecret,
		Standings:        st,
		Analytics:        tr,
		Metrics:          m,
		Logger:           logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func provideMetricsServer(cfg *config.Config, reg *prometheus.Registry) MetricsServer {
	if !cfg.Metrics.Enabled {
		return MetricsServer{}
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.NewHandler(reg))
	return MetricsServer{Server: &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}}
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(_ context.Context, cfg *config.Config) (engine.Storage, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis)
	case "sql":
		return sqlxAdapter.New(cfg.Storage.SQL)
	case "file":
		return jsonfile.New(cfg.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}

// bootstrapSuperAdmin promotes the configured super-admin user at startup.
func bootstrapSuperAdmin(ctx context.Context, app *App) error {
	a := app.Config.Authz
	if a.SuperAdminUserID == "" {
		return nil
	}
	if err := app.Service.Bootstrap(ctx, core.UserID(a.SuperAdminUserID), a.SuperAdminEmail); err != nil {
		return fmt.Errorf("bootstrap super-admin: %w", err)
	}
	app.Logger.Info("super-admin bootstrapped", "user_id", a.SuperAdminUserID)
	return nil
}
