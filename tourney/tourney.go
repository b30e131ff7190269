// Package tourney assembles an engine.Service with sensible defaults.
package tourney

import (
	"context"
	"log/slog"

	mem "tourneykit/adapters/memory"
	"tourneykit/analytics"
	"tourneykit/authz"
	"tourneykit/badges"
	"tourneykit/core"
	"tourneykit/engine"
	"tourneykit/integrations/webhook"
	"tourneykit/leaderboard"
	"tourneykit/metrics"
	"tourneykit/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage    engine.Storage
	catalog    *badges.Catalog
	superAdmin string
	mode       engine.DispatchMode
	queueSize  int
	hub        *realtime.Hub
	sink       *webhook.Sink
	standings  *leaderboard.Standings
	tracker    *analytics.Tracker
	metrics    metrics.Metrics
	logger     *slog.Logger
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithCatalog replaces the default badge catalog.
func WithCatalog(cat *badges.Catalog) Option { return func(c *config) { c.catalog = cat } }

// WithSuperAdmin sets the only principal allowed to grant the admin role.
func WithSuperAdmin(email string) Option { return func(c *config) { c.superAdmin = email } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithQueueSize sets the async event queue capacity.
func WithQueueSize(n int) Option { return func(c *config) { c.queueSize = n } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithWebhook forwards engine events to a webhook sink.
func WithWebhook(s *webhook.Sink) Option { return func(c *config) { c.sink = s } }

// WithStandings keeps leaderboards current from stats_recorded events.
func WithStandings(st *leaderboard.Standings) Option { return func(c *config) { c.standings = st } }

// WithAnalytics feeds every engine event to an activity tracker.
func WithAnalytics(t *analytics.Tracker) Option { return func(c *config) { c.tracker = t } }

func WithMetrics(m metrics.Metrics) Option { return func(c *config) { c.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// New builds a configured Service. If not provided, defaults are used:
//   - storage: in-memory
//   - catalog: badges.Default()
//   - super-admin: none, so nobody may grant admin
//   - dispatch: async
func New(opts ...Option) *engine.Service {
	cfg := &config{mode: engine.DispatchAsync, metrics: metrics.Noop{}, logger: slog.Default()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	if cfg.catalog == nil {
		cfg.catalog = badges.Default()
	}
	if cfg.metrics == nil {
		cfg.metrics = metrics.Noop{}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	busOpts := []engine.BusOption{engine.OnDrop(func(e core.Event) {
		cfg.metrics.IncEventsDropped()
		cfg.logger.Warn("event dropped", "type", e.Type, "user_id", e.UserID)
	})}
	if cfg.queueSize > 0 {
		busOpts = append(busOpts, engine.WithQueueSize(cfg.queueSize))
	}
	bus := engine.NewEventBus(cfg.mode, busOpts...)

	if cfg.hub != nil {
		bus.SubscribeAll(func(ctx context.Context, e core.Event) { cfg.hub.Broadcast(ctx, e) })
	}
	if cfg.sink != nil {
		bus.SubscribeAll(cfg.sink.OnEvent)
	}
	if cfg.tracker != nil {
		bus.SubscribeAll(cfg.tracker.OnEvent)
	}
	if cfg.standings != nil {
		bus.Subscribe(core.EventStatsRecorded, cfg.standings.OnEvent)
	}

	return engine.NewService(cfg.storage, bus, cfg.catalog, authz.New(cfg.superAdmin),
		engine.WithMetrics(cfg.metrics),
		engine.WithLogger(cfg.logger),
	)
}
