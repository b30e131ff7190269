package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	wsadapter "tourneykit/adapters/websocket"
	"tourneykit/analytics"
	"tourneykit/engine"
	"tourneykit/leaderboard"
	"tourneykit/metrics"
	"tourneykit/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// JWTSecret verifies actor tokens on role routes. Empty rejects every token.
	JWTSecret string
	// Standings, if set, enables the /leaderboards routes.
	Standings *leaderboard.Standings
	// Analytics, if set, enables GET /analytics.
	Analytics *analytics.Tracker
	// Metrics receives request durations. Defaults to a no-op.
	Metrics metrics.Metrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type server struct {
	svc       *engine.Service
	standings *leaderboard.Standings
	tracker   *analytics.Tracker
	secret    []byte
	log       *slog.Logger
}

// NewMux builds an http.Handler exposing the REST API and WebSocket stream.
// Routes:
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws?user={id}
//   - GET  {prefix}/badges
//   - POST {prefix}/badges/derive
//   - GET  {prefix}/roles
//   - GET  {prefix}/roles/assignable                 (actor token)
//   - GET  {prefix}/users/{id}
//   - GET  {prefix}/users/{id}/badges
//   - POST {prefix}/users/{id}/identity              (actor token: self or admin)
//   - POST {prefix}/users/{id}/tournaments/{kind}    kind = joined|won|created
//   - POST {prefix}/users/{id}/earnings?amount=250
//   - POST {prefix}/users/{id}/badges/{badge}
//   - GET  {prefix}/users/{id}/role/assignable?role= (actor token)
//   - PUT  {prefix}/users/{id}/role?role=            (actor token)
//   - GET  {prefix}/leaderboards
//   - GET  {prefix}/leaderboards/{metric}?limit=10
//   - GET  {prefix}/leaderboards/{metric}/users/{id}
//   - GET  {prefix}/analytics?day=2006-01-02
func NewMux(svc *engine.Service, hub *realtime.Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	s := &server{svc: svc, standings: opts.Standings, tracker: opts.Analytics, secret: []byte(opts.JWTSecret), log: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withRequestMetrics(opts.Metrics, opts.Logger))
	if opts.AllowCORSOrigin != "" {
		r.Use(withCORS(opts.AllowCORSOrigin))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		r.Use(withRateLimit(opts.RateLimitRPM, opts.RateLimitBurst))
	}
	if len(opts.APIKeys) > 0 {
		r.Use(withAPIKeyAuth(opts.APIKeys))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	routes := func(r chi.Router) {
		r.Get("/healthz", s.healthCheck)
		if hub != nil {
			r.Handle("/ws", wsadapter.Handler(hub, opts.Logger))
		}

		r.Get("/badges", s.listBadges)
		r.Post("/badges/derive", s.deriveBadges)
		r.Get("/roles", s.listRoles)
		r.With(s.requireActor).Get("/roles/assignable", s.assignableRoles)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Use(userIDCtx)
			r.Get("/", s.getProfile)
			r.Get("/badges", s.getProfileBadges)
			r.Post("/tournaments/{kind}", s.recordTournament)
			r.Post("/earnings", s.recordEarnings)
			r.Post("/badges/{badge}", s.grantBadge)
			r.Group(func(r chi.Router) {
				r.Use(s.requireActor)
				r.Post("/identity", s.registerIdentity)
				r.Get("/role/assignable", s.canAssignRole)
				r.Put("/role", s.assignRole)
			})
		})

		if s.tracker != nil {
			r.Get("/analytics", s.analyticsSummary)
		}
		if s.standings != nil {
			r.Route("/leaderboards", func(r chi.Router) {
				r.Get("/", s.listLeaderboards)
				r.Route("/{metric}", func(r chi.Router) {
					r.Use(metricCtx)
					r.Get("/", s.topEntries)
					r.With(userIDCtx).Get("/users/{id}", s.userPosition)
				})
			})
		}
	}

	prefix := strings.TrimSuffix(opts.PathPrefix, "/")
	if prefix == "" {
		routes(r)
	} else {
		r.Route(prefix, routes)
	}
	return r
}

// healthCheck verifies the service is working properly
func (s *server) healthCheck(w http.ResponseWriter, r *http.Request) {
	// Reading an unknown user touches storage without writing anything.
	_, err := s.svc.Profile(r.Context(), "healthcheck_probe")

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
		"time": time.Now().UTC(),
	}

	code := http.StatusOK
	if err != nil {
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
		s.log.Error("health check failed", "error", err)
	}
	writeJSONStatus(w, code, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}
