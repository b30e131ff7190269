package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// Service holds the Prometheus collectors for the application.
type Service struct {
	Derivations     prometheus.Counter
	BadgesEarned    prometheus.Counter
	BadgesGranted   prometheus.Counter
	RoleDecisions   *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// NewHandler returns an http.Handler for the given Gatherer, or the default
// gatherer when none is given.
func NewHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the collectors. Without a registerer the
// default Prometheus registerer is used.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		Derivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourneykit_badge_derivations_total",
			Help: "The total number of badge set derivations.",
		}),
		BadgesEarned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourneykit_badges_earned_total",
			Help: "The total number of badges newly earned from stat changes.",
		}),
		BadgesGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourneykit_badges_granted_total",
			Help: "The total number of badges granted outside stat derivation.",
		}),
		RoleDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourneykit_role_decisions_total",
			Help: "Role assignment decisions by outcome and denial reason.",
		}, []string{"allowed", "reason"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourneykit_events_dropped_total",
			Help: "Events dropped because the async dispatch queue was full.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tourneykit_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		s.Derivations,
		s.BadgesEarned,
		s.BadgesGranted,
		s.RoleDecisions,
		s.EventsDropped,
		s.RequestDuration,
	)

	return s
}

func (s *Service) IncDerivations() { s.Derivations.Inc() }

func (s *Service) AddBadgesEarned(n int) {
	if n > 0 {
		s.BadgesEarned.Add(float64(n))
	}
}

func (s *Service) IncBadgesGranted() { s.BadgesGranted.Inc() }

func (s *Service) IncRoleDecision(allowed bool, reason string) {
	s.RoleDecisions.WithLabelValues(strconv.FormatBool(allowed), reason).Inc()
}

func (s *Service) IncEventsDropped() { s.EventsDropped.Inc() }

func (s *Service) ObserveRequestDuration(route string, seconds float64) {
	s.RequestDuration.WithLabelValues(route).Observe(seconds)
}
