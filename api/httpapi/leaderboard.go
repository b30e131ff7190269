package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"tourneykit/leaderboard"

	"github.com/go-chi/chi/v5"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

func metricCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := leaderboard.ParseMetric(chi.URLParam(r, "metric"))
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown_metric", err.Error(), map[string]any{"metrics": leaderboard.Metrics})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), metricKey, m)))
	})
}

func metricFrom(r *http.Request) leaderboard.Metric {
	m, _ := r.Context().Value(metricKey).(leaderboard.Metric)
	return m
}

func (s *server) listLeaderboards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"metrics": leaderboard.Metrics})
}

func (s *server) topEntries(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxLimit)
	}
	m := metricFrom(r)
	entries, err := s.standings.Top(m, limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, map[string]any{"metric": m, "entries": entries})
}

func (s *server) userPosition(w http.ResponseWriter, r *http.Request) {
	m := metricFrom(r)
	e, ok, err := s.standings.Position(m, userFrom(r))
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_ranked", "user has no score on this leaderboard", nil)
		return
	}
	writeJSON(w, map[string]any{"metric": m, "entry": e})
}
