package leaderboard

import (
	"context"

	"tourneykit/core"
)

// Standings holds one Board per Metric. It is fed by stats_recorded events,
// so it reflects totals observed since the process started plus anything
// passed to Seed.
type Standings struct {
	boards map[Metric]Board
}

// NewStandings returns empty skip-list boards for every metric.
func NewStandings() *Standings {
	s := &Standings{boards: make(map[Metric]Board, len(Metrics))}
	for _, m := range Metrics {
		s.boards[m] = NewSkipList()
	}
	return s
}

// metricFor maps a stats_recorded event to its board. Earnings events carry
// no stat.
func metricFor(e core.Event) (Metric, bool) {
	if e.Stat == "" {
		return MetricEarnings, true
	}
	m := Metric(e.Stat)
	return m, m.Valid()
}

// OnEvent is an engine event handler.
func (s *Standings) OnEvent(_ context.Context, e core.Event) {
	if e.Type != core.EventStatsRecorded {
		return
	}
	m, ok := metricFor(e)
	if !ok || e.UserID == "" {
		return
	}
	s.boards[m].Update(e.UserID, e.Total)
}

// Seed loads every non-zero total from a stored profile.
func (s *Standings) Seed(p core.Profile) {
	if p.UserID == "" {
		return
	}
	stats := p.Stats.Normalized()
	for _, st := range core.Stats {
		if v := stats.Count(st); v > 0 {
			s.boards[Metric(st)].Update(p.UserID, float64(v))
		}
	}
	if stats.TotalEarnings > 0 {
		s.boards[MetricEarnings].Update(p.UserID, stats.TotalEarnings)
	}
}

// Top returns the first n entries of a metric with ranks filled in.
func (s *Standings) Top(m Metric, n int) ([]Entry, error) {
	b, ok := s.boards[m]
	if !ok {
		return nil, ErrUnknownMetric
	}
	out := b.TopN(n)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// Position returns a user's entry on a metric board. The bool is false when
// the user has no score there.
func (s *Standings) Position(m Metric, user core.UserID) (Entry, bool, error) {
	b, ok := s.boards[m]
	if !ok {
		return Entry{}, false, ErrUnknownMetric
	}
	e, found := b.Get(user)
	if !found {
		return Entry{}, false, nil
	}
	e.Rank, found = b.Rank(user)
	return e, found, nil
}

// Len returns the number of ranked users on a board.
func (s *Standings) Len(m Metric) int {
	if b, ok := s.boards[m]; ok {
		return b.Len()
	}
	return 0
}
