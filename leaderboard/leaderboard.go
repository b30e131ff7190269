// Package leaderboard keeps in-process standings for each tournament metric.
package leaderboard

import (
	"errors"
	"fmt"

	"tourneykit/core"
)

// Metric names a ranked quantity.
type Metric string

const (
	MetricJoined   Metric = "tournaments_joined"
	MetricWon      Metric = "tournaments_won"
	MetricCreated  Metric = "tournaments_created"
	MetricEarnings Metric = "total_earnings"
)

// Metrics lists every ranked metric.
var Metrics = []Metric{MetricJoined, MetricWon, MetricCreated, MetricEarnings}

// ErrUnknownMetric is returned for metrics outside Metrics.
var ErrUnknownMetric = errors.New("unknown leaderboard metric")

// Valid reports whether m is ranked.
func (m Metric) Valid() bool {
	switch m {
	case MetricJoined, MetricWon, MetricCreated, MetricEarnings:
		return true
	}
	return false
}

// ParseMetric validates s.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}

// Entry represents a score entry. Rank is 1-based and only set by Standings.
type Entry struct {
	User  core.UserID `json:"user_id"`
	Score float64     `json:"score"`
	Rank  int         `json:"rank,omitempty"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(user core.UserID, score float64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
	Len() int
}
