// Package analytics aggregates engine events into engagement figures.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tourneykit/core"
)

// DaySummary is the activity recorded for one UTC day.
type DaySummary struct {
	Day           string              `json:"day"`
	ActiveUsers   int                 `json:"active_users"`
	Tournaments   map[core.Stat]int64 `json:"tournaments"`
	Earnings      float64             `json:"earnings"`
	BadgesEarned  int64               `json:"badges_earned"`
	BadgesGranted int64               `json:"badges_granted"`
	RoleChanges   int64               `json:"role_changes"`
	RoleDenials   map[string]int64    `json:"role_denials"`
}

// BadgeCount is how often a badge was earned or granted and by how many users.
type BadgeCount struct {
	Badge   core.BadgeID `json:"badge"`
	Awarded int64        `json:"awarded"`
	Holders int          `json:"holders"`
}

type userSet map[core.UserID]struct{}

func (s userSet) add(u core.UserID) { s[u] = struct{}{} }

// Tracker is an in-process event hook. All figures are kept in memory and
// start empty on each process start.
type Tracker struct {
	mu sync.RWMutex

	dailyActive   map[string]userSet
	weeklyActive  map[string]userSet
	monthlyActive map[string]userSet

	days map[string]*DaySummary

	badgesAwarded map[core.BadgeID]int64
	holders       map[core.BadgeID]userSet
}

func NewTracker() *Tracker {
	return &Tracker{
		dailyActive:   make(map[string]userSet),
		weeklyActive:  make(map[string]userSet),
		monthlyActive: make(map[string]userSet),
		days:          make(map[string]*DaySummary),
		badgesAwarded: make(map[core.BadgeID]int64),
		holders:       make(map[core.BadgeID]userSet),
	}
}

// OnEvent matches the engine's event handler signature.
func (t *Tracker) OnEvent(_ context.Context, e core.Event) {
	if e.UserID == "" {
		return
	}
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	day := DayKey(ts)

	t.mu.Lock()
	defer t.mu.Unlock()

	track(t.dailyActive, day, e.UserID)
	track(t.weeklyActive, WeekKey(ts), e.UserID)
	track(t.monthlyActive, MonthKey(ts), e.UserID)
	if e.ActorID != "" {
		track(t.dailyActive, day, e.ActorID)
		track(t.weeklyActive, WeekKey(ts), e.ActorID)
		track(t.monthlyActive, MonthKey(ts), e.ActorID)
	}

	d := t.day(day)
	switch e.Type {
	case core.EventStatsRecorded:
		if e.Stat == "" {
			d.Earnings += e.Delta
		} else {
			d.Tournaments[e.Stat] += int64(e.Delta)
		}
	case core.EventBadgeEarned, core.EventBadgeGranted:
		if e.Type == core.EventBadgeEarned {
			d.BadgesEarned++
		} else {
			d.BadgesGranted++
		}
		t.badgesAwarded[e.Badge]++
		track(t.holders, e.Badge, e.UserID)
	case core.EventRoleChanged:
		d.RoleChanges++
	case core.EventRoleAssignmentDenied:
		reason, _ := e.Metadata["reason"].(string)
		d.RoleDenials[reason]++
	}
}

func track[K comparable](m map[K]userSet, key K, u core.UserID) {
	s := m[key]
	if s == nil {
		s = userSet{}
		m[key] = s
	}
	s.add(u)
}

func (t *Tracker) day(key string) *DaySummary {
	d := t.days[key]
	if d == nil {
		d = &DaySummary{Day: key, Tournaments: map[core.Stat]int64{}, RoleDenials: map[string]int64{}}
		t.days[key] = d
	}
	return d
}

// Day returns a copy of the summary for a UTC day ("2006-01-02").
func (t *Tracker) Day(day string) DaySummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := DaySummary{Day: day, Tournaments: map[core.Stat]int64{}, RoleDenials: map[string]int64{}}
	if d, ok := t.days[day]; ok {
		out = *d
		out.Tournaments = make(map[core.Stat]int64, len(d.Tournaments))
		for k, v := range d.Tournaments {
			out.Tournaments[k] = v
		}
		out.RoleDenials = make(map[string]int64, len(d.RoleDenials))
		for k, v := range d.RoleDenials {
			out.RoleDenials[k] = v
		}
	}
	out.ActiveUsers = len(t.dailyActive[day])
	return out
}

func (t *Tracker) DailyActiveUsers(day string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.dailyActive[day])
}

func (t *Tracker) WeeklyActiveUsers(week string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.weeklyActive[week])
}

func (t *Tracker) MonthlyActiveUsers(month string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.monthlyActive[month])
}

// UniqueHolders counts users who earned or were granted badge.
func (t *Tracker) UniqueHolders(badge core.BadgeID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.holders[badge])
}

// TopBadges returns the most awarded badges, ties broken by id.
func (t *Tracker) TopBadges(limit int) []BadgeCount {
	t.mu.RLock()
	out := make([]BadgeCount, 0, len(t.badgesAwarded))
	for id, n := range t.badgesAwarded {
		out = append(out, BadgeCount{Badge: id, Awarded: n, Holders: len(t.holders[id])})
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Awarded != out[j].Awarded {
			return out[i].Awarded > out[j].Awarded
		}
		return out[i].Badge < out[j].Badge
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func DayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func MonthKey(t time.Time) string { return t.UTC().Format("2006-01") }
