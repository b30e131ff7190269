package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventStatsRecorded        EventType = "stats_recorded"
	EventBadgeEarned          EventType = "badge_earned"
	EventBadgeGranted         EventType = "badge_granted"
	EventRoleChanged          EventType = "role_changed"
	EventRoleAssignmentDenied EventType = "role_assignment_denied"
)

// EventTypes lists every event type.
var EventTypes = []EventType{
	EventStatsRecorded,
	EventBadgeEarned,
	EventBadgeGranted,
	EventRoleChanged,
	EventRoleAssignmentDenied,
}

// Event represents an immutable domain event.
type Event struct {
	ID       string         `json:"id"`
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	UserID   UserID         `json:"user_id"`
	ActorID  UserID         `json:"actor_id,omitempty"`
	Stat     Stat           `json:"stat,omitempty"`
	Delta    float64        `json:"delta,omitempty"`
	Total    float64        `json:"total,omitempty"`
	Badge    BadgeID        `json:"badge,omitempty"`
	Role     Role           `json:"role,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func newEvent(typ EventType, user UserID) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC(), UserID: user}
}

// NewStatsRecorded reports a counter change. Earnings changes use an empty stat.
func NewStatsRecorded(user UserID, stat Stat, delta, total float64) Event {
	ev := newEvent(EventStatsRecorded, user)
	ev.Stat, ev.Delta, ev.Total = stat, delta, total
	return ev
}

func NewBadgeEarned(user UserID, badge BadgeID) Event {
	ev := newEvent(EventBadgeEarned, user)
	ev.Badge = badge
	return ev
}

func NewBadgeGranted(user UserID, badge BadgeID) Event {
	ev := newEvent(EventBadgeGranted, user)
	ev.Badge = badge
	return ev
}

func NewRoleChanged(user, actor UserID, role Role) Event {
	ev := newEvent(EventRoleChanged, user)
	ev.ActorID, ev.Role = actor, role
	return ev
}

func NewRoleAssignmentDenied(user, actor UserID, role Role, reason string) Event {
	ev := newEvent(EventRoleAssignmentDenied, user)
	ev.ActorID, ev.Role = actor, role
	ev.Metadata = map[string]any{"reason": reason}
	return ev
}
