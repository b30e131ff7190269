package core

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"
)

// UserID uniquely identifies a platform user.
type UserID string

// BadgeID is the stable identifier of an achievement badge.
type BadgeID string

// Category groups badges for presentation.
type Category string

const (
	CategoryParticipation Category = "participation"
	CategoryVictory       Category = "victory"
	CategoryOrganizing    Category = "organizing"
	CategoryEarnings      Category = "earnings"
)

// BadgeInfo is the display metadata of a badge. It is derived, never stored.
type BadgeInfo struct {
	ID          BadgeID  `json:"id"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
}

// Stat names a cumulative tournament counter.
type Stat string

const (
	StatTournamentsJoined  Stat = "tournaments_joined"
	StatTournamentsWon     Stat = "tournaments_won"
	StatTournamentsCreated Stat = "tournaments_created"
)

// Stats lists the counters in a fixed order.
var Stats = []Stat{StatTournamentsJoined, StatTournamentsWon, StatTournamentsCreated}

// Valid reports whether s is a known counter.
func (s Stat) Valid() bool {
	switch s {
	case StatTournamentsJoined, StatTournamentsWon, StatTournamentsCreated:
		return true
	}
	return false
}

// StatRecord is a read-only snapshot of a user's cumulative counters plus the
// badges granted outside of stat derivation.
type StatRecord struct {
	TournamentsJoined  int64     `json:"tournaments_joined"`
	TournamentsWon     int64     `json:"tournaments_won"`
	TournamentsCreated int64     `json:"tournaments_created"`
	TotalEarnings      float64   `json:"total_earnings"`
	ExistingBadgeIDs   []BadgeID `json:"existing_badge_ids,omitempty"`
}

// Count returns the counter named by stat, or 0 for unknown stats.
func (r StatRecord) Count(stat Stat) int64 {
	switch stat {
	case StatTournamentsJoined:
		return r.TournamentsJoined
	case StatTournamentsWon:
		return r.TournamentsWon
	case StatTournamentsCreated:
		return r.TournamentsCreated
	}
	return 0
}

// Counter returns a pointer to the counter named by stat, or nil.
func (r *StatRecord) Counter(stat Stat) *int64 {
	switch stat {
	case StatTournamentsJoined:
		return &r.TournamentsJoined
	case StatTournamentsWon:
		return &r.TournamentsWon
	case StatTournamentsCreated:
		return &r.TournamentsCreated
	}
	return nil
}

// Normalized returns a copy safe for evaluation: negative counters and
// negative or non-finite earnings become 0, blank or invalid badge ids are
// dropped and the remainder is deduplicated and sorted.
func (r StatRecord) Normalized() StatRecord {
	out := StatRecord{
		TournamentsJoined:  max(r.TournamentsJoined, 0),
		TournamentsWon:     max(r.TournamentsWon, 0),
		TournamentsCreated: max(r.TournamentsCreated, 0),
		TotalEarnings:      r.TotalEarnings,
	}
	if math.IsNaN(out.TotalEarnings) || math.IsInf(out.TotalEarnings, 0) || out.TotalEarnings < 0 {
		out.TotalEarnings = 0
	}
	out.ExistingBadgeIDs = NormalizeBadgeIDs(r.ExistingBadgeIDs)
	return out
}

// Profile is the stored state of a user: identity, role and counters.
type Profile struct {
	UserID  UserID     `json:"user_id"`
	Email   string     `json:"email,omitempty"`
	Role    Role       `json:"role"`
	Stats   StatRecord `json:"stats"`
	Updated time.Time  `json:"updated"`
}

// NewProfile returns an empty player profile.
func NewProfile(user UserID) Profile {
	return Profile{UserID: user, Role: RolePlayer, Updated: time.Now().UTC()}
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	cp := p
	if p.Stats.ExistingBadgeIDs != nil {
		cp.Stats.ExistingBadgeIDs = append([]BadgeID(nil), p.Stats.ExistingBadgeIDs...)
	}
	return cp
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// NormalizeEmail trims and lowercases an email address. It does not validate it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateBadgeID ensures non-empty badge id with simple charset check.
func ValidateBadgeID(b BadgeID) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return errors.New("empty badge id")
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return errors.New("invalid badge id")
	}
	return nil
}

// NormalizeBadgeIDs trims ids, drops invalid ones and returns the sorted,
// deduplicated remainder. A nil result means no valid ids.
func NormalizeBadgeIDs(ids []BadgeID) []BadgeID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[BadgeID]struct{}, len(ids))
	var out []BadgeID
	for _, id := range ids {
		id = BadgeID(strings.TrimSpace(string(id)))
		if ValidateBadgeID(id) != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
