package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tourneykit/core"
)

// Store is a concurrent in-memory Storage implementation.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu      sync.Mutex
	profile core.Profile
	badges  map[core.BadgeID]struct{}
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	rec := &userRecord{profile: core.NewProfile(user), badges: map[core.BadgeID]struct{}{}}
	actual, _ := s.users.LoadOrStore(user, rec)
	return actual.(*userRecord)
}

func (r *userRecord) touch() { r.profile.Updated = time.Now().UTC() }

func (s *Store) GetProfile(_ context.Context, user core.UserID) (core.Profile, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	p := rec.profile.Clone()
	p.Stats.ExistingBadgeIDs = sortedBadges(rec.badges)
	return p, nil
}

func (s *Store) IncrementStat(_ context.Context, user core.UserID, stat core.Stat, delta int64) (int64, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	counter := rec.profile.Stats.Counter(stat)
	if counter == nil {
		return 0, fmt.Errorf("unknown stat: %s", stat)
	}
	next, err := core.AddSafe(*counter, delta)
	if err != nil {
		return 0, err
	}
	*counter = next
	rec.touch()
	return next, nil
}

func (s *Store) AddEarnings(_ context.Context, user core.UserID, amount float64) (float64, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.profile.Stats.TotalEarnings += amount
	rec.touch()
	return rec.profile.Stats.TotalEarnings, nil
}

func (s *Store) GrantBadge(_ context.Context, user core.UserID, badge core.BadgeID) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.badges[badge] = struct{}{}
	rec.touch()
	return nil
}

func (s *Store) SetRole(_ context.Context, user core.UserID, role core.Role) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.profile.Role = role
	rec.touch()
	return nil
}

func (s *Store) SetEmail(_ context.Context, user core.UserID, email string) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.profile.Email = email
	rec.touch()
	return nil
}

func sortedBadges(set map[core.BadgeID]struct{}) []core.BadgeID {
	if len(set) == 0 {
		return nil
	}
	out := make([]core.BadgeID, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ interface {
	GetProfile(context.Context, core.UserID) (core.Profile, error)
	IncrementStat(context.Context, core.UserID, core.Stat, int64) (int64, error)
	AddEarnings(context.Context, core.UserID, float64) (float64, error)
	GrantBadge(context.Context, core.UserID, core.BadgeID) error
	SetRole(context.Context, core.UserID, core.Role) error
	SetEmail(context.Context, core.UserID, string) error
} = (*Store)(nil)
