package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tourneykit/core"
)

// Store persists every profile to a single JSON file, rewritten atomically
// on each change. Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	data map[core.UserID]core.Profile
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]core.Profile{}}
	if err := s.load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]core.Profile
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		v.UserID = core.UserID(k)
		v.Stats.ExistingBadgeIDs = core.NormalizeBadgeIDs(v.Stats.ExistingBadgeIDs)
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	raw := make(map[string]core.Profile, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) core.Profile {
	if p, ok := s.data[user]; ok {
		return p
	}
	return core.NewProfile(user)
}

// update applies fn to the user's profile and persists the result. The
// in-memory copy is only replaced once the file write succeeded.
func (s *Store) update(user core.UserID, fn func(*core.Profile) error) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.get(user).Clone()
	if err := fn(&p); err != nil {
		return core.Profile{}, err
	}
	p.Updated = time.Now().UTC()
	prev, existed := s.data[user]
	s.data[user] = p
	if err := s.persist(); err != nil {
		if existed {
			s.data[user] = prev
		} else {
			delete(s.data, user)
		}
		return core.Profile{}, err
	}
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, user core.UserID) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Clone(), nil
}

func (s *Store) IncrementStat(_ context.Context, user core.UserID, stat core.Stat, delta int64) (int64, error) {
	var total int64
	_, err := s.update(user, func(p *core.Profile) error {
		counter := p.Stats.Counter(stat)
		if counter == nil {
			return fmt.Errorf("unknown stat: %s", stat)
		}
		next, err := core.AddSafe(*counter, delta)
		if err != nil {
			return err
		}
		*counter, total = next, next
		return nil
	})
	return total, err
}

func (s *Store) AddEarnings(_ context.Context, user core.UserID, amount float64) (float64, error) {
	p, err := s.update(user, func(p *core.Profile) error {
		p.Stats.TotalEarnings += amount
		return nil
	})
	return p.Stats.TotalEarnings, err
}

func (s *Store) GrantBadge(_ context.Context, user core.UserID, badge core.BadgeID) error {
	_, err := s.update(user, func(p *core.Profile) error {
		p.Stats.ExistingBadgeIDs = core.NormalizeBadgeIDs(append(p.Stats.ExistingBadgeIDs, badge))
		return nil
	})
	return err
}

func (s *Store) SetRole(_ context.Context, user core.UserID, role core.Role) error {
	_, err := s.update(user, func(p *core.Profile) error {
		p.Role = role
		return nil
	})
	return err
}

func (s *Store) SetEmail(_ context.Context, user core.UserID, email string) error {
	_, err := s.update(user, func(p *core.Profile) error {
		p.Email = email
		return nil
	})
	return err
}
