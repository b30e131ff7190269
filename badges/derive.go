package badges

import (
	"sort"

	"tourneykit/core"
)

// Set is a deduplicated collection of badge ids with a deterministic order:
// catalog order first, then ids unknown to the catalog in lexical order.
type Set struct {
	ids   []core.BadgeID
	index map[core.BadgeID]struct{}
}

// IDs returns the ids in order. The slice is a copy.
func (s Set) IDs() []core.BadgeID {
	return append([]core.BadgeID{}, s.ids...)
}

// Has reports membership.
func (s Set) Has(id core.BadgeID) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of badges.
func (s Set) Len() int { return len(s.ids) }

// Equal reports whether both sets hold the same ids in the same order.
func (s Set) Equal(o Set) bool {
	if len(s.ids) != len(o.ids) {
		return false
	}
	for i := range s.ids {
		if s.ids[i] != o.ids[i] {
			return false
		}
	}
	return true
}

// Diff returns the ids in s that are not in prev, in s's order.
func (s Set) Diff(prev Set) []core.BadgeID {
	var out []core.BadgeID
	for _, id := range s.ids {
		if !prev.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Derive computes the badges earned by stats: the ids of every satisfied rule
// united with the externally granted ids in stats. A nil record derives the
// empty set. Negative or non-finite values evaluate as 0.
func (c *Catalog) Derive(stats *core.StatRecord) Set {
	if stats == nil {
		return Set{index: map[core.BadgeID]struct{}{}}
	}
	r := stats.Normalized()
	return newSet(c.ordered(append(c.earned(r), r.ExistingBadgeIDs...)))
}

func (c *Catalog) earned(r core.StatRecord) []core.BadgeID {
	var ids []core.BadgeID
	for _, rule := range c.rules {
		if rule.Eligible(r) {
			ids = append(ids, rule.Info.ID)
		}
	}
	return ids
}

// ordered sorts ids into catalog order followed by unknown ids lexically.
func (c *Catalog) ordered(ids []core.BadgeID) []core.BadgeID {
	out := append([]core.BadgeID(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iKnown := c.index[out[i]]
		pj, jKnown := c.index[out[j]]
		switch {
		case iKnown && jKnown:
			return pi < pj
		case iKnown != jKnown:
			return iKnown
		}
		return out[i] < out[j]
	})
	return out
}

func newSet(ids []core.BadgeID) Set {
	s := Set{index: make(map[core.BadgeID]struct{}, len(ids))}
	for _, id := range ids {
		if _, dup := s.index[id]; dup {
			continue
		}
		s.index[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	return s
}

// Derive evaluates stats against the default catalog.
func Derive(stats *core.StatRecord) Set { return defaultCatalog.Derive(stats) }
