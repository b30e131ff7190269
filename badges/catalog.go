// Package badges derives achievement badges from cumulative tournament stats.
//
// The rule table is data: a Catalog is an ordered list of core.BadgeRule
// values, and new badges are added by registering rules rather than by
// changing the derivation code.
package badges

import (
	"fmt"

	"tourneykit/core"
)

// Catalog is an immutable, ordered badge rule table. It is safe for
// concurrent use.
type Catalog struct {
	rules []core.BadgeRule
	index map[core.BadgeID]int
}

// NewCatalog builds a catalog from rules in evaluation order. Rule ids must
// be valid and unique and every rule needs a predicate.
func NewCatalog(rules ...core.BadgeRule) (*Catalog, error) {
	c := &Catalog{
		rules: make([]core.BadgeRule, 0, len(rules)),
		index: make(map[core.BadgeID]int, len(rules)),
	}
	for _, r := range rules {
		if err := core.ValidateBadgeID(r.Info.ID); err != nil {
			return nil, fmt.Errorf("badge %q: %w", r.Info.ID, err)
		}
		if r.Eligible == nil {
			return nil, fmt.Errorf("badge %q: missing predicate", r.Info.ID)
		}
		if _, dup := c.index[r.Info.ID]; dup {
			return nil, fmt.Errorf("badge %q: duplicate id", r.Info.ID)
		}
		c.index[r.Info.ID] = len(c.rules)
		c.rules = append(c.rules, r)
	}
	return c, nil
}

// MustCatalog is NewCatalog that panics on error, for package-level tables.
func MustCatalog(rules ...core.BadgeRule) *Catalog {
	c, err := NewCatalog(rules...)
	if err != nil {
		panic(err)
	}
	return c
}

// Builder accumulates rules for a Catalog.
type Builder struct {
	rules []core.BadgeRule
}

// NewBuilder starts a builder seeded with the given rules.
func NewBuilder(rules ...core.BadgeRule) *Builder {
	return &Builder{rules: append([]core.BadgeRule(nil), rules...)}
}

// Add appends a rule.
func (b *Builder) Add(info core.BadgeInfo, eligible core.Predicate) *Builder {
	b.rules = append(b.rules, core.BadgeRule{Info: info, Eligible: eligible})
	return b
}

// Build validates and freezes the rule table.
func (b *Builder) Build() (*Catalog, error) {
	return NewCatalog(b.rules...)
}

// Lookup returns the display metadata of a badge.
func (c *Catalog) Lookup(id core.BadgeID) (core.BadgeInfo, bool) {
	i, ok := c.index[id]
	if !ok {
		return core.BadgeInfo{}, false
	}
	return c.rules[i].Info, true
}

// Resolve maps ids to metadata in the given order. Ids the catalog does not
// know are skipped; they may have been introduced server-side ahead of this
// catalog.
func (c *Catalog) Resolve(ids []core.BadgeID) []core.BadgeInfo {
	out := make([]core.BadgeInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := c.Lookup(id); ok {
			out = append(out, info)
		}
	}
	return out
}

// Badges lists all badges in catalog order.
func (c *Catalog) Badges() []core.BadgeInfo {
	out := make([]core.BadgeInfo, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Info
	}
	return out
}

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }
