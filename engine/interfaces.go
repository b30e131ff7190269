package engine

import (
	"context"

	"tourneykit/core"
)

// Storage abstracts persistence of user profiles. Reading an unknown user
// returns an empty player profile, not an error.
type Storage interface {
	GetProfile(ctx context.Context, user core.UserID) (core.Profile, error)
	IncrementStat(ctx context.Context, user core.UserID, stat core.Stat, delta int64) (newTotal int64, err error)
	AddEarnings(ctx context.Context, user core.UserID, amount float64) (newTotal float64, err error)
	GrantBadge(ctx context.Context, user core.UserID, badge core.BadgeID) error
	SetRole(ctx context.Context, user core.UserID, role core.Role) error
	SetEmail(ctx context.Context, user core.UserID, email string) error
}
