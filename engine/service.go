package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/mail"
	"strings"
	"sync"

	"tourneykit/authz"
	"tourneykit/badges"
	"tourneykit/core"
	"tourneykit/metrics"
)

var (
	// ErrRoleAssignmentDenied wraps every server-side role denial.
	ErrRoleAssignmentDenied = errors.New("role assignment denied")
	ErrUnknownStat          = errors.New("unknown stat")
	ErrInvalidDelta         = errors.New("delta must be positive")
	ErrInvalidAmount        = errors.New("amount must be a positive finite number")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrNotSuperAdmin        = errors.New("email is not the configured super-admin")
	// ErrReservedEmail is returned when anyone but the bootstrapped owner
	// registers the super-admin email.
	ErrReservedEmail  = errors.New("email is reserved for the super-admin")
	ErrIdentityDenied = errors.New("only the user or an admin may change this identity")
)

// ProfileView is a stored profile plus its derived badges. BadgeIDs holds
// every id in the derived set; Badges holds metadata for the ids the catalog
// knows.
type ProfileView struct {
	core.Profile
	BadgeIDs []core.BadgeID   `json:"badge_ids"`
	Badges   []core.BadgeInfo `json:"badges"`
}

// Evaluation is the result of a stateless derivation.
type Evaluation struct {
	BadgeIDs []core.BadgeID   `json:"badge_ids"`
	Badges   []core.BadgeInfo `json:"badges"`
}

// Update reports a counter change and the badges it unlocked.
type Update struct {
	Total  float64        `json:"total"`
	Earned []core.BadgeID `json:"earned,omitempty"`
}

// Service wires storage, the event bus and both rule engines into the
// profile API.
type Service struct {
	storage Storage
	bus     *EventBus
	catalog *badges.Catalog
	authz   *authz.Authorizer
	metrics metrics.Metrics
	log     *slog.Logger

	mu    sync.RWMutex
	owner core.UserID // set by Bootstrap
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

func WithMetrics(m metrics.Metrics) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(storage Storage, bus *EventBus, catalog *badges.Catalog, authorizer *authz.Authorizer, opts ...ServiceOption) *Service {
	if storage == nil || bus == nil || catalog == nil || authorizer == nil {
		panic("NewService requires non-nil storage, bus, catalog, and authorizer")
	}
	s := &Service{
		storage: storage,
		bus:     bus,
		catalog: catalog,
		authz:   authorizer,
		metrics: metrics.Noop{},
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Catalog() *badges.Catalog      { return s.catalog }
func (s *Service) Authorizer() *authz.Authorizer { return s.authz }

// Subscribe convenience method.
func (s *Service) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *Service) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *Service) Close() { s.bus.Close() }

// Evaluate derives badges for a caller-supplied record without touching
// storage.
func (s *Service) Evaluate(stats *core.StatRecord) Evaluation {
	s.metrics.IncDerivations()
	set := s.catalog.Derive(stats)
	ids := set.IDs()
	return Evaluation{BadgeIDs: ids, Badges: s.catalog.Resolve(ids)}
}

// Profile returns the stored profile of user with its derived badges.
func (s *Service) Profile(ctx context.Context, user core.UserID) (ProfileView, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return ProfileView{}, err
	}
	p, err := s.storage.GetProfile(ctx, normalized)
	if err != nil {
		return ProfileView{}, fmt.Errorf("load profile: %w", err)
	}
	view, _ := s.view(p)
	return view, nil
}

func (s *Service) view(p core.Profile) (ProfileView, badges.Set) {
	s.metrics.IncDerivations()
	set := s.catalog.Derive(&p.Stats)
	ids := set.IDs()
	return ProfileView{Profile: p, BadgeIDs: ids, Badges: s.catalog.Resolve(ids)}, set
}

// RegisterUser records the identity email of user. The super-admin email
// is accepted only for the user made owner by Bootstrap.
func (s *Service) RegisterUser(ctx context.Context, user core.UserID, email string) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	addr, err := parseEmail(email)
	if err != nil {
		return err
	}
	if s.authz.IsSuperAdmin(addr) && normalized != s.superAdminUser() {
		s.log.Warn("super-admin email rejected", "user", normalized)
		return ErrReservedEmail
	}
	return s.setEmail(ctx, normalized, addr)
}

// SetIdentity is RegisterUser on behalf of actor, who must be the user or
// a stored admin.
func (s *Service) SetIdentity(ctx context.Context, actorID, user core.UserID, email string) error {
	actor, target, err := s.loadPair(ctx, actorID, user)
	if err != nil {
		return err
	}
	if actor.UserID != target.UserID && actor.Role != core.RoleAdmin {
		s.log.Warn("identity change denied", "actor", actor.UserID, "target", target.UserID)
		return ErrIdentityDenied
	}
	return s.RegisterUser(ctx, target.UserID, email)
}

func (s *Service) superAdminUser() core.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

func (s *Service) setEmail(ctx context.Context, user core.UserID, addr string) error {
	if err := s.storage.SetEmail(ctx, user, addr); err != nil {
		return fmt.Errorf("set email: %w", err)
	}
	return nil
}

func parseEmail(email string) (string, error) {
	a, err := mail.ParseAddress(core.NormalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return a.Address, nil
}

// RecordStat increments a tournament counter and publishes badge_earned for
// every badge the change unlocked.
func (s *Service) RecordStat(ctx context.Context, user core.UserID, stat core.Stat, delta int64) (Update, error) {
	if !stat.Valid() {
		return Update{}, fmt.Errorf("%w: %q", ErrUnknownStat, stat)
	}
	if delta <= 0 {
		return Update{}, ErrInvalidDelta
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return Update{}, err
	}
	total, err := s.storage.IncrementStat(ctx, normalized, stat, delta)
	if err != nil {
		return Update{}, fmt.Errorf("increment %s: %w", stat, err)
	}
	s.bus.Publish(ctx, core.NewStatsRecorded(normalized, stat, float64(delta), float64(total)))
	earned, err := s.unlocked(ctx, normalized, func(after, before *core.StatRecord) {
		*after.Counter(stat) = total
		*before.Counter(stat) = total - delta
	})
	if err != nil {
		return Update{}, err
	}
	return Update{Total: float64(total), Earned: earned}, nil
}

// RecordEarnings adds prize money to a user's total.
func (s *Service) RecordEarnings(ctx context.Context, user core.UserID, amount float64) (Update, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return Update{}, ErrInvalidAmount
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return Update{}, err
	}
	total, err := s.storage.AddEarnings(ctx, normalized, amount)
	if err != nil {
		return Update{}, fmt.Errorf("add earnings: %w", err)
	}
	s.bus.Publish(ctx, core.NewStatsRecorded(normalized, "", amount, total))
	earned, err := s.unlocked(ctx, normalized, func(after, before *core.StatRecord) {
		after.TotalEarnings = total
		before.TotalEarnings = total - amount
	})
	if err != nil {
		return Update{}, err
	}
	return Update{Total: total, Earned: earned}, nil
}

// unlocked compares the derived set before and after a single change. Both
// sides come from one snapshot; pin sets the changed counter to the values
// the write returned.
func (s *Service) unlocked(ctx context.Context, user core.UserID, pin func(after, before *core.StatRecord)) ([]core.BadgeID, error) {
	after, err := s.storage.GetProfile(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}
	before := after.Clone()
	pin(&after.Stats, &before.Stats)
	_, prev := s.view(before)
	_, next := s.view(after)
	earned := next.Diff(prev)
	for _, id := range earned {
		s.log.Info("badge earned", "user", user, "badge", id)
		s.bus.Publish(ctx, core.NewBadgeEarned(user, id))
	}
	s.metrics.AddBadgesEarned(len(earned))
	return earned, nil
}

// GrantBadge records a badge awarded outside stat derivation.
func (s *Service) GrantBadge(ctx context.Context, user core.UserID, badge core.BadgeID) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	if err := core.ValidateBadgeID(badge); err != nil {
		return err
	}
	badge = core.BadgeID(strings.TrimSpace(string(badge)))
	if err := s.storage.GrantBadge(ctx, normalized, badge); err != nil {
		return fmt.Errorf("grant badge: %w", err)
	}
	s.metrics.IncBadgesGranted()
	s.bus.Publish(ctx, core.NewBadgeGranted(normalized, badge))
	return nil
}

// CanAssignRole evaluates a role change against the stored actor and target
// without applying it. Use it to gate controls; AssignRole re-checks.
func (s *Service) CanAssignRole(ctx context.Context, actorID, targetID core.UserID, role core.Role) (authz.Decision, error) {
	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return authz.Decision{}, err
	}
	return s.authz.Decide(authz.Actor{Role: actor.Role, Email: actor.Email}, target.Role, role), nil
}

// AssignRole applies a role change when the stored actor is allowed to make
// it. The actor's role and email always come from storage.
func (s *Service) AssignRole(ctx context.Context, actorID, targetID core.UserID, role core.Role) (authz.Decision, error) {
	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return authz.Decision{}, err
	}
	d := s.authz.Decide(authz.Actor{Role: actor.Role, Email: actor.Email}, target.Role, role)
	s.metrics.IncRoleDecision(d.Allowed, string(d.Reason))
	if !d.Allowed {
		s.log.Warn("role assignment denied",
			"actor", actor.UserID, "target", target.UserID, "requested", role, "reason", d.Reason)
		s.bus.Publish(ctx, core.NewRoleAssignmentDenied(target.UserID, actor.UserID, role, string(d.Reason)))
		return d, fmt.Errorf("%w: %s", ErrRoleAssignmentDenied, d.Reason)
	}
	if err := s.storage.SetRole(ctx, target.UserID, role); err != nil {
		return authz.Decision{}, fmt.Errorf("set role: %w", err)
	}
	s.log.Info("role changed", "actor", actor.UserID, "target", target.UserID, "from", target.Role, "to", role)
	s.bus.Publish(ctx, core.NewRoleChanged(target.UserID, actor.UserID, role))
	return d, nil
}

func (s *Service) loadPair(ctx context.Context, actorID, targetID core.UserID) (core.Profile, core.Profile, error) {
	a, err := core.NormalizeUserID(actorID)
	if err != nil {
		return core.Profile{}, core.Profile{}, fmt.Errorf("actor: %w", err)
	}
	t, err := core.NormalizeUserID(targetID)
	if err != nil {
		return core.Profile{}, core.Profile{}, fmt.Errorf("target: %w", err)
	}
	actor, err := s.storage.GetProfile(ctx, a)
	if err != nil {
		return core.Profile{}, core.Profile{}, fmt.Errorf("load actor: %w", err)
	}
	target, err := s.storage.GetProfile(ctx, t)
	if err != nil {
		return core.Profile{}, core.Profile{}, fmt.Errorf("load target: %w", err)
	}
	return actor, target, nil
}

// Bootstrap makes user the super-admin: it records email and grants admin.
// email must match the authorizer's principal.
func (s *Service) Bootstrap(ctx context.Context, user core.UserID, email string) error {
	if !s.authz.IsSuperAdmin(email) {
		return ErrNotSuperAdmin
	}
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	addr, err := parseEmail(email)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.owner = normalized
	s.mu.Unlock()
	if err := s.setEmail(ctx, normalized, addr); err != nil {
		return err
	}
	if err := s.storage.SetRole(ctx, normalized, core.RoleAdmin); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	s.bus.Publish(ctx, core.NewRoleChanged(normalized, normalized, core.RoleAdmin))
	return nil
}
