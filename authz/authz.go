// Package authz decides whether an actor may assign a role to another user.
//
// Decisions are pure functions of (actor role, actor email, requested role).
// A client may use them to gate controls; the server repeats the same check
// before any role is persisted.
package authz

import (
	"strings"

	"tourneykit/core"
)

// Reason explains a denial.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNotAdmin      Reason = "not_admin"
	ReasonNotSuperAdmin Reason = "not_super_admin"
	ReasonUnknownRole   Reason = "unknown_role"
)

// Actor is the user attempting a role change.
type Actor struct {
	Role  core.Role
	Email string
}

// Decision is the outcome of a role assignment check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// Authorizer evaluates role assignment requests. Only admins may assign
// roles and only the super-admin principal may grant admin itself.
type Authorizer struct {
	superAdmin string
}

// New returns an Authorizer whose distinguished principal is superAdminEmail.
// An empty principal means nobody can grant admin.
func New(superAdminEmail string) *Authorizer {
	return &Authorizer{superAdmin: core.NormalizeEmail(superAdminEmail)}
}

// SuperAdmin returns the normalized super-admin principal.
func (a *Authorizer) SuperAdmin() string { return a.superAdmin }

// IsSuperAdmin reports whether email identifies the super-admin principal.
func (a *Authorizer) IsSuperAdmin(email string) bool {
	return a.superAdmin != "" && strings.EqualFold(core.NormalizeEmail(email), a.superAdmin)
}

// CanAssignRole reports whether actor may move a user from targetCurrent to
// requested.
func (a *Authorizer) CanAssignRole(actor Actor, targetCurrent, requested core.Role) bool {
	return a.Decide(actor, targetCurrent, requested).Allowed
}

// Decide is CanAssignRole with the reason for a denial. Unknown actor roles
// count as player; an unknown requested role is always denied. The target's
// current role does not affect the outcome.
func (a *Authorizer) Decide(actor Actor, _ core.Role, requested core.Role) Decision {
	if actor.Role.Effective() != core.RoleAdmin {
		return Decision{Reason: ReasonNotAdmin}
	}
	if !requested.Valid() {
		return Decision{Reason: ReasonUnknownRole}
	}
	if requested == core.RoleAdmin && !a.IsSuperAdmin(actor.Email) {
		return Decision{Reason: ReasonNotSuperAdmin}
	}
	return Decision{Allowed: true}
}

// AssignableRoles lists the roles actor may grant, in core.Roles order.
func (a *Authorizer) AssignableRoles(actor Actor) []core.Role {
	var out []core.Role
	for _, r := range core.Roles {
		if a.CanAssignRole(actor, core.RolePlayer, r) {
			out = append(out, r)
		}
	}
	return out
}
