package core

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a platform role. The set is closed.
type Role string

const (
	RolePlayer       Role = "player"
	RoleVIP          Role = "vip"
	RolePro          Role = "pro"
	RoleModerator    Role = "moderator"
	RoleEventManager Role = "event_manager"
	RoleAdmin        Role = "admin"
)

// Roles lists every known role from least to most privileged.
var Roles = []Role{RolePlayer, RoleVIP, RolePro, RoleModerator, RoleEventManager, RoleAdmin}

// ErrUnknownRole is returned by ParseRole for values outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleVIP, RolePro, RoleModerator, RoleEventManager, RoleAdmin:
		return true
	}
	return false
}

// Effective returns r, or RolePlayer when r is not a known role.
func (r Role) Effective() Role {
	if r.Valid() {
		return r
	}
	return RolePlayer
}

// ParseRole parses a role name. Matching ignores surrounding space and case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}
