package domain

import (
	"time"

	"tenant-access-control/internal/platform/apperr"
)

// Membership links a user to an organization or a website with a role.
type Membership struct {
	ID         string
	Scope      Scope
	ResourceID string
	UserID     string
	Role       Role
	JoinedAt   time.Time
}

// Scope names the kind of resource a membership grants access to.
type Scope string

const (
	ScopeOrganization Scope = "organization"
	ScopeWebsite      Scope = "website"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeOrganization || s == ScopeWebsite
}

// Role is the same two-valued enumeration on both scopes.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is admin or member.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// ParseRole converts a wire value to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", apperr.InvalidArgument("unknown role %q", s)
	}
	return r, nil
}
