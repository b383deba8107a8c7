package rbac

import (
	"strings"

	"tenant-access-control/internal/membership/domain"
)

// RoleSet is the set of roles an axis accepts. A nil or empty set grants nothing.
type RoleSet map[domain.Role]struct{}

// Roles returns a RoleSet holding roles.
func Roles(roles ...domain.Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Common sets.
var (
	AdminOnly = Roles(domain.RoleAdmin)
	AnyMember = Roles(domain.RoleAdmin, domain.RoleMember)
	NoRoles   RoleSet
)

// Contains reports whether r is in s.
func (s RoleSet) Contains(r domain.Role) bool {
	_, ok := s[r]
	return ok
}

// Empty reports whether s grants nothing.
func (s RoleSet) Empty() bool {
	return len(s) == 0
}

func (s RoleSet) String() string {
	parts := make([]string, 0, len(s))
	for _, r := range []domain.Role{domain.RoleAdmin, domain.RoleMember} {
		if s.Contains(r) {
			parts = append(parts, string(r))
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}
