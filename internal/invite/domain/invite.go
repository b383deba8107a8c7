// Package domain holds the invitation entity.
package domain

import (
	"strings"
	"time"

	memberdomain "tenant-access-control/internal/membership/domain"
)

// Invite is a pending or consumed offer of membership in one organization or website.
// It is keyed by (Scope, ResourceID, Email).
//
// Lifecycle: Created (pending) -> Accepted, or Created -> Deleted (revoked).
// Re-inviting a pending email overwrites the role and extends validity.
type Invite struct {
	Scope      memberdomain.Scope
	ResourceID string
	Email      string
	Role       memberdomain.Role
	IsAccepted bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// Pending reports whether the invite can still be accepted.
func (i *Invite) Pending() bool {
	return i != nil && !i.IsAccepted && i.DeletedAt == nil
}

// NormalizeEmail trims and lowercases an email so invites match case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
