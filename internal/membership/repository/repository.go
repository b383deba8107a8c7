package repository

import (
	"context"

	"tenant-access-control/internal/membership/domain"
)

// Repository defines persistence for memberships of one scope.
type Repository interface {
	Scope() domain.Scope
	// Add creates a membership. It fails with apperr.ErrDuplicateMembership when
	// the (user, resource) pair already has one.
	Add(ctx context.Context, resourceID, userID string, role domain.Role) (*domain.Membership, error)
	// Remove deletes the membership with id. It fails with apperr.ErrNotFound when none matched.
	Remove(ctx context.Context, id string) error
	// Get returns the membership of userID in resourceID, or nil when there is none
	// or the resource is soft-deleted.
	Get(ctx context.Context, userID, resourceID string) (*domain.Membership, error)
	GetByID(ctx context.Context, id string) (*domain.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error)
	ListByResource(ctx context.Context, resourceID string) ([]*domain.Membership, error)
	// UpdateRole sets the role of an existing membership. It fails with apperr.ErrNotFound when absent.
	UpdateRole(ctx context.Context, resourceID, userID string, role domain.Role) (*domain.Membership, error)
}
