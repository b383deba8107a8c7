package repository

import (
	"context"

	"tenant-access-control/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	// GetByID returns the live organization for id, or nil.
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	// ListByMember returns the live organizations in which userID holds a membership.
	ListByMember(ctx context.Context, userID string) ([]*domain.Organization, error)
	// Create fails with apperr.ErrConflict when the name is taken.
	Create(ctx context.Context, o *domain.Organization) error
	Update(ctx context.Context, o *domain.Organization) error
	SoftDelete(ctx context.Context, id string) error
}
