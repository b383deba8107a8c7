package repository

import (
	"context"

	"tenant-access-control/internal/website/domain"
)

// Repository defines persistence for websites.
type Repository interface {
	// GetByID returns the website for id, or nil when it or its organization is soft-deleted.
	GetByID(ctx context.Context, id string) (*domain.Website, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*domain.Website, error)
	// Create fails with apperr.ErrConflict when the name or URL is taken.
	Create(ctx context.Context, w *domain.Website) error
	Update(ctx context.Context, w *domain.Website) error
	SoftDelete(ctx context.Context, id string) error
}
