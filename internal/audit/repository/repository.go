package repository

import (
	"context"

	"tenant-access-control/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByResource returns the newest entries for one resource first.
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]*domain.AuditLog, error)
}
