package repository

import (
	"context"

	"tenant-access-control/internal/invite/domain"
	memberdomain "tenant-access-control/internal/membership/domain"
)

// Repository defines persistence for invites of one scope.
type Repository interface {
	Scope() memberdomain.Scope
	// Get returns the invite for (resourceID, email) including accepted ones, or nil
	// when absent or revoked.
	Get(ctx context.Context, resourceID, email string) (*domain.Invite, error)
	// Upsert creates the invite or, while it is still pending or revoked, overwrites its
	// role and re-activates it. It fails with apperr.ErrDuplicateInvite when the invite
	// was already accepted. reissued reports whether a row existed.
	Upsert(ctx context.Context, resourceID, email string, role memberdomain.Role) (inv *domain.Invite, reissued bool, err error)
	// MarkAccepted flips a pending invite to accepted. It fails with apperr.ErrNotFound
	// when no pending invite matched.
	MarkAccepted(ctx context.Context, resourceID, email string) error
	// Revoke soft-deletes a pending invite. It fails with apperr.ErrNotFound otherwise.
	Revoke(ctx context.Context, resourceID, email string) error
	ListPending(ctx context.Context, resourceID string) ([]*domain.Invite, error)
}
