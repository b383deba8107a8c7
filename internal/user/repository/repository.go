package repository

import (
	"context"

	"tenant-access-control/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail returns the live user with email, or nil.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetAnyByEmail returns the user with email even when soft-deleted, or nil.
	GetAnyByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create fails with apperr.ErrConflict when the username or email is taken.
	Create(ctx context.Context, u *domain.User) error
	// Update rewrites the profile, credential and verification columns of a live
	// user. It fails with apperr.ErrConflict when the username or email is taken.
	Update(ctx context.Context, u *domain.User) error
	SetVerificationToken(ctx context.Context, userID, tokenHash string) error
	MarkVerified(ctx context.Context, userID string) error
	SoftDelete(ctx context.Context, userID string) error
}
