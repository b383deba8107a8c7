package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenant-access-control/internal/db"
	"tenant-access-control/internal/platform/apperr"
	"tenant-access-control/internal/user/domain"
)

const userColumns = "id, username, email, salt, password_hash, is_verified, verified_at, verification_token, created_at, updated_at, deleted_at"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

// GetByID returns the live user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.one(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1 AND deleted_at IS NULL", id)
}

// GetByEmail returns the live user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.one(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1 AND deleted_at IS NULL", email)
}

// GetAnyByEmail returns the user with the given email including soft-deleted ones, or nil if not found.
func (r *PostgresRepository) GetAnyByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.one(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO users (id, username, email, salt, password_hash, is_verified, verification_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Username, u.Email, u.Salt, u.PasswordHash, u.IsVerified, u.VerificationToken, u.CreatedAt, u.UpdatedAt)
	return writeErr(err)
}

// Update rewrites username, email, credentials and verification state of a live user.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	var verifiedAt sql.NullTime
	if u.VerifiedAt != nil {
		verifiedAt = sql.NullTime{Time: *u.VerifiedAt, Valid: true}
	}
	err := r.exec(ctx,
		`UPDATE users SET username = $2, email = $3, salt = $4, password_hash = $5, is_verified = $6,
		 verified_at = $7, verification_token = $8, updated_at = $9
		 WHERE id = $1 AND deleted_at IS NULL`,
		u.ID, u.Username, u.Email, u.Salt, u.PasswordHash, u.IsVerified, verifiedAt, u.VerificationToken, u.UpdatedAt)
	return writeErr(err)
}

// writeErr maps unique violations on users to apperr.ErrConflict.
func writeErr(err error) error {
	switch {
	case db.IsUniqueViolation(err, "users_username_key"):
		return apperr.Conflict("username")
	case db.IsUniqueViolation(err, "users_email_key"):
		return apperr.Conflict("email")
	case db.IsUniqueViolation(err, ""):
		return apperr.Conflict("user")
	}
	return apperr.Storage(err)
}

// SetVerificationToken stores the hash of the pending verification token.
func (r *PostgresRepository) SetVerificationToken(ctx context.Context, userID, tokenHash string) error {
	return r.exec(ctx, "UPDATE users SET verification_token = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL",
		userID, tokenHash, time.Now().UTC())
}

// MarkVerified flags the user verified and clears the pending token.
func (r *PostgresRepository) MarkVerified(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	return r.exec(ctx, "UPDATE users SET is_verified = TRUE, verified_at = $2, verification_token = '', updated_at = $2 WHERE id = $1 AND deleted_at IS NULL",
		userID, now)
}

// SoftDelete marks the user deleted. Deleted users no longer resolve through GetByID or GetByEmail.
func (r *PostgresRepository) SoftDelete(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	return r.exec(ctx, "UPDATE users SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL", userID, now)
}

func (r *PostgresRepository) exec(ctx context.Context, q string, args ...any) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		return apperr.Storage(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(err)
	}
	if n == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *PostgresRepository) one(ctx context.Context, q string, arg string) (*domain.User, error) {
	var (
		u          domain.User
		verifiedAt sql.NullTime
		deletedAt  sql.NullTime
	)
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.Salt, &u.PasswordHash, &u.IsVerified,
		&verifiedAt, &u.VerificationToken, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage(err)
	}
	if verifiedAt.Valid {
		u.VerifiedAt = &verifiedAt.Time
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}
