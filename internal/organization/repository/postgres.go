package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenant-access-control/internal/db"
	"tenant-access-control/internal/organization/domain"
	"tenant-access-control/internal/platform/apperr"
)

const orgColumns = "o.id, o.name, o.description, o.created_at, o.updated_at, o.deleted_at"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

// GetByID returns the organization for id, or nil if not found or soft-deleted.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+orgColumns+" FROM organizations o WHERE o.id = $1 AND o.deleted_at IS NULL", id)
	o, err := scanOrg(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage(err)
	}
	return o, nil
}

// ListByMember returns the live organizations userID belongs to, oldest membership first.
func (r *PostgresRepository) ListByMember(ctx context.Context, userID string) ([]*domain.Organization, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx,
		"SELECT "+orgColumns+" FROM organizations o JOIN organization_memberships m ON m.organization_id = o.id"+
			" WHERE m.user_id = $1 AND o.deleted_at IS NULL ORDER BY m.joined_at", userID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	var out []*domain.Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		out = append(out, o)
	}
	return out, apperr.Storage(rows.Err())
}

// Create persists the organization. The organization must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Organization) error {
	if err := o.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO organizations (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		o.ID, o.Name, o.Description, o.CreatedAt, o.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return apperr.Conflict("organization_name")
	}
	return apperr.Storage(err)
}

// Update writes name and description of a live organization.
func (r *PostgresRepository) Update(ctx context.Context, o *domain.Organization) error {
	if err := o.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	o.UpdatedAt = time.Now().UTC()
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE organizations SET name = $2, description = $3, updated_at = $4 WHERE id = $1 AND deleted_at IS NULL",
		o.ID, o.Name, o.Description, o.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return apperr.Conflict("organization_name")
	}
	return affected(res, err)
}

// SoftDelete marks the organization deleted. Its websites and memberships stop resolving.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE organizations SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL", id, now)
	return affected(res, err)
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return apperr.Storage(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(err)
	}
	if n == 0 {
		return apperr.NotFound("organization")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrg(s scanner) (*domain.Organization, error) {
	var (
		o         domain.Organization
		deletedAt sql.NullTime
	)
	if err := s.Scan(&o.ID, &o.Name, &o.Description, &o.CreatedAt, &o.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		o.DeletedAt = &deletedAt.Time
	}
	return &o, nil
}
