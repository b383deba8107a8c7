package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tenant-access-control/internal/db"
	"tenant-access-control/internal/platform/apperr"
	"tenant-access-control/internal/website/domain"
)

const websiteColumns = "w.id, w.organization_id, w.name, w.url, w.description, w.created_at, w.updated_at, w.deleted_at"

// liveJoin restricts queries to websites whose organization is live as well.
const liveJoin = " FROM websites w JOIN organizations o ON o.id = w.organization_id WHERE w.deleted_at IS NULL AND o.deleted_at IS NULL"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a website repository that uses the given db for persistence.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

// GetByID returns the website for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Website, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, "SELECT "+websiteColumns+liveJoin+" AND w.id = $1", id)
	w, err := scanWebsite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage(err)
	}
	return w, nil
}

// ListByOrganization returns the live websites of orgID ordered by name.
func (r *PostgresRepository) ListByOrganization(ctx context.Context, orgID string) ([]*domain.Website, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx,
		"SELECT "+websiteColumns+liveJoin+" AND w.organization_id = $1 ORDER BY w.name", orgID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	var out []*domain.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		out = append(out, w)
	}
	return out, apperr.Storage(rows.Err())
}

// Create persists the website. The website must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, w *domain.Website) error {
	if err := w.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO websites (id, organization_id, name, url, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.OrganizationID, w.Name, w.URL, w.Description, w.CreatedAt, w.UpdatedAt)
	if err := conflict(err); err != nil {
		return err
	}
	return apperr.Storage(err)
}

// Update writes name, URL and description of a live website.
func (r *PostgresRepository) Update(ctx context.Context, w *domain.Website) error {
	if err := w.Validate(); err != nil {
		return apperr.InvalidArgument("%s", err.Error())
	}
	w.UpdatedAt = time.Now().UTC()
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE websites SET name = $2, url = $3, description = $4, updated_at = $5 WHERE id = $1 AND deleted_at IS NULL",
		w.ID, w.Name, w.URL, w.Description, w.UpdatedAt)
	if err := conflict(err); err != nil {
		return err
	}
	return affected(res, err)
}

// SoftDelete marks the website deleted.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE websites SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL", id, now)
	return affected(res, err)
}

func conflict(err error) error {
	switch {
	case db.IsUniqueViolation(err, "websites_name_key"):
		return apperr.Conflict("website_name")
	case db.IsUniqueViolation(err, "websites_url_key"):
		return apperr.Conflict("website_url")
	case db.IsUniqueViolation(err, ""):
		return apperr.Conflict("website")
	}
	return nil
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
		return apperr.NotFound("website")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWebsite(s scanner) (*domain.Website, error) {
	var (
		w         domain.Website
		deletedAt sql.NullTime
	)
	if err := s.Scan(&w.ID, &w.OrganizationID, &w.Name, &w.URL, &w.Description, &w.CreatedAt, &w.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		w.DeletedAt = &deletedAt.Time
	}
	return &w, nil
}
