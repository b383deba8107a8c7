package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tenant-access-control/internal/db"
	"tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/platform/apperr"
)

// table describes the SQL names used for one scope. live joins the resource
// (and for websites its organization) so that soft-deleted parents hide the row.
type table struct {
	name       string
	column     string
	constraint string
	live       string
}

var tables = map[domain.Scope]table{
	domain.ScopeOrganization: {
		name:       "organization_memberships",
		column:     "organization_id",
		constraint: "organization_memberships_user_resource_key",
		live: " m JOIN organizations p ON p.id = m.organization_id" +
			" WHERE p.deleted_at IS NULL",
	},
	domain.ScopeWebsite: {
		name:       "website_memberships",
		column:     "website_id",
		constraint: "website_memberships_user_resource_key",
		live: " m JOIN websites p ON p.id = m.website_id" +
			" JOIN organizations o ON o.id = p.organization_id" +
			" WHERE p.deleted_at IS NULL AND o.deleted_at IS NULL",
	},
}

// PostgresRepository stores memberships of a single scope.
type PostgresRepository struct {
	db    *sql.DB
	scope domain.Scope
	t     table
}

// NewPostgresRepository returns a membership repository for scope that uses the given db for persistence.
// It panics on an unknown scope.
func NewPostgresRepository(sqlDB *sql.DB, scope domain.Scope) *PostgresRepository {
	t, ok := tables[scope]
	if !ok {
		panic(fmt.Sprintf("membership: unknown scope %q", scope))
	}
	return &PostgresRepository{db: sqlDB, scope: scope, t: t}
}

func (r *PostgresRepository) Scope() domain.Scope { return r.scope }

func (r *PostgresRepository) columns() string {
	return "m.id, m." + r.t.column + ", m.user_id, m.role, m.joined_at"
}

// Add inserts a membership with a fresh ID. A unique violation on (user, resource)
// is reported as apperr.ErrDuplicateMembership.
func (r *PostgresRepository) Add(ctx context.Context, resourceID, userID string, role domain.Role) (*domain.Membership, error) {
	if !role.Valid() {
		return nil, apperr.InvalidArgument("unknown role %q", role)
	}
	m := &domain.Membership{
		ID:         uuid.New().String(),
		Scope:      r.scope,
		ResourceID: resourceID,
		UserID:     userID,
		Role:       role,
		JoinedAt:   time.Now().UTC(),
	}
	q := "INSERT INTO " + r.t.name + " (id, " + r.t.column + ", user_id, role, joined_at) VALUES ($1, $2, $3, $4, $5)"
	if _, err := db.Conn(ctx, r.db).ExecContext(ctx, q, m.ID, resourceID, userID, string(role), m.JoinedAt); err != nil {
		if db.IsUniqueViolation(err, r.t.constraint) {
			return nil, apperr.Wrap(apperr.ErrDuplicateMembership, err)
		}
		return nil, apperr.Storage(err)
	}
	return m, nil
}

// Remove deletes the membership with the given ID.
func (r *PostgresRepository) Remove(ctx context.Context, id string) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, "DELETE FROM "+r.t.name+" WHERE id = $1", id)
	if err != nil {
		return apperr.Storage(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(err)
	}
	if n == 0 {
		return apperr.NotFound(string(r.scope) + "_membership")
	}
	return nil
}

// Get returns the membership for the given user and resource, or nil if not found.
// Memberships on soft-deleted resources, or on websites of a soft-deleted
// organization, are treated as absent.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, userID, resourceID string) (*domain.Membership, error) {
	q := "SELECT " + r.columns() + " FROM " + r.t.name + r.t.live +
		" AND m.user_id = $1 AND m." + r.t.column + " = $2"
	return r.one(db.Conn(ctx, r.db).QueryRowContext(ctx, q, userID, resourceID))
}

// GetByID returns the membership for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Membership, error) {
	q := "SELECT " + r.columns() + " FROM " + r.t.name + " m WHERE m.id = $1"
	return r.one(db.Conn(ctx, r.db).QueryRowContext(ctx, q, id))
}

// ListByUser returns every membership the user holds in this scope on live resources.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Membership, error) {
	q := "SELECT " + r.columns() + " FROM " + r.t.name + r.t.live + " AND m.user_id = $1 ORDER BY m.joined_at"
	return r.many(ctx, q, userID)
}

// ListByResource returns every membership on the resource.
func (r *PostgresRepository) ListByResource(ctx context.Context, resourceID string) ([]*domain.Membership, error) {
	q := "SELECT " + r.columns() + " FROM " + r.t.name + " m WHERE m." + r.t.column + " = $1 ORDER BY m.joined_at"
	return r.many(ctx, q, resourceID)
}

// UpdateRole changes the role of the user's membership in resourceID.
func (r *PostgresRepository) UpdateRole(ctx context.Context, resourceID, userID string, role domain.Role) (*domain.Membership, error) {
	if !role.Valid() {
		return nil, apperr.InvalidArgument("unknown role %q", role)
	}
	q := "UPDATE " + r.t.name + " m SET role = $3 WHERE m." + r.t.column + " = $1 AND m.user_id = $2 RETURNING " + r.columns()
	m, err := r.one(db.Conn(ctx, r.db).QueryRowContext(ctx, q, resourceID, userID, string(role)))
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.NotFound(string(r.scope) + "_membership")
	}
	return m, nil
}

func (r *PostgresRepository) one(row *sql.Row) (*domain.Membership, error) {
	m, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage(err)
	}
	return m, nil
}

func (r *PostgresRepository) many(ctx context.Context, q string, arg string) ([]*domain.Membership, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, q, arg)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	var out []*domain.Membership
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scan(s scanner) (*domain.Membership, error) {
	var (
		m    domain.Membership
		role string
	)
	if err := s.Scan(&m.ID, &m.ResourceID, &m.UserID, &role, &m.JoinedAt); err != nil {
		return nil, err
	}
	m.Scope = r.scope
	m.Role = domain.Role(role)
	return &m, nil
}
