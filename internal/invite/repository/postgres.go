package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenant-access-control/internal/db"
	"tenant-access-control/internal/invite/domain"
	memberdomain "tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/platform/apperr"
)

type table struct {
	name   string
	column string
}

var tables = map[memberdomain.Scope]table{
	memberdomain.ScopeOrganization: {name: "organization_invites", column: "organization_id"},
	memberdomain.ScopeWebsite:      {name: "website_invites", column: "website_id"},
}

// PostgresRepository stores invites of a single scope.
type PostgresRepository struct {
	db    *sql.DB
	scope memberdomain.Scope
	t     table
}

// NewPostgresRepository returns an invite repository for scope. It panics on an unknown scope.
func NewPostgresRepository(sqlDB *sql.DB, scope memberdomain.Scope) *PostgresRepository {
	t, ok := tables[scope]
	if !ok {
		panic(fmt.Sprintf("invite: unknown scope %q", scope))
	}
	return &PostgresRepository{db: sqlDB, scope: scope, t: t}
}

func (r *PostgresRepository) Scope() memberdomain.Scope { return r.scope }

func (r *PostgresRepository) columns() string {
	return r.t.column + ", email, role, is_accepted, created_at, updated_at, deleted_at"
}

// Get returns the live invite for resourceID and email, or nil if not found.
func (r *PostgresRepository) Get(ctx context.Context, resourceID, email string) (*domain.Invite, error) {
	q := "SELECT " + r.columns() + " FROM " + r.t.name + " WHERE " + r.t.column + " = $1 AND email = $2 AND deleted_at IS NULL"
	inv, err := r.scan(db.Conn(ctx, r.db).QueryRowContext(ctx, q, resourceID, domain.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage(err)
	}
	return inv, nil
}

// Upsert inserts the invite or refreshes a pending or revoked one in a single
// statement. An accepted row is left untouched and reported as a duplicate.
// The returned flag is false only when a new row was inserted (xmax = 0).
func (r *PostgresRepository) Upsert(ctx context.Context, resourceID, email string, role memberdomain.Role) (*domain.Invite, bool, error) {
	if !role.Valid() {
		return nil, false, apperr.InvalidArgument("unknown role %q", role)
	}
	now := time.Now().UTC()
	q := "INSERT INTO " + r.t.name + " AS i (" + r.t.column + ", email, role, is_accepted, created_at, updated_at) " +
		"VALUES ($1, $2, $3, FALSE, $4, $4) " +
		"ON CONFLICT (" + r.t.column + ", email) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at, deleted_at = NULL " +
		"WHERE i.is_accepted = FALSE " +
		"RETURNING " + r.columns() + ", (xmax = 0) AS inserted"
	var inserted bool
	inv, err := r.scan(db.Conn(ctx, r.db).QueryRowContext(ctx, q, resourceID, domain.NormalizeEmail(email), string(role), now), &inserted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, apperr.New(apperr.ErrDuplicateInvite, apperr.ReasonInvite)
		}
		return nil, false, apperr.Storage(err)
	}
	return inv, !inserted, nil
}

// MarkAccepted sets is_accepted on a pending invite.
func (r *PostgresRepository) MarkAccepted(ctx context.Context, resourceID, email string) error {
	q := "UPDATE " + r.t.name + " SET is_accepted = TRUE, updated_at = $3 WHERE " + r.t.column +
		" = $1 AND email = $2 AND is_accepted = FALSE AND deleted_at IS NULL"
	return r.exec(ctx, q, resourceID, domain.NormalizeEmail(email), time.Now().UTC())
}

// Revoke soft-deletes a pending invite.
func (r *PostgresRepository) Revoke(ctx context.Context, resourceID, email string) error {
	q := "UPDATE " + r.t.name + " SET deleted_at = $3, updated_at = $3 WHERE " + r.t.column +
		" = $1 AND email = $2 AND is_accepted = FALSE AND deleted_at IS NULL"
	return r.exec(ctx, q, resourceID, domain.NormalizeEmail(email), time.Now().UTC())
}

// ListPending returns the pending invites on resourceID, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context, resourceID string) ([]*domain.Invite, error) {
	q := "SELECT " + r.columns() + " FROM " + r.t.name + " WHERE " + r.t.column +
		" = $1 AND is_accepted = FALSE AND deleted_at IS NULL ORDER BY created_at"
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, q, resourceID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	var out []*domain.Invite
	for rows.Next() {
		inv, err := r.scan(rows)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(err)
	}
	return out, nil
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
		return apperr.NotFound(apperr.ReasonInvite)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scan(s scanner, extra ...any) (*domain.Invite, error) {
	var (
		inv     domain.Invite
		role    string
		deleted sql.NullTime
	)
	dest := append([]any{&inv.ResourceID, &inv.Email, &role, &inv.IsAccepted, &inv.CreatedAt, &inv.UpdatedAt, &deleted}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	inv.Scope = r.scope
	inv.Role = memberdomain.Role(role)
	if deleted.Valid {
		t := deleted.Time
		inv.DeletedAt = &t
	}
	return &inv, nil
}
