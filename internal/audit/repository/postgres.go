package repository

import (
	"context"
	"database/sql"

	"tenant-access-control/internal/audit/domain"
	"tenant-access-control/internal/db"
	"tenant-access-control/internal/platform/apperr"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	uid := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource, resource_id, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, uid, a.Action, a.Resource, a.ResourceID, a.IP, meta, a.CreatedAt)
	return apperr.Storage(err)
}

// ListByResource returns up to limit entries for (resource, resourceID), newest first.
func (r *PostgresRepository) ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]*domain.AuditLog, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT id, user_id, action, resource, resource_id, ip, metadata, created_at
		 FROM audit_logs WHERE resource = $1 AND resource_id = $2
		 ORDER BY created_at DESC LIMIT $3`,
		resource, resourceID, limit)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a         domain.AuditLog
			uid, meta sql.NullString
		)
		if err := rows.Scan(&a.ID, &uid, &a.Action, &a.Resource, &a.ResourceID, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, apperr.Storage(err)
		}
		a.UserID = uid.String
		a.Metadata = meta.String
		out = append(out, &a)
	}
	return out, apperr.Storage(rows.Err())
}
