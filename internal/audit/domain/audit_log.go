package domain

import "time"

// AuditLog records one successful change to tenancy state.
type AuditLog struct {
	ID         string
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	IP         string
	Metadata   string
	CreatedAt  time.Time
}
