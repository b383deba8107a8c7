// Package audit records who changed tenancy state: one row per successful
// mutating RPC. Writes are best-effort and never fail the request.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tenant-access-control/internal/audit/domain"
	auditrepo "tenant-access-control/internal/audit/repository"
)

// IPExtractor returns the client IP from the request context (e.g. gRPC metadata or peer).
type IPExtractor func(context.Context) string

// Event is one audit record before persistence.
type Event struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Metadata   string
}

// Logger persists audit events.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         zerolog.Logger
}

// NewLogger returns a Logger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log zerolog.Logger) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log}
}

// LogEvent writes one audit log entry. Failures are logged, not returned.
func (l *Logger) LogEvent(ctx context.Context, ev Event) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		UserID:     ev.UserID,
		Action:     ev.Action,
		Resource:   ev.Resource,
		ResourceID: ev.ResourceID,
		IP:         ip,
		Metadata:   ev.Metadata,
		CreatedAt:  time.Now().UTC(),
	}
	// Detached from the request so a cancelled RPC still gets its row.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn().Err(err).
			Str("action", ev.Action).
			Str("resource", ev.Resource).
			Msg("audit: failed to log event")
	}
}
