package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"tenant-access-control/internal/audit/domain"
	"tenant-access-control/internal/server/interceptors"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByResource(context.Context, string, string, int) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_LogEvent(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, func(context.Context) string { return "192.168.1.1" }, zerolog.Nop())

	l.LogEvent(context.Background(), Event{UserID: "u1", Action: "create", Resource: "website", ResourceID: "w1"})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Error("ID and CreatedAt must be set")
	}
	if e.IP != "192.168.1.1" || e.UserID != "u1" || e.ResourceID != "w1" {
		t.Errorf("entry = %+v", e)
	}
}

func TestLogger_NilExtractorAndFailure(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, nil, zerolog.Nop()).LogEvent(context.Background(), Event{Action: "signup", Resource: "user"})
	if len(repo.entries) != 1 || repo.entries[0].IP != "unknown" {
		t.Fatalf("entries = %+v", repo.entries)
	}

	failing := &mockAuditRepo{createErr: errors.New("db down")}
	NewLogger(failing, nil, zerolog.Nop()).LogEvent(context.Background(), Event{Action: "x"})

	var nilLogger *Logger
	nilLogger.LogEvent(context.Background(), Event{Action: "x"})
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestUnaryInterceptor(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		ctx        context.Context
		req        map[string]any
		resp       map[string]any
		handlerErr error
		want       *domain.AuditLog
	}{
		{
			name:   "member added uses scope and resource id",
			method: "/tenancy.v1.TenancyService/AddMember",
			ctx:    interceptors.WithIdentity(context.Background(), "admin-1", "admin", "admin@example.com"),
			req:    map[string]any{"scope": "website", "resource_id": "w1", "user_id": "u2", "role": "member"},
			resp:   map[string]any{"id": "m1"},
			want:   &domain.AuditLog{UserID: "admin-1", Action: "member_added", Resource: "website", ResourceID: "w1"},
		},
		{
			name:   "create reads id from response",
			method: "/tenancy.v1.TenancyService/CreateOrganization",
			ctx:    interceptors.WithIdentity(context.Background(), "u1", "alice", "alice@example.com"),
			req:    map[string]any{"name": "acme"},
			resp:   map[string]any{"id": "o1"},
			want:   &domain.AuditLog{UserID: "u1", Action: "create", Resource: "organization", ResourceID: "o1"},
		},
		{
			name:   "accept reads membership from response",
			method: "/tenancy.v1.TenancyService/AcceptOrganizationInvite",
			ctx:    context.Background(),
			req:    map[string]any{"token": "t"},
			resp:   map[string]any{"resource_id": "o1", "user_id": "u2"},
			want:   &domain.AuditLog{UserID: "u2", Action: "invite_accepted", Resource: "organization", ResourceID: "o1"},
		},
		{
			name:   "signup reads nested user",
			method: "/tenancy.v1.TenancyService/Signup",
			ctx:    context.Background(),
			req:    map[string]any{"email": "bob@example.com"},
			resp:   map[string]any{"user": map[string]any{"id": "u3"}},
			want:   &domain.AuditLog{UserID: "u3", Action: "signup", Resource: "user", ResourceID: "u3", Metadata: "email=bob@example.com"},
		},
		{
			name:   "read-only call is skipped",
			method: "/tenancy.v1.TenancyService/ListMembers",
			ctx:    context.Background(),
			req:    map[string]any{"scope": "organization", "resource_id": "o1"},
			resp:   map[string]any{},
		},
		{
			name:       "failed call is skipped",
			method:     "/tenancy.v1.TenancyService/DeleteWebsite",
			ctx:        context.Background(),
			req:        map[string]any{"website_id": "w1"},
			handlerErr: errors.New("denied"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockAuditRepo{}
			ic := UnaryInterceptor(NewLogger(repo, nil, zerolog.Nop()))
			handler := func(context.Context, interface{}) (interface{}, error) {
				if tt.handlerErr != nil {
					return nil, tt.handlerErr
				}
				return mustStruct(t, tt.resp), nil
			}
			_, err := ic(tt.ctx, mustStruct(t, tt.req), &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			if !errors.Is(err, tt.handlerErr) {
				t.Fatalf("err = %v, want %v", err, tt.handlerErr)
			}
			if tt.want == nil {
				if len(repo.entries) != 0 {
					t.Fatalf("unexpected entries: %+v", repo.entries)
				}
				return
			}
			if len(repo.entries) != 1 {
				t.Fatalf("entries = %d, want 1", len(repo.entries))
			}
			got := repo.entries[0]
			if got.UserID != tt.want.UserID || got.Action != tt.want.Action || got.Resource != tt.want.Resource ||
				got.ResourceID != tt.want.ResourceID || got.Metadata != tt.want.Metadata {
				t.Errorf("entry = %+v, want %+v", got, tt.want)
			}
		})
	}
}
