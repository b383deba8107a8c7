package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"tenant-access-control/internal/audit"
	auditdomain "tenant-access-control/internal/audit/domain"
	healthcheck "tenant-access-control/internal/health"
	identityservice "tenant-access-control/internal/identity/service"
	inviteservice "tenant-access-control/internal/invite/service"
	memberdomain "tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/notification"
	"tenant-access-control/internal/platform/rbac"
	"tenant-access-control/internal/security"
	tenancyhandler "tenant-access-control/internal/tenancy/handler"
	tenancyservice "tenant-access-control/internal/tenancy/service"
	"tenant-access-control/internal/testutil/memstore"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	services []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.services = append(m.services, desc.ServiceName)
}

func TestRegisterServices(t *testing.T) {
	reg := &mockServiceRegistrar{}
	RegisterServices(reg, Deps{Tenancy: &tenancyhandler.Server{}, Health: health.NewServer()})
	assert.Equal(t, []string{tenancyhandler.ServiceName, "grpc.health.v1.Health"}, reg.services)
}

func TestRegisterServices_HealthOptional(t *testing.T) {
	reg := &mockServiceRegistrar{}
	RegisterServices(reg, Deps{Tenancy: &tenancyhandler.Server{}})
	assert.Equal(t, []string{tenancyhandler.ServiceName}, reg.services)
}

func TestPublicMethods(t *testing.T) {
	public := PublicMethods()
	assert.True(t, public[tenancyhandler.FullMethod("Signup")])
	assert.True(t, public[healthpb.Health_Check_FullMethodName])
	assert.False(t, public[tenancyhandler.FullMethod("CreateWebsite")])
}

type mailbox struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (m *mailbox) Notify(_ context.Context, msg notification.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mailbox) token(t *testing.T, kind notification.Kind, recipient string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].Kind == kind && m.msgs[i].Recipient == recipient {
			return m.msgs[i].Token
		}
	}
	t.Fatalf("no %s mail for %s", kind, recipient)
	return ""
}

type auditTrail struct {
	mu      sync.Mutex
	entries []*auditdomain.AuditLog
}

func (a *auditTrail) Create(_ context.Context, e *auditdomain.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *auditTrail) ListByResource(_ context.Context, resource, resourceID string, _ int) ([]*auditdomain.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*auditdomain.AuditLog
	for i := len(a.entries) - 1; i >= 0; i-- {
		if e := a.entries[i]; e.Resource == resource && e.ResourceID == resourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

type testEnv struct {
	client *tenancyhandler.Client
	conn   *grpc.ClientConn
	mail   *mailbox
	disp   *notification.Dispatcher
}

func startServer(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.New()
	trail := &auditTrail{}
	mail := &mailbox{}
	disp := notification.NewDispatcher(mail, zerolog.Nop())
	codec := security.NewTestCodec()
	orgMembers := store.Memberships(memberdomain.ScopeOrganization)
	webMembers := store.Memberships(memberdomain.ScopeWebsite)

	tenancy := tenancyhandler.NewServer(tenancyhandler.Deps{
		Accounts: identityservice.NewAccountService(identityservice.Deps{
			Users: store.Users(), Orgs: store.Organizations(), OrgMembers: orgMembers,
			Tx: store, Hasher: security.NewHasher(4), Codec: codec, Notifications: disp, Log: zerolog.Nop(),
		}),
		Tenancy: tenancyservice.NewTenancyService(tenancyservice.Deps{
			Orgs: store.Organizations(), Websites: store.Websites(),
			OrgMembers: orgMembers, WebsiteMembers: webMembers,
			Users: store.Users(), Tx: store, Log: zerolog.Nop(),
		}),
		Invites: inviteservice.NewService(inviteservice.Deps{
			OrgInvites: store.Invites(memberdomain.ScopeOrganization), WebsiteInvites: store.Invites(memberdomain.ScopeWebsite),
			OrgMembers: orgMembers, WebsiteMembers: webMembers, Users: store.Users(),
			Tx: store, Codec: codec, Notifications: disp, Log: zerolog.Nop(),
		}),
		Authz: rbac.NewResolver(orgMembers, webMembers, store.Websites()),
		Audit: trail,
	})

	hs := health.NewServer()
	require.NoError(t, healthcheck.NewChecker(nil, hs, tenancyhandler.ServiceName).Check(context.Background()))
	srv := NewGRPCServer(Options{
		Verifier: codec,
		Log:      zerolog.Nop(),
		Audit:    audit.NewLogger(trail, nil, zerolog.Nop()),
	}, Deps{Tenancy: tenancy, Health: hs})

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeGRPC(ctx, srv, lis, hs) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		require.NoError(t, <-done)
	})
	return &testEnv{client: tenancyhandler.NewClient(conn), conn: conn, mail: mail, disp: disp}
}

func bearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

type session struct {
	ctx   context.Context
	orgID string
}

func (e *testEnv) signup(t *testing.T, username, email string) session {
	t.Helper()
	ctx := context.Background()
	res, err := e.client.Call(ctx, "Signup", map[string]any{
		"username": username, "email": email, "password": "correct-horse",
	})
	require.NoError(t, err)
	e.disp.Wait()

	verified, err := e.client.Call(ctx, "VerifyEmail", map[string]any{
		"token": e.mail.token(t, notification.KindVerification, email),
	})
	require.NoError(t, err)
	org := res["organization"].(map[string]any)
	return session{ctx: bearer(ctx, verified["token"].(string)), orgID: org["id"].(string)}
}

// U1 signs up and owns O1, creates W1 and invites bob as org member. Bob
// signs up, accepts, and is denied an admin-only website check.
func TestEndToEnd_InviteAcceptDeny(t *testing.T) {
	env := startServer(t)
	u1 := env.signup(t, "u1", "u1@example.com")

	w1, err := env.client.Call(u1.ctx, "CreateWebsite", map[string]any{
		"organization_id": u1.orgID, "name": "w1", "url": "https://w1.example.com",
	})
	require.NoError(t, err)

	_, err = env.client.Call(u1.ctx, "InviteToOrganization", map[string]any{
		"organization_id": u1.orgID, "email": "bob@example.com", "role": "member",
	})
	require.NoError(t, err)
	env.disp.Wait()
	inviteToken := env.mail.token(t, notification.KindOrgInvite, "bob@example.com")

	bob := env.signup(t, "bob", "bob@example.com")
	m, err := env.client.Call(context.Background(), "AcceptOrganizationInvite", map[string]any{"token": inviteToken})
	require.NoError(t, err)
	assert.Equal(t, u1.orgID, m["resource_id"])
	assert.Equal(t, "member", m["role"])

	_, err = env.client.Call(bob.ctx, "CheckAccess", map[string]any{
		"website_id":        w1["id"],
		"allowed_org_roles": []any{"admin"},
		"allowed_web_roles": []any{"admin"},
	})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	// The invite is consumed.
	_, err = env.client.Call(context.Background(), "AcceptOrganizationInvite", map[string]any{"token": inviteToken})
	assert.Equal(t, codes.NotFound, status.Code(err))

	trail, err := env.client.Call(u1.ctx, "ListAuditLogs", map[string]any{"scope": "organization", "resource_id": u1.orgID})
	require.NoError(t, err)
	var actions []string
	for _, e := range trail["entries"].([]any) {
		actions = append(actions, e.(map[string]any)["action"].(string))
	}
	assert.Equal(t, []string{"invite_accepted", "invite_issued"}, actions)

	_, err = env.client.Call(bob.ctx, "ListAuditLogs", map[string]any{"scope": "organization", "resource_id": u1.orgID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestAuthRequired(t *testing.T) {
	env := startServer(t)
	_, err := env.client.Call(context.Background(), "ListOrganizations", map[string]any{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = env.client.Call(bearer(context.Background(), "garbage"), "ListOrganizations", map[string]any{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestSignin_InvalidCredentials(t *testing.T) {
	env := startServer(t)
	env.signup(t, "alice", "alice@example.com")
	_, err := env.client.Call(context.Background(), "Signin", map[string]any{
		"email": "alice@example.com", "password": "wrong-password",
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	res, err := env.client.Call(context.Background(), "Signin", map[string]any{
		"email": "alice@example.com", "password": "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res["token"])
}

func TestHealthServing(t *testing.T) {
	env := startServer(t)
	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{
		Service: tenancyhandler.ServiceName,
	})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestOpsRouter(t *testing.T) {
	router := NewOpsRouter(healthcheck.NewChecker(nil, nil, tenancyhandler.ServiceName))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
