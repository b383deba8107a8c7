package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memberdomain "tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/notification"
	"tenant-access-control/internal/platform/apperr"
	"tenant-access-control/internal/security"
	"tenant-access-control/internal/testutil/memstore"
)

type outbox struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (o *outbox) Notify(_ context.Context, msg notification.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) last(t *testing.T) notification.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	return o.msgs[len(o.msgs)-1]
}

type fixture struct {
	store *memstore.Store
	svc   *AccountService
	codec *security.Codec
	out   *outbox
	disp  *notification.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	codec := security.NewTestCodec()
	out := &outbox{}
	disp := notification.NewDispatcher(out, zerolog.Nop())
	svc := NewAccountService(Deps{
		Users:         store.Users(),
		Orgs:          store.Organizations(),
		OrgMembers:    store.Memberships(memberdomain.ScopeOrganization),
		Tx:            store,
		Hasher:        security.NewHasher(4),
		Codec:         codec,
		Notifications: disp,
		Log:           zerolog.Nop(),
	})
	return &fixture{store: store, svc: svc, codec: codec, out: out, disp: disp}
}

func (f *fixture) signup(t *testing.T, username, email string) (*SignupResult, string) {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), SignupInput{Username: username, Email: email, Password: "correct-horse"})
	require.NoError(t, err)
	f.disp.Wait()
	return res, f.out.last(t).Token
}

func TestSignup_CreatesUserOrgAndAdminMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, token := f.signup(t, "alice", "Alice@Example.com")

	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.False(t, res.User.IsVerified)
	assert.NotEmpty(t, res.User.Salt)
	assert.NotEqual(t, "correct-horse", res.User.PasswordHash)
	assert.NotEmpty(t, res.Organization.Name)

	m, err := f.store.Memberships(memberdomain.ScopeOrganization).Get(ctx, res.User.ID, res.Organization.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, memberdomain.RoleAdmin, m.Role)

	msg := f.out.last(t)
	assert.Equal(t, notification.KindVerification, msg.Kind)
	assert.Equal(t, "alice@example.com", msg.Recipient)
	claims, err := f.codec.VerifyEmailVerification(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   SignupInput
	}{
		{"short password", SignupInput{Username: "alice", Email: "a@example.com", Password: "short"}},
		{"bad email", SignupInput{Username: "alice", Email: "alice", Password: "correct-horse"}},
		{"bad username", SignupInput{Username: "a!", Email: "a@example.com", Password: "correct-horse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Signup(context.Background(), tt.in)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		})
	}
}

func TestSignup_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "alice", "alice@example.com")

	_, err := f.svc.Signup(context.Background(), SignupInput{Username: "alice", Email: "other@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "username", apperr.ReasonOf(err))

	_, err = f.svc.Signup(context.Background(), SignupInput{Username: "alice2", Email: "ALICE@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "email", apperr.ReasonOf(err))
}

func TestSignup_AtomicOnMembershipFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Fail("membership.organization.add", apperr.Storage(errors.New("down")))

	_, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, apperr.ErrStorage)

	u, err := f.store.Users().GetAnyByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, u, "user must be rolled back")
	f.disp.Wait()
	assert.Empty(t, f.out.msgs)
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	res, token := f.signup(t, "alice", "alice@example.com")

	auth, err := f.svc.VerifyEmail(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, auth.User.IsVerified)
	assert.WithinDuration(t, time.Now().Add(f.codec.TTL()), auth.ExpiresAt, 5*time.Second)

	id, err := f.codec.VerifyIdentity(auth.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id.ID)
	assert.Equal(t, "alice", id.Username)

	_, err = f.svc.VerifyEmail(context.Background(), token)
	assert.ErrorIs(t, err, apperr.ErrToken)
}

func TestVerifyEmail_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyEmail(ctx, "garbage")
	assert.ErrorIs(t, err, apperr.ErrToken)

	identity, err := f.codec.IssueIdentity("u1", "alice", "alice@example.com")
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(ctx, identity)
	assert.ErrorIs(t, err, apperr.ErrToken)

	ghost, err := f.codec.Issue(security.EmailVerificationClaims{Email: "ghost@example.com"})
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(ctx, ghost)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResendVerification_SupersedesOldToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, first := f.signup(t, "alice", "alice@example.com")

	// tokens minted in the same second with the same claims differ only by jti
	require.NoError(t, f.svc.ResendVerification(ctx, "alice@example.com"))
	f.disp.Wait()
	second := f.out.last(t).Token
	require.NotEqual(t, first, second)

	_, err := f.svc.VerifyEmail(ctx, first)
	assert.ErrorIs(t, err, apperr.ErrToken)
	_, err = f.svc.VerifyEmail(ctx, second)
	assert.NoError(t, err)

	// verified and unknown emails are silently ignored
	assert.NoError(t, f.svc.ResendVerification(ctx, "alice@example.com"))
	assert.NoError(t, f.svc.ResendVerification(ctx, "nobody@example.com"))
}

func TestSignin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, token := f.signup(t, "alice", "alice@example.com")

	_, err := f.svc.Signin(ctx, "alice@example.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, apperr.ReasonUserNotVerified, apperr.ReasonOf(err))

	_, err = f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)

	auth, err := f.svc.Signin(ctx, " ALICE@example.com ", "correct-horse")
	require.NoError(t, err)
	_, err = f.codec.VerifyIdentity(auth.Token)
	assert.NoError(t, err)

	_, err = f.svc.Signin(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = f.svc.Signin(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = f.svc.Signin(ctx, "", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, token := f.signup(t, "alice", "alice@example.com")
	_, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAccount(ctx, res.User.ID))

	_, err = f.svc.Signin(ctx, "alice@example.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, apperr.ReasonUserDeleted, apperr.ReasonOf(err))

	_, err = f.svc.CurrentUser(ctx, res.User.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteAccount(ctx, res.User.ID), apperr.ErrNotFound)
}

func TestUpdateProfile_Password(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, token := f.signup(t, "alice", "alice@example.com")
	_, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)

	u, err := f.svc.UpdateProfile(ctx, res.User.ID, ProfileInput{Password: "battery-staple"})
	require.NoError(t, err)
	assert.NotEqual(t, res.User.Salt, u.Salt)
	assert.True(t, u.IsVerified)

	_, err = f.svc.Signin(ctx, "alice@example.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = f.svc.Signin(ctx, "alice@example.com", "battery-staple")
	assert.NoError(t, err)
}

func TestUpdateProfile_EmailRequiresVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, token := f.signup(t, "alice", "alice@example.com")
	_, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)

	u, err := f.svc.UpdateProfile(ctx, res.User.ID, ProfileInput{Username: "alice2", Email: " Alice2@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "alice2", u.Username)
	assert.Equal(t, "alice2@example.com", u.Email)
	assert.False(t, u.IsVerified)
	f.disp.Wait()
	msg := f.out.last(t)
	assert.Equal(t, notification.KindVerification, msg.Kind)
	assert.Equal(t, "alice2@example.com", msg.Recipient)

	_, err = f.svc.Signin(ctx, "alice2@example.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.VerifyEmail(ctx, msg.Token)
	require.NoError(t, err)
	_, err = f.svc.Signin(ctx, "alice2@example.com", "correct-horse")
	assert.NoError(t, err)
}

func TestUpdateProfile_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.signup(t, "alice", "alice@example.com")
	f.signup(t, "bob", "bob@example.com")

	_, err := f.svc.UpdateProfile(ctx, alice.User.ID, ProfileInput{})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.svc.UpdateProfile(ctx, alice.User.ID, ProfileInput{Password: "short"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.svc.UpdateProfile(ctx, alice.User.ID, ProfileInput{Username: "bob"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.svc.UpdateProfile(ctx, alice.User.ID, ProfileInput{Email: "bob@example.com"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.svc.UpdateProfile(ctx, "ghost", ProfileInput{Username: "ghost"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	u, err := f.svc.CurrentUser(ctx, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
}
