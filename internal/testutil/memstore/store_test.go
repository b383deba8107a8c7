package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-access-control/internal/db"
	inviterepo "tenant-access-control/internal/invite/repository"
	memberdomain "tenant-access-control/internal/membership/domain"
	memberrepo "tenant-access-control/internal/membership/repository"
	orgdomain "tenant-access-control/internal/organization/domain"
	orgrepo "tenant-access-control/internal/organization/repository"
	"tenant-access-control/internal/platform/apperr"
	userrepo "tenant-access-control/internal/user/repository"
	webdomain "tenant-access-control/internal/website/domain"
	webrepo "tenant-access-control/internal/website/repository"
)

var (
	_ db.TxRunner           = (*Store)(nil)
	_ userrepo.Repository   = (*Users)(nil)
	_ orgrepo.Repository    = (*Organizations)(nil)
	_ webrepo.Repository    = (*Websites)(nil)
	_ memberrepo.Repository = (*Memberships)(nil)
	_ inviterepo.Repository = (*Invites)(nil)
)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	orgs := s.Organizations()
	members := s.Memberships(memberdomain.ScopeOrganization)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, orgs.Create(ctx, &orgdomain.Organization{ID: "o1", Name: "acme"}))
		if _, err := members.Add(ctx, "o1", "u1", memberdomain.RoleAdmin); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	o, err := orgs.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Nil(t, o)
	m, err := members.Get(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestWithinTx_Commits(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context) error {
		return s.Organizations().Create(ctx, &orgdomain.Organization{ID: "o1", Name: "acme"})
	}))
	o, err := s.Organizations().GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func TestFail(t *testing.T) {
	s := New()
	ctx := context.Background()
	members := s.Memberships(memberdomain.ScopeWebsite)
	s.Fail("membership.website.get", apperr.Storage(errors.New("down")))

	_, err := members.Get(ctx, "u1", "w1")
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.Equal(t, 1, s.Calls("membership.website.get"))

	s.Fail("membership.website.get", nil)
	_, err = members.Get(ctx, "u1", "w1")
	assert.NoError(t, err)
}

func TestMemberships_ConcurrentAddSinglePair(t *testing.T) {
	s := New()
	members := s.Memberships(memberdomain.ScopeOrganization)
	const n = 32

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dups int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := members.Add(context.Background(), "o1", "u1", memberdomain.RoleMember)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrDuplicateMembership):
				dups++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dups)

	list, err := members.ListByResource(context.Background(), "o1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemberships_SoftDeletedResourceIsInvisible(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Organizations().Create(ctx, &orgdomain.Organization{ID: "o1", Name: "acme"}))
	members := s.Memberships(memberdomain.ScopeOrganization)
	_, err := members.Add(ctx, "o1", "u1", memberdomain.RoleAdmin)
	require.NoError(t, err)

	require.NoError(t, s.Organizations().SoftDelete(ctx, "o1"))
	m, err := members.Get(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMemberships_WebsiteHiddenWhenOrganizationDeleted(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Organizations().Create(ctx, &orgdomain.Organization{ID: "o1", Name: "acme"}))
	require.NoError(t, s.Websites().Create(ctx, &webdomain.Website{ID: "w1", OrganizationID: "o1", Name: "shop", URL: "https://shop.example.com"}))
	members := s.Memberships(memberdomain.ScopeWebsite)
	_, err := members.Add(ctx, "w1", "u1", memberdomain.RoleAdmin)
	require.NoError(t, err)

	require.NoError(t, s.Organizations().SoftDelete(ctx, "o1"))
	m, err := members.Get(ctx, "u1", "w1")
	require.NoError(t, err)
	assert.Nil(t, m)
	list, err := members.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInvites_AcceptedCannotBeReissued(t *testing.T) {
	s := New()
	ctx := context.Background()
	invites := s.Invites(memberdomain.ScopeOrganization)

	_, reissued, err := invites.Upsert(ctx, "o1", "Bob@example.com", memberdomain.RoleMember)
	require.NoError(t, err)
	assert.False(t, reissued)
	_, reissued, err = invites.Upsert(ctx, "o1", "bob@example.com", memberdomain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, reissued)

	require.NoError(t, invites.MarkAccepted(ctx, "o1", "bob@example.com"))
	_, _, err = invites.Upsert(ctx, "o1", "bob@example.com", memberdomain.RoleAdmin)
	assert.ErrorIs(t, err, apperr.ErrDuplicateInvite)
	assert.ErrorIs(t, invites.MarkAccepted(ctx, "o1", "bob@example.com"), apperr.ErrNotFound)
}
