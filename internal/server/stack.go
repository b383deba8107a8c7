package server

import (
	"database/sql"

	"github.com/rs/zerolog"

	"tenant-access-control/internal/audit"
	auditrepo "tenant-access-control/internal/audit/repository"
	"tenant-access-control/internal/config"
	"tenant-access-control/internal/db"
	identityservice "tenant-access-control/internal/identity/service"
	inviterepo "tenant-access-control/internal/invite/repository"
	inviteservice "tenant-access-control/internal/invite/service"
	memberdomain "tenant-access-control/internal/membership/domain"
	memberrepo "tenant-access-control/internal/membership/repository"
	"tenant-access-control/internal/notification"
	orgrepo "tenant-access-control/internal/organization/repository"
	"tenant-access-control/internal/platform/rbac"
	"tenant-access-control/internal/security"
	"tenant-access-control/internal/server/interceptors"
	tenancyhandler "tenant-access-control/internal/tenancy/handler"
	tenancyservice "tenant-access-control/internal/tenancy/service"
	userrepo "tenant-access-control/internal/user/repository"
	webrepo "tenant-access-control/internal/website/repository"
)

// Stack is the Postgres-backed service graph shared by the binaries.
type Stack struct {
	Codec    *security.Codec
	Accounts *identityservice.AccountService
	Tenancy  *tenancyservice.TenancyService
	Invites  *inviteservice.Service
	Authz    *rbac.Resolver
	Audit    *audit.Logger
	Handler  *tenancyhandler.Server
}

// NewStack wires repositories over sqlDB into services. notify may be nil,
// which drops outbound mail. observer may be nil.
func NewStack(sqlDB *sql.DB, cfg *config.Config, notify *notification.Dispatcher, observer rbac.Observer, log zerolog.Logger) *Stack {
	users := userrepo.NewPostgresRepository(sqlDB)
	orgs := orgrepo.NewPostgresRepository(sqlDB)
	sites := webrepo.NewPostgresRepository(sqlDB)
	orgMembers := memberrepo.NewPostgresRepository(sqlDB, memberdomain.ScopeOrganization)
	webMembers := memberrepo.NewPostgresRepository(sqlDB, memberdomain.ScopeWebsite)
	audits := auditrepo.NewPostgresRepository(sqlDB)
	tx := db.NewTxRunner(sqlDB)
	codec := security.NewCodec(cfg.JWTSecret, cfg.TokenTTL())

	var opts []rbac.Option
	if observer != nil {
		opts = append(opts, rbac.WithObserver(observer))
	}

	st := &Stack{
		Codec: codec,
		Accounts: identityservice.NewAccountService(identityservice.Deps{
			Users:         users,
			Orgs:          orgs,
			OrgMembers:    orgMembers,
			Tx:            tx,
			Hasher:        security.NewHasher(cfg.BcryptCost),
			Codec:         codec,
			Notifications: notify,
			Log:           log.With().Str("component", "accounts").Logger(),
		}),
		Tenancy: tenancyservice.NewTenancyService(tenancyservice.Deps{
			Orgs:           orgs,
			Websites:       sites,
			OrgMembers:     orgMembers,
			WebsiteMembers: webMembers,
			Users:          users,
			Tx:             tx,
			Log:            log.With().Str("component", "tenancy").Logger(),
		}),
		Invites: inviteservice.NewService(inviteservice.Deps{
			OrgInvites:     inviterepo.NewPostgresRepository(sqlDB, memberdomain.ScopeOrganization),
			WebsiteInvites: inviterepo.NewPostgresRepository(sqlDB, memberdomain.ScopeWebsite),
			OrgMembers:     orgMembers,
			WebsiteMembers: webMembers,
			Users:          users,
			Tx:             tx,
			Codec:          codec,
			Notifications:  notify,
			Log:            log.With().Str("component", "invites").Logger(),
		}),
		Authz: rbac.NewResolver(orgMembers, webMembers, sites, opts...),
		Audit: audit.NewLogger(audits, interceptors.ClientIP, log.With().Str("component", "audit").Logger()),
	}
	st.Handler = tenancyhandler.NewServer(tenancyhandler.Deps{
		Accounts: st.Accounts,
		Tenancy:  st.Tenancy,
		Invites:  st.Invites,
		Authz:    st.Authz,
		Audit:    audits,
	})
	return st
}
