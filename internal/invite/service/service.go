// Package service implements the invitation lifecycle: issue, accept, revoke and list.
package service

import (
	"context"

	"github.com/rs/zerolog"

	"tenant-access-control/internal/db"
	"tenant-access-control/internal/invite/domain"
	"tenant-access-control/internal/invite/repository"
	memberdomain "tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/metrics"
	"tenant-access-control/internal/notification"
	"tenant-access-control/internal/platform/apperr"
	"tenant-access-control/internal/platform/validation"
	"tenant-access-control/internal/security"
	userdomain "tenant-access-control/internal/user/domain"
)

// MembershipAdder creates memberships in one scope.
type MembershipAdder interface {
	Add(ctx context.Context, resourceID, userID string, role memberdomain.Role) (*memberdomain.Membership, error)
}

// UserFinder looks up live users by email.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// Deps holds the collaborators of Service.
type Deps struct {
	OrgInvites     repository.Repository
	WebsiteInvites repository.Repository
	OrgMembers     MembershipAdder
	WebsiteMembers MembershipAdder
	Users          UserFinder
	Tx             db.TxRunner
	Codec          *security.Codec
	Notifications  *notification.Dispatcher
	Log            zerolog.Logger
}

// Service runs invite operations. Callers authorize the issuer before Invite,
// Revoke and ListPending; Accept is authorized by the token alone.
type Service struct {
	invites map[memberdomain.Scope]repository.Repository
	members map[memberdomain.Scope]MembershipAdder
	users   UserFinder
	tx      db.TxRunner
	codec   *security.Codec
	notify  *notification.Dispatcher
	log     zerolog.Logger
}

// NewService returns a Service over d.
func NewService(d Deps) *Service {
	return &Service{
		invites: map[memberdomain.Scope]repository.Repository{
			memberdomain.ScopeOrganization: d.OrgInvites,
			memberdomain.ScopeWebsite:      d.WebsiteInvites,
		},
		members: map[memberdomain.Scope]MembershipAdder{
			memberdomain.ScopeOrganization: d.OrgMembers,
			memberdomain.ScopeWebsite:      d.WebsiteMembers,
		},
		users:  d.Users,
		tx:     d.Tx,
		codec:  d.Codec,
		notify: d.Notifications,
		log:    d.Log,
	}
}

// InviteInput describes one invitation. ResourceName only decorates the mail.
type InviteInput struct {
	Scope        memberdomain.Scope `validate:"required,oneof=organization website"`
	ResourceID   string             `validate:"required"`
	Email        string             `validate:"required,email,max=254"`
	Role         memberdomain.Role  `validate:"required,oneof=admin member"`
	ResourceName string
}

// Invite records the invitation and mails a scope-specific invite token.
// A pending invite for the same email is overwritten with the new role and a
// fresh token; an accepted one fails with apperr.ErrDuplicateInvite.
func (s *Service) Invite(ctx context.Context, in InviteInput) (*domain.Invite, string, error) {
	if err := validation.Struct(in); err != nil {
		return nil, "", err
	}
	email := domain.NormalizeEmail(in.Email)
	inv, reissued, err := s.invites[in.Scope].Upsert(ctx, in.ResourceID, email, in.Role)
	if err != nil {
		return nil, "", err
	}
	token, err := s.issue(in.Scope, in.ResourceID, email)
	if err != nil {
		return nil, "", err
	}

	event := "issued"
	if reissued {
		event = "reissued"
	}
	metrics.InvitesTotal.WithLabelValues(string(in.Scope), event).Inc()

	meta := map[string]string{"role": string(in.Role)}
	kind := notification.KindOrgInvite
	if in.Scope == memberdomain.ScopeWebsite {
		kind = notification.KindWebsiteInvite
		meta["website_name"] = in.ResourceName
	} else {
		meta["organization_name"] = in.ResourceName
	}
	s.notify.Dispatch(notification.NewMessage(kind, email, token, meta))

	s.log.Info().
		Str("scope", string(in.Scope)).
		Str("resource_id", in.ResourceID).
		Str("event", event).
		Msg("invite issued")
	return inv, token, nil
}

func (s *Service) issue(scope memberdomain.Scope, resourceID, email string) (string, error) {
	var claims security.Claims
	if scope == memberdomain.ScopeWebsite {
		claims = security.WebsiteInviteClaims{WebsiteID: resourceID, Email: email}
	} else {
		claims = security.OrgInviteClaims{OrganizationID: resourceID, Email: email}
	}
	return s.codec.Issue(claims)
}

// verify returns the resource and email an invite token of scope was issued for.
func (s *Service) verify(scope memberdomain.Scope, token string) (resourceID, email string, err error) {
	switch scope {
	case memberdomain.ScopeOrganization:
		c, err := s.codec.VerifyOrgInvite(token)
		if err != nil {
			return "", "", err
		}
		return c.OrganizationID, c.Email, nil
	case memberdomain.ScopeWebsite:
		c, err := s.codec.VerifyWebsiteInvite(token)
		if err != nil {
			return "", "", err
		}
		return c.WebsiteID, c.Email, nil
	}
	return "", "", apperr.InvalidArgument("unknown scope %q", scope)
}

// Accept consumes the invite named by token and grants its membership. The
// invite is marked accepted and the membership created in one transaction, so
// a failure in either leaves the invite pending.
func (s *Service) Accept(ctx context.Context, scope memberdomain.Scope, token string) (*memberdomain.Membership, error) {
	resourceID, email, err := s.verify(scope, token)
	if err != nil {
		return nil, err
	}
	inv, err := s.invites[scope].Get(ctx, resourceID, email)
	if err != nil {
		return nil, err
	}
	if !inv.Pending() {
		return nil, apperr.NotFound(apperr.ReasonInvite)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound(apperr.ReasonUserMustSignupFirst)
	}

	var m *memberdomain.Membership
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.invites[scope].MarkAccepted(ctx, resourceID, email); err != nil {
			return err
		}
		var err error
		m, err = s.members[scope].Add(ctx, resourceID, user.ID, inv.Role)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.InvitesTotal.WithLabelValues(string(scope), "accepted").Inc()
	return m, nil
}

// Revoke withdraws a pending invite.
func (s *Service) Revoke(ctx context.Context, scope memberdomain.Scope, resourceID, email string) error {
	repo, ok := s.invites[scope]
	if !ok {
		return apperr.InvalidArgument("unknown scope %q", scope)
	}
	if err := repo.Revoke(ctx, resourceID, email); err != nil {
		return err
	}
	metrics.InvitesTotal.WithLabelValues(string(scope), "revoked").Inc()
	return nil
}

// ListPending returns the invites on resourceID that can still be accepted.
func (s *Service) ListPending(ctx context.Context, scope memberdomain.Scope, resourceID string) ([]*domain.Invite, error) {
	repo, ok := s.invites[scope]
	if !ok {
		return nil, apperr.InvalidArgument("unknown scope %q", scope)
	}
	return repo.ListPending(ctx, resourceID)
}
