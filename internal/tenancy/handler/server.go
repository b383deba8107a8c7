// Package handler exposes the tenancy services over gRPC as
// tenancy.v1.TenancyService. Handlers authorize through the rbac Resolver
// before calling into a service; services never re-check roles.
package handler

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	auditdomain "tenant-access-control/internal/audit/domain"
	identityservice "tenant-access-control/internal/identity/service"
	inviteservice "tenant-access-control/internal/invite/service"
	memberdomain "tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/platform/apperr"
	"tenant-access-control/internal/platform/rbac"
	"tenant-access-control/internal/server/interceptors"
	tenancyservice "tenant-access-control/internal/tenancy/service"
)

// AuditReader lists the audit trail of one resource.
type AuditReader interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]*auditdomain.AuditLog, error)
}

// Deps are the collaborators of Server. Audit may be nil.
type Deps struct {
	Accounts *identityservice.AccountService
	Tenancy  *tenancyservice.TenancyService
	Invites  *inviteservice.Service
	Authz    *rbac.Resolver
	Audit    AuditReader
}

// Server implements TenancyServer.
type Server struct {
	accounts *identityservice.AccountService
	tenancy  *tenancyservice.TenancyService
	invites  *inviteservice.Service
	authz    *rbac.Resolver
	audit    AuditReader
}

var _ TenancyServer = (*Server)(nil)

// NewServer returns a Server over d.
func NewServer(d Deps) *Server {
	return &Server{accounts: d.Accounts, tenancy: d.Tenancy, invites: d.Invites, authz: d.Authz, audit: d.Audit}
}

func caller(ctx context.Context) (string, error) {
	userID, ok := interceptors.GetUserID(ctx)
	if !ok || userID == "" {
		return "", apperr.New(apperr.ErrUnauthorized, "user context required")
	}
	return userID, nil
}

// requireAdmin authorizes resource administration: org admins on an
// organization, org admins or website admins on a website.
func (s *Server) requireAdmin(ctx context.Context, scope memberdomain.Scope, resourceID string) error {
	if scope == memberdomain.ScopeOrganization {
		_, _, err := s.authz.RequireOrgAdmin(ctx, resourceID)
		return err
	}
	_, _, err := s.authz.RequireWebsiteAccess(ctx, resourceID, "", rbac.AdminOnly, rbac.AdminOnly)
	return err
}

func (s *Server) requireMember(ctx context.Context, scope memberdomain.Scope, resourceID string) error {
	if scope == memberdomain.ScopeOrganization {
		_, _, err := s.authz.RequireOrgMember(ctx, resourceID)
		return err
	}
	_, _, err := s.authz.RequireWebsiteAccess(ctx, resourceID, "", rbac.AnyMember, rbac.AnyMember)
	return err
}

func authFields(res *identityservice.AuthResult) map[string]any {
	return map[string]any{
		"token":      res.Token,
		"expires_at": timestamp(res.ExpiresAt),
		"user":       userFields(res.User),
	}
}

// Accounts

func (s *Server) Signup(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.accounts.Signup(ctx, identityservice.SignupInput{
		Username: optional(req, "username"),
		Email:    optional(req, "email"),
		Password: optional(req, "password"),
	})
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{
		"user":         userFields(res.User),
		"organization": organizationFields(res.Organization),
	})
}

func (s *Server) VerifyEmail(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token, err := required(req, "token")
	if err != nil {
		return nil, err
	}
	res, err := s.accounts.VerifyEmail(ctx, token)
	if err != nil {
		return nil, err
	}
	return respond(authFields(res))
}

// ResendVerification always succeeds for a well-formed email so callers
// cannot learn which addresses are registered.
func (s *Server) ResendVerification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, err := required(req, "email")
	if err != nil {
		return nil, err
	}
	if err := s.accounts.ResendVerification(ctx, email); err != nil {
		return nil, err
	}
	return respond(map[string]any{})
}

func (s *Server) Signin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, err := required(req, "email")
	if err != nil {
		return nil, err
	}
	password, err := required(req, "password")
	if err != nil {
		return nil, err
	}
	res, err := s.accounts.Signin(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return respond(authFields(res))
}

func (s *Server) GetCurrentUser(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.accounts.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return respond(userFields(u))
}

// UpdateCurrentUser changes any of username, email and password. Absent
// fields are kept.
func (s *Server) UpdateCurrentUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.accounts.UpdateProfile(ctx, userID, identityservice.ProfileInput{
		Username: optional(req, "username"),
		Email:    optional(req, "email"),
		Password: optional(req, "password"),
	})
	if err != nil {
		return nil, err
	}
	return respond(userFields(u))
}

func (s *Server) DeleteAccount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.DeleteAccount(ctx, userID); err != nil {
		return nil, err
	}
	return respond(map[string]any{})
}

// Organizations

func (s *Server) CreateOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	org, err := s.tenancy.CreateOrganization(ctx, userID, tenancyservice.OrganizationInput{
		Name:        optional(req, "name"),
		Description: optional(req, "description"),
	})
	if err != nil {
		return nil, err
	}
	return respond(organizationFields(org))
}

func (s *Server) GetOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orgID, err := required(req, "organization_id")
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authz.RequireOrgMember(ctx, orgID); err != nil {
		return nil, err
	}
	org, err := s.tenancy.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return respond(organizationFields(org))
}

func (s *Server) ListOrganizations(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	orgs, err := s.tenancy.ListOrganizationsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"organizations": list(orgs, organizationFields)})
}

func (s *Server) UpdateOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orgID, err := required(req, "organization_id")
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authz.RequireOrgAdmin(ctx, orgID); err != nil {
		return nil, err
	}
	org, err := s.tenancy.UpdateOrganization(ctx, orgID, tenancyservice.OrganizationInput{
		Name:        optional(req, "name"),
		Description: optional(req, "description"),
	})
	if err != nil {
		return nil, err
	}
	return respond(organizationFields(org))
}

func (s *Server) DeleteOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orgID, err := required(req, "organization_id")
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authz.RequireOrgAdmin(ctx, orgID); err != nil {
		return nil, err
	}
	if err := s.tenancy.DeleteOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	return respond(map[string]any{})
}

// Websites

func websiteInput(req *structpb.Struct) tenancyservice.WebsiteInput {
	return tenancyservice.WebsiteInput{
		Name:        optional(req, "name"),
		URL:         optional(req, "url"),
		Description: optional(req, "description"),
	}
}

func (s *Server) CreateWebsite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orgID, err := required(req, "organization_id")
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authz.RequireOrgAdmin(ctx, orgID); err != nil {
		return nil, err
	}
	w, err := s.tenancy.CreateWebsite(ctx, orgID, websiteInput(req))
	if err != nil {
		return nil, err
	}
	return respond(websiteFields(w))
}

func (s *Server) GetWebsite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	websiteID, err := required(req, "website_id")
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, memberdomain.ScopeWebsite, websiteID); err != nil {
		return nil, err
	}
	w, err := s.tenancy.GetWebsite(ctx, websiteID)
	if err != nil {
		return nil, err
	}
	return respond(websiteFields(w))
}

func (s *Server) ListWebsites(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orgID, err := required(req, "organization_id")
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authz.RequireOrgMember(ctx, orgID); err != nil {
		return nil, err
	}
	sites, err := s.tenancy.ListWebsites(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"websites": list(sites, websiteFields)})
}

// ListMyWebsites lists the websites the caller reaches through any membership.
func (s *Server) ListMyWebsites(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	sites, err := s.tenancy.ListWebsitesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"websites": list(sites, websiteFields)})
}

func (s *Server) UpdateWebsite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	websiteID, err := required(req, "website_id")
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, memberdomain.ScopeWebsite, websiteID); err != nil {
		return nil, err
	}
	w, err := s.tenancy.UpdateWebsite(ctx, websiteID, websiteInput(req))
	if err != nil {
		return nil, err
	}
	return respond(websiteFields(w))
}

// DeleteWebsite is reserved to organization admins.
func (s *Server) DeleteWebsite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	websiteID, err := required(req, "website_id")
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authz.RequireWebsiteAccess(ctx, websiteID, "", rbac.AdminOnly, rbac.NoRoles); err != nil {
		return nil, err
	}
	if err := s.tenancy.DeleteWebsite(ctx, websiteID); err != nil {
		return nil, err
	}
	return respond(map[string]any{})
}

// Invites

func (s *Server) invite(ctx context.Context, scope memberdomain.Scope, idField string, req *structpb.Struct) (*structpb.Struct, error) {
	resourceID, err := required(req, idField)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, scope, resourceID); err != nil {
		return nil, err
	}
	name, err := s.resourceName(ctx, scope, resourceID)
	if err != nil {
		return nil, err
	}
	inv, _, err := s.invites.Invite(ctx, inviteservice.InviteInput{
		Scope:        scope,
		ResourceID:   resourceID,
		Email:        optional(req, "email"),
		Role:         memberdomain.Role(optional(req, "role")),
		ResourceName: name,
	})
	if err != nil {
		return nil, err
	}
	return respond(inviteFields(inv))
}

func (s *Server) resourceName(ctx context.Context, scope memberdomain.Scope, resourceID string) (string, error) {
	if scope == memberdomain.ScopeOrganization {
		org, err := s.tenancy.GetOrganization(ctx, resourceID)
		if err != nil {
			return "", err
		}
		return org.Name, nil
	}
	w, err := s.tenancy.GetWebsite(ctx, resourceID)
	if err != nil {
		return "", err
	}
	return w.Name, nil
}

func (s *Server) InviteToOrganization(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.invite(ctx, memberdomain.ScopeOrganization, "organization_id", req)
}

func (s *Server) InviteToWebsite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.invite(ctx, memberdomain.ScopeWebsite, "website_id", req)
}

func (s *Server) accept(ctx context.Context, scope memberdomain.Scope, req *structpb.Struct) (*structpb.Struct, error) {
	token, err := required(req, "token")
	if err != nil {
		return nil, err
	}
	m, err := s.invites.Accept(ctx, scope, token)
	if err != nil {
		return nil, err
	}
	return respond(membershipFields(m))
}

func (s *Server) AcceptOrganizationInvite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.accept(ctx, memberdomain.ScopeOrganization, req)
}

func (s *Server) AcceptWebsiteInvite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.accept(ctx, memberdomain.ScopeWebsite, req)
}

func (s *Server) RevokeInvite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scope, err := scopeField(req)
	if err != nil {
		return nil, err
	}
	resourceID, err := required(req, "resource_id")
	if err != nil {
		return nil, err
	}
	email, err := required(req, "email")
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, scope, resourceID); err != nil {
		return nil, err
	}
	if err := s.invites.Revoke(ctx, scope, resourceID, email); err != nil {
		return nil, err
	}
	return respond(map[string]any{})
}

func (s *Server) ListInvites(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scope, err := scopeField(req)
	if err != nil {
		return nil, err
	}
	resourceID, err := required(req, "resource_id")
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, scope, resourceID); err != nil {
		return nil, err
	}
	invs, err := s.invites.ListPending(ctx, scope, resourceID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"invites": list(invs, inviteFields)})
}

// Access

// CheckAccess runs the combined organization-or-website check for the caller.
// organization_id is optional and trusted when given; otherwise it is
// resolved from the website. A denial is returned as an error, never as
// allowed=false.
func (s *Server) CheckAccess(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orgRoles, err := roleSet(req, "allowed_org_roles")
	if err != nil {
		return nil, err
	}
	webRoles, err := roleSet(req, "allowed_web_roles")
	if err != nil {
		return nil, err
	}
	orgID := optional(req, "organization_id")
	websiteID := optional(req, "website_id")
	var (
		userID string
		m      *memberdomain.Membership
	)
	if websiteID == "" && orgID != "" {
		userID, err = caller(ctx)
		if err != nil {
			return nil, err
		}
		m, err = s.authz.RequireOrgRole(ctx, orgID, userID, orgRoles)
	} else {
		userID, m, err = s.authz.RequireWebsiteAccess(ctx, websiteID, orgID, orgRoles, webRoles)
	}
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{
		"allowed":     true,
		"user_id":     userID,
		"via":         string(m.Scope),
		"resource_id": m.ResourceID,
		"role":        string(m.Role),
	})
}

// Members

type memberRequest struct {
	scope      memberdomain.Scope
	resourceID string
	userID     string
}

func parseMemberRequest(req *structpb.Struct, needUser bool) (memberRequest, error) {
	var mr memberRequest
	var err error
	if mr.scope, err = scopeField(req); err != nil {
		return mr, err
	}
	if mr.resourceID, err = required(req, "resource_id"); err != nil {
		return mr, err
	}
	if needUser {
		if mr.userID, err = required(req, "user_id"); err != nil {
			return mr, err
		}
	}
	return mr, nil
}

func (s *Server) ListMembers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	mr, err := parseMemberRequest(req, false)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, mr.scope, mr.resourceID); err != nil {
		return nil, err
	}
	members, err := s.tenancy.ListMembers(ctx, mr.scope, mr.resourceID)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"members": list(members, membershipFields)})
}

func (s *Server) AddMember(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	mr, err := parseMemberRequest(req, true)
	if err != nil {
		return nil, err
	}
	role, err := roleField(req, "role")
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, mr.scope, mr.resourceID); err != nil {
		return nil, err
	}
	m, err := s.tenancy.AddMember(ctx, mr.scope, mr.resourceID, mr.userID, role)
	if err != nil {
		return nil, err
	}
	return respond(membershipFields(m))
}

func (s *Server) RemoveMember(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	mr, err := parseMemberRequest(req, true)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, mr.scope, mr.resourceID); err != nil {
		return nil, err
	}
	if err := s.tenancy.RemoveMember(ctx, mr.scope, mr.resourceID, mr.userID); err != nil {
		return nil, err
	}
	return respond(map[string]any{})
}

func (s *Server) UpdateMemberRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	mr, err := parseMemberRequest(req, true)
	if err != nil {
		return nil, err
	}
	role, err := roleField(req, "role")
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, mr.scope, mr.resourceID); err != nil {
		return nil, err
	}
	m, err := s.tenancy.UpdateMemberRole(ctx, mr.scope, mr.resourceID, mr.userID, role)
	if err != nil {
		return nil, err
	}
	return respond(membershipFields(m))
}

// Audit

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// ListAuditLogs returns the newest audit entries of a resource to its admins.
func (s *Server) ListAuditLogs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	mr, err := parseMemberRequest(req, false)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, mr.scope, mr.resourceID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return respond(map[string]any{"entries": []any{}})
	}
	limit := int(req.GetFields()["limit"].GetNumberValue())
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)
	logs, err := s.audit.ListByResource(ctx, string(mr.scope), mr.resourceID, limit)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"entries": list(logs, auditFields)})
}
