// Package service implements organization, website and membership
// administration. Callers authorize through rbac before invoking it.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tenant-access-control/internal/db"
	memberdomain "tenant-access-control/internal/membership/domain"
	memberrepo "tenant-access-control/internal/membership/repository"
	orgdomain "tenant-access-control/internal/organization/domain"
	orgrepo "tenant-access-control/internal/organization/repository"
	"tenant-access-control/internal/platform/apperr"
	"tenant-access-control/internal/platform/validation"
	userdomain "tenant-access-control/internal/user/domain"
	webdomain "tenant-access-control/internal/website/domain"
	webrepo "tenant-access-control/internal/website/repository"
)

// UserGetter resolves live users.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Deps holds the collaborators of TenancyService.
type Deps struct {
	Orgs           orgrepo.Repository
	Websites       webrepo.Repository
	OrgMembers     memberrepo.Repository
	WebsiteMembers memberrepo.Repository
	Users          UserGetter
	Tx             db.TxRunner
	Log            zerolog.Logger
}

// TenancyService manages tenants and their members.
type TenancyService struct {
	orgs     orgrepo.Repository
	websites webrepo.Repository
	members  map[memberdomain.Scope]memberrepo.Repository
	users    UserGetter
	tx       db.TxRunner
	log      zerolog.Logger
}

// NewTenancyService returns a TenancyService over d.
func NewTenancyService(d Deps) *TenancyService {
	return &TenancyService{
		orgs:     d.Orgs,
		websites: d.Websites,
		members: map[memberdomain.Scope]memberrepo.Repository{
			memberdomain.ScopeOrganization: d.OrgMembers,
			memberdomain.ScopeWebsite:      d.WebsiteMembers,
		},
		users: d.Users,
		tx:    d.Tx,
		log:   d.Log,
	}
}

// OrganizationInput names and describes an organization.
type OrganizationInput struct {
	Name        string `validate:"required,max=64"`
	Description string `validate:"max=256"`
}

// CreateOrganization creates an organization with userID as its admin.
func (s *TenancyService) CreateOrganization(ctx context.Context, userID string, in OrganizationInput) (*orgdomain.Organization, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	org := &orgdomain.Organization{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.orgs.Create(ctx, org); err != nil {
			return err
		}
		_, err := s.members[memberdomain.ScopeOrganization].Add(ctx, org.ID, userID, memberdomain.RoleAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("organization_id", org.ID).Str("user_id", userID).Msg("organization created")
	return org, nil
}

// GetOrganization returns the live organization or apperr.ErrNotFound.
func (s *TenancyService) GetOrganization(ctx context.Context, id string) (*orgdomain.Organization, error) {
	o, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.NotFound("organization")
	}
	return o, nil
}

// ListOrganizationsForUser returns the organizations userID belongs to.
func (s *TenancyService) ListOrganizationsForUser(ctx context.Context, userID string) ([]*orgdomain.Organization, error) {
	return s.orgs.ListByMember(ctx, userID)
}

// UpdateOrganization renames or re-describes an organization.
func (s *TenancyService) UpdateOrganization(ctx context.Context, id string, in OrganizationInput) (*orgdomain.Organization, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	o, err := s.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Name, o.Description = in.Name, in.Description
	if err := s.orgs.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// DeleteOrganization soft-deletes the organization. Its websites and
// memberships stop resolving immediately.
func (s *TenancyService) DeleteOrganization(ctx context.Context, id string) error {
	if err := s.orgs.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("organization_id", id).Msg("organization deleted")
	return nil
}

// WebsiteInput describes a website.
type WebsiteInput struct {
	Name        string `validate:"required,max=64"`
	URL         string `validate:"required,url"`
	Description string `validate:"max=256"`
}

// CreateWebsite adds a website to orgID.
func (s *TenancyService) CreateWebsite(ctx context.Context, orgID string, in WebsiteInput) (*webdomain.Website, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	w := &webdomain.Website{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           in.Name,
		URL:            in.URL,
		Description:    in.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.websites.Create(ctx, w); err != nil {
		return nil, err
	}
	s.log.Info().Str("website_id", w.ID).Str("organization_id", orgID).Msg("website created")
	return w, nil
}

// GetWebsite returns the live website or apperr.ErrNotFound.
func (s *TenancyService) GetWebsite(ctx context.Context, id string) (*webdomain.Website, error) {
	w, err := s.websites.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperr.NotFound("website")
	}
	return w, nil
}

// ListWebsites returns the live websites of orgID.
func (s *TenancyService) ListWebsites(ctx context.Context, orgID string) ([]*webdomain.Website, error) {
	return s.websites.ListByOrganization(ctx, orgID)
}

// ListWebsitesForUser returns the live websites userID reaches through a
// website membership or a membership of the owning organization, by name.
func (s *TenancyService) ListWebsitesForUser(ctx context.Context, userID string) ([]*webdomain.Website, error) {
	seen := map[string]*webdomain.Website{}
	orgMembers, err := s.members[memberdomain.ScopeOrganization].ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range orgMembers {
		sites, err := s.websites.ListByOrganization(ctx, m.ResourceID)
		if err != nil {
			return nil, err
		}
		for _, w := range sites {
			seen[w.ID] = w
		}
	}
	siteMembers, err := s.members[memberdomain.ScopeWebsite].ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range siteMembers {
		if _, ok := seen[m.ResourceID]; ok {
			continue
		}
		w, err := s.websites.GetByID(ctx, m.ResourceID)
		if err != nil {
			return nil, err
		}
		if w != nil {
			seen[w.ID] = w
		}
	}

	out := make([]*webdomain.Website, 0, len(seen))
	for _, w := range seen {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateWebsite replaces the name, URL and description of a website.
func (s *TenancyService) UpdateWebsite(ctx context.Context, id string, in WebsiteInput) (*webdomain.Website, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	w, err := s.GetWebsite(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Name, w.URL, w.Description = in.Name, in.URL, in.Description
	if err := s.websites.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// DeleteWebsite soft-deletes the website.
func (s *TenancyService) DeleteWebsite(ctx context.Context, id string) error {
	return s.websites.SoftDelete(ctx, id)
}

func (s *TenancyService) store(scope memberdomain.Scope) (memberrepo.Repository, error) {
	repo, ok := s.members[scope]
	if !ok {
		return nil, apperr.InvalidArgument("unknown scope %q", scope)
	}
	return repo, nil
}

// AddMember grants userID a role on the resource directly, without an invite.
func (s *TenancyService) AddMember(ctx context.Context, scope memberdomain.Scope, resourceID, userID string, role memberdomain.Role) (*memberdomain.Membership, error) {
	repo, err := s.store(scope)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	return repo.Add(ctx, resourceID, userID, role)
}

// RemoveMember deletes userID's membership on the resource.
func (s *TenancyService) RemoveMember(ctx context.Context, scope memberdomain.Scope, resourceID, userID string) error {
	repo, err := s.store(scope)
	if err != nil {
		return err
	}
	m, err := repo.Get(ctx, userID, resourceID)
	if err != nil {
		return err
	}
	if m == nil {
		return apperr.NotFound(fmt.Sprintf("%s_membership", scope))
	}
	return repo.Remove(ctx, m.ID)
}

// UpdateMemberRole changes userID's role on the resource.
func (s *TenancyService) UpdateMemberRole(ctx context.Context, scope memberdomain.Scope, resourceID, userID string, role memberdomain.Role) (*memberdomain.Membership, error) {
	repo, err := s.store(scope)
	if err != nil {
		return nil, err
	}
	return repo.UpdateRole(ctx, resourceID, userID, role)
}

// ListMembers returns every membership on the resource.
func (s *TenancyService) ListMembers(ctx context.Context, scope memberdomain.Scope, resourceID string) ([]*memberdomain.Membership, error) {
	repo, err := s.store(scope)
	if err != nil {
		return nil, err
	}
	return repo.ListByResource(ctx, resourceID)
}
