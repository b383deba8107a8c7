// Package rbac is the role authorization gate every protected organization
// and website operation passes through.
package rbac

import (
	"context"

	"tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/platform/apperr"
	websitedomain "tenant-access-control/internal/website/domain"
)

// MembershipGetter returns a user's membership in one resource, or nil.
// Implemented by the membership repository of each scope.
type MembershipGetter interface {
	Get(ctx context.Context, userID, resourceID string) (*domain.Membership, error)
}

// WebsiteGetter loads a website for organization resolution.
type WebsiteGetter interface {
	GetByID(ctx context.Context, id string) (*websitedomain.Website, error)
}

// Decision describes one resolver outcome. Observers receive it after every check.
type Decision struct {
	Check      string // "organization", "website" or "organization_or_website"
	UserID     string
	ResourceID string
	Allowed    bool
	// Via is the scope of the membership that allowed the request.
	Via    domain.Scope
	Reason string
}

// Observer is notified of every decision. It must not block.
type Observer interface {
	ObserveDecision(ctx context.Context, d Decision)
}

// Resolver decides whether a user holds a qualifying role. It holds no state
// between calls; every check reads the membership stores.
type Resolver struct {
	orgs     MembershipGetter
	websites MembershipGetter
	sites    WebsiteGetter
	observer Observer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithObserver reports decisions to o.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver returns a Resolver over the organization and website membership stores.
func NewResolver(orgs, websites MembershipGetter, sites WebsiteGetter, opts ...Option) *Resolver {
	r := &Resolver{orgs: orgs, websites: websites, sites: sites}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RequireOrgRole allows when userID's organization membership has a role in allowed.
// It returns the membership on success and apperr.ErrForbidden otherwise.
func (r *Resolver) RequireOrgRole(ctx context.Context, orgID, userID string, allowed RoleSet) (*domain.Membership, error) {
	m, err := r.single(ctx, r.orgs, orgID, userID, allowed)
	r.observe(ctx, "organization", userID, orgID, m, err)
	return m, err
}

// RequireWebsiteRole allows when userID's website membership has a role in allowed.
func (r *Resolver) RequireWebsiteRole(ctx context.Context, websiteID, userID string, allowed RoleSet) (*domain.Membership, error) {
	m, err := r.single(ctx, r.websites, websiteID, userID, allowed)
	r.observe(ctx, "website", userID, websiteID, m, err)
	return m, err
}

// OrgOrWebsiteCheck is the input of RequireOrgOrWebsiteRole. An empty
// OrganizationID means it is resolved from the website.
type OrgOrWebsiteCheck struct {
	UserID         string
	WebsiteID      string
	OrganizationID string
	OrgRoles       RoleSet
	WebsiteRoles   RoleSet
}

// RequireOrgOrWebsiteRole allows through the organization membership first and
// falls back to the website membership. It fails with apperr.ErrNotFound when
// the organization cannot be resolved from the website and apperr.ErrForbidden
// when neither axis allows.
func (r *Resolver) RequireOrgOrWebsiteRole(ctx context.Context, c OrgOrWebsiteCheck) (*domain.Membership, error) {
	m, err := r.combined(ctx, c)
	r.observe(ctx, "organization_or_website", c.UserID, c.WebsiteID, m, err)
	return m, err
}

func (r *Resolver) combined(ctx context.Context, c OrgOrWebsiteCheck) (*domain.Membership, error) {
	if c.UserID == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "user required")
	}
	orgID := c.OrganizationID
	if orgID == "" {
		if c.WebsiteID == "" {
			return nil, apperr.NotFound(apperr.ReasonWebsiteOrOrganization)
		}
		w, err := r.sites.GetByID(ctx, c.WebsiteID)
		if err != nil {
			return nil, err
		}
		if w == nil || w.OrganizationID == "" {
			return nil, apperr.NotFound(apperr.ReasonWebsiteOrOrganization)
		}
		orgID = w.OrganizationID
	}
	if !c.OrgRoles.Empty() {
		m, err := r.orgs.Get(ctx, c.UserID, orgID)
		if err != nil {
			return nil, err
		}
		if m != nil && c.OrgRoles.Contains(m.Role) {
			return m, nil
		}
	}
	if !c.WebsiteRoles.Empty() && c.WebsiteID != "" {
		m, err := r.websites.Get(ctx, c.UserID, c.WebsiteID)
		if err != nil {
			return nil, err
		}
		if m != nil && c.WebsiteRoles.Contains(m.Role) {
			return m, nil
		}
	}
	return nil, apperr.Forbidden(apperr.ReasonInsufficientPrivileges)
}

func (r *Resolver) single(ctx context.Context, store MembershipGetter, resourceID, userID string, allowed RoleSet) (*domain.Membership, error) {
	if userID == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "user required")
	}
	m, err := store.Get(ctx, userID, resourceID)
	if err != nil {
		return nil, err
	}
	if m == nil || !allowed.Contains(m.Role) {
		return nil, apperr.Forbidden(apperr.ReasonInsufficientPrivileges)
	}
	return m, nil
}

func (r *Resolver) observe(ctx context.Context, check, userID, resourceID string, m *domain.Membership, err error) {
	if r.observer == nil {
		return
	}
	d := Decision{Check: check, UserID: userID, ResourceID: resourceID, Allowed: err == nil}
	if m != nil {
		d.Via = m.Scope
	}
	if err != nil {
		d.Reason = apperr.ReasonOf(err)
		if d.Reason == "" {
			d.Reason = err.Error()
		}
	}
	r.observer.ObserveDecision(ctx, d)
}
