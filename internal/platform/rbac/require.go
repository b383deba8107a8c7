package rbac

import (
	"context"

	"tenant-access-control/internal/membership/domain"
	"tenant-access-control/internal/platform/apperr"
	"tenant-access-control/internal/server/interceptors"
)

// callerID returns the verified user id placed in ctx by the auth interceptor.
func callerID(ctx context.Context) (string, error) {
	userID, ok := interceptors.GetUserID(ctx)
	if !ok || userID == "" {
		return "", apperr.New(apperr.ErrUnauthorized, "user context required")
	}
	return userID, nil
}

// RequireOrgAdmin ensures the caller is authenticated and is an admin of orgID.
// Returns the caller's user id and membership on success.
func (r *Resolver) RequireOrgAdmin(ctx context.Context, orgID string) (string, *domain.Membership, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", nil, err
	}
	m, err := r.RequireOrgRole(ctx, orgID, userID, AdminOnly)
	return userID, m, err
}

// RequireOrgMember ensures the caller is authenticated and is a member of orgID (any role).
func (r *Resolver) RequireOrgMember(ctx context.Context, orgID string) (string, *domain.Membership, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", nil, err
	}
	m, err := r.RequireOrgRole(ctx, orgID, userID, AnyMember)
	return userID, m, err
}

// RequireWebsiteAccess runs the combined check for the caller on websiteID.
// orgID may be empty, in which case it is resolved from the website.
func (r *Resolver) RequireWebsiteAccess(ctx context.Context, websiteID, orgID string, orgRoles, websiteRoles RoleSet) (string, *domain.Membership, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", nil, err
	}
	m, err := r.RequireOrgOrWebsiteRole(ctx, OrgOrWebsiteCheck{
		UserID:         userID,
		WebsiteID:      websiteID,
		OrganizationID: orgID,
		OrgRoles:       orgRoles,
		WebsiteRoles:   websiteRoles,
	})
	return userID, m, err
}
