package handler

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	auditdomain "tenant-access-control/internal/audit/domain"
	invitedomain "tenant-access-control/internal/invite/domain"
	memberdomain "tenant-access-control/internal/membership/domain"
	orgdomain "tenant-access-control/internal/organization/domain"
	"tenant-access-control/internal/platform/apperr"
	"tenant-access-control/internal/platform/rbac"
	userdomain "tenant-access-control/internal/user/domain"
	webdomain "tenant-access-control/internal/website/domain"
)

// optional returns the string field name, or "" when absent or not a string.
func optional(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func required(req *structpb.Struct, name string) (string, error) {
	s := optional(req, name)
	if s == "" {
		return "", apperr.InvalidArgument("%s is required", name)
	}
	return s, nil
}

func scopeField(req *structpb.Struct) (memberdomain.Scope, error) {
	s, err := required(req, "scope")
	if err != nil {
		return "", err
	}
	scope := memberdomain.Scope(s)
	if !scope.Valid() {
		return "", apperr.InvalidArgument("unknown scope %q", s)
	}
	return scope, nil
}

func roleField(req *structpb.Struct, name string) (memberdomain.Role, error) {
	s, err := required(req, name)
	if err != nil {
		return "", err
	}
	return memberdomain.ParseRole(s)
}

// roleSet reads a list of role strings. An absent list is the empty set.
func roleSet(req *structpb.Struct, name string) (rbac.RoleSet, error) {
	var roles []memberdomain.Role
	for _, v := range req.GetFields()[name].GetListValue().GetValues() {
		r, err := memberdomain.ParseRole(v.GetStringValue())
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return rbac.Roles(roles...), nil
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func respond(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func userFields(u *userdomain.User) map[string]any {
	return map[string]any{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"is_verified": u.IsVerified,
		"created_at":  timestamp(u.CreatedAt),
	}
}

func organizationFields(o *orgdomain.Organization) map[string]any {
	return map[string]any{
		"id":          o.ID,
		"name":        o.Name,
		"description": o.Description,
		"created_at":  timestamp(o.CreatedAt),
	}
}

func websiteFields(w *webdomain.Website) map[string]any {
	return map[string]any{
		"id":              w.ID,
		"organization_id": w.OrganizationID,
		"name":            w.Name,
		"url":             w.URL,
		"description":     w.Description,
		"created_at":      timestamp(w.CreatedAt),
	}
}

func membershipFields(m *memberdomain.Membership) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"scope":       string(m.Scope),
		"resource_id": m.ResourceID,
		"user_id":     m.UserID,
		"role":        string(m.Role),
		"joined_at":   timestamp(m.JoinedAt),
	}
}

func inviteFields(i *invitedomain.Invite) map[string]any {
	return map[string]any{
		"scope":       string(i.Scope),
		"resource_id": i.ResourceID,
		"email":       i.Email,
		"role":        string(i.Role),
		"is_accepted": i.IsAccepted,
		"created_at":  timestamp(i.CreatedAt),
		"updated_at":  timestamp(i.UpdatedAt),
	}
}

func auditFields(a *auditdomain.AuditLog) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"user_id":     a.UserID,
		"action":      a.Action,
		"resource":    a.Resource,
		"resource_id": a.ResourceID,
		"ip":          a.IP,
		"metadata":    a.Metadata,
		"created_at":  timestamp(a.CreatedAt),
	}
}

func list[T any](items []T, conv func(T) map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	return out
}
