package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
	// Audited is false for read-only methods.
	Audited bool
}

// methodOverrides name actions that do not follow the verb-noun method pattern.
var methodOverrides = map[string]ActionResource{
	"Signup":                   {Action: "signup", Resource: "user", Audited: true},
	"VerifyEmail":              {Action: "email_verified", Resource: "user", Audited: true},
	"UpdateCurrentUser":        {Action: "update", Resource: "user", Audited: true},
	"DeleteAccount":            {Action: "delete", Resource: "user", Audited: true},
	"InviteToOrganization":     {Action: "invite_issued", Resource: "organization", Audited: true},
	"InviteToWebsite":          {Action: "invite_issued", Resource: "website", Audited: true},
	"AcceptOrganizationInvite": {Action: "invite_accepted", Resource: "organization", Audited: true},
	"AcceptWebsiteInvite":      {Action: "invite_accepted", Resource: "website", Audited: true},
	"RevokeInvite":             {Action: "invite_revoked", Audited: true},
	"AddMember":                {Action: "member_added", Audited: true},
	"RemoveMember":             {Action: "member_removed", Audited: true},
	"UpdateMemberRole":         {Action: "role_changed", Audited: true},
}

// ParseFullMethod returns action and resource for a gRPC full method
// (e.g. /tenancy.v1.TenancyService/CreateWebsite -> create, website).
// Member and invite-revoke methods leave Resource empty; it comes from the
// request's scope field.
func ParseFullMethod(fullMethod string) ActionResource {
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	if ar, ok := methodOverrides[method]; ok {
		return ar
	}
	for _, verb := range []string{"Create", "Update", "Delete"} {
		if rest, ok := strings.CutPrefix(method, verb); ok && rest != "" {
			return ActionResource{Action: strings.ToLower(verb), Resource: nounToResource(rest), Audited: true}
		}
	}
	return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
}

// nounToResource converts a method noun to a resource name: Organization -> organization.
func nounToResource(noun string) string {
	return strings.ToLower(noun[:1]) + noun[1:]
}
