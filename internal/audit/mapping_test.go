package audit

import "testing"

func TestParseFullMethod(t *testing.T) {
	tests := []struct {
		method string
		want   ActionResource
	}{
		{"/tenancy.v1.TenancyService/CreateWebsite", ActionResource{"create", "website", true}},
		{"/tenancy.v1.TenancyService/UpdateOrganization", ActionResource{"update", "organization", true}},
		{"/tenancy.v1.TenancyService/DeleteWebsite", ActionResource{"delete", "website", true}},
		{"/tenancy.v1.TenancyService/InviteToWebsite", ActionResource{"invite_issued", "website", true}},
		{"/tenancy.v1.TenancyService/AcceptOrganizationInvite", ActionResource{"invite_accepted", "organization", true}},
		{"/tenancy.v1.TenancyService/AddMember", ActionResource{"member_added", "", true}},
		{"/tenancy.v1.TenancyService/UpdateMemberRole", ActionResource{"role_changed", "", true}},
		{"/tenancy.v1.TenancyService/Signup", ActionResource{"signup", "user", true}},
		{"/tenancy.v1.TenancyService/UpdateCurrentUser", ActionResource{"update", "user", true}},
		{"/tenancy.v1.TenancyService/ListMyWebsites", ActionResource{"listmywebsites", "unknown", false}},
		{"/tenancy.v1.TenancyService/CheckAccess", ActionResource{"checkaccess", "unknown", false}},
		{"/tenancy.v1.TenancyService/ListMembers", ActionResource{"listmembers", "unknown", false}},
		{"/tenancy.v1.TenancyService/Signin", ActionResource{"signin", "unknown", false}},
		{"/grpc.health.v1.Health/Check", ActionResource{"check", "unknown", false}},
		{"garbage", ActionResource{"unknown", "unknown", false}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			if got := ParseFullMethod(tt.method); got != tt.want {
				t.Errorf("ParseFullMethod(%q) = %+v, want %+v", tt.method, got, tt.want)
			}
		})
	}
}
