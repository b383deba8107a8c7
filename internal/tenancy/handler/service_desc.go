package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tenancy.v1.TenancyService"

// TenancyServer is the server API for tenancy.v1.TenancyService. Every method
// takes and returns a structpb.Struct.
type TenancyServer interface {
	Signup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyEmail(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResendVerification(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Signin(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCurrentUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCurrentUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateOrganization(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrganization(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOrganizations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateOrganization(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteOrganization(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateWebsite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetWebsite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListWebsites(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMyWebsites(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateWebsite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteWebsite(context.Context, *structpb.Struct) (*structpb.Struct, error)

	InviteToOrganization(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InviteToWebsite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcceptOrganizationInvite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcceptWebsiteInvite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeInvite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListInvites(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CheckAccess(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMembers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddMember(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveMember(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateMemberRole(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAuditLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(TenancyServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TenancyServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TenancyServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FullMethod returns the gRPC path of method, e.g. "/tenancy.v1.TenancyService/Signin".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ServiceDesc describes tenancy.v1.TenancyService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TenancyServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Signup", TenancyServer.Signup),
		unary("VerifyEmail", TenancyServer.VerifyEmail),
		unary("ResendVerification", TenancyServer.ResendVerification),
		unary("Signin", TenancyServer.Signin),
		unary("GetCurrentUser", TenancyServer.GetCurrentUser),
		unary("UpdateCurrentUser", TenancyServer.UpdateCurrentUser),
		unary("DeleteAccount", TenancyServer.DeleteAccount),
		unary("CreateOrganization", TenancyServer.CreateOrganization),
		unary("GetOrganization", TenancyServer.GetOrganization),
		unary("ListOrganizations", TenancyServer.ListOrganizations),
		unary("UpdateOrganization", TenancyServer.UpdateOrganization),
		unary("DeleteOrganization", TenancyServer.DeleteOrganization),
		unary("CreateWebsite", TenancyServer.CreateWebsite),
		unary("GetWebsite", TenancyServer.GetWebsite),
		unary("ListWebsites", TenancyServer.ListWebsites),
		unary("ListMyWebsites", TenancyServer.ListMyWebsites),
		unary("UpdateWebsite", TenancyServer.UpdateWebsite),
		unary("DeleteWebsite", TenancyServer.DeleteWebsite),
		unary("InviteToOrganization", TenancyServer.InviteToOrganization),
		unary("InviteToWebsite", TenancyServer.InviteToWebsite),
		unary("AcceptOrganizationInvite", TenancyServer.AcceptOrganizationInvite),
		unary("AcceptWebsiteInvite", TenancyServer.AcceptWebsiteInvite),
		unary("RevokeInvite", TenancyServer.RevokeInvite),
		unary("ListInvites", TenancyServer.ListInvites),
		unary("CheckAccess", TenancyServer.CheckAccess),
		unary("ListMembers", TenancyServer.ListMembers),
		unary("AddMember", TenancyServer.AddMember),
		unary("RemoveMember", TenancyServer.RemoveMember),
		unary("UpdateMemberRole", TenancyServer.UpdateMemberRole),
		unary("ListAuditLogs", TenancyServer.ListAuditLogs),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tenancy/v1/tenancy.proto",
}

// PublicMethods are callable without an identity token.
var PublicMethods = map[string]bool{
	FullMethod("Signup"):                   true,
	FullMethod("VerifyEmail"):              true,
	FullMethod("ResendVerification"):       true,
	FullMethod("Signin"):                   true,
	FullMethod("AcceptOrganizationInvite"): true,
	FullMethod("AcceptWebsiteInvite"):      true,
}

// Client calls TenancyService over conn.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req and returns the response fields.
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
