package audit

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"tenant-access-control/internal/server/interceptors"
)

// resourceIDFields are checked in order for the id of the touched resource.
var resourceIDFields = []string{"resource_id", "website_id", "organization_id"}

// UnaryInterceptor records successful mutating calls. It must run inside the
// auth interceptor so the caller id is in context.
func UnaryInterceptor(l *Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil || l == nil {
			return resp, err
		}
		ar := ParseFullMethod(info.FullMethod)
		if !ar.Audited {
			return resp, err
		}
		in, _ := req.(*structpb.Struct)
		out, _ := resp.(*structpb.Struct)
		ev := Event{Action: ar.Action, Resource: ar.Resource}
		ev.UserID, _ = interceptors.GetUserID(ctx)
		if ev.Resource == "" {
			ev.Resource = field(in, "scope")
		}
		if ar.Action == "create" {
			// A create names its parent in the request; the new id is in the response.
			ev.ResourceID = field(out, "id")
		} else {
			for _, name := range resourceIDFields {
				if ev.ResourceID = field(in, name); ev.ResourceID != "" {
					break
				}
			}
		}
		if ev.ResourceID == "" {
			ev.ResourceID = field(out, "resource_id")
		}
		if ev.UserID == "" {
			ev.UserID = firstNonEmpty(field(out, "user_id"), field(out.GetFields()["user"].GetStructValue(), "id"))
		}
		if ev.Resource == "user" && ev.ResourceID == "" {
			ev.ResourceID = ev.UserID
		}
		if email := field(in, "email"); email != "" {
			ev.Metadata = "email=" + email
		}
		l.LogEvent(ctx, ev)
		return resp, err
	}
}

func field(s *structpb.Struct, name string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[name].GetStringValue()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
