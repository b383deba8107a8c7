package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"tenant-access-control/internal/security"
)

const bearerPrefix = "bearer "

// IdentityVerifier verifies identity tokens. Implemented by *security.Codec.
type IdentityVerifier interface {
	VerifyIdentity(token string) (security.IdentityClaims, error)
}

// AuthUnary verifies the bearer identity token in the authorization metadata
// and stores the caller's id, username and email in the context. Methods in
// publicMethods run without an identity when the token is absent or invalid;
// every other method fails with Unauthenticated.
func AuthUnary(verifier IdentityVerifier, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if id, ok := identify(ctx, verifier); ok {
			return handler(WithIdentity(ctx, id.ID, id.Username, id.Email), req)
		}
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
}

func identify(ctx context.Context, verifier IdentityVerifier) (security.IdentityClaims, bool) {
	token := extractBearer(ctx)
	if token == "" || verifier == nil {
		return security.IdentityClaims{}, false
	}
	id, err := verifier.VerifyIdentity(token)
	if err != nil || id.ID == "" {
		return security.IdentityClaims{}, false
	}
	return id, true
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
