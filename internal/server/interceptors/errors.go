package interceptors

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tenant-access-control/internal/platform/apperr"
)

var kindCodes = []struct {
	kind error
	code codes.Code
}{
	{apperr.ErrNotFound, codes.NotFound},
	{apperr.ErrForbidden, codes.PermissionDenied},
	{apperr.ErrToken, codes.Unauthenticated},
	{apperr.ErrUnauthorized, codes.Unauthenticated},
	{apperr.ErrInvalidCredentials, codes.Unauthenticated},
	{apperr.ErrDuplicateMembership, codes.AlreadyExists},
	{apperr.ErrDuplicateInvite, codes.AlreadyExists},
	{apperr.ErrConflict, codes.AlreadyExists},
	{apperr.ErrInvalidArgument, codes.InvalidArgument},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
	{context.Canceled, codes.Canceled},
}

// ToStatus maps err to a gRPC status error. Errors that already carry a status
// pass through; storage and unclassified failures become Internal without
// leaking their cause.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, kc := range kindCodes {
		if errors.Is(err, kc.kind) {
			msg := kc.kind.Error()
			if reason := apperr.ReasonOf(err); reason != "" {
				msg = reason
			}
			return status.Error(kc.code, msg)
		}
	}
	return status.Error(codes.Internal, "internal error")
}

// ErrorsUnary returns a unary server interceptor that maps handler errors with ToStatus.
func ErrorsUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, ToStatus(err)
		}
		return resp, nil
	}
}
