// Package server assembles the gRPC server and the ops HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"tenant-access-control/internal/audit"
	"tenant-access-control/internal/server/interceptors"
	tenancyhandler "tenant-access-control/internal/tenancy/handler"
)

// Deps holds the gRPC service implementations.
type Deps struct {
	// Tenancy serves tenancy.v1.TenancyService.
	Tenancy tenancyhandler.TenancyServer
	// Health is the standard gRPC health service. If nil, it is not registered.
	Health *health.Server
}

// RegisterServices registers every service in deps with s.
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	s.RegisterService(&tenancyhandler.ServiceDesc, deps.Tenancy)
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}

// Options configure NewGRPCServer.
type Options struct {
	Verifier interceptors.IdentityVerifier
	Log      zerolog.Logger
	// Audit records successful mutating calls. May be nil.
	Audit *audit.Logger
	// Tracing installs the otelgrpc stats handler.
	Tracing bool
}

var healthMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// PublicMethods returns the full method names reachable without a bearer token.
func PublicMethods() map[string]bool {
	public := make(map[string]bool, len(tenancyhandler.PublicMethods)+len(healthMethods))
	for m := range tenancyhandler.PublicMethods {
		public[m] = true
	}
	for m := range healthMethods {
		public[m] = true
	}
	return public
}

// NewGRPCServer returns a gRPC server with deps registered. Unary calls pass
// through logging, error mapping, authentication and audit, outermost first.
func NewGRPCServer(opts Options, deps Deps) *grpc.Server {
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(opts.Log, healthMethods),
			interceptors.ErrorsUnary(),
			interceptors.AuthUnary(opts.Verifier, PublicMethods()),
			audit.UnaryInterceptor(opts.Audit),
		),
	}
	if opts.Tracing {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}
	s := grpc.NewServer(serverOpts...)
	RegisterServices(s, deps)
	return s
}

// ServeGRPC serves s on lis until ctx is cancelled, then stops gracefully.
func ServeGRPC(ctx context.Context, s *grpc.Server, lis net.Listener, hs *health.Server) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		if hs != nil {
			hs.Shutdown()
		}
		s.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}
