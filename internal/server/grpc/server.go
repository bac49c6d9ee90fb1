// Package grpc serves the gRPC health service and the channelz diagnostics
// behind the same access-token identity check as the HTTP API.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"google.golang.org/grpc"
	channelzsvc "google.golang.org/grpc/channelz/service"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Authenticator turns a bearer token into a validated identity.
// *services.SessionService satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
}

type GRPCServer struct {
	address string
	authn   Authenticator
	rules   MethodRules
	health  *health.Server
	logger  logging.Logger
}

func NewGRPCServer(address string, authn Authenticator, l logging.Logger) *GRPCServer {
	return &GRPCServer{
		address: address,
		authn:   authn,
		rules:   DefaultMethodRules(),
		health:  health.NewServer(),
		logger:  l.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.identityInterceptor),
		grpc.ChainStreamInterceptor(s.identityStreamInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)
	channelzsvc.RegisterChannelzServiceToServer(srv)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return srv
}

// Run listens on the configured address until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully when ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
