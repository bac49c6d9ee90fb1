package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/authz"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MethodRules maps a full method name, or a "/service/" prefix, to the roles
// allowed to call it. A nil set marks a public method. Methods matching no
// rule require an authenticated caller of any role.
type MethodRules map[string]models.RoleSet

const (
	healthService   = "/grpc.health.v1.Health/"
	channelzService = "/grpc.channelz.v1.Channelz/"
)

func DefaultMethodRules() MethodRules {
	return MethodRules{
		healthService:   nil,
		channelzService: models.NewRoleSet(models.RoleAdmin),
	}
}

// lookup returns the role set for method and whether a rule matched.
func (r MethodRules) lookup(method string) (models.RoleSet, bool) {
	if set, ok := r[method]; ok {
		return set, true
	}
	if i := strings.LastIndex(method, "/"); i > 0 {
		if set, ok := r[method[:i+1]]; ok {
			return set, true
		}
	}
	return nil, false
}

func (s *GRPCServer) identityInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (any, error) {
	ctx, err := s.authorize(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

func (s *GRPCServer) identityStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo,
	handler grpc.StreamHandler) error {
	ctx, err := s.authorize(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &identityStream{ServerStream: ss, ctx: ctx})
}

func (s *GRPCServer) recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "panic recovered in gRPC handler", "method", info.FullMethod, "error", r)
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

// authorize attaches the caller identity to ctx and applies the method's
// role rule.
func (s *GRPCServer) authorize(ctx context.Context, method string) (context.Context, error) {
	required, matched := s.rules.lookup(method)
	if matched && required == nil {
		return ctx, nil
	}

	token := accessTokenFromMetadata(ctx)
	if token == "" {
		return ctx, status.Error(codes.Unauthenticated, "missing token")
	}

	id, err := s.authn.Authenticate(ctx, token)
	if err != nil {
		return ctx, s.statusError(ctx, method, err)
	}
	ctx = auth.WithIdentity(ctx, id)

	if matched && !authz.Allowed(id.Role, required) {
		return ctx, status.Error(codes.PermissionDenied, "forbidden")
	}
	return ctx, nil
}

func (s *GRPCServer) statusError(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, common.ErrBadRequest):
		return status.Error(codes.InvalidArgument, "bad request")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	default:
		s.logger.Error(ctx, "authentication failed", "method", method, "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

// accessTokenFromMetadata reads "authorization: Bearer <token>" or a bare
// "access_token" entry.
func accessTokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
		scheme, token, ok := strings.Cut(values[0], " ")
		if ok && strings.EqualFold(scheme, common.BearerScheme) {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }
