package grpcapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/auth"
	"github.com/ahinestrog/onlinebookstore/internal/metrics"
)

// NewServer builds a gRPC server with the Store service and the standard
// health service registered.
func NewServer(store StoreServer, authn *auth.Authenticator, m *metrics.Metrics) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		logUnary(m),
		statusUnary,
		authUnary(authn),
	))
	srv.RegisterService(&StoreServiceDesc, store)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv, hs
}

func codeFor(k apperr.Kind) codes.Code {
	switch k {
	case apperr.NotFound:
		return codes.NotFound
	case apperr.InsufficientStock, apperr.EmptyCart:
		return codes.FailedPrecondition
	case apperr.Invalid:
		return codes.InvalidArgument
	case apperr.Unauthorized:
		return codes.Unauthenticated
	case apperr.Forbidden:
		return codes.PermissionDenied
	case apperr.Conflict:
		return codes.Aborted
	case apperr.Unavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// toStatus converts application errors; errors that already carry a
// status pass through untouched.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return status.FromContextError(err).Err()
		}
		return status.Error(codes.Internal, apperr.Message(err))
	}
	return status.Error(codeFor(ae.Kind), apperr.Message(err))
}

func statusUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil && apperr.KindOf(err) == apperr.Internal {
		if _, isStatus := status.FromError(err); !isStatus {
			log.Ctx(ctx).Error().Err(err).Str("method", info.FullMethod).Msg("internal error")
		}
	}
	return resp, toStatus(err)
}

// authUnary resolves the caller from "authorization: Bearer <jwt>" metadata.
// Health checks and reflection are served without credentials.
func authUnary(authn *auth.Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		var header string
		if v := md.Get("authorization"); len(v) > 0 {
			header = v[0]
		}
		p, err := authn.FromHeader(ctx, header)
		if err != nil {
			return nil, err
		}
		return handler(auth.WithPrincipal(ctx, p), req)
	}
}

func logUnary(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		logger := log.With().Str("grpc_method", info.FullMethod).Logger()
		resp, err := handler(logger.WithContext(ctx), req)
		code := status.Code(err)
		m.RecordGRPC(info.FullMethod, code.String())

		ev := logger.Info()
		if code != codes.OK {
			ev = logger.Warn().Err(err)
		}
		ev.Str("code", code.String()).Dur("latency", time.Since(start)).Msg("grpc request")
		return resp, err
	}
}
