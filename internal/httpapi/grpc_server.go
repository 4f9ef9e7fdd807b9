package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"tenantcrm.dev/internal/obs"
)

// GRPCServer answers grpc.health.v1.Health from the same readiness probe
// as /readyz.
type GRPCServer struct {
	healthpb.UnimplementedHealthServer

	readiness readinessChecker
	timeout   time.Duration
}

// NewGRPCServer creates the health service. A nil checker always reports
// SERVING.
func NewGRPCServer(r readinessChecker) *GRPCServer {
	return &GRPCServer{readiness: r, timeout: 2 * time.Second}
}

// Register attaches the service to srv.
func (s *GRPCServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s)
}

// Check reports the overall status for "" and the API service name.
func (s *GRPCServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", serviceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if s.readiness != nil {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.readiness.Check(ctx); err != nil {
			obs.Logger().Warn().Err(err).Msg("grpc health check failed")
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
