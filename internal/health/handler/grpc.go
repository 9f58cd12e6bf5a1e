package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Server implements grpc.health.v1.Health with status driven by the readiness checks.
type Server struct {
	healthpb.UnimplementedHealthServer
	checker *Checker
}

// NewServer returns a new Health gRPC server.
func NewServer(checker *Checker) *Server {
	return &Server{checker: checker}
}

// Check reports SERVING for the overall service ("") when every dependency answers.
// Dependency failures are reported as NOT_SERVING, never as a gRPC error.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if req.GetService() != "" {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	if s.checker != nil {
		if err := s.checker.Ready(ctx); err != nil {
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
