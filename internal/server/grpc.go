package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "loandesk/backend/internal/health/handler"
)

// RegisterServices registers the gRPC services with the given server. Only the standard
// health service is exposed over gRPC; the API itself is HTTP.
func RegisterServices(s grpc.ServiceRegistrar, checker *healthhandler.Checker) {
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(checker))
}

// NewGRPCServer returns a gRPC server traced through the global OpenTelemetry providers
// with every service registered.
func NewGRPCServer(checker *healthhandler.Checker, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, checker)
	return s
}
