package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcadapter "user-record-service/internal/adapter/grpc"
	"user-record-service/internal/adapter/grpc/middleware"
	"user-record-service/internal/usecase/user"
	"user-record-service/pkg/logger"
	"user-record-service/pkg/ratelimit"
)

// SetupGRPC creates the gRPC server with the user and health services.
// Request IDs are assigned before rate limiting so rejections are traceable.
func SetupGRPC(userUC user.Service, limiter ratelimit.Limiter, l *zap.Logger) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RequestIDInterceptor(),
			middleware.NewRateLimiter(limiter, l).UnaryInterceptor(),
		),
	)
	grpcadapter.RegisterUserServiceServer(grpcServer, grpcadapter.NewUserServiceServer(userUC, l))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpcadapter.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return grpcServer, healthServer
}
