package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"user-record-service/cmd/api/di"
	ginrouter "user-record-service/internal/adapter/gin/router"
)

// Server runs the gRPC and REST listeners.
type Server struct {
	Logger *zap.Logger
	GRPC   *grpc.Server
	Health *health.Server
	Gin    *http.Server

	grpcAddr string
}

// New builds both servers from the container.
func New(c *di.Container) *Server {
	grpcServer, healthServer := SetupGRPC(c.UserUC, c.GRPCLimiter, c.Logger)

	checks := map[string]ginrouter.HealthCheck{"database": c.PingDatabase}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient.Healthy
	}

	return &Server{
		Logger: c.Logger,
		GRPC:   grpcServer,
		Health: healthServer,
		Gin: SetupGinServer(c.GinHandler, ginrouter.Options{
			ServiceName:  c.Config.Logger.ServiceName,
			Limiter:      c.HTTPLimiter,
			HealthChecks: checks,
		}, ":"+c.Config.App.HTTPPort, c.Logger),
		grpcAddr: ":" + c.Config.App.GRPCPort,
	}
}

// Start serves gRPC and HTTP until either fails or both are shut down.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	lis, err := lc.Listen(ctx, "tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.grpcAddr, err)
	}

	var g errgroup.Group
	g.Go(func() error {
		s.Logger.Info("gRPC server running", zap.String("address", s.grpcAddr))
		if err := s.GRPC.Serve(lis); err != nil {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.Logger.Info("gin server running", zap.String("address", s.Gin.Addr))
		if err := s.Gin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gin server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Shutdown marks the service as not serving and drains both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Health.Shutdown()

	var errs []error
	if err := s.Gin.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("gin shutdown: %w", err))
	}

	stopped := make(chan struct{})
	go func() {
		s.GRPC.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.GRPC.Stop()
		errs = append(errs, fmt.Errorf("gRPC graceful stop: %w", ctx.Err()))
	}

	return errors.Join(errs...)
}
