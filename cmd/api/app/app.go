package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"

	"user-record-service/cmd/api/di"
	"user-record-service/cmd/api/server"
	"user-record-service/internal/config"
	"user-record-service/pkg/logger"
)

// App represents the application
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Server    *server.Server
	Container *di.Container
}

// New loads configuration from CONFIG_PATH (default ".") and wires the
// application.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.NewWithConfig(logger.Config{
		Level:            cfg.Logger.Level,
		Format:           cfg.Logger.Format,
		OutputPath:       cfg.Logger.OutputPath,
		SlowQuerySeconds: cfg.Logger.SlowQuerySeconds,
		EnableSampling:   cfg.Logger.EnableSampling,
		ServiceName:      cfg.Logger.ServiceName,
		ServiceVersion:   cfg.Logger.ServiceVersion,
		Environment:      cfg.App.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	container, err := di.NewContainer(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	return &App{
		Config:    cfg,
		Logger:    l,
		Server:    server.New(container),
		Container: container,
	}, nil
}

// Run serves until ctx is canceled or a server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("starting application",
		zap.String("service", a.Config.Logger.ServiceName),
		zap.String("version", a.Config.Logger.ServiceVersion),
		zap.String("environment", a.Config.App.Env),
		zap.String("db_driver", a.Config.DB.Driver),
		zap.Bool("redis_enabled", a.Config.Redis.Enabled),
	)

	errChan := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("server panic: %v", r)
			}
		}()
		errChan <- a.Server.Start(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("shutting down application")
	case runErr = <-errChan:
		a.Logger.Error("server stopped unexpectedly", zap.Error(runErr))
	}

	return errors.Join(runErr, a.shutdown())
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.App.ShutdownTimeout)
	defer cancel()

	a.Logger.Info("starting graceful shutdown", zap.Duration("timeout", a.Config.App.ShutdownTimeout))

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("failed to shutdown servers", zap.Error(err))
		errs = append(errs, err)
	}

	if err := a.Container.Close(); err != nil {
		a.Logger.Error("failed to close container", zap.Error(err))
		errs = append(errs, fmt.Errorf("container close: %w", err))
	}

	a.Logger.Info("application shutdown complete")

	// stdout and stderr cannot be synced on most platforms
	if err := a.Logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		errs = append(errs, fmt.Errorf("logger sync: %w", err))
	}

	return errors.Join(errs...)
}

func getConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "."
}
