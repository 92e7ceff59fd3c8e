package infrastructure

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"user-record-service/internal/config"
	redisclient "user-record-service/pkg/redis"
)

// NewRedisClient connects to Redis. It returns nil without error when Redis
// is disabled.
func NewRedisClient(ctx context.Context, cfg *config.Config, l *zap.Logger) (*redisclient.Client, error) {
	if !cfg.Redis.Enabled {
		l.Info("redis disabled, caching and rate limiting are off")
		return nil, nil
	}

	rdb, err := redisclient.NewClient(ctx, redisclient.Config{
		Addr:        cfg.Redis.Addr(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		MaxRetries:  cfg.Redis.MaxRetries,
		PoolSize:    cfg.Redis.PoolSize,
		MinIdleConn: cfg.Redis.MinIdleConn,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}
