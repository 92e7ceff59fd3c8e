package di

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-record-service/cmd/api/infrastructure"
	"user-record-service/internal/adapter/cache"
	"user-record-service/internal/adapter/db/postgres"
	ginhandler "user-record-service/internal/adapter/gin/handler"
	"user-record-service/internal/adapter/repository/cached"
	"user-record-service/internal/config"
	"user-record-service/internal/usecase/user"
	"user-record-service/pkg/ratelimit"
	redisclient "user-record-service/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	RedisClient *redisclient.Client
	UserUC      user.Service
	GinHandler  *ginhandler.UserHandler

	// nil when rate limiting is off
	GRPCLimiter ratelimit.Limiter
	HTTPLimiter ratelimit.Limiter
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
	if err != nil {
		_ = infrastructure.CloseDatabase(db)
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	c := &Container{
		Config:      cfg,
		Logger:      l,
		DB:          db,
		RedisClient: rdb,
	}

	var repo user.Repository = postgres.NewUserRepoPG(db, l)
	if rdb != nil {
		userCache := cache.NewRedisUserCache(rdb.Client, cfg.Redis.CacheTTL, l)
		repo = cached.NewCachedUserRepository(repo, userCache, l)
	}

	switch {
	case !cfg.RateLimit.Enabled:
	case rdb == nil:
		l.Warn("rate limiting enabled but redis is disabled, requests are not limited")
	default:
		c.GRPCLimiter = ratelimit.NewFixedWindow(rdb.Client, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.WindowSeconds)
		c.HTTPLimiter = ratelimit.NewTokenBucket(rdb.Client, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstCapacity)
	}

	c.UserUC = user.New(repo, l)
	c.GinHandler = ginhandler.NewUserHandler(c.UserUC, l)

	return c, nil
}

// PingDatabase is the database health check.
func (c *Container) PingDatabase(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if err := infrastructure.CloseDatabase(c.DB); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	return errors.Join(errs...)
}
