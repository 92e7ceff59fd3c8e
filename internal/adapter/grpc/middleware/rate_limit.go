package middleware

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"user-record-service/pkg/logger"
	"user-record-service/pkg/ratelimit"
)

// RateLimiter limits unary calls per method and client address.
type RateLimiter struct {
	limiter ratelimit.Limiter
	log     *zap.Logger
}

// NewRateLimiter creates a new rate limiter interceptor. A nil limiter
// disables limiting.
func NewRateLimiter(limiter ratelimit.Limiter, log *zap.Logger) *RateLimiter {
	return &RateLimiter{limiter: limiter, log: log}
}

// UnaryInterceptor returns a gRPC unary interceptor for rate limiting.
// Redis failures let the call through.
func (rl *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if rl.limiter == nil {
			return handler(ctx, req)
		}

		clientIP := clientAddr(ctx)
		allowed, err := rl.limiter.Allow(ctx, info.FullMethod+":"+clientIP)
		if err != nil {
			logger.WithContext(ctx, rl.log).Warn("rate limiter redis error, allowing request",
				zap.String("client_ip", clientIP),
				zap.String("method", info.FullMethod),
				zap.Error(err),
			)
			return handler(ctx, req)
		}

		if !allowed {
			logger.WithContext(ctx, rl.log).Warn("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("method", info.FullMethod),
			)
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}

		return handler(ctx, req)
	}
}

// clientAddr prefers proxy headers over the peer address.
func clientAddr(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if xff := md.Get("x-forwarded-for"); len(xff) > 0 {
			return xff[0]
		}
		if xri := md.Get("x-real-ip"); len(xri) > 0 {
			return xri[0]
		}
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}

	return "unknown"
}
