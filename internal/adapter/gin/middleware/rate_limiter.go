package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-record-service/pkg/logger"
	"user-record-service/pkg/ratelimit"
)

// RateLimiter limits requests per method, route and client IP. A nil limiter
// disables it and Redis errors let the request through.
func RateLimiter(limiter ratelimit.Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := c.Request.Method + ":" + route + ":" + c.ClientIP()

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithContext(c.Request.Context(), log).Warn("rate limiter redis error, allowing request", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
