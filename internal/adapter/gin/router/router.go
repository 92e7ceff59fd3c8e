package router

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"user-record-service/internal/adapter/gin/handler"
	"user-record-service/internal/adapter/gin/middleware"
	"user-record-service/pkg/logger"
	"user-record-service/pkg/ratelimit"
)

//go:embed openapi.json
var openAPIDoc []byte

// OpenAPIPath serves the raw document the Swagger UI loads.
const OpenAPIPath = "/openapi.json"

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Options carries the optional parts of the router.
type Options struct {
	ServiceName  string
	Limiter      ratelimit.Limiter
	HealthChecks map[string]HealthCheck
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(userHandler *handler.UserHandler, opts Options, log *zap.Logger) *gin.Engine {
	router := gin.New()

	// Logger wraps Recovery so recovered panics still get an access line
	router.Use(logger.RequestIDMiddleware())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	router.GET("/health", healthHandler(opts))
	router.GET(OpenAPIPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", openAPIDoc)
	})
	router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL(OpenAPIPath))))

	v1 := router.Group("/v1")
	v1.Use(middleware.RateLimiter(opts.Limiter, log))
	{
		users := v1.Group("/users")
		{
			users.POST("", userHandler.CreateUser)
			users.POST("/validate", userHandler.ValidateUser)
			users.GET("", userHandler.ListUsers)
			users.GET("/:id", userHandler.GetUser)
			users.PUT("/:id", userHandler.UpdateUser)
			users.DELETE("/:id", userHandler.DeleteUser)
		}
	}

	return router
}

func healthHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := make(map[string]string, len(opts.HealthChecks))
		healthy := true
		for name, check := range opts.HealthChecks {
			if err := check(c.Request.Context()); err != nil {
				checks[name] = err.Error()
				healthy = false
				continue
			}
			checks[name] = "ok"
		}

		code, status := http.StatusOK, "healthy"
		if !healthy {
			code, status = http.StatusServiceUnavailable, "unhealthy"
		}

		c.JSON(code, gin.H{
			"status":  status,
			"service": opts.ServiceName,
			"checks":  checks,
		})
	}
}
