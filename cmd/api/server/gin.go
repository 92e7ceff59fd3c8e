package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ginhandler "user-record-service/internal/adapter/gin/handler"
	ginrouter "user-record-service/internal/adapter/gin/router"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(handler *ginhandler.UserHandler, opts ginrouter.Options, ginAddr string, l *zap.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := ginrouter.SetupRouter(handler, opts, l)

	l.Info("gin REST API configured", zap.String("address", ginAddr))

	return &http.Server{
		Addr:              ginAddr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
