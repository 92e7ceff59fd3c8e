package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"user-record-service/cmd/api/app"
	"user-record-service/cmd/api/server"
)

func main() {
	a, err := app.New(context.Background())
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	ctx, stop := server.WithSignal(context.Background(), a.Logger)
	defer stop()

	if err := a.Run(ctx); err != nil {
		a.Logger.Fatal("application exited with error", zap.Error(err))
	}
}
