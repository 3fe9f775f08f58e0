package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hazardcam/internal/app"
	"hazardcam/internal/config"
	"hazardcam/internal/logger"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.LogDirectory, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	application, err := app.New(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		application.Close()
		log.Fatalf("Server error: %v", err)
	}
}
