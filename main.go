package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"step-tracker/internal/app"
	"step-tracker/internal/config"
	"step-tracker/internal/logging"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create application", zap.Error(err))
	}

	if err := application.Start(); err != nil {
		logger.Fatal("failed to start application", zap.Error(err))
	}
	defer application.Stop()

	waitForShutdown()
	logger.Info("shutting down")
}

func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
}
