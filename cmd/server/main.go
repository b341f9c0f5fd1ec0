package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gc-eligibility-server/internal/api"
	"github.com/gc-eligibility-server/internal/config"
	"github.com/gc-eligibility-server/internal/setup"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := setup.Build(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize components")
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.WithError(err).Warn("Shutdown cleanup failed")
		}
	}()

	server, err := api.NewServer(configManager, api.Dependencies{
		Assessor:     components.Assessor,
		Documents:    components.Documents,
		Feedback:     components.Feedback,
		BreakerState: components.BreakerState,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create HTTP server")
	}

	logger.WithField("port", cfg.Server.Port).Info("Starting gestational carrier eligibility server")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return
	}

	logger.Info("Server stopped")
}
