package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gc-eligibility-server/internal/config"
	"github.com/gc-eligibility-server/internal/mcp"
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

	// stdout carries the protocol.
	cfg := configManager.GetConfig()
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := setup.Build(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize components")
	}

	server, err := mcp.NewServer(configManager, components.Assessor,
		mcp.WithLogger(logger),
		mcp.WithFeedbackStore(components.Feedback),
	)
	if err != nil {
		components.Close()
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server stopped with error")
	}

	// server.Close closes the feedback store.
	if err := server.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close feedback store")
	}
	if err := components.Cache.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close response cache")
	}
	logger.Info("MCP server stopped")
}
