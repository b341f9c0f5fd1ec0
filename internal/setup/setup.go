// Package setup assembles the assessment components shared by the HTTP and
// MCP entry points from a loaded configuration.
package setup

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gc-eligibility-server/internal/database"
	"github.com/gc-eligibility-server/internal/domain"
	"github.com/gc-eligibility-server/internal/feedback"
	"github.com/gc-eligibility-server/internal/service"
	"github.com/gc-eligibility-server/pkg/external"
)

// Components holds the wired collaborators. Extraction is nil when the AI
// stage is disabled.
type Components struct {
	Cache      *external.ResponseCache
	Extraction *external.ExtractionClient
	Documents  *external.DocumentClient
	Assessor   *service.Assessor
	Feedback   feedback.Store
	logger     *logrus.Logger
}

// Build wires every component from the configuration.
func Build(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) (*Components, error) {
	cfg := configManager.GetConfig()
	c := &Components{logger: logger}

	responseCache, err := external.NewResponseCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("creating response cache: %w", err)
	}
	c.Cache = responseCache

	opts := service.AssessorOptions{
		AITimeout:     cfg.Extraction.Timeout,
		MaxInputBytes: cfg.Assessment.MaxInputBytes,
	}
	if configManager.IsAIEnabled() {
		client, err := external.NewExtractionClient(cfg.Extraction, responseCache, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("creating extraction client: %w", err)
		}
		c.Extraction = client
		opts.AIClient = client
		logger.WithField("base_url", cfg.Extraction.BaseURL).Info("AI extraction enabled")
	} else {
		logger.Info("AI extraction disabled")
	}

	c.Documents = external.NewDocumentClient(cfg.Document, logger)
	c.Assessor = service.NewAssessor(logger, opts)

	store, err := database.OpenFeedbackStore(ctx, cfg.Feedback, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opening feedback store: %w", err)
	}
	c.Feedback = store

	return c, nil
}

// BreakerState reports the extraction circuit state, or "disabled".
func (c *Components) BreakerState() string {
	if c.Extraction == nil {
		return "disabled"
	}
	return c.Extraction.State()
}

// Close releases the feedback store and cache connections.
func (c *Components) Close() error {
	var errs []error
	if c.Feedback != nil {
		if err := c.Feedback.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing feedback store: %w", err))
		}
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing response cache: %w", err))
		}
	}
	return errors.Join(errs...)
}
