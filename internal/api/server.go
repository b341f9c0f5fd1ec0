package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gc-eligibility-server/internal/domain"
	"github.com/gc-eligibility-server/internal/feedback"
	"github.com/gc-eligibility-server/internal/middleware"
)

// Dependencies are the collaborators the HTTP surface delegates to.
type Dependencies struct {
	Assessor  domain.CandidateAssessor
	Documents domain.DocumentConverter
	// Feedback is optional; feedback routes are not registered without it.
	Feedback feedback.Store
	// BreakerState reports the extraction client's circuit state for /health.
	BreakerState func() string
	Logger       *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
	startedAt     time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) (*Server, error) {
	if deps.Assessor == nil {
		return nil, fmt.Errorf("assessor is required")
	}
	cfg := configManager.GetConfig()

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))

	if cfg.RateLimit.Enabled {
		limiter, err := middleware.NewClientRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, 0)
		if err != nil {
			return nil, fmt.Errorf("creating rate limiter: %w", err)
		}
		router.Use(middleware.RateLimit(limiter))
	}

	if cfg.Server.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	}

	server := &Server{
		configManager: configManager,
		deps:          deps,
		logger:        logger,
		router:        router,
		startedAt:     time.Now(),
	}

	server.setupRoutes()

	return server, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/assess", s.handleAssess)
		v1.POST("/assess/document", s.handleAssessDocument)
		v1.POST("/score", s.handleScore)
	}

	if s.deps.Feedback != nil {
		fb := v1.Group("/feedback")
		{
			fb.POST("", s.handleSaveFeedback)
			fb.GET("", s.handleListFeedback)
			fb.GET("/agreement", s.handleAgreement)
			fb.GET("/export", s.handleExportFeedback)
			fb.POST("/import", s.handleImportFeedback)
			fb.GET("/assessments/:assessmentId/:profile", s.handleGetFeedback)
			fb.DELETE("/:id", s.handleDeleteFeedback)
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	cfg := s.configManager.GetConfig()

	extraction := gin.H{"enabled": s.configManager.IsAIEnabled()}
	if s.deps.BreakerState != nil {
		extraction["breaker_state"] = s.deps.BreakerState()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    cfg.MCP.ServerVersion,
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
		"extraction": extraction,
		"feedback":   s.deps.Feedback != nil,
	})
}
