package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/gc-eligibility-server/internal/domain"
	"github.com/gc-eligibility-server/internal/feedback"
)

// Server exposes the assessment pipeline as MCP tools over stdio.
type Server struct {
	config        domain.ConfigManager
	assessor      domain.CandidateAssessor
	feedbackStore feedback.Store
	mcpServer     *mcp.Server
	logger        *logrus.Logger
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server)

// WithFeedbackStore enables the feedback tools.
func WithFeedbackStore(store feedback.Store) ServerOption {
	return func(s *Server) {
		s.feedbackStore = store
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server instance
func NewServer(configManager domain.ConfigManager, assessor domain.CandidateAssessor, opts ...ServerOption) (*Server, error) {
	if assessor == nil {
		return nil, fmt.Errorf("assessor is required")
	}

	server := &Server{
		config:   configManager,
		assessor: assessor,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(server)
	}

	cfg := configManager.GetConfig()
	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    cfg.MCP.ServerName,
		Version: cfg.MCP.ServerVersion,
	}, nil)

	server.registerTools()
	return server, nil
}

// Start runs the server on stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("transport", "stdio").Info("Starting MCP server")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close releases the feedback store, if any.
func (s *Server) Close() error {
	if s.feedbackStore != nil {
		return s.feedbackStore.Close()
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolAssessCandidate,
		Description: "Assess free-text candidate medical history against strict, moderate and lenient clinic profiles and predict specialist review.",
	}, s.handleAssessCandidate)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolScoreRecord,
		Description: "Score an already structured candidate record without running extraction.",
	}, s.handleScoreRecord)

	count := 2
	if s.feedbackStore != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        toolRecordFeedback,
			Description: "Record the decision a clinic actually made for an assessed candidate.",
		}, s.handleRecordFeedback)

		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        toolFeedbackAgreement,
			Description: "Report how often predicted acceptance levels matched recorded clinic decisions, per profile.",
		}, s.handleFeedbackAgreement)
		count += 2
	}

	s.logger.WithField("tool_count", count).Info("Registered MCP tools")
}
