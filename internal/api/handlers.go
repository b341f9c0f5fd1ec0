package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gc-eligibility-server/internal/domain"
	"github.com/gc-eligibility-server/internal/middleware"
	"github.com/gc-eligibility-server/pkg/external"
)

// AssessRequest is the body of POST /api/v1/assess.
type AssessRequest struct {
	Text           string                 `json:"text"`
	ExplicitFields *domain.ExplicitFields `json:"explicit_fields,omitempty"`
}

func (s *Server) handleAssess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.WrapAssessmentError(domain.ErrInvalidInput, "malformed request body", err))
		return
	}

	result, err := s.deps.Assessor.Assess(c.Request.Context(), req.Text, req.ExplicitFields)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleAssessDocument accepts a multipart upload with fields "file", "type"
// and an optional "explicit_fields" JSON object.
func (s *Server) handleAssessDocument(c *gin.Context) {
	if s.deps.Documents == nil {
		s.respondError(c, domain.NewAssessmentError(domain.ErrDocumentService, "document conversion is not configured", "", ""))
		return
	}

	maxUpload := s.configManager.GetServerConfig().MaxUploadBytes
	if maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, s.errorBody(c, domain.ErrInvalidInput, "document exceeds maximum upload size", ""))
			return
		}
		s.respondError(c, domain.WrapAssessmentError(domain.ErrInvalidInput, "file field is required", err))
		return
	}

	docType := domain.DocumentType(strings.ToLower(strings.TrimSpace(c.PostForm("type"))))
	if docType == "" {
		docType = domain.DocumentType(strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), "."))
	}
	if !docType.IsValid() {
		s.respondError(c, domain.NewValidationError("type", "document type must be pdf, docx or txt", docType))
		return
	}

	var explicit *domain.ExplicitFields
	if raw := c.PostForm("explicit_fields"); raw != "" {
		explicit = &domain.ExplicitFields{}
		if err := json.Unmarshal([]byte(raw), explicit); err != nil {
			s.respondError(c, domain.WrapAssessmentError(domain.ErrInvalidInput, "malformed explicit_fields", err))
			return
		}
	}

	file, err := header.Open()
	if err != nil {
		s.respondError(c, domain.WrapAssessmentError(domain.ErrInvalidInput, "unreadable upload", err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(c, domain.WrapAssessmentError(domain.ErrInvalidInput, "unreadable upload", err))
		return
	}

	doc, err := s.deps.Documents.Convert(c.Request.Context(), header.Filename, docType, content)
	if err != nil {
		s.respondError(c, documentError(err))
		return
	}

	result, err := s.deps.Assessor.Assess(c.Request.Context(), doc.Text, explicit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleScore(c *gin.Context) {
	record := domain.NewCandidateRecord()
	if err := c.ShouldBindJSON(&record); err != nil {
		s.respondError(c, domain.WrapAssessmentError(domain.ErrInvalidInput, "malformed candidate record", err))
		return
	}

	result, err := s.deps.Assessor.ScoreRecord(c.Request.Context(), record)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func documentError(err error) error {
	switch {
	case errors.Is(err, external.ErrUnsupportedDocument):
		return domain.WrapAssessmentError(domain.ErrInvalidInput, "unsupported document", err)
	default:
		return domain.WrapAssessmentError(domain.ErrDocumentService, "document conversion failed", err)
	}
}

// respondError writes err as an AssessmentError body with a matching status.
func (s *Server) respondError(c *gin.Context, err error) {
	status, code := classify(err)

	message := err.Error()
	details := ""
	var ae *domain.AssessmentError
	if errors.As(err, &ae) {
		message = ae.Message
		details = ae.Details
	}

	entry := s.logger.WithError(err).WithFields(logrus.Fields{
		"code":           code,
		"status":         status,
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	c.AbortWithStatusJSON(status, s.errorBody(c, code, message, details))
}

func (s *Server) errorBody(c *gin.Context, code, message, details string) *domain.AssessmentError {
	return domain.NewAssessmentError(code, message, details, c.GetString(middleware.CorrelationIDKey))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound, domain.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, domain.ErrInternalServer
	case errors.Is(err, external.ErrDocumentServiceUnavailable):
		return http.StatusServiceUnavailable, domain.ErrDocumentService
	}

	code := domain.ErrorCode(err)
	switch code {
	case domain.ErrInvalidInput:
		return http.StatusBadRequest, code
	case domain.ErrNotFound:
		return http.StatusNotFound, code
	case domain.ErrRateLimit:
		return http.StatusTooManyRequests, code
	case domain.ErrDocumentService, domain.ErrExtractionService:
		return http.StatusBadGateway, code
	default:
		return http.StatusInternalServerError, code
	}
}
