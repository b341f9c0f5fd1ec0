package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gc-eligibility-server/internal/domain"
	"github.com/gc-eligibility-server/internal/feedback"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func (s *Server) handleSaveFeedback(c *gin.Context) {
	var fb feedback.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		s.respondError(c, domain.WrapAssessmentError(domain.ErrInvalidInput, "malformed feedback", err))
		return
	}
	fb.ID = 0

	if err := s.deps.Feedback.Save(c.Request.Context(), &fb); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fb)
}

func (s *Server) handleGetFeedback(c *gin.Context) {
	profile := domain.ClinicProfile(c.Param("profile"))
	if !profile.IsValid() {
		s.respondError(c, domain.NewValidationError("profile", "unknown clinic profile", profile))
		return
	}

	fb, err := s.deps.Feedback.Get(c.Request.Context(), c.Param("assessmentId"), profile)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (s *Server) handleListFeedback(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit <= 0 || limit > maxPageSize {
		s.respondError(c, domain.NewValidationError("limit", "limit must be between 1 and 500", c.Query("limit")))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(c, domain.NewValidationError("offset", "offset must be non-negative", c.Query("offset")))
		return
	}

	ctx := c.Request.Context()
	entries, err := s.deps.Feedback.List(ctx, limit, offset)
	if err != nil {
		s.respondError(c, domain.WrapAssessmentError(domain.ErrDatabaseError, "failed to list feedback", err))
		return
	}
	total, err := s.deps.Feedback.Count(ctx)
	if err != nil {
		s.respondError(c, domain.WrapAssessmentError(domain.ErrDatabaseError, "failed to count feedback", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feedback": entries,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleDeleteFeedback(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, domain.NewValidationError("id", "id must be a positive integer", c.Param("id")))
		return
	}

	if err := s.deps.Feedback.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAgreement(c *gin.Context) {
	stats, err := s.deps.Feedback.Agreement(c.Request.Context())
	if err != nil {
		s.respondError(c, domain.WrapAssessmentError(domain.ErrDatabaseError, "failed to compute agreement", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": stats})
}

func (s *Server) handleExportFeedback(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="feedback-export.json"`)
	c.Status(http.StatusOK)
	if err := s.deps.Feedback.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).Error("Feedback export failed")
	}
}

func (s *Server) handleImportFeedback(c *gin.Context) {
	imported, skipped, err := s.deps.Feedback.ImportJSON(c.Request.Context(), c.Request.Body)
	if err != nil {
		s.respondError(c, domain.WrapAssessmentError(domain.ErrInvalidInput, "feedback import failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"skipped":  skipped,
	})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
