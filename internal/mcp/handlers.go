package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gc-eligibility-server/internal/domain"
	"github.com/gc-eligibility-server/internal/feedback"
)

const (
	toolAssessCandidate   = "assess_candidate"
	toolScoreRecord       = "score_record"
	toolRecordFeedback    = "record_feedback"
	toolFeedbackAgreement = "feedback_agreement"
)

// AssessCandidateParams defines parameters for the assess_candidate tool
type AssessCandidateParams struct {
	Text           string                 `json:"text" jsonschema:"free-text medical history of the candidate"`
	ExplicitFields *domain.ExplicitFields `json:"explicit_fields,omitempty" jsonschema:"caller-supplied values that override extracted ones"`
}

// ScoreRecordParams defines parameters for the score_record tool
type ScoreRecordParams struct {
	// Record is decoded over domain.NewCandidateRecord so omitted fields keep
	// their defaults.
	Record map[string]any `json:"record" jsonschema:"structured candidate record"`
}

// RecordFeedbackParams defines parameters for the record_feedback tool
type RecordFeedbackParams struct {
	AssessmentID        string `json:"assessment_id"`
	Profile             string `json:"profile" jsonschema:"strict, moderate or lenient"`
	PredictedAcceptance string `json:"predicted_acceptance"`
	PredictedScore      int    `json:"predicted_score"`
	ActualDecision      string `json:"actual_decision" jsonschema:"approved, declined or records_requested"`
	Notes               string `json:"notes,omitempty"`
}

// FeedbackAgreementParams takes no arguments.
type FeedbackAgreementParams struct{}

func (s *Server) handleAssessCandidate(ctx context.Context, req *mcp.CallToolRequest, params AssessCandidateParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolAssessCandidate).Info("Tool invoked")

	result, err := s.assessor.Assess(ctx, params.Text, params.ExplicitFields)
	if err != nil {
		return s.createErrorResult("assessment failed", err), nil, nil
	}

	summary := fmt.Sprintf("Assessment %s: strict %s (%d), moderate %s (%d), lenient %s (%d); specialist %s",
		result.AssessmentID,
		result.ClinicAssessments.Strict.AcceptanceLevel, result.ClinicAssessments.Strict.Score,
		result.ClinicAssessments.Moderate.AcceptanceLevel, result.ClinicAssessments.Moderate.Score,
		result.ClinicAssessments.Lenient.AcceptanceLevel, result.ClinicAssessments.Lenient.Score,
		result.SpecialistAssessment.Likelihood,
	)
	return s.jsonResult(summary, result)
}

func (s *Server) handleScoreRecord(ctx context.Context, req *mcp.CallToolRequest, params ScoreRecordParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolScoreRecord).Info("Tool invoked")

	record := domain.NewCandidateRecord()
	raw, err := json.Marshal(params.Record)
	if err == nil {
		err = json.Unmarshal(raw, &record)
	}
	if err != nil {
		return s.createErrorResult("malformed candidate record", err), nil, nil
	}

	result, err := s.assessor.ScoreRecord(ctx, record)
	if err != nil {
		return s.createErrorResult("scoring failed", err), nil, nil
	}

	summary := fmt.Sprintf("Scores: strict %d, moderate %d, lenient %d; specialist %s",
		result.ClinicAssessments.Strict.Score,
		result.ClinicAssessments.Moderate.Score,
		result.ClinicAssessments.Lenient.Score,
		result.SpecialistAssessment.Likelihood,
	)
	return s.jsonResult(summary, result)
}

func (s *Server) handleRecordFeedback(ctx context.Context, req *mcp.CallToolRequest, params RecordFeedbackParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolRecordFeedback).Info("Tool invoked")

	fb := &feedback.Feedback{
		AssessmentID:        params.AssessmentID,
		Profile:             domain.ClinicProfile(params.Profile),
		PredictedAcceptance: domain.AcceptanceLevel(params.PredictedAcceptance),
		PredictedScore:      params.PredictedScore,
		ActualDecision:      feedback.Decision(params.ActualDecision),
		Notes:               params.Notes,
	}
	if err := s.feedbackStore.Save(ctx, fb); err != nil {
		return s.createErrorResult("failed to record feedback", err), nil, nil
	}

	summary := fmt.Sprintf("Recorded %s decision for assessment %s (%s profile)", fb.ActualDecision, fb.AssessmentID, fb.Profile)
	return s.jsonResult(summary, fb)
}

func (s *Server) handleFeedbackAgreement(ctx context.Context, req *mcp.CallToolRequest, params FeedbackAgreementParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolFeedbackAgreement).Info("Tool invoked")

	stats, err := s.feedbackStore.Agreement(ctx)
	if err != nil {
		return s.createErrorResult("failed to compute agreement", err), nil, nil
	}

	summary := "Agreement by profile:"
	for _, st := range stats {
		summary += fmt.Sprintf(" %s %d/%d", st.Profile, st.Agreed, st.Total)
	}
	return s.jsonResult(summary, map[string]interface{}{"profiles": stats})
}

// jsonResult returns a summary line followed by the indented JSON payload.
func (s *Server) jsonResult(summary string, payload interface{}) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.createErrorResult("failed to encode result", err), nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, payload, nil
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
		s.logger.WithError(err).WithField("code", domain.ErrorCode(err)).Warn(message)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
