// Package feedback stores reviewer outcomes for assessments. Clinic
// coordinators record the decision a clinic actually made so predicted
// acceptance levels can be compared with real outcomes.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gc-eligibility-server/internal/domain"
)

// Decision is the clinic's actual decision on a candidate.
type Decision string

const (
	DecisionApproved         Decision = "approved"
	DecisionDeclined         Decision = "declined"
	DecisionRecordsRequested Decision = "records_requested"
)

// IsValid reports whether the decision is known.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApproved, DecisionDeclined, DecisionRecordsRequested:
		return true
	default:
		return false
	}
}

// Feedback is a reviewer's recorded outcome for one assessment and profile.
type Feedback struct {
	ID                  int64                  `json:"id,omitempty"`
	AssessmentID        string                 `json:"assessment_id"`
	Profile             domain.ClinicProfile   `json:"profile"`
	PredictedAcceptance domain.AcceptanceLevel `json:"predicted_acceptance"`
	PredictedScore      int                    `json:"predicted_score"`
	ActualDecision      Decision               `json:"actual_decision"`
	Notes               string                 `json:"notes,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// Validate checks required fields and vocabularies.
func (f *Feedback) Validate() error {
	if f.AssessmentID == "" {
		return domain.NewValidationError("assessment_id", "assessment ID is required", f.AssessmentID)
	}
	if !f.Profile.IsValid() {
		return domain.NewValidationError("profile", "unknown clinic profile", f.Profile)
	}
	switch f.PredictedAcceptance {
	case domain.ACCEPTANCE_LIKELY, domain.ACCEPTANCE_CONDITIONAL, domain.ACCEPTANCE_UNLIKELY:
	default:
		return domain.NewValidationError("predicted_acceptance", "unknown acceptance level", f.PredictedAcceptance)
	}
	if f.PredictedScore < 0 || f.PredictedScore > 100 {
		return domain.NewValidationError("predicted_score", "score must be between 0 and 100", f.PredictedScore)
	}
	if !f.ActualDecision.IsValid() {
		return domain.NewValidationError("actual_decision", "unknown decision", f.ActualDecision)
	}
	return nil
}

// Agreed reports whether the predicted acceptance matched the clinic's
// decision.
func (f *Feedback) Agreed() bool {
	switch f.PredictedAcceptance {
	case domain.ACCEPTANCE_LIKELY:
		return f.ActualDecision == DecisionApproved
	case domain.ACCEPTANCE_CONDITIONAL:
		return f.ActualDecision == DecisionRecordsRequested
	case domain.ACCEPTANCE_UNLIKELY:
		return f.ActualDecision == DecisionDeclined
	default:
		return false
	}
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save stores or updates feedback. Entries are unique per assessment ID
	// and profile.
	Save(ctx context.Context, feedback *Feedback) error

	// Get returns domain.ErrRecordNotFound when no entry exists.
	Get(ctx context.Context, assessmentID string, profile domain.ClinicProfile) (*Feedback, error)

	// List returns entries newest first.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	Count(ctx context.Context) (int64, error)

	Delete(ctx context.Context, id int64) error

	// Agreement reports per-profile agreement between predictions and
	// recorded decisions.
	Agreement(ctx context.Context) ([]AgreementStats, error)

	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON skips entries that already exist or fail validation.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// FeedbackExport represents the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

// AgreementStats summarizes prediction accuracy for one profile.
type AgreementStats struct {
	Profile domain.ClinicProfile `json:"profile"`
	Total   int                  `json:"total"`
	Agreed  int                  `json:"agreed"`
	Rate    float64              `json:"rate"`
}

// ComputeAgreement aggregates entries per profile in profile order.
func ComputeAgreement(entries []*Feedback) []AgreementStats {
	byProfile := make(map[domain.ClinicProfile]*AgreementStats)
	for _, p := range domain.ClinicProfiles {
		byProfile[p] = &AgreementStats{Profile: p}
	}
	for _, fb := range entries {
		stats, ok := byProfile[fb.Profile]
		if !ok {
			continue
		}
		stats.Total++
		if fb.Agreed() {
			stats.Agreed++
		}
	}

	out := make([]AgreementStats, 0, len(domain.ClinicProfiles))
	for _, p := range domain.ClinicProfiles {
		stats := byProfile[p]
		if stats.Total > 0 {
			stats.Rate = float64(stats.Agreed) / float64(stats.Total)
		}
		out = append(out, *stats)
	}
	return out
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

const exportVersion = "1.0"

func writeExport(writer io.Writer, entries []*Feedback) error {
	if entries == nil {
		entries = []*Feedback{}
	}
	export := &FeedbackExport{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(entries),
		Feedback:   entries,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func readExport(reader io.Reader) (*FeedbackExport, error) {
	var export FeedbackExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return &export, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanFeedback scans a row into a Feedback struct.
func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	var profile, acceptance, decision string

	err := s.Scan(
		&fb.ID, &fb.AssessmentID, &profile, &acceptance, &fb.PredictedScore,
		&decision, &fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	fb.Profile = domain.ClinicProfile(profile)
	fb.PredictedAcceptance = domain.AcceptanceLevel(acceptance)
	fb.ActualDecision = Decision(decision)
	return fb, nil
}

const selectColumns = `id, assessment_id, profile, predicted_acceptance, predicted_score,
			actual_decision, notes, created_at, updated_at`
