package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gc-eligibility-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open PostgreSQL handle. The schema must already
// exist; see database.MigrationRunner.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Save stores or updates feedback.
func (s *PostgresStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := feedback.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO assessment_feedback (
			assessment_id, profile, predicted_acceptance, predicted_score,
			actual_decision, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (assessment_id, profile) DO UPDATE SET
			predicted_acceptance = EXCLUDED.predicted_acceptance,
			predicted_score = EXCLUDED.predicted_score,
			actual_decision = EXCLUDED.actual_decision,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		feedback.AssessmentID,
		string(feedback.Profile),
		string(feedback.PredictedAcceptance),
		feedback.PredictedScore,
		string(feedback.ActualDecision),
		feedback.Notes,
		now,
		now,
	).Scan(&feedback.ID, &feedback.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	feedback.UpdatedAt = now
	return nil
}

// Get retrieves the feedback for an assessment and profile.
func (s *PostgresStore) Get(ctx context.Context, assessmentID string, profile domain.ClinicProfile) (*Feedback, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM assessment_feedback
		WHERE assessment_id = $1 AND profile = $2
		LIMIT 1
	`

	fb, err := scanFeedback(s.db.QueryRowContext(ctx, query, assessmentID, string(profile)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return fb, nil
}

// List returns feedback entries with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM assessment_feedback
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	result := []*Feedback{}
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, fb)
	}

	return result, rows.Err()
}

// Count returns the total number of feedback entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assessment_feedback").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

// Delete removes a feedback entry by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM assessment_feedback WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// Agreement computes per-profile agreement in the database.
func (s *PostgresStore) Agreement(ctx context.Context) ([]AgreementStats, error) {
	query := `
		SELECT profile,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE
				(predicted_acceptance = $1 AND actual_decision = $2) OR
				(predicted_acceptance = $3 AND actual_decision = $4) OR
				(predicted_acceptance = $5 AND actual_decision = $6)
			) AS agreed
		FROM assessment_feedback
		GROUP BY profile
	`

	rows, err := s.db.QueryContext(ctx, query,
		string(domain.ACCEPTANCE_LIKELY), string(DecisionApproved),
		string(domain.ACCEPTANCE_CONDITIONAL), string(DecisionRecordsRequested),
		string(domain.ACCEPTANCE_UNLIKELY), string(DecisionDeclined),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute agreement: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ClinicProfile][2]int)
	for rows.Next() {
		var profile string
		var total, agreed int
		if err := rows.Scan(&profile, &total, &agreed); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[domain.ClinicProfile(profile)] = [2]int{total, agreed}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]AgreementStats, 0, len(domain.ClinicProfiles))
	for _, p := range domain.ClinicProfiles {
		c := counts[p]
		stats := AgreementStats{Profile: p, Total: c[0], Agreed: c[1]}
		if stats.Total > 0 {
			stats.Rate = float64(stats.Agreed) / float64(stats.Total)
		}
		out = append(out, stats)
	}
	return out, nil
}

// ExportJSON exports all feedback to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}
	return writeExport(writer, all)
}

// ImportJSON imports feedback inside a single transaction. Existing entries
// are left untouched.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	export, err := readExport(reader)
	if err != nil {
		return 0, 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO assessment_feedback (
			assessment_id, profile, predicted_acceptance, predicted_score,
			actual_decision, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (assessment_id, profile) DO NOTHING
	`
	now := time.Now().UTC()
	for _, fb := range export.Feedback {
		if fb == nil || fb.Validate() != nil {
			skipped++
			continue
		}
		createdAt := fb.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		result, err := tx.ExecContext(ctx, query,
			fb.AssessmentID,
			string(fb.Profile),
			string(fb.PredictedAcceptance),
			fb.PredictedScore,
			string(fb.ActualDecision),
			fb.Notes,
			createdAt,
			now,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to import feedback: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			skipped++
			continue
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
