package feedback

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gc-eligibility-server/internal/domain"
)

var feedbackColumns = []string{
	"id", "assessment_id", "profile", "predicted_acceptance", "predicted_score",
	"actual_decision", "notes", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func sampleFeedback() *Feedback {
	return &Feedback{
		AssessmentID:        "7f6c3f9e-2d1a-4b8e-9c51-0a3f1e2d4b6c",
		Profile:             domain.PROFILE_STRICT,
		PredictedAcceptance: domain.ACCEPTANCE_LIKELY,
		PredictedScore:      95,
		ActualDecision:      DecisionApproved,
		Notes:               "Approved after medical records review",
	}
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fb := sampleFeedback()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO assessment_feedback")).
		WithArgs(fb.AssessmentID, "strict", "Likely to Approve", 95, "approved", fb.Notes, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))

	err := store.Save(context.Background(), fb)

	require.NoError(t, err)
	assert.Equal(t, int64(7), fb.ID)
	assert.Equal(t, created, fb.CreatedAt)
	assert.False(t, fb.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRejectsInvalid(t *testing.T) {
	store, mock := newMockStore(t)
	fb := sampleFeedback()
	fb.ActualDecision = "maybe"

	err := store.Save(context.Background(), fb)

	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.NoError(t, mock.ExpectationsWereMet(), "no query is issued")
}

func TestPostgresStore_SaveDatabaseError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO assessment_feedback").WillReturnError(errors.New("connection reset"))

	err := store.Save(context.Background(), sampleFeedback())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save feedback")
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM assessment_feedback")).
		WithArgs("a-1", "moderate").
		WillReturnRows(sqlmock.NewRows(feedbackColumns).
			AddRow(int64(3), "a-1", "moderate", "May Approve with Additional Records", 48, "records_requested", "", now, now))

	fb, err := store.Get(context.Background(), "a-1", domain.PROFILE_MODERATE)

	require.NoError(t, err)
	assert.Equal(t, int64(3), fb.ID)
	assert.Equal(t, domain.PROFILE_MODERATE, fb.Profile)
	assert.Equal(t, domain.ACCEPTANCE_CONDITIONAL, fb.PredictedAcceptance)
	assert.Equal(t, 48, fb.PredictedScore)
	assert.True(t, fb.Agreed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM assessment_feedback").
		WithArgs("missing", "strict").
		WillReturnRows(sqlmock.NewRows(feedbackColumns))

	_, err := store.Get(context.Background(), "missing", domain.PROFILE_STRICT)

	assert.True(t, errors.Is(err, domain.ErrRecordNotFound))
}

func TestPostgresStore_ListAndCount(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(feedbackColumns).
			AddRow(int64(2), "a-2", "lenient", "Likely to Approve", 90, "declined", "", now, now).
			AddRow(int64(1), "a-1", "strict", "Unlikely to Approve", 5, "declined", "", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assessment_feedback")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	list, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a-2", list[0].AssessmentID)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assessment_feedback WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assessment_feedback WHERE id = $1")).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Delete(context.Background(), 3))
	assert.True(t, errors.Is(store.Delete(context.Background(), 4), domain.ErrRecordNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Agreement(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("GROUP BY profile").
		WillReturnRows(sqlmock.NewRows([]string{"profile", "total", "agreed"}).
			AddRow("strict", 4, 3).
			AddRow("lenient", 2, 0))

	stats, err := store.Agreement(context.Background())

	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, AgreementStats{Profile: domain.PROFILE_STRICT, Total: 4, Agreed: 3, Rate: 0.75}, stats[0])
	assert.Equal(t, AgreementStats{Profile: domain.PROFILE_MODERATE}, stats[1])
	assert.Equal(t, AgreementStats{Profile: domain.PROFILE_LENIENT, Total: 2}, stats[2])
}

func TestPostgresStore_ImportJSON(t *testing.T) {
	store, mock := newMockStore(t)
	payload := `{
		"version": "1.0",
		"feedback": [
			{"assessment_id": "a-1", "profile": "strict", "predicted_acceptance": "Likely to Approve", "predicted_score": 95, "actual_decision": "approved"},
			{"assessment_id": "a-2", "profile": "strict", "predicted_acceptance": "Likely to Approve", "predicted_score": 90, "actual_decision": "approved"},
			{"assessment_id": "a-3", "profile": "unknown", "predicted_acceptance": "Likely to Approve", "predicted_score": 90, "actual_decision": "approved"}
		]
	}`

	mock.ExpectBegin()
	mock.ExpectExec("ON CONFLICT \\(assessment_id, profile\\) DO NOTHING").
		WithArgs("a-1", "strict", "Likely to Approve", 95, "approved", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("ON CONFLICT \\(assessment_id, profile\\) DO NOTHING").
		WithArgs("a-2", "strict", "Likely to Approve", 90, "approved", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	imported, skipped, err := store.ImportJSON(context.Background(), bytes.NewBufferString(payload))

	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 2, skipped, "duplicate and invalid entries are skipped")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportJSONRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	payload := `{"feedback": [{"assessment_id": "a-1", "profile": "strict", "predicted_acceptance": "Likely to Approve", "predicted_score": 95, "actual_decision": "approved"}]}`

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO assessment_feedback").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, _, err := store.ImportJSON(context.Background(), bytes.NewBufferString(payload))

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExportJSON(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows(feedbackColumns).
			AddRow(int64(1), "a-1", "strict", "Likely to Approve", 95, "approved", "", now, now))

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(context.Background(), &buf))

	assert.Contains(t, buf.String(), `"version": "1.0"`)
	assert.Contains(t, buf.String(), `"count": 1`)
	assert.Contains(t, buf.String(), `"assessment_id": "a-1"`)
}
