package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gc-eligibility-server/internal/domain"
)

const scenarioText = "G3P2, 32yo, BMI 24.5, SVD x2, no complications"

type stubAIClient struct {
	payload string
	err     error
}

func (s *stubAIClient) Extract(ctx context.Context, req domain.AIExtractionRequest, validate domain.ResponseValidator) ([]byte, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if validate != nil {
		if err := validate([]byte(s.payload)); err != nil {
			return nil, false, err
		}
	}
	return []byte(s.payload), false, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestAssessor(client domain.AIExtractionClient) *Assessor {
	return NewAssessor(testLogger(), AssessorOptions{
		AIClient:      client,
		AITimeout:     time.Second,
		MaxInputBytes: 4096,
	})
}

func TestAssessor_Scenario(t *testing.T) {
	assessor := newTestAssessor(nil)

	result, err := assessor.Assess(context.Background(), scenarioText, nil)
	require.NoError(t, err)

	record := result.CandidateRecord
	require.NotNil(t, record.Age)
	require.NotNil(t, record.Lifestyle.BMI)
	assert.Equal(t, 32, *record.Age)
	assert.Equal(t, 24.5, *record.Lifestyle.BMI)
	assert.Equal(t, 0, record.PregnancyHistory.CesareanCount)
	assert.Equal(t, 2, record.PregnancyHistory.TermPregnancyCount)

	assert.NotEmpty(t, result.AssessmentID)
	assert.Equal(t, domain.AI_DISABLED, result.AIOutcome)
	assert.Contains(t, result.SourceLayers, domain.LAYER_PATTERN)
	assert.Equal(t, 95, result.ClinicAssessments.Strict.Score)
	assert.Equal(t, domain.ACCEPTANCE_LIKELY, result.ClinicAssessments.Strict.AcceptanceLevel)
	assert.Equal(t, domain.REVIEW_NOT_REQUIRED, result.SpecialistAssessment.ReviewLevel)
	assert.False(t, result.CreatedAt.IsZero())
}

func TestAssessor_NegatedComplicationsAreNotScored(t *testing.T) {
	assessor := newTestAssessor(nil)

	tests := []struct {
		name string
		text string
	}{
		{"trailing negative", "G2P2, 30yo, BMI 24, SVD x2. Preeclampsia: negative."},
		{"trailing ruled out", "G2P2, 30yo, BMI 24, SVD x2. Placenta previa ruled out."},
		{"leading denial", "G2P2, 30yo, BMI 24, SVD x2. Denies preeclampsia."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := assessor.Assess(context.Background(), tt.text, nil)
			require.NoError(t, err)

			assert.Empty(t, result.CandidateRecord.PregnancyHistory.Complications)
			assert.Empty(t, result.CandidateRecord.MedicalConditions)
			assert.Equal(t, 95, result.ClinicAssessments.Strict.Score)
			assert.Equal(t, domain.ACCEPTANCE_LIKELY, result.ClinicAssessments.Strict.AcceptanceLevel)
		})
	}
}

func TestAssessor_UnreportedDeliveriesAreNotPenalized(t *testing.T) {
	assessor := newTestAssessor(nil)

	result, err := assessor.Assess(context.Background(), "32 year old, BMI 24", nil)
	require.NoError(t, err)

	assert.Nil(t, result.CandidateRecord.PregnancyHistory.TotalDeliveries)
	for _, a := range []domain.ClinicAssessment{
		result.ClinicAssessments.Strict,
		result.ClinicAssessments.Moderate,
		result.ClinicAssessments.Lenient,
	} {
		for _, issue := range a.Issues {
			assert.NotContains(t, issue.Message, "deliveries", string(a.Profile))
		}
	}
	assert.Equal(t, 95, result.ClinicAssessments.Strict.Score)
}

func TestAssessor_Deterministic(t *testing.T) {
	assessor := newTestAssessor(nil)
	text := "38 year old G4P3, BMI 31.2. Two prior c-sections. History of gestational diabetes. Smoker."

	first, err := assessor.Assess(context.Background(), text, nil)
	require.NoError(t, err)
	second, err := assessor.Assess(context.Background(), text, nil)
	require.NoError(t, err)

	marshal := func(r *domain.AssessmentResult) string {
		b, err := json.Marshal(struct {
			Clinics    domain.ClinicAssessments
			Specialist domain.SpecialistAssessment
		}{r.ClinicAssessments, r.SpecialistAssessment})
		require.NoError(t, err)
		return string(b)
	}
	assert.Equal(t, marshal(first), marshal(second))
	assert.NotEqual(t, first.AssessmentID, second.AssessmentID)
}

func TestAssessor_InvalidInput(t *testing.T) {
	assessor := newTestAssessor(nil)

	tests := []struct {
		name     string
		text     string
		explicit *domain.ExplicitFields
		sentinel error
	}{
		{"empty", "", nil, domain.ErrEmptyInput},
		{"whitespace", " \n\t ", nil, domain.ErrEmptyInput},
		{"invalid utf8", "G2P2 \xff\xfe\xfd", nil, domain.ErrNonTextualInput},
		{"binary", "\x00\x01\x02\x03\x04\x05G1P1", nil, domain.ErrNonTextualInput},
		{"too large", strings.Repeat("G1P1 ", 1000), nil, domain.ErrInputTooLarge},
		{"implausible explicit age", scenarioText, &domain.ExplicitFields{Age: domain.IntPtr(5)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := assessor.Assess(context.Background(), tt.text, tt.explicit)

			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, domain.ErrInvalidInput, domain.ErrorCode(err))
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel), "expected %v, got %v", tt.sentinel, err)
			}
			var ve *domain.ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestAssessor_ExplicitFieldsOverride(t *testing.T) {
	assessor := newTestAssessor(nil)
	explicit := &domain.ExplicitFields{Age: domain.IntPtr(41), CesareanCount: domain.IntPtr(1)}

	result, err := assessor.Assess(context.Background(), scenarioText, explicit)
	require.NoError(t, err)

	assert.Equal(t, 41, *result.CandidateRecord.Age)
	assert.Equal(t, 1, result.CandidateRecord.PregnancyHistory.CesareanCount)
	assert.Contains(t, result.SourceLayers, domain.LAYER_EXPLICIT)
	assert.Equal(t, domain.REVIEW_REQUIRED, result.SpecialistAssessment.ReviewLevel)
}

func TestAssessor_AIDegradation(t *testing.T) {
	baseline, err := newTestAssessor(nil).Assess(context.Background(), scenarioText, nil)
	require.NoError(t, err)

	failing := newTestAssessor(&stubAIClient{err: errors.New("connection refused")})
	result, err := failing.Assess(context.Background(), scenarioText, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.AI_FAILED, result.AIOutcome)
	assert.Equal(t, baseline.ClinicAssessments, result.ClinicAssessments)
	assert.Equal(t, baseline.SpecialistAssessment, result.SpecialistAssessment)
	assert.Equal(t, baseline.ExtractionConfidence, result.ExtractionConfidence)
}

func TestAssessor_AIEnrichment(t *testing.T) {
	payload := `{
		"pregnancyHistory": {"termDeliveries": 2, "cesareanDeliveries": 0, "vaginalDeliveries": 2},
		"medicalConditions": ["thyroid_disorder"],
		"summary": "Two uncomplicated vaginal deliveries."
	}`
	assessor := newTestAssessor(&stubAIClient{payload: payload})

	result, err := assessor.Assess(context.Background(), scenarioText, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.AI_SUCCEEDED, result.AIOutcome)
	assert.Contains(t, result.SourceLayers, domain.LAYER_AI)
	assert.Contains(t, result.CandidateRecord.MedicalConditions, domain.CONDITION_THYROID_DISORDER)
	assert.Equal(t, "Two uncomplicated vaginal deliveries.", result.Summary)
}

func TestAssessor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAssessor(nil).Assess(ctx, scenarioText, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAssessor_ScoreRecord(t *testing.T) {
	assessor := newTestAssessor(nil)

	record := domain.NewCandidateRecord()
	record.Age = domain.IntPtr(30)
	record.Lifestyle.BMI = domain.FloatPtr(23)
	record.PregnancyHistory.TermPregnancyCount = 2
	record.PregnancyHistory.TotalDeliveries = domain.IntPtr(2)
	record.MedicalConditions = []domain.ConditionTag{domain.CONDITION_PREECLAMPSIA}

	result, err := assessor.ScoreRecord(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, 5, result.ClinicAssessments.Strict.Score)
	assert.Equal(t, domain.ACCEPTANCE_UNLIKELY, result.ClinicAssessments.Strict.AcceptanceLevel)
	assert.Equal(t, domain.LIKELIHOOD_UNLIKELY_APPROVE, result.SpecialistAssessment.Likelihood)
}

func TestAssessor_ScoreRecordRejectsUnknownVocabulary(t *testing.T) {
	assessor := newTestAssessor(nil)

	record := domain.NewCandidateRecord()
	record.PregnancyHistory.Complications = []domain.Complication{
		{PregnancyIndex: 1, Category: "cosmic", Severity: domain.SEVERITY_MILD},
	}

	result, err := assessor.ScoreRecord(context.Background(), record)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, domain.ErrInvalidComplicationCategory))
}

func TestAssessor_ConcurrentUse(t *testing.T) {
	assessor := newTestAssessor(nil)
	texts := []string{
		scenarioText,
		"44 year old, 3 prior cesarean sections, BMI 29",
		"G2P2, 27 years old, history of preeclampsia",
	}

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			if _, err := assessor.Assess(context.Background(), text, nil); err != nil {
				errs <- err
			}
		}(texts[i%len(texts)])
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}
