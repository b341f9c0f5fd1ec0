package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gc-eligibility-server/internal/domain"
)

// baseline is a candidate with no risk factors.
func baseline() domain.CandidateRecord {
	r := domain.NewCandidateRecord()
	r.Age = domain.IntPtr(30)
	r.Lifestyle.BMI = domain.FloatPtr(24)
	r.PregnancyHistory.TermPregnancyCount = 2
	r.PregnancyHistory.TotalDeliveries = domain.IntPtr(2)
	return r
}

func TestEngine_BaselineAtCeiling(t *testing.T) {
	result, err := NewEngine(nil).Score(baseline())
	require.NoError(t, err)

	assert.Equal(t, 95, result.Strict.Score)
	assert.Equal(t, 92, result.Moderate.Score)
	assert.Equal(t, 95, result.Lenient.Score)
	for _, a := range []domain.ClinicAssessment{result.Strict, result.Moderate, result.Lenient} {
		assert.Empty(t, a.Issues)
		assert.Equal(t, domain.ACCEPTANCE_LIKELY, a.AcceptanceLevel)
	}
	assert.Equal(t, domain.PROFILE_MODERATE, result.Moderate.Profile)
}

func TestEngine_InvariantViolations(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(r *domain.CandidateRecord)
		expected error
	}{
		{
			name: "unknown complication category",
			mutate: func(r *domain.CandidateRecord) {
				r.PregnancyHistory.Complications = []domain.Complication{
					{PregnancyIndex: 1, Category: domain.ComplicationCategory("cosmic"), Severity: domain.SEVERITY_MILD},
				}
			},
			expected: domain.ErrInvalidComplicationCategory,
		},
		{
			name: "unknown condition tag",
			mutate: func(r *domain.CandidateRecord) {
				r.MedicalConditions = []domain.ConditionTag{"gout"}
			},
			expected: domain.ErrInvalidConditionTag,
		},
		{
			name: "unknown psych flag",
			mutate: func(r *domain.CandidateRecord) {
				r.Psychological.HistoryFlags = []domain.PsychFlag{"insomnia"}
			},
			expected: domain.ErrInvalidPsychFlag,
		},
	}

	engine := NewEngine(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := baseline()
			tt.mutate(&record)

			_, err := engine.Score(record)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expected))

			_, err = engine.ScoreProfile(record, domain.PROFILE_LENIENT)
			assert.True(t, errors.Is(err, tt.expected))
		})
	}
}

func TestEngine_PreeclampsiaPenalties(t *testing.T) {
	record := baseline()
	record.MedicalConditions = []domain.ConditionTag{domain.CONDITION_PREECLAMPSIA}

	result, err := NewEngine(nil).Score(record)
	require.NoError(t, err)

	require.Len(t, result.Strict.Issues, 1)
	assert.Equal(t, 95, result.Strict.Issues[0].Penalty)
	assert.Equal(t, domain.ISSUE_MAJOR, result.Strict.Issues[0].Severity)
	assert.Equal(t, 5, result.Strict.Score)
	assert.Equal(t, domain.ACCEPTANCE_UNLIKELY, result.Strict.AcceptanceLevel)

	require.Len(t, result.Lenient.Issues, 1)
	assert.Equal(t, 29, result.Lenient.Issues[0].Penalty)
	assert.Equal(t, 71, result.Lenient.Score)
	assert.Equal(t, domain.ACCEPTANCE_LIKELY, result.Lenient.AcceptanceLevel)

	assert.Equal(t, 50, result.Moderate.Score)
	assert.Equal(t, domain.ACCEPTANCE_CONDITIONAL, result.Moderate.AcceptanceLevel)
}

func TestEngine_AdvancedAgeAndCesareansStrict(t *testing.T) {
	record := baseline()
	record.Age = domain.IntPtr(44)
	record.PregnancyHistory.CesareanCount = 3
	record.PregnancyHistory.TotalDeliveries = domain.IntPtr(3)

	a, err := NewEngine(nil).ScoreProfile(record, domain.PROFILE_STRICT)
	require.NoError(t, err)

	require.Len(t, a.Issues, 3)
	assert.Equal(t, domain.Issue{Severity: domain.ISSUE_MAJOR, Message: "Age 44 is outside the preferred range of 21-35", Penalty: 60}, a.Issues[0])
	assert.Equal(t, domain.Issue{Severity: domain.ISSUE_MAJOR, Message: "3 prior cesarean deliveries", Penalty: 50}, a.Issues[1])
	assert.Equal(t, domain.ISSUE_MAJOR, a.Issues[2].Severity)
	assert.Equal(t, 20, a.Issues[2].Penalty)
	assert.Contains(t, a.Issues[2].Message, "Combined risk")
	assert.Less(t, a.Score, 20)
	assert.Equal(t, domain.ACCEPTANCE_UNLIKELY, a.AcceptanceLevel)
}

func TestEngine_AgeBands(t *testing.T) {
	tests := []struct {
		profile  domain.ClinicProfile
		age      int
		penalty  int
		severity domain.IssueSeverity
	}{
		{domain.PROFILE_STRICT, 20, 40, domain.ISSUE_MAJOR},
		{domain.PROFILE_STRICT, 35, 0, ""},
		{domain.PROFILE_STRICT, 36, 10, domain.ISSUE_MINOR},
		{domain.PROFILE_STRICT, 39, 25, domain.ISSUE_MODERATE},
		{domain.PROFILE_STRICT, 42, 45, domain.ISSUE_MAJOR},
		{domain.PROFILE_STRICT, 43, 60, domain.ISSUE_MAJOR},
		{domain.PROFILE_MODERATE, 37, 0, ""},
		{domain.PROFILE_MODERATE, 38, 8, domain.ISSUE_MINOR},
		{domain.PROFILE_MODERATE, 45, 35, domain.ISSUE_MAJOR},
		{domain.PROFILE_MODERATE, 46, 50, domain.ISSUE_MAJOR},
		{domain.PROFILE_LENIENT, 19, 15, domain.ISSUE_MODERATE},
		{domain.PROFILE_LENIENT, 39, 0, ""},
		{domain.PROFILE_LENIENT, 40, 5, domain.ISSUE_MINOR},
		{domain.PROFILE_LENIENT, 50, 30, domain.ISSUE_MAJOR},
	}

	engine := NewEngine(nil)
	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			record := baseline()
			record.Age = domain.IntPtr(tt.age)

			a, err := engine.ScoreProfile(record, tt.profile)
			require.NoError(t, err)

			if tt.penalty == 0 {
				assert.Empty(t, a.Issues, "age %d", tt.age)
				return
			}
			require.Len(t, a.Issues, 1, "age %d", tt.age)
			assert.Equal(t, tt.penalty, a.Issues[0].Penalty)
			assert.Equal(t, tt.severity, a.Issues[0].Severity)
		})
	}
}

func TestEngine_BMIBands(t *testing.T) {
	tests := []struct {
		profile domain.ClinicProfile
		bmi     float64
		penalty int
	}{
		{domain.PROFILE_STRICT, 18.4, 20},
		{domain.PROFILE_STRICT, 18.7, 5},
		{domain.PROFILE_STRICT, 19, 0},
		{domain.PROFILE_STRICT, 30, 0},
		{domain.PROFILE_STRICT, 30.1, 10},
		{domain.PROFILE_STRICT, 35, 25},
		{domain.PROFILE_STRICT, 35.1, 45},
		{domain.PROFILE_MODERATE, 18.4, 12},
		{domain.PROFILE_MODERATE, 32, 0},
		{domain.PROFILE_MODERATE, 38, 25},
		{domain.PROFILE_MODERATE, 38.5, 40},
		{domain.PROFILE_LENIENT, 17.9, 8},
		{domain.PROFILE_LENIENT, 35, 0},
		{domain.PROFILE_LENIENT, 40, 18},
		{domain.PROFILE_LENIENT, 41, 30},
	}

	engine := NewEngine(nil)
	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			record := baseline()
			record.Lifestyle.BMI = domain.FloatPtr(tt.bmi)

			a, err := engine.ScoreProfile(record, tt.profile)
			require.NoError(t, err)

			if tt.penalty == 0 {
				assert.Empty(t, a.Issues, "bmi %.1f", tt.bmi)
				return
			}
			require.Len(t, a.Issues, 1, "bmi %.1f", tt.bmi)
			assert.Equal(t, tt.penalty, a.Issues[0].Penalty, "bmi %.1f", tt.bmi)
		})
	}
}

func TestEngine_UnknownAgeAndBMIAreNotPenalized(t *testing.T) {
	record := baseline()
	record.Age = nil
	record.Lifestyle.BMI = nil

	result, err := NewEngine(nil).Score(record)
	require.NoError(t, err)
	assert.Empty(t, result.Strict.Issues)
}

func TestEngine_Deliveries(t *testing.T) {
	record := baseline()
	record.PregnancyHistory.TotalDeliveries = domain.IntPtr(0)
	record.PregnancyHistory.TermPregnancyCount = 0

	result, err := NewEngine(nil).Score(record)
	require.NoError(t, err)

	require.Len(t, result.Strict.Issues, 1)
	assert.Equal(t, domain.Issue{Severity: domain.ISSUE_MODERATE, Message: "No prior deliveries", Penalty: 20}, result.Strict.Issues[0])
	assert.Equal(t, 10, result.Moderate.Issues[0].Penalty)
	assert.Empty(t, result.Lenient.Issues)
}

func TestEngine_UnknownDeliveriesAreNotPenalized(t *testing.T) {
	record := baseline()
	record.PregnancyHistory.TotalDeliveries = nil
	record.PregnancyHistory.TermPregnancyCount = 0

	result, err := NewEngine(nil).Score(record)
	require.NoError(t, err)

	for _, a := range []domain.ClinicAssessment{result.Strict, result.Moderate, result.Lenient} {
		assert.Empty(t, a.Issues, string(a.Profile))
	}
	assert.Equal(t, 95, result.Strict.Score)
}

func TestComplicationPenalties_Total(t *testing.T) {
	profiles := Profiles()
	strict, moderate, lenient := profiles[0], profiles[1], profiles[2]

	for count, expected := range map[int]int{0: 0, 1: 50, 2: 100} {
		assert.Equal(t, expected, strict.Complications.Total(count))
	}
	for count, expected := range map[int]int{1: 35, 3: 105} {
		assert.Equal(t, expected, moderate.Complications.Total(count))
	}
	tests := []struct {
		count int
		cost  int
		total int
	}{
		{0, 0, 0},
		{1, 5, 5},
		{2, 12, 17},
		{3, 20, 37},
		{4, 25, 62},
		{5, 30, 92},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.cost, lenient.Complications.Cost(tt.count), "cost of complication %d", tt.count)
		assert.Equal(t, tt.total, lenient.Complications.Total(tt.count), "total for %d complications", tt.count)
	}
}

func TestEngine_ComplicationSeverity(t *testing.T) {
	record := baseline()
	record.PregnancyHistory.Complications = []domain.Complication{
		{PregnancyIndex: 1, Category: domain.COMPLICATION_DIABETIC, Severity: domain.SEVERITY_MILD},
	}
	record.PregnancyHistory.ComplicationCount = 1

	result, err := NewEngine(nil).Score(record)
	require.NoError(t, err)

	assert.Equal(t, domain.ISSUE_MAJOR, result.Strict.Issues[0].Severity, "strict always treats complications as major")
	assert.Equal(t, domain.ISSUE_MINOR, result.Moderate.Issues[0].Severity)
	assert.Equal(t, 35, result.Moderate.Issues[0].Penalty)
	assert.Equal(t, 5, result.Lenient.Issues[0].Penalty)
}

func TestEngine_ComplicationCountWithoutDetails(t *testing.T) {
	record := baseline()
	record.PregnancyHistory.ComplicationCount = 2

	a, err := NewEngine(nil).ScoreProfile(record, domain.PROFILE_LENIENT)
	require.NoError(t, err)

	require.Len(t, a.Issues, 1)
	assert.Equal(t, 5+12, a.Issues[0].Penalty)
	assert.Equal(t, domain.ISSUE_MODERATE, a.Issues[0].Severity)
}

func TestEngine_CombinationLayer(t *testing.T) {
	record := baseline()
	record.Age = domain.IntPtr(38)
	record.Lifestyle.BMI = domain.FloatPtr(33)
	record.PregnancyHistory.CesareanCount = 2

	engine := NewEngine(nil)

	moderate, err := engine.ScoreProfile(record, domain.PROFILE_MODERATE)
	require.NoError(t, err)
	require.Len(t, moderate.Issues, 4)
	combined := moderate.Issues[3]
	assert.Equal(t, domain.ISSUE_MODERATE, combined.Severity)
	assert.Equal(t, 8, combined.Penalty)
	assert.Equal(t, 100-8-10-10-8, moderate.Score)

	lenient, err := engine.ScoreProfile(record, domain.PROFILE_LENIENT)
	require.NoError(t, err)
	assert.Empty(t, lenient.Issues, "all factors are inside the lenient windows")
}

func TestEngine_IssueOrder(t *testing.T) {
	record := baseline()
	record.Age = domain.IntPtr(36)
	record.Lifestyle.BMI = domain.FloatPtr(31)
	record.PregnancyHistory.CesareanCount = 1
	record.MedicalConditions = []domain.ConditionTag{domain.CONDITION_THYROID_DISORDER, domain.CONDITION_ASTHMA}
	record.InfectiousDiseaseResults = map[string]domain.TestResult{"hiv": domain.TEST_NEGATIVE, "cmv": domain.TEST_POSITIVE}

	a, err := NewEngine(nil).ScoreProfile(record, domain.PROFILE_STRICT)
	require.NoError(t, err)

	messages := make([]string, 0, len(a.Issues))
	for _, issue := range a.Issues {
		messages = append(messages, issue.Message)
	}
	assert.Equal(t, []string{
		"Age 36 is outside the preferred range of 21-35",
		"BMI 31.0 is outside the preferred range of 19-30",
		"1 prior cesarean delivery",
		"Medical history: asthma",
		"Medical history: thyroid disorder",
		"Positive infectious disease screen: cmv",
		"Combined risk: 6 total risk factors",
	}, messages)
}

func TestEngine_Clamping(t *testing.T) {
	worst := baseline()
	worst.Age = domain.IntPtr(50)
	worst.Lifestyle.BMI = domain.FloatPtr(45)
	worst.Lifestyle.Smoker = true
	worst.Lifestyle.DrugUse = true
	worst.Psychological.CoercionSuspected = true
	worst.MedicalConditions = []domain.ConditionTag{domain.CONDITION_HEART_DISEASE}

	records := []domain.CandidateRecord{baseline(), worst}
	engine := NewEngine(nil)
	for _, record := range records {
		result, err := engine.Score(record)
		require.NoError(t, err)
		for _, p := range Profiles() {
			a, _ := result.Get(p.Name)
			assert.GreaterOrEqual(t, a.Score, 0)
			assert.LessOrEqual(t, a.Score, p.Ceiling)
		}
	}

	result, err := engine.Score(worst)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Strict.Score)
	assert.Equal(t, 0, result.Lenient.Score)
}

func TestEngine_SevereComplicationNeverRaisesScore(t *testing.T) {
	withConditions := baseline()
	withConditions.MedicalConditions = []domain.ConditionTag{domain.CONDITION_ASTHMA}

	olderCandidate := baseline()
	olderCandidate.Age = domain.IntPtr(41)
	olderCandidate.PregnancyHistory.Complications = []domain.Complication{
		{PregnancyIndex: 1, Category: domain.COMPLICATION_DIABETIC, Severity: domain.SEVERITY_MILD},
	}
	olderCandidate.PregnancyHistory.ComplicationCount = 1

	engine := NewEngine(nil)
	for _, record := range []domain.CandidateRecord{baseline(), withConditions, olderCandidate} {
		before, err := engine.Score(record)
		require.NoError(t, err)

		worse := record.Clone()
		worse.PregnancyHistory.Complications = append(worse.PregnancyHistory.Complications, domain.Complication{
			PregnancyIndex: 2, Category: domain.COMPLICATION_PLACENTAL, Description: "placental abruption", Severity: domain.SEVERITY_SEVERE,
		})
		worse.PregnancyHistory.ComplicationCount = len(worse.PregnancyHistory.Complications)

		after, err := engine.Score(worse)
		require.NoError(t, err)

		assert.LessOrEqual(t, after.Strict.Score, before.Strict.Score)
		assert.LessOrEqual(t, after.Moderate.Score, before.Moderate.Score)
		assert.LessOrEqual(t, after.Lenient.Score, before.Lenient.Score)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	record := baseline()
	record.Age = domain.IntPtr(39)
	record.MedicalConditions = []domain.ConditionTag{domain.CONDITION_ANXIETY, domain.CONDITION_ANEMIA}
	record.Psychological.HistoryFlags = []domain.PsychFlag{domain.PSYCH_TRAUMA_HISTORY}
	record.Environmental.LegalIssues = true

	engine := NewEngine(nil)
	first, err := engine.Score(record)
	require.NoError(t, err)
	second, err := engine.Score(record)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestProfiles_CoverVocabularies(t *testing.T) {
	for _, p := range Profiles() {
		for _, tag := range domain.ConditionTags {
			_, ok := p.Conditions[tag]
			assert.True(t, ok, "%s profile missing condition %s", p.Name, tag)
		}
		for _, flag := range domain.PsychFlags {
			_, ok := p.PsychFlags[flag]
			assert.True(t, ok, "%s profile missing psych flag %s", p.Name, flag)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score    int
		expected domain.AcceptanceLevel
	}{
		{95, domain.ACCEPTANCE_LIKELY},
		{61, domain.ACCEPTANCE_LIKELY},
		{60, domain.ACCEPTANCE_CONDITIONAL},
		{20, domain.ACCEPTANCE_CONDITIONAL},
		{19, domain.ACCEPTANCE_UNLIKELY},
		{0, domain.ACCEPTANCE_UNLIKELY},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Classify(tt.score), "score %d", tt.score)
	}
}

func TestEngine_UnknownProfile(t *testing.T) {
	_, err := NewEngine(nil).ScoreProfile(baseline(), domain.ClinicProfile("boutique"))
	assert.True(t, errors.Is(err, domain.ErrInvalidClinicProfile))
}
