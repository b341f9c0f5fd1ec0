package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gc-eligibility-server/internal/domain"
)

func TestNarrativeExtractor_Age(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected *int
	}{
		{"yo suffix", "32yo female", domain.IntPtr(32)},
		{"y/o suffix", "She is 29 y/o", domain.IntPtr(29)},
		{"hyphenated", "a 41-year-old woman", domain.IntPtr(41)},
		{"age label", "Age: 35", domain.IntPtr(35)},
		{"out of range", "age 12", nil},
		{"absent", "healthy woman", nil},
	}

	extractor := NewNarrativeExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := extractor.Extract(tt.text)
			assert.Equal(t, tt.expected, f.Record.Age)
			assert.Equal(t, tt.expected != nil, f.Has(domain.FIELD_AGE))
		})
	}
}

func TestNarrativeExtractor_BMI(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{"explicit", "body mass index of 27.3", 27.3},
		{"imperial height and weight", `She is 5'6" and 150 lbs`, 24.2},
		{"metric height and weight", "height 165 cm, weight 70 kg", 25.7},
	}

	extractor := NewNarrativeExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := extractor.Extract(tt.text)
			require.NotNil(t, f.Record.Lifestyle.BMI)
			assert.InDelta(t, tt.expected, *f.Record.Lifestyle.BMI, 0.001)
		})
	}
}

func TestNarrativeExtractor_PregnancyCounts(t *testing.T) {
	f := NewNarrativeExtractor().Extract("Mother of three, had two c-sections")

	assert.Equal(t, 3, f.Record.PregnancyHistory.TermPregnancyCount)
	require.NotNil(t, f.Record.PregnancyHistory.TotalDeliveries)
	assert.Equal(t, 3, *f.Record.PregnancyHistory.TotalDeliveries)
	assert.Equal(t, 2, f.Record.PregnancyHistory.CesareanCount)
	assert.True(t, f.Has(domain.FIELD_CESAREAN_COUNT))
}

func TestNarrativeExtractor_NoCesarean(t *testing.T) {
	f := NewNarrativeExtractor().Extract("She has 2 children, all vaginal")

	require.NotNil(t, f.Record.PregnancyHistory.TotalDeliveries)
	assert.Equal(t, 2, *f.Record.PregnancyHistory.TotalDeliveries)
	assert.True(t, f.Has(domain.FIELD_CESAREAN_COUNT))
	assert.Equal(t, 0, f.Record.PregnancyHistory.CesareanCount)
}

func TestNarrativeExtractor_SmokingPolicy(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		populated bool
		smoker    bool
	}{
		{"active qualifier", "currently smokes half a pack a day", true, true},
		{"former smoker", "former smoker, quit 5 years ago", true, false},
		{"bare mention", "smoking discussed at intake", true, false},
		{"no mention", "healthy and active", false, false},
	}

	extractor := NewNarrativeExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := extractor.Extract(tt.text)
			assert.Equal(t, tt.populated, f.Has(domain.FIELD_SMOKER))
			assert.Equal(t, tt.smoker, f.Record.Lifestyle.Smoker)
		})
	}
}

func TestNarrativeExtractor_Alcohol(t *testing.T) {
	tests := []struct {
		text     string
		expected domain.AlcoholUse
	}{
		{"drinks socially on weekends", domain.ALCOHOL_SOCIAL},
		{"history of binge drinking", domain.ALCOHOL_EXCESSIVE},
		{"denies alcohol", domain.ALCOHOL_NONE},
	}

	extractor := NewNarrativeExtractor()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f := extractor.Extract(tt.text)
			assert.True(t, f.Has(domain.FIELD_ALCOHOL_USE))
			assert.Equal(t, tt.expected, f.Record.Lifestyle.AlcoholUse)
		})
	}
}

func TestNarrativeExtractor_Conditions(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []domain.ConditionTag
	}{
		{
			name:     "synonyms",
			text:     "history of high blood pressure and hypothyroidism",
			expected: []domain.ConditionTag{domain.CONDITION_HYPERTENSION, domain.CONDITION_THYROID_DISORDER},
		},
		{
			name:     "negated",
			text:     "denies diabetes",
			expected: nil,
		},
		{
			name:     "preeclampsia is not eclampsia",
			text:     "pre-eclampsia with her first",
			expected: []domain.ConditionTag{domain.CONDITION_PREECLAMPSIA},
		},
		{
			name:     "gestational diabetes is not diabetes",
			text:     "gestational diabetes in 2018",
			expected: []domain.ConditionTag{domain.CONDITION_GESTATIONAL_DIABETES},
		},
		{
			name:     "trailing negative",
			text:     "Preeclampsia: negative. History of asthma.",
			expected: []domain.ConditionTag{domain.CONDITION_ASTHMA},
		},
		{
			name:     "trailing ruled out",
			text:     "Hypertension ruled out at intake",
			expected: nil,
		},
		{
			name:     "trailing cue stops at clause boundary",
			text:     "hypothyroidism, lupus ruled out",
			expected: []domain.ConditionTag{domain.CONDITION_THYROID_DISORDER},
		},
		{
			name:     "postpartum depression is a psych flag",
			text:     "postpartum depression after second child",
			expected: nil,
		},
	}

	extractor := NewNarrativeExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := extractor.Extract(tt.text)
			if tt.expected == nil {
				assert.Empty(t, f.Record.MedicalConditions)
				return
			}
			assert.ElementsMatch(t, tt.expected, f.Record.MedicalConditions)
		})
	}
}

func TestNarrativeExtractor_Psychosocial(t *testing.T) {
	text := "Takes sertraline daily. Postpartum depression after second child. " +
		"Recently unemployed and going through a divorce. Feels pressured by her partner."
	f := NewNarrativeExtractor().Extract(text)

	assert.True(t, f.Record.Psychological.OnPsychotropicMedication)
	assert.Equal(t, []domain.PsychFlag{domain.PSYCH_POSTPARTUM_DEPRESSION}, f.Record.Psychological.HistoryFlags)
	assert.True(t, f.Record.Psychological.CoercionSuspected)
	assert.False(t, f.Record.Environmental.EmploymentStable)
	assert.False(t, f.Record.Environmental.RelationshipStable)
	assert.True(t, f.Record.Environmental.HousingStable)
	assert.False(t, f.Has(domain.FIELD_HOUSING_STABLE))
}

func TestNarrativeExtractor_FavorableDefaults(t *testing.T) {
	f := NewNarrativeExtractor().Extract("Healthy candidate with no concerns.")

	assert.True(t, f.Record.Psychological.SupportAdequate)
	assert.True(t, f.Record.Environmental.HousingStable)
	assert.False(t, f.Record.Environmental.LegalIssues)
	assert.False(t, f.Record.Lifestyle.DrugUse)
	assert.Equal(t, 0, f.Confidence)
}

func TestNarrativeExtractor_Confidence(t *testing.T) {
	f := NewNarrativeExtractor().Extract("32yo, BMI 24.5, history of asthma")

	assert.Equal(t, 3*narrativeSectionWeight, f.Confidence)
}
