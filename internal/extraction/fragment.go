// Package extraction turns free-text candidate records into a normalized
// domain.CandidateRecord through a cascade of extraction layers: a pattern
// extractor for structured obstetric shorthand, a narrative extractor for
// plain-language descriptions, a deterministic merger and an optional AI
// adapter that calls an external structured-extraction service.
//
// Every layer produces a Fragment: a partial record plus the set of fields the
// layer actually populated. Fields a layer did not populate hold defaults and
// never take part in precedence decisions.
package extraction

import (
	"sort"

	"github.com/gc-eligibility-server/internal/domain"
)

// Fragment is the output of a single extraction layer.
type Fragment struct {
	Layer      domain.Layer
	Record     domain.CandidateRecord
	Populated  map[domain.Field]bool
	Confidence int
}

func newFragment(layer domain.Layer) Fragment {
	return Fragment{
		Layer:     layer,
		Record:    domain.NewCandidateRecord(),
		Populated: make(map[domain.Field]bool),
	}
}

// Has reports whether the layer populated field.
func (f Fragment) Has(field domain.Field) bool {
	return f.Populated[field]
}

// Fields returns the populated fields in canonical order.
func (f Fragment) Fields() []domain.Field {
	out := make([]domain.Field, 0, len(f.Populated))
	for _, field := range domain.AllFields {
		if f.Populated[field] {
			out = append(out, field)
		}
	}
	return out
}

func (f *Fragment) mark(fields ...domain.Field) {
	for _, field := range fields {
		f.Populated[field] = true
	}
}

func (f *Fragment) addCondition(tag domain.ConditionTag) {
	f.Record.MedicalConditions = append(f.Record.MedicalConditions, tag)
	f.mark(domain.FIELD_MEDICAL_CONDITIONS)
}

func (f *Fragment) addPsychFlag(flag domain.PsychFlag) {
	f.Record.Psychological.HistoryFlags = append(f.Record.Psychological.HistoryFlags, flag)
	f.mark(domain.FIELD_PSYCH_HISTORY)
}

// normalize sorts and de-duplicates the set-valued fields.
func (f *Fragment) normalize() {
	f.Record.MedicalConditions = domain.SortConditions(f.Record.MedicalConditions)
	f.Record.Psychological.HistoryFlags = domain.SortPsychFlags(f.Record.Psychological.HistoryFlags)
}

// copyField copies a single field from src into dst. Set-valued fields are
// unioned rather than replaced.
func copyField(dst *domain.CandidateRecord, src domain.CandidateRecord, field domain.Field) {
	switch field {
	case domain.FIELD_AGE:
		if src.Age != nil {
			dst.Age = domain.IntPtr(*src.Age)
		}
	case domain.FIELD_BMI:
		if src.Lifestyle.BMI != nil {
			dst.Lifestyle.BMI = domain.FloatPtr(*src.Lifestyle.BMI)
		}
	case domain.FIELD_SMOKER:
		dst.Lifestyle.Smoker = src.Lifestyle.Smoker
	case domain.FIELD_ALCOHOL_USE:
		dst.Lifestyle.AlcoholUse = src.Lifestyle.AlcoholUse
	case domain.FIELD_DRUG_USE:
		dst.Lifestyle.DrugUse = src.Lifestyle.DrugUse
	case domain.FIELD_RECENT_BODY_MODIFICATION:
		dst.Lifestyle.RecentBodyModification = src.Lifestyle.RecentBodyModification
	case domain.FIELD_TERM_PREGNANCY_COUNT:
		dst.PregnancyHistory.TermPregnancyCount = src.PregnancyHistory.TermPregnancyCount
	case domain.FIELD_CESAREAN_COUNT:
		dst.PregnancyHistory.CesareanCount = src.PregnancyHistory.CesareanCount
	case domain.FIELD_TOTAL_DELIVERIES:
		if src.PregnancyHistory.TotalDeliveries != nil {
			dst.PregnancyHistory.TotalDeliveries = domain.IntPtr(*src.PregnancyHistory.TotalDeliveries)
		}
	case domain.FIELD_COMPLICATIONS:
		dst.PregnancyHistory.Complications = append([]domain.Complication{}, src.PregnancyHistory.Complications...)
	case domain.FIELD_COMPLICATION_COUNT:
		dst.PregnancyHistory.ComplicationCount = src.PregnancyHistory.ComplicationCount
	case domain.FIELD_MEDICAL_CONDITIONS:
		dst.MedicalConditions = domain.SortConditions(append(append([]domain.ConditionTag{}, dst.MedicalConditions...), src.MedicalConditions...))
	case domain.FIELD_PSYCHOTROPIC_MEDICATION:
		dst.Psychological.OnPsychotropicMedication = src.Psychological.OnPsychotropicMedication
	case domain.FIELD_PSYCH_EVALUATION:
		dst.Psychological.EvaluationCompleted = src.Psychological.EvaluationCompleted
	case domain.FIELD_PSYCH_HISTORY:
		dst.Psychological.HistoryFlags = domain.SortPsychFlags(append(append([]domain.PsychFlag{}, dst.Psychological.HistoryFlags...), src.Psychological.HistoryFlags...))
	case domain.FIELD_SUPPORT_ADEQUATE:
		dst.Psychological.SupportAdequate = src.Psychological.SupportAdequate
	case domain.FIELD_ENVIRONMENT_STABLE:
		dst.Psychological.EnvironmentStable = src.Psychological.EnvironmentStable
	case domain.FIELD_COERCION_SUSPECTED:
		dst.Psychological.CoercionSuspected = src.Psychological.CoercionSuspected
	case domain.FIELD_HOUSING_STABLE:
		dst.Environmental.HousingStable = src.Environmental.HousingStable
	case domain.FIELD_EMPLOYMENT_STABLE:
		dst.Environmental.EmploymentStable = src.Environmental.EmploymentStable
	case domain.FIELD_FINANCIALLY_ADEQUATE:
		dst.Environmental.FinanciallyAdequate = src.Environmental.FinanciallyAdequate
	case domain.FIELD_RELATIONSHIP_STABLE:
		dst.Environmental.RelationshipStable = src.Environmental.RelationshipStable
	case domain.FIELD_PARTNER_SUPPORTIVE:
		dst.Environmental.PartnerSupportive = src.Environmental.PartnerSupportive
	case domain.FIELD_LEGAL_ISSUES:
		dst.Environmental.LegalIssues = src.Environmental.LegalIssues
	case domain.FIELD_INFECTIOUS_DISEASE:
		// Positive wins over negative when both layers report the same test.
		for name, result := range src.InfectiousDiseaseResults {
			if existing, ok := dst.InfectiousDiseaseResults[name]; ok && existing == domain.TEST_POSITIVE {
				continue
			}
			dst.InfectiousDiseaseResults[name] = result
		}
	}
}

func sortedLayers(set map[domain.Layer]bool) []domain.Layer {
	order := map[domain.Layer]int{
		domain.LAYER_PATTERN:   0,
		domain.LAYER_NARRATIVE: 1,
		domain.LAYER_AI:        2,
		domain.LAYER_EXPLICIT:  3,
	}
	out := make([]domain.Layer, 0, len(set))
	for layer := range set {
		out = append(out, layer)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}
