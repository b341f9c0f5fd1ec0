package domain

import (
	"sort"
)

// Layer identifies which extraction layer produced a value.
type Layer string

const (
	LAYER_PATTERN   Layer = "pattern"
	LAYER_NARRATIVE Layer = "narrative"
	LAYER_AI        Layer = "ai"
	LAYER_EXPLICIT  Layer = "explicit"
)

// Field names a single mergeable attribute of a CandidateRecord. Provenance
// and merge precedence are tracked per Field.
type Field string

const (
	FIELD_AGE                      Field = "age"
	FIELD_BMI                      Field = "bmi"
	FIELD_SMOKER                   Field = "smoker"
	FIELD_ALCOHOL_USE              Field = "alcohol_use"
	FIELD_DRUG_USE                 Field = "drug_use"
	FIELD_RECENT_BODY_MODIFICATION Field = "recent_body_modification"
	FIELD_TERM_PREGNANCY_COUNT     Field = "term_pregnancy_count"
	FIELD_CESAREAN_COUNT           Field = "cesarean_count"
	FIELD_TOTAL_DELIVERIES         Field = "total_deliveries"
	FIELD_COMPLICATIONS            Field = "complications"
	FIELD_COMPLICATION_COUNT       Field = "complication_count"
	FIELD_MEDICAL_CONDITIONS       Field = "medical_conditions"
	FIELD_PSYCHOTROPIC_MEDICATION  Field = "psychotropic_medication"
	FIELD_PSYCH_EVALUATION         Field = "psych_evaluation"
	FIELD_PSYCH_HISTORY            Field = "psych_history"
	FIELD_SUPPORT_ADEQUATE         Field = "support_adequate"
	FIELD_ENVIRONMENT_STABLE       Field = "environment_stable"
	FIELD_COERCION_SUSPECTED       Field = "coercion_suspected"
	FIELD_HOUSING_STABLE           Field = "housing_stable"
	FIELD_EMPLOYMENT_STABLE        Field = "employment_stable"
	FIELD_FINANCIALLY_ADEQUATE     Field = "financially_adequate"
	FIELD_RELATIONSHIP_STABLE      Field = "relationship_stable"
	FIELD_PARTNER_SUPPORTIVE       Field = "partner_supportive"
	FIELD_LEGAL_ISSUES             Field = "legal_issues"
	FIELD_INFECTIOUS_DISEASE       Field = "infectious_disease"
)

// AllFields lists every mergeable field in canonical order.
var AllFields = []Field{
	FIELD_AGE,
	FIELD_BMI,
	FIELD_SMOKER,
	FIELD_ALCOHOL_USE,
	FIELD_DRUG_USE,
	FIELD_RECENT_BODY_MODIFICATION,
	FIELD_TERM_PREGNANCY_COUNT,
	FIELD_CESAREAN_COUNT,
	FIELD_TOTAL_DELIVERIES,
	FIELD_COMPLICATIONS,
	FIELD_COMPLICATION_COUNT,
	FIELD_MEDICAL_CONDITIONS,
	FIELD_PSYCHOTROPIC_MEDICATION,
	FIELD_PSYCH_EVALUATION,
	FIELD_PSYCH_HISTORY,
	FIELD_SUPPORT_ADEQUATE,
	FIELD_ENVIRONMENT_STABLE,
	FIELD_COERCION_SUSPECTED,
	FIELD_HOUSING_STABLE,
	FIELD_EMPLOYMENT_STABLE,
	FIELD_FINANCIALLY_ADEQUATE,
	FIELD_RELATIONSHIP_STABLE,
	FIELD_PARTNER_SUPPORTIVE,
	FIELD_LEGAL_ISSUES,
	FIELD_INFECTIOUS_DISEASE,
}

// IsObstetric reports whether the field belongs to the obstetric group, for
// which structured notation outranks narrative descriptions.
func (f Field) IsObstetric() bool {
	switch f {
	case FIELD_TERM_PREGNANCY_COUNT, FIELD_CESAREAN_COUNT, FIELD_TOTAL_DELIVERIES,
		FIELD_COMPLICATIONS, FIELD_COMPLICATION_COUNT:
		return true
	default:
		return false
	}
}

// IsSet reports whether the field holds a set that is unioned across layers.
func (f Field) IsSet() bool {
	switch f {
	case FIELD_MEDICAL_CONDITIONS, FIELD_PSYCH_HISTORY, FIELD_INFECTIOUS_DISEASE:
		return true
	default:
		return false
	}
}

// FieldProvenance records which layer produced a value and that layer's
// local confidence.
type FieldProvenance struct {
	Layer      Layer `json:"layer"`
	Confidence int   `json:"confidence"`
}

// Complication is a single prior-pregnancy complication.
type Complication struct {
	PregnancyIndex int                  `json:"pregnancy_index"`
	Category       ComplicationCategory `json:"category"`
	Description    string               `json:"description"`
	Severity       ComplicationSeverity `json:"severity"`
}

// Lifestyle holds lifestyle factors.
type Lifestyle struct {
	BMI                    *float64   `json:"bmi"`
	Smoker                 bool       `json:"smoker"`
	AlcoholUse             AlcoholUse `json:"alcohol_use"`
	DrugUse                bool       `json:"drug_use"`
	RecentBodyModification bool       `json:"recent_body_modification"`
}

// PregnancyHistory holds delivery counts and prior complications.
// TotalDeliveries is nil when no source reported it.
type PregnancyHistory struct {
	TermPregnancyCount int            `json:"term_pregnancy_count"`
	CesareanCount      int            `json:"cesarean_count"`
	TotalDeliveries    *int           `json:"total_deliveries"`
	Complications      []Complication `json:"complications"`
	ComplicationCount  int            `json:"complication_count"`
}

// EffectiveComplicationCount is the larger of the explicit count and the
// number of itemized complications.
func (p PregnancyHistory) EffectiveComplicationCount() int {
	if p.ComplicationCount > len(p.Complications) {
		return p.ComplicationCount
	}
	return len(p.Complications)
}

// Psychological holds psychological screening factors.
type Psychological struct {
	OnPsychotropicMedication bool        `json:"on_psychotropic_medication"`
	EvaluationCompleted      bool        `json:"evaluation_completed"`
	HistoryFlags             []PsychFlag `json:"history_flags"`
	SupportAdequate          bool        `json:"support_adequate"`
	EnvironmentStable        bool        `json:"environment_stable"`
	CoercionSuspected        bool        `json:"coercion_suspected"`
}

// Environmental holds social and environmental stability factors.
type Environmental struct {
	HousingStable       bool `json:"housing_stable"`
	EmploymentStable    bool `json:"employment_stable"`
	FinanciallyAdequate bool `json:"financially_adequate"`
	RelationshipStable  bool `json:"relationship_stable"`
	PartnerSupportive   bool `json:"partner_supportive"`
	LegalIssues         bool `json:"legal_issues"`
}

// CandidateRecord is the normalized candidate model. A record is created per
// assessment request and passed by value through every stage.
type CandidateRecord struct {
	Age                      *int                      `json:"age"`
	Lifestyle                Lifestyle                 `json:"lifestyle"`
	PregnancyHistory         PregnancyHistory          `json:"pregnancy_history"`
	MedicalConditions        []ConditionTag            `json:"medical_conditions"`
	Psychological            Psychological             `json:"psychological"`
	Environmental            Environmental             `json:"environmental"`
	InfectiousDiseaseResults map[string]TestResult     `json:"infectious_disease_results"`
	Provenance               map[Field]FieldProvenance `json:"-"`
}

// NewCandidateRecord returns a record with the screened-candidate defaults:
// no adverse lifestyle factors and a stable, supported environment.
func NewCandidateRecord() CandidateRecord {
	return CandidateRecord{
		Lifestyle: Lifestyle{
			AlcoholUse: ALCOHOL_NONE,
		},
		PregnancyHistory: PregnancyHistory{
			Complications: []Complication{},
		},
		MedicalConditions: []ConditionTag{},
		Psychological: Psychological{
			HistoryFlags:      []PsychFlag{},
			SupportAdequate:   true,
			EnvironmentStable: true,
		},
		Environmental: Environmental{
			HousingStable:       true,
			EmploymentStable:    true,
			FinanciallyAdequate: true,
			RelationshipStable:  true,
			PartnerSupportive:   true,
		},
		InfectiousDiseaseResults: map[string]TestResult{},
		Provenance:               map[Field]FieldProvenance{},
	}
}

// Clone returns a deep copy so stages never share slices or maps.
func (r CandidateRecord) Clone() CandidateRecord {
	out := r
	if r.Age != nil {
		age := *r.Age
		out.Age = &age
	}
	if r.Lifestyle.BMI != nil {
		bmi := *r.Lifestyle.BMI
		out.Lifestyle.BMI = &bmi
	}
	if r.PregnancyHistory.TotalDeliveries != nil {
		total := *r.PregnancyHistory.TotalDeliveries
		out.PregnancyHistory.TotalDeliveries = &total
	}
	out.PregnancyHistory.Complications = append([]Complication{}, r.PregnancyHistory.Complications...)
	out.MedicalConditions = append([]ConditionTag{}, r.MedicalConditions...)
	out.Psychological.HistoryFlags = append([]PsychFlag{}, r.Psychological.HistoryFlags...)
	out.InfectiousDiseaseResults = make(map[string]TestResult, len(r.InfectiousDiseaseResults))
	for k, v := range r.InfectiousDiseaseResults {
		out.InfectiousDiseaseResults[k] = v
	}
	out.Provenance = make(map[Field]FieldProvenance, len(r.Provenance))
	for k, v := range r.Provenance {
		out.Provenance[k] = v
	}
	return out
}

// HasCondition reports whether tag is present.
func (r CandidateRecord) HasCondition(tag ConditionTag) bool {
	for _, t := range r.MedicalConditions {
		if t == tag {
			return true
		}
	}
	return false
}

// SortedTestNames returns infectious-disease test names in sorted order.
func (r CandidateRecord) SortedTestNames() []string {
	names := make([]string, 0, len(r.InfectiousDiseaseResults))
	for name := range r.InfectiousDiseaseResults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every closed-vocabulary value in the record.
func (r CandidateRecord) Validate() error {
	for i, c := range r.PregnancyHistory.Complications {
		if !c.Category.IsValid() {
			return &ValidationError{Field: "complications", Message: ErrInvalidComplicationCategory.Error(), Value: c.Category, Index: i, err: ErrInvalidComplicationCategory}
		}
		if !c.Severity.IsValid() {
			return &ValidationError{Field: "complications", Message: ErrInvalidComplicationSeverity.Error(), Value: c.Severity, Index: i, err: ErrInvalidComplicationSeverity}
		}
	}
	for i, tag := range r.MedicalConditions {
		if !tag.IsValid() {
			return &ValidationError{Field: "medical_conditions", Message: ErrInvalidConditionTag.Error(), Value: tag, Index: i, err: ErrInvalidConditionTag}
		}
	}
	for i, flag := range r.Psychological.HistoryFlags {
		if !flag.IsValid() {
			return &ValidationError{Field: "history_flags", Message: ErrInvalidPsychFlag.Error(), Value: flag, Index: i, err: ErrInvalidPsychFlag}
		}
	}
	if r.Lifestyle.AlcoholUse != "" && !r.Lifestyle.AlcoholUse.IsValid() {
		return &ValidationError{Field: "alcohol_use", Message: ErrInvalidAlcoholUse.Error(), Value: r.Lifestyle.AlcoholUse, err: ErrInvalidAlcoholUse}
	}
	for _, name := range r.SortedTestNames() {
		if !r.InfectiousDiseaseResults[name].IsValid() {
			return &ValidationError{Field: "infectious_disease_results", Message: ErrInvalidTestResult.Error(), Value: name, err: ErrInvalidTestResult}
		}
	}
	return nil
}

// ExplicitFields are caller-supplied values that override every extraction
// layer.
type ExplicitFields struct {
	Name               string   `json:"name,omitempty"`
	Age                *int     `json:"age,omitempty"`
	BMI                *float64 `json:"bmi,omitempty"`
	TermPregnancyCount *int     `json:"term_pregnancy_count,omitempty"`
	CesareanCount      *int     `json:"cesarean_count,omitempty"`
	TotalDeliveries    *int     `json:"total_deliveries,omitempty"`
	Smoker             *bool    `json:"smoker,omitempty"`
	Notes              string   `json:"notes,omitempty"`
}

// Validate checks explicit values for plausibility.
func (e *ExplicitFields) Validate() error {
	if e == nil {
		return nil
	}
	if e.Age != nil && (*e.Age < 16 || *e.Age > 70) {
		return NewValidationError("age", "age must be between 16 and 70", *e.Age)
	}
	if e.BMI != nil && (*e.BMI < 10 || *e.BMI > 80) {
		return NewValidationError("bmi", "BMI must be between 10 and 80", *e.BMI)
	}
	for field, v := range map[string]*int{
		"term_pregnancy_count": e.TermPregnancyCount,
		"cesarean_count":       e.CesareanCount,
		"total_deliveries":     e.TotalDeliveries,
	} {
		if v != nil && (*v < 0 || *v > 20) {
			return NewValidationError(field, "count must be between 0 and 20", *v)
		}
	}
	return nil
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
