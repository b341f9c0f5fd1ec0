package domain

import (
	"time"
)

// ClinicProfile is one of the three fixed scoring configurations.
type ClinicProfile string

const (
	PROFILE_STRICT   ClinicProfile = "strict"
	PROFILE_MODERATE ClinicProfile = "moderate"
	PROFILE_LENIENT  ClinicProfile = "lenient"
)

// ClinicProfiles lists the profiles in evaluation order.
var ClinicProfiles = []ClinicProfile{PROFILE_STRICT, PROFILE_MODERATE, PROFILE_LENIENT}

// IsValid reports whether the profile is known.
func (p ClinicProfile) IsValid() bool {
	switch p {
	case PROFILE_STRICT, PROFILE_MODERATE, PROFILE_LENIENT:
		return true
	default:
		return false
	}
}

// String returns the string representation of the profile.
func (p ClinicProfile) String() string {
	return string(p)
}

// IssueSeverity grades an itemized scoring issue.
type IssueSeverity string

const (
	ISSUE_MINOR    IssueSeverity = "minor"
	ISSUE_MODERATE IssueSeverity = "moderate"
	ISSUE_MAJOR    IssueSeverity = "major"
)

// Issue is a single explainable scoring deduction.
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
	Penalty  int           `json:"penalty"`
}

// AcceptanceLevel classifies a clinic score.
type AcceptanceLevel string

const (
	ACCEPTANCE_LIKELY      AcceptanceLevel = "Likely to Approve"
	ACCEPTANCE_CONDITIONAL AcceptanceLevel = "May Approve with Additional Records"
	ACCEPTANCE_UNLIKELY    AcceptanceLevel = "Unlikely to Approve"
)

// ClinicAssessment is the scoring outcome for one clinic profile.
type ClinicAssessment struct {
	Profile         ClinicProfile   `json:"profile"`
	Score           int             `json:"score"`
	Issues          []Issue         `json:"issues"`
	AcceptanceLevel AcceptanceLevel `json:"acceptance_level"`
}

// CountBySeverity returns the number of issues with the given severity.
func (a ClinicAssessment) CountBySeverity(severity IssueSeverity) int {
	n := 0
	for _, issue := range a.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// ClinicAssessments holds one assessment per profile.
type ClinicAssessments struct {
	Strict   ClinicAssessment `json:"strict"`
	Moderate ClinicAssessment `json:"moderate"`
	Lenient  ClinicAssessment `json:"lenient"`
}

// Get returns the assessment for profile.
func (c ClinicAssessments) Get(profile ClinicProfile) (ClinicAssessment, bool) {
	switch profile {
	case PROFILE_STRICT:
		return c.Strict, true
	case PROFILE_MODERATE:
		return c.Moderate, true
	case PROFILE_LENIENT:
		return c.Lenient, true
	default:
		return ClinicAssessment{}, false
	}
}

// FindingSeverity grades a specialist finding.
type FindingSeverity string

const (
	FINDING_LOW      FindingSeverity = "low"
	FINDING_MODERATE FindingSeverity = "moderate"
	FINDING_HIGH     FindingSeverity = "high"
)

// Rank orders finding severities from low (1) to high (3).
func (s FindingSeverity) Rank() int {
	switch s {
	case FINDING_LOW:
		return 1
	case FINDING_MODERATE:
		return 2
	case FINDING_HIGH:
		return 3
	default:
		return 0
	}
}

// Finding is a single factor that triggered specialist review.
type Finding struct {
	Factor            string          `json:"factor"`
	Severity          FindingSeverity `json:"severity"`
	Rationale         string          `json:"rationale"`
	GenerallyDeclined bool            `json:"generally_declined"`
}

// ReviewLevel is the urgency of a maternal-fetal medicine consultation.
type ReviewLevel string

const (
	REVIEW_NOT_REQUIRED         ReviewLevel = "not_required"
	REVIEW_RECOMMENDED          ReviewLevel = "recommended"
	REVIEW_STRONGLY_RECOMMENDED ReviewLevel = "strongly_recommended"
	REVIEW_REQUIRED             ReviewLevel = "required"
)

// Likelihood predicts the outcome of a specialist consultation.
type Likelihood string

const (
	LIKELIHOOD_LIKELY_APPROVE   Likelihood = "likely_approve"
	LIKELIHOOD_POSSIBLY_APPROVE Likelihood = "possibly_approve"
	LIKELIHOOD_UNLIKELY_APPROVE Likelihood = "unlikely_approve"
	LIKELIHOOD_LIKELY_DENY      Likelihood = "likely_deny"
)

// ApprovalRange is an approximate approval percentage band.
type ApprovalRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// SpecialistAssessment is the specialist review predictor's output.
type SpecialistAssessment struct {
	ReviewLevel   ReviewLevel   `json:"review_level"`
	Likelihood    Likelihood    `json:"likelihood"`
	ApprovalRange ApprovalRange `json:"approval_range"`
	Findings      []Finding     `json:"findings"`
}

// AIOutcome tags what happened in the optional AI extraction stage.
type AIOutcome string

const (
	AI_DISABLED         AIOutcome = "disabled"
	AI_SUCCEEDED        AIOutcome = "succeeded"
	AI_CACHED           AIOutcome = "cached"
	AI_FAILED           AIOutcome = "failed"
	AI_TIMEOUT          AIOutcome = "timeout"
	AI_INVALID_RESPONSE AIOutcome = "invalid_response"
	AI_CIRCUIT_OPEN     AIOutcome = "circuit_open"
)

// Used reports whether AI output was applied to the record.
func (o AIOutcome) Used() bool {
	return o == AI_SUCCEEDED || o == AI_CACHED
}

// ExtractionResult wraps a record with diagnostic confidence data. Scoring
// never reads Confidence or SourceLayers.
type ExtractionResult struct {
	Record              CandidateRecord `json:"record"`
	Confidence          int             `json:"confidence"`
	PatternConfidence   int             `json:"pattern_confidence"`
	NarrativeConfidence int             `json:"narrative_confidence"`
	SourceLayers        []Layer         `json:"source_layers"`
	AIOutcome           AIOutcome       `json:"ai_outcome"`
	DocumentationGaps   []string        `json:"documentation_gaps,omitempty"`
	SurgicalHistory     []string        `json:"surgical_history,omitempty"`
	Summary             string          `json:"summary,omitempty"`
}

// AssessmentResult is the combined response of a single assessment.
type AssessmentResult struct {
	AssessmentID         string               `json:"assessment_id"`
	CandidateRecord      CandidateRecord      `json:"candidate_record"`
	ExtractionConfidence int                  `json:"extraction_confidence"`
	SourceLayers         []Layer              `json:"source_layers"`
	AIOutcome            AIOutcome            `json:"ai_outcome"`
	ClinicAssessments    ClinicAssessments    `json:"clinic_assessments"`
	SpecialistAssessment SpecialistAssessment `json:"specialist_assessment"`
	DocumentationGaps    []string             `json:"documentation_gaps,omitempty"`
	SurgicalHistory      []string             `json:"surgical_history,omitempty"`
	Summary              string               `json:"summary,omitempty"`
	ProcessingTime       time.Duration        `json:"processing_time"`
	CreatedAt            time.Time            `json:"created_at"`
}

// RecordAssessment is the scoring-only response for a caller-supplied record.
type RecordAssessment struct {
	ClinicAssessments    ClinicAssessments    `json:"clinic_assessments"`
	SpecialistAssessment SpecialistAssessment `json:"specialist_assessment"`
}
