// Package specialist predicts whether a maternal-fetal medicine consultation
// is needed and how it is likely to end. Its rules are independent of the
// clinic scoring engine.
package specialist

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gc-eligibility-server/internal/domain"
)

type conditionRule struct {
	severity  domain.FindingSeverity
	declined  bool
	rationale string
}

var conditionRules = map[domain.ConditionTag]conditionRule{
	domain.CONDITION_ECLAMPSIA_HELLP:        {domain.FINDING_HIGH, true, "Prior eclampsia or HELLP syndrome carries a high recurrence risk"},
	domain.CONDITION_HEART_DISEASE:          {domain.FINDING_HIGH, true, "Cardiac disease increases maternal risk during pregnancy"},
	domain.CONDITION_PREECLAMPSIA:           {domain.FINDING_HIGH, false, "Prior preeclampsia raises recurrence risk"},
	domain.CONDITION_HYPERTENSION:           {domain.FINDING_HIGH, false, "Chronic hypertension requires specialist management"},
	domain.CONDITION_DIABETES:               {domain.FINDING_HIGH, false, "Pre-existing diabetes requires specialist management"},
	domain.CONDITION_KIDNEY_DISEASE:         {domain.FINDING_HIGH, false, "Renal disease affects pregnancy outcomes"},
	domain.CONDITION_CLOTTING_DISORDER:      {domain.FINDING_HIGH, false, "Clotting disorders require anticoagulation planning"},
	domain.CONDITION_CERVICAL_INSUFFICIENCY: {domain.FINDING_HIGH, false, "Cervical insufficiency raises risk of second-trimester loss"},
	domain.CONDITION_GESTATIONAL_DIABETES:   {domain.FINDING_MODERATE, false, "Prior gestational diabetes may recur"},
	domain.CONDITION_PREGNANCY_HYPERTENSION: {domain.FINDING_MODERATE, false, "Prior gestational hypertension may recur"},
	domain.CONDITION_AUTOIMMUNE_DISORDER:    {domain.FINDING_MODERATE, false, "Autoimmune disease may flare during pregnancy"},
	domain.CONDITION_POSTPARTUM_HEMORRHAGE:  {domain.FINDING_MODERATE, false, "Prior postpartum hemorrhage may recur"},
	domain.CONDITION_PRETERM_BIRTH:          {domain.FINDING_MODERATE, false, "Prior preterm birth raises recurrence risk"},
	domain.CONDITION_UTERINE_SURGERY:        {domain.FINDING_MODERATE, false, "Prior uterine surgery affects uterine integrity"},
	domain.CONDITION_EPILEPSY:               {domain.FINDING_MODERATE, false, "Seizure disorders require medication review"},
	domain.CONDITION_THYROID_DISORDER:       {domain.FINDING_LOW, false, "Thyroid function should be monitored"},
	domain.CONDITION_HYPEREMESIS:            {domain.FINDING_LOW, false, "Prior hyperemesis may recur"},
	domain.CONDITION_ANEMIA:                 {domain.FINDING_LOW, false, "Anemia should be corrected before transfer"},
}

// Categories whose complications warrant at least moderate concern
// regardless of the recorded grade.
var moderateFloorCategories = map[domain.ComplicationCategory]bool{
	domain.COMPLICATION_PLACENTAL:   true,
	domain.COMPLICATION_CERVICAL:    true,
	domain.COMPLICATION_HEMORRHAGIC: true,
	domain.COMPLICATION_FETAL_LOSS:  true,
}

// Predictor produces specialist assessments. It holds no mutable state.
type Predictor struct {
	logger *logrus.Logger
}

// NewPredictor creates a new specialist review predictor
func NewPredictor(logger *logrus.Logger) *Predictor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Predictor{logger: logger}
}

// Predict evaluates record and returns the review recommendation.
func (p *Predictor) Predict(record domain.CandidateRecord) domain.SpecialistAssessment {
	findings := make([]domain.Finding, 0)
	add := func(f domain.Finding) { findings = append(findings, f) }

	if record.Age != nil {
		if f, ok := ageFinding(*record.Age); ok {
			add(f)
		}
	}
	if f, ok := cesareanFinding(record.PregnancyHistory.CesareanCount); ok {
		add(f)
	}
	if record.Lifestyle.BMI != nil {
		if f, ok := bmiFinding(*record.Lifestyle.BMI); ok {
			add(f)
		}
	}
	for _, tag := range domain.SortConditions(record.MedicalConditions) {
		rule, ok := conditionRules[tag]
		if !ok {
			continue
		}
		add(domain.Finding{
			Factor:            string(tag),
			Severity:          rule.severity,
			Rationale:         rule.rationale,
			GenerallyDeclined: rule.declined,
		})
	}
	findings = append(findings, complicationFindings(record.PregnancyHistory.Complications)...)
	if total := record.PregnancyHistory.TotalDeliveries; total != nil {
		if f, ok := multiparityFinding(*total); ok {
			add(f)
		}
	}

	assessment := summarize(findings)
	p.logger.WithFields(logrus.Fields{
		"review_level": assessment.ReviewLevel,
		"likelihood":   assessment.Likelihood,
		"findings":     len(findings),
	}).Debug("Completed specialist review prediction")
	return assessment
}

func ageFinding(age int) (domain.Finding, bool) {
	f := domain.Finding{Factor: "advanced_maternal_age"}
	switch {
	case age >= 45:
		f.Severity, f.GenerallyDeclined = domain.FINDING_HIGH, true
		f.Rationale = fmt.Sprintf("Age %d exceeds the limit most specialists accept", age)
	case age >= 40:
		f.Severity = domain.FINDING_HIGH
		f.Rationale = fmt.Sprintf("Age %d carries substantially elevated obstetric risk", age)
	case age >= 35:
		f.Severity = domain.FINDING_LOW
		f.Rationale = fmt.Sprintf("Age %d is advanced maternal age", age)
	default:
		return f, false
	}
	return f, true
}

func cesareanFinding(count int) (domain.Finding, bool) {
	f := domain.Finding{Factor: "prior_cesareans"}
	switch {
	case count >= 4:
		f.Severity, f.GenerallyDeclined = domain.FINDING_HIGH, true
		f.Rationale = fmt.Sprintf("%d prior cesareans; placenta accreta and rupture risk is generally prohibitive", count)
	case count == 3:
		f.Severity = domain.FINDING_HIGH
		f.Rationale = "3 prior cesareans raise placenta accreta and uterine rupture risk"
	case count == 2:
		f.Severity = domain.FINDING_MODERATE
		f.Rationale = "2 prior cesareans require review of operative reports"
	default:
		return f, false
	}
	return f, true
}

func bmiFinding(bmi float64) (domain.Finding, bool) {
	f := domain.Finding{Factor: "bmi"}
	switch {
	case bmi >= 40:
		f.Severity, f.GenerallyDeclined = domain.FINDING_HIGH, true
		f.Rationale = fmt.Sprintf("BMI %.1f is class III obesity", bmi)
	case bmi >= 35:
		f.Severity = domain.FINDING_HIGH
		f.Rationale = fmt.Sprintf("BMI %.1f is class II obesity", bmi)
	case bmi >= 32:
		f.Severity = domain.FINDING_MODERATE
		f.Rationale = fmt.Sprintf("BMI %.1f increases gestational diabetes and hypertension risk", bmi)
	case bmi >= 30:
		f.Severity = domain.FINDING_LOW
		f.Rationale = fmt.Sprintf("BMI %.1f is in the obese range", bmi)
	case bmi < 18.5:
		f.Severity = domain.FINDING_MODERATE
		f.Rationale = fmt.Sprintf("BMI %.1f is underweight", bmi)
	default:
		return f, false
	}
	return f, true
}

// complicationFindings emits one finding per category, graded by the worst
// recorded severity, in vocabulary order.
func complicationFindings(complications []domain.Complication) []domain.Finding {
	worst := make(map[domain.ComplicationCategory]domain.ComplicationSeverity)
	for _, c := range complications {
		if c.Severity.Rank() > worst[c.Category].Rank() {
			worst[c.Category] = c.Severity
		}
	}

	var out []domain.Finding
	for _, category := range domain.ComplicationCategories {
		severity, ok := worst[category]
		if !ok {
			continue
		}
		graded := findingSeverity(severity)
		if moderateFloorCategories[category] && graded.Rank() < domain.FINDING_MODERATE.Rank() {
			graded = domain.FINDING_MODERATE
		}
		out = append(out, domain.Finding{
			Factor:    "prior_complication_" + string(category),
			Severity:  graded,
			Rationale: fmt.Sprintf("Prior %s complication (%s)", category, severity),
		})
	}
	return out
}

func findingSeverity(s domain.ComplicationSeverity) domain.FindingSeverity {
	switch s {
	case domain.SEVERITY_SEVERE:
		return domain.FINDING_HIGH
	case domain.SEVERITY_MODERATE:
		return domain.FINDING_MODERATE
	default:
		return domain.FINDING_LOW
	}
}

func multiparityFinding(deliveries int) (domain.Finding, bool) {
	f := domain.Finding{Factor: "grand_multiparity"}
	switch {
	case deliveries >= 6:
		f.Severity = domain.FINDING_HIGH
		f.Rationale = fmt.Sprintf("%d prior deliveries", deliveries)
	case deliveries == 5:
		f.Severity = domain.FINDING_MODERATE
		f.Rationale = "5 prior deliveries"
	default:
		return f, false
	}
	return f, true
}

func summarize(findings []domain.Finding) domain.SpecialistAssessment {
	highest := 0
	highCount := 0
	declined := false
	for _, f := range findings {
		if r := f.Severity.Rank(); r > highest {
			highest = r
		}
		if f.Severity == domain.FINDING_HIGH {
			highCount++
		}
		declined = declined || f.GenerallyDeclined
	}

	out := domain.SpecialistAssessment{Findings: findings}
	switch highest {
	case 3:
		out.ReviewLevel = domain.REVIEW_REQUIRED
	case 2:
		out.ReviewLevel = domain.REVIEW_STRONGLY_RECOMMENDED
	case 1:
		out.ReviewLevel = domain.REVIEW_RECOMMENDED
	default:
		out.ReviewLevel = domain.REVIEW_NOT_REQUIRED
	}

	switch {
	case declined || highCount >= 2:
		out.Likelihood = domain.LIKELIHOOD_LIKELY_DENY
		out.ApprovalRange = domain.ApprovalRange{Min: 10, Max: 30}
	case highCount == 1:
		out.Likelihood = domain.LIKELIHOOD_UNLIKELY_APPROVE
		out.ApprovalRange = domain.ApprovalRange{Min: 30, Max: 50}
	case highest == 2:
		out.Likelihood = domain.LIKELIHOOD_POSSIBLY_APPROVE
		out.ApprovalRange = domain.ApprovalRange{Min: 50, Max: 80}
	default:
		out.Likelihood = domain.LIKELIHOOD_LIKELY_APPROVE
		out.ApprovalRange = domain.ApprovalRange{Min: 90, Max: 100}
	}
	return out
}
