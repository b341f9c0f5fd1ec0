// Package scoring implements the multi-profile deterministic risk scoring
// engine. Each clinic profile starts a candidate at 100, subtracts itemized
// penalties, applies a combination layer and clamps the result to the
// profile's ceiling.
package scoring

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gc-eligibility-server/internal/domain"
)

const (
	startingScore      = 100
	likelyThreshold    = 60
	uncertainThreshold = 20
)

// Engine scores candidate records against every clinic profile. It is pure:
// identical records always produce identical assessments.
type Engine struct {
	logger   *logrus.Logger
	profiles []*Profile
}

// NewEngine creates a scoring engine with the built-in profiles
func NewEngine(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Engine{
		logger:   logger,
		profiles: Profiles(),
	}
}

// Score evaluates record against the strict, moderate and lenient profiles.
// A closed-vocabulary violation in the record is a fatal invariant error and
// no assessment is produced.
func (e *Engine) Score(record domain.CandidateRecord) (domain.ClinicAssessments, error) {
	if err := record.Validate(); err != nil {
		return domain.ClinicAssessments{}, fmt.Errorf("scoring invariant violated: %w", err)
	}

	var out domain.ClinicAssessments
	for _, profile := range e.profiles {
		assessment := e.scoreProfile(record, profile)
		switch profile.Name {
		case domain.PROFILE_STRICT:
			out.Strict = assessment
		case domain.PROFILE_MODERATE:
			out.Moderate = assessment
		case domain.PROFILE_LENIENT:
			out.Lenient = assessment
		}
	}

	e.logger.WithFields(logrus.Fields{
		"strict":   out.Strict.Score,
		"moderate": out.Moderate.Score,
		"lenient":  out.Lenient.Score,
	}).Debug("Completed clinic scoring")

	return out, nil
}

// ScoreProfile evaluates record against a single named profile.
func (e *Engine) ScoreProfile(record domain.CandidateRecord, name domain.ClinicProfile) (domain.ClinicAssessment, error) {
	if err := record.Validate(); err != nil {
		return domain.ClinicAssessment{}, fmt.Errorf("scoring invariant violated: %w", err)
	}
	for _, profile := range e.profiles {
		if profile.Name == name {
			return e.scoreProfile(record, profile), nil
		}
	}
	return domain.ClinicAssessment{}, fmt.Errorf("%w: %q", domain.ErrInvalidClinicProfile, name)
}

func (e *Engine) scoreProfile(record domain.CandidateRecord, p *Profile) domain.ClinicAssessment {
	var issues []domain.Issue
	add := func(penalty Penalty, format string, args ...interface{}) {
		if penalty.Points <= 0 {
			return
		}
		issues = append(issues, domain.Issue{
			Severity: penalty.Severity,
			Message:  fmt.Sprintf(format, args...),
			Penalty:  penalty.Points,
		})
	}

	// Factor order is fixed so issue lists are reproducible.
	if record.Age != nil {
		if penalty, ok := lookupInt(p.AgeBands, *record.Age); ok {
			add(penalty, "Age %d is outside the preferred range of %d-%d", *record.Age, p.AgeWindow[0], p.AgeWindow[1])
		}
	}

	if bmi := record.Lifestyle.BMI; bmi != nil {
		if penalty, ok := lookupFloat(p.BMIBands, *bmi); ok {
			add(penalty, "BMI %.1f is outside the preferred range of %g-%g", *bmi, p.BMIWindow[0], p.BMIWindow[1])
		}
	}

	history := record.PregnancyHistory
	if penalty, ok := lookupInt(p.Cesareans, history.CesareanCount); ok {
		add(penalty, "%d prior cesarean %s", history.CesareanCount, plural(history.CesareanCount, "delivery", "deliveries"))
	}
	// An unreported delivery count is unknown, not zero.
	if total := history.TotalDeliveries; total != nil {
		if penalty, ok := lookupInt(p.Deliveries, *total); ok {
			if *total == 0 {
				add(penalty, "No prior deliveries")
			} else {
				add(penalty, "%d prior deliveries", *total)
			}
		}
	}

	for _, tag := range domain.SortConditions(record.MedicalConditions) {
		add(p.Conditions[tag], "Medical history: %s", humanize(string(tag)))
	}

	if count := history.EffectiveComplicationCount(); count > 0 {
		severity := complicationSeverity(history.Complications)
		if p.Complications.AlwaysMajor {
			severity = domain.ISSUE_MAJOR
		}
		add(Penalty{p.Complications.Total(count), severity}, "%d prior pregnancy %s", count, plural(count, "complication", "complications"))
	}

	lifestyle := record.Lifestyle
	if lifestyle.Smoker {
		add(p.Lifestyle.Smoker, "Current smoker")
	}
	if lifestyle.DrugUse {
		add(p.Lifestyle.DrugUse, "Current drug use")
	}
	if lifestyle.AlcoholUse == domain.ALCOHOL_EXCESSIVE {
		add(p.Lifestyle.ExcessiveAlcohol, "Excessive alcohol use")
	}
	if lifestyle.RecentBodyModification {
		add(p.Lifestyle.BodyModification, "Recent tattoo or piercing")
	}

	psych := record.Psychological
	if psych.OnPsychotropicMedication {
		add(p.Lifestyle.PsychotropicMedication, "Currently taking psychotropic medication")
	}
	for _, flag := range domain.SortPsychFlags(psych.HistoryFlags) {
		add(p.PsychFlags[flag], "Psychological history: %s", humanize(string(flag)))
	}
	if !psych.SupportAdequate {
		add(p.Psychosocial.SupportInadequate, "Inadequate support system")
	}
	if !psych.EnvironmentStable {
		add(p.Psychosocial.EnvironmentUnstable, "Unstable home environment")
	}
	if psych.CoercionSuspected {
		add(p.Psychosocial.Coercion, "Possible coercion into surrogacy")
	}

	env := record.Environmental
	if !env.HousingStable {
		add(p.Environmental.HousingUnstable, "Unstable housing")
	}
	if !env.EmploymentStable {
		add(p.Environmental.EmploymentUnstable, "Unstable employment")
	}
	if !env.FinanciallyAdequate {
		add(p.Environmental.FinanciallyInadequate, "Financial instability")
	}
	if !env.RelationshipStable {
		add(p.Environmental.RelationshipUnstable, "Unstable relationship")
	}
	if !env.PartnerSupportive {
		add(p.Environmental.PartnerUnsupportive, "Partner is not supportive")
	}
	if env.LegalIssues {
		add(p.Environmental.LegalIssues, "Pending or past legal issues")
	}

	for _, name := range record.SortedTestNames() {
		if record.InfectiousDiseaseResults[name] == domain.TEST_POSITIVE {
			add(p.InfectiousPositive, "Positive infectious disease screen: %s", humanize(name))
		}
	}

	if combination, ok := combinationPenalty(issues, p.Combination); ok {
		issues = append(issues, combination)
	}

	total := 0
	for _, issue := range issues {
		total += issue.Penalty
	}
	score := clamp(startingScore-total, 0, p.Ceiling)

	if issues == nil {
		issues = []domain.Issue{}
	}
	return domain.ClinicAssessment{
		Profile:         p.Name,
		Score:           score,
		Issues:          issues,
		AcceptanceLevel: Classify(score),
	}
}

// combinationPenalty returns the synthetic combined-risk issue when several
// major issues or many issues coincide.
func combinationPenalty(issues []domain.Issue, rule CombinationRule) (domain.Issue, bool) {
	majors := 0
	for _, issue := range issues {
		if issue.Severity == domain.ISSUE_MAJOR {
			majors++
		}
	}

	points := 0
	var reasons []string
	severity := domain.ISSUE_MODERATE
	if majors >= rule.MajorThreshold {
		points += rule.MajorPenalty
		severity = domain.ISSUE_MAJOR
		reasons = append(reasons, fmt.Sprintf("%d major risk factors", majors))
	}
	if len(issues) >= rule.IssueThreshold {
		points += rule.IssuePenalty
		reasons = append(reasons, fmt.Sprintf("%d total risk factors", len(issues)))
	}
	if points == 0 {
		return domain.Issue{}, false
	}
	return domain.Issue{
		Severity: severity,
		Message:  "Combined risk: " + strings.Join(reasons, " and "),
		Penalty:  points,
	}, true
}

func complicationSeverity(complications []domain.Complication) domain.IssueSeverity {
	worst := domain.ComplicationSeverity("")
	for _, c := range complications {
		if c.Severity.Rank() > worst.Rank() {
			worst = c.Severity
		}
	}
	switch worst {
	case domain.SEVERITY_MILD:
		return domain.ISSUE_MINOR
	case domain.SEVERITY_SEVERE:
		return domain.ISSUE_MAJOR
	default:
		return domain.ISSUE_MODERATE
	}
}

// Classify maps a clamped score to an acceptance level.
func Classify(score int) domain.AcceptanceLevel {
	switch {
	case score > likelyThreshold:
		return domain.ACCEPTANCE_LIKELY
	case score >= uncertainThreshold:
		return domain.ACCEPTANCE_CONDITIONAL
	default:
		return domain.ACCEPTANCE_UNLIKELY
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}
