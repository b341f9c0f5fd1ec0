package scoring

import (
	"math"

	"github.com/gc-eligibility-server/internal/domain"
)

// Penalty is a score deduction and the issue severity it is reported with.
type Penalty struct {
	Points   int
	Severity domain.IssueSeverity
}

func minor(points int) Penalty    { return Penalty{points, domain.ISSUE_MINOR} }
func moderate(points int) Penalty { return Penalty{points, domain.ISSUE_MODERATE} }
func major(points int) Penalty    { return Penalty{points, domain.ISSUE_MAJOR} }

// IntBand applies its penalty to values in [Min, Max].
type IntBand struct {
	Min, Max int
	Penalty
}

// FloatBand applies its penalty to values below Below that no earlier band
// claimed.
type FloatBand struct {
	Below float64
	Penalty
}

// LifestylePenalties are deductions for lifestyle risk factors.
type LifestylePenalties struct {
	Smoker                 Penalty
	DrugUse                Penalty
	ExcessiveAlcohol       Penalty
	BodyModification       Penalty
	PsychotropicMedication Penalty
}

// PsychosocialPenalties are deductions for support and coercion concerns.
type PsychosocialPenalties struct {
	SupportInadequate   Penalty
	EnvironmentUnstable Penalty
	Coercion            Penalty
}

// EnvironmentalPenalties are deductions for unstable circumstances.
type EnvironmentalPenalties struct {
	HousingUnstable       Penalty
	EmploymentUnstable    Penalty
	FinanciallyInadequate Penalty
	RelationshipUnstable  Penalty
	PartnerUnsupportive   Penalty
	LegalIssues           Penalty
}

// ComplicationPenalties computes the complication deduction from a count.
// Costs[i] is the cost of the (i+1)th complication; each complication past
// the end of Costs costs Step more than the one before it.
type ComplicationPenalties struct {
	Costs       []int
	Step        int
	AlwaysMajor bool
}

// Cost returns the penalty charged for the nth complication, counting from 1.
func (c ComplicationPenalties) Cost(n int) int {
	if n <= 0 || len(c.Costs) == 0 {
		return 0
	}
	if n <= len(c.Costs) {
		return c.Costs[n-1]
	}
	return c.Costs[len(c.Costs)-1] + (n-len(c.Costs))*c.Step
}

// Total returns the cumulative penalty for count complications.
func (c ComplicationPenalties) Total(count int) int {
	total := 0
	for n := 1; n <= count; n++ {
		total += c.Cost(n)
	}
	return total
}

// CombinationRule adds a penalty when several risk factors coincide.
type CombinationRule struct {
	MajorThreshold int
	MajorPenalty   int
	IssueThreshold int
	IssuePenalty   int
}

// Profile is the complete rule table for one clinic acceptance profile.
type Profile struct {
	Name               domain.ClinicProfile
	Ceiling            int
	AgeWindow          [2]int
	AgeBands           []IntBand
	BMIWindow          [2]float64
	BMIBands           []FloatBand
	Cesareans          []IntBand
	Deliveries         []IntBand
	Conditions         map[domain.ConditionTag]Penalty
	Complications      ComplicationPenalties
	Lifestyle          LifestylePenalties
	PsychFlags         map[domain.PsychFlag]Penalty
	Psychosocial       PsychosocialPenalties
	Environmental      EnvironmentalPenalties
	InfectiousPositive Penalty
	Combination        CombinationRule
}

const open = math.MaxInt

// through makes an inclusive upper bound usable as an exclusive FloatBand
// limit.
func through(v float64) float64 {
	return math.Nextafter(v, math.Inf(1))
}

func lookupInt(bands []IntBand, v int) (Penalty, bool) {
	for _, b := range bands {
		if v >= b.Min && v <= b.Max {
			return b.Penalty, b.Points > 0
		}
	}
	return Penalty{}, false
}

func lookupFloat(bands []FloatBand, v float64) (Penalty, bool) {
	for _, b := range bands {
		if v < b.Below {
			return b.Penalty, b.Points > 0
		}
	}
	return Penalty{}, false
}

// Profiles returns the built-in clinic profiles in evaluation order.
func Profiles() []*Profile {
	return []*Profile{strictProfile(), moderateProfile(), lenientProfile()}
}

func strictProfile() *Profile {
	return &Profile{
		Name:      domain.PROFILE_STRICT,
		Ceiling:   95,
		AgeWindow: [2]int{21, 35},
		AgeBands: []IntBand{
			{0, 20, major(40)},
			{36, 37, minor(10)},
			{38, 39, moderate(25)},
			{40, 42, major(45)},
			{43, open, major(60)},
		},
		BMIWindow: [2]float64{19, 30},
		BMIBands: []FloatBand{
			{18.5, moderate(20)},
			{19, minor(5)},
			{through(30), Penalty{}},
			{through(32), minor(10)},
			{through(35), moderate(25)},
			{math.Inf(1), major(45)},
		},
		Cesareans: []IntBand{
			{1, 1, minor(5)},
			{2, 2, moderate(25)},
			{3, open, major(50)},
		},
		Deliveries: []IntBand{
			{0, 0, moderate(20)},
			{4, 4, minor(10)},
			{5, open, major(30)},
		},
		Conditions: map[domain.ConditionTag]Penalty{
			domain.CONDITION_HYPERTENSION:           major(60),
			domain.CONDITION_PREGNANCY_HYPERTENSION: major(35),
			domain.CONDITION_GESTATIONAL_DIABETES:   moderate(30),
			domain.CONDITION_DIABETES:               major(70),
			domain.CONDITION_PREECLAMPSIA:           major(95),
			domain.CONDITION_ECLAMPSIA_HELLP:        major(100),
			domain.CONDITION_HYPEREMESIS:            moderate(15),
			domain.CONDITION_THYROID_DISORDER:       minor(10),
			domain.CONDITION_AUTOIMMUNE_DISORDER:    major(40),
			domain.CONDITION_CLOTTING_DISORDER:      major(50),
			domain.CONDITION_KIDNEY_DISEASE:         major(60),
			domain.CONDITION_HEART_DISEASE:          major(80),
			domain.CONDITION_DEPRESSION:             moderate(20),
			domain.CONDITION_ANXIETY:                minor(12),
			domain.CONDITION_BIPOLAR_DISORDER:       major(60),
			domain.CONDITION_ASTHMA:                 minor(5),
			domain.CONDITION_PCOS:                   minor(5),
			domain.CONDITION_UTERINE_SURGERY:        moderate(30),
			domain.CONDITION_POSTPARTUM_HEMORRHAGE:  major(40),
			domain.CONDITION_PRETERM_BIRTH:          major(35),
			domain.CONDITION_CERVICAL_INSUFFICIENCY: major(45),
			domain.CONDITION_EPILEPSY:               major(40),
			domain.CONDITION_ANEMIA:                 minor(5),
		},
		Complications: ComplicationPenalties{Costs: []int{50}, AlwaysMajor: true},
		Lifestyle: LifestylePenalties{
			Smoker:                 major(40),
			DrugUse:                major(60),
			ExcessiveAlcohol:       major(40),
			BodyModification:       minor(10),
			PsychotropicMedication: moderate(25),
		},
		PsychFlags: map[domain.PsychFlag]Penalty{
			domain.PSYCH_POSTPARTUM_DEPRESSION:       moderate(25),
			domain.PSYCH_EATING_DISORDER:             major(30),
			domain.PSYCH_PSYCHIATRIC_HOSPITALIZATION: major(50),
			domain.PSYCH_SUBSTANCE_ABUSE_HISTORY:     major(40),
			domain.PSYCH_SUICIDAL_HISTORY:            major(70),
			domain.PSYCH_TRAUMA_HISTORY:              moderate(15),
		},
		Psychosocial: PsychosocialPenalties{
			SupportInadequate:   moderate(20),
			EnvironmentUnstable: moderate(20),
			Coercion:            major(100),
		},
		Environmental: EnvironmentalPenalties{
			HousingUnstable:       major(30),
			EmploymentUnstable:    minor(10),
			FinanciallyInadequate: moderate(15),
			RelationshipUnstable:  moderate(15),
			PartnerUnsupportive:   moderate(25),
			LegalIssues:           major(35),
		},
		InfectiousPositive: major(50),
		Combination:        CombinationRule{MajorThreshold: 2, MajorPenalty: 20, IssueThreshold: 3, IssuePenalty: 10},
	}
}

func moderateProfile() *Profile {
	return &Profile{
		Name:      domain.PROFILE_MODERATE,
		Ceiling:   92,
		AgeWindow: [2]int{21, 37},
		AgeBands: []IntBand{
			{0, 20, moderate(25)},
			{38, 39, minor(8)},
			{40, 42, moderate(20)},
			{43, 45, major(35)},
			{46, open, major(50)},
		},
		BMIWindow: [2]float64{18.5, 32},
		BMIBands: []FloatBand{
			{18.5, moderate(12)},
			{through(32), Penalty{}},
			{through(35), minor(10)},
			{through(38), moderate(25)},
			{math.Inf(1), major(40)},
		},
		Cesareans: []IntBand{
			{2, 2, minor(10)},
			{3, 3, major(30)},
			{4, open, major(45)},
		},
		Deliveries: []IntBand{
			{0, 0, minor(10)},
			{5, 5, moderate(12)},
			{6, open, major(30)},
		},
		Conditions: map[domain.ConditionTag]Penalty{
			domain.CONDITION_HYPERTENSION:           major(35),
			domain.CONDITION_PREGNANCY_HYPERTENSION: moderate(18),
			domain.CONDITION_GESTATIONAL_DIABETES:   moderate(15),
			domain.CONDITION_DIABETES:               major(40),
			domain.CONDITION_PREECLAMPSIA:           major(50),
			domain.CONDITION_ECLAMPSIA_HELLP:        major(70),
			domain.CONDITION_HYPEREMESIS:            minor(8),
			domain.CONDITION_THYROID_DISORDER:       minor(5),
			domain.CONDITION_AUTOIMMUNE_DISORDER:    moderate(25),
			domain.CONDITION_CLOTTING_DISORDER:      major(30),
			domain.CONDITION_KIDNEY_DISEASE:         major(40),
			domain.CONDITION_HEART_DISEASE:          major(55),
			domain.CONDITION_DEPRESSION:             minor(10),
			domain.CONDITION_ANXIETY:                minor(6),
			domain.CONDITION_BIPOLAR_DISORDER:       major(40),
			domain.CONDITION_ASTHMA:                 minor(2),
			domain.CONDITION_PCOS:                   minor(2),
			domain.CONDITION_UTERINE_SURGERY:        moderate(18),
			domain.CONDITION_POSTPARTUM_HEMORRHAGE:  moderate(22),
			domain.CONDITION_PRETERM_BIRTH:          moderate(20),
			domain.CONDITION_CERVICAL_INSUFFICIENCY: moderate(25),
			domain.CONDITION_EPILEPSY:               moderate(25),
			domain.CONDITION_ANEMIA:                 minor(3),
		},
		Complications: ComplicationPenalties{Costs: []int{35}},
		Lifestyle: LifestylePenalties{
			Smoker:                 major(25),
			DrugUse:                major(45),
			ExcessiveAlcohol:       major(30),
			BodyModification:       minor(5),
			PsychotropicMedication: minor(12),
		},
		PsychFlags: map[domain.PsychFlag]Penalty{
			domain.PSYCH_POSTPARTUM_DEPRESSION:       moderate(15),
			domain.PSYCH_EATING_DISORDER:             moderate(20),
			domain.PSYCH_PSYCHIATRIC_HOSPITALIZATION: major(35),
			domain.PSYCH_SUBSTANCE_ABUSE_HISTORY:     moderate(25),
			domain.PSYCH_SUICIDAL_HISTORY:            major(50),
			domain.PSYCH_TRAUMA_HISTORY:              minor(8),
		},
		Psychosocial: PsychosocialPenalties{
			SupportInadequate:   moderate(12),
			EnvironmentUnstable: moderate(12),
			Coercion:            major(100),
		},
		Environmental: EnvironmentalPenalties{
			HousingUnstable:       moderate(20),
			EmploymentUnstable:    minor(5),
			FinanciallyInadequate: minor(8),
			RelationshipUnstable:  minor(10),
			PartnerUnsupportive:   moderate(15),
			LegalIssues:           moderate(20),
		},
		InfectiousPositive: major(35),
		Combination:        CombinationRule{MajorThreshold: 2, MajorPenalty: 15, IssueThreshold: 3, IssuePenalty: 8},
	}
}

func lenientProfile() *Profile {
	return &Profile{
		Name:      domain.PROFILE_LENIENT,
		Ceiling:   95,
		AgeWindow: [2]int{21, 39},
		AgeBands: []IntBand{
			{0, 20, moderate(15)},
			{40, 42, minor(5)},
			{43, 45, moderate(15)},
			{46, open, major(30)},
		},
		BMIWindow: [2]float64{18, 35},
		BMIBands: []FloatBand{
			{18, minor(8)},
			{through(35), Penalty{}},
			{through(38), minor(8)},
			{through(40), moderate(18)},
			{math.Inf(1), major(30)},
		},
		Cesareans: []IntBand{
			{3, 3, moderate(12)},
			{4, open, major(25)},
		},
		Deliveries: []IntBand{
			{6, 6, minor(8)},
			{7, open, major(20)},
		},
		Conditions: map[domain.ConditionTag]Penalty{
			domain.CONDITION_HYPERTENSION:           moderate(18),
			domain.CONDITION_PREGNANCY_HYPERTENSION: minor(8),
			domain.CONDITION_GESTATIONAL_DIABETES:   minor(6),
			domain.CONDITION_DIABETES:               moderate(22),
			domain.CONDITION_PREECLAMPSIA:           moderate(29),
			domain.CONDITION_ECLAMPSIA_HELLP:        major(45),
			domain.CONDITION_HYPEREMESIS:            minor(3),
			domain.CONDITION_THYROID_DISORDER:       minor(2),
			domain.CONDITION_AUTOIMMUNE_DISORDER:    moderate(12),
			domain.CONDITION_CLOTTING_DISORDER:      moderate(15),
			domain.CONDITION_KIDNEY_DISEASE:         moderate(20),
			domain.CONDITION_HEART_DISEASE:          major(30),
			domain.CONDITION_DEPRESSION:             minor(4),
			domain.CONDITION_ANXIETY:                minor(2),
			domain.CONDITION_BIPOLAR_DISORDER:       moderate(20),
			domain.CONDITION_ASTHMA:                 {},
			domain.CONDITION_PCOS:                   {},
			domain.CONDITION_UTERINE_SURGERY:        minor(8),
			domain.CONDITION_POSTPARTUM_HEMORRHAGE:  minor(10),
			domain.CONDITION_PRETERM_BIRTH:          minor(10),
			domain.CONDITION_CERVICAL_INSUFFICIENCY: moderate(12),
			domain.CONDITION_EPILEPSY:               moderate(12),
			domain.CONDITION_ANEMIA:                 minor(2),
		},
		Complications: ComplicationPenalties{Costs: []int{5, 12, 20}, Step: 5},
		Lifestyle: LifestylePenalties{
			Smoker:                 moderate(15),
			DrugUse:                major(30),
			ExcessiveAlcohol:       moderate(20),
			BodyModification:       Penalty{},
			PsychotropicMedication: minor(5),
		},
		PsychFlags: map[domain.PsychFlag]Penalty{
			domain.PSYCH_POSTPARTUM_DEPRESSION:       minor(8),
			domain.PSYCH_EATING_DISORDER:             minor(10),
			domain.PSYCH_PSYCHIATRIC_HOSPITALIZATION: moderate(20),
			domain.PSYCH_SUBSTANCE_ABUSE_HISTORY:     moderate(12),
			domain.PSYCH_SUICIDAL_HISTORY:            major(30),
			domain.PSYCH_TRAUMA_HISTORY:              minor(4),
		},
		Psychosocial: PsychosocialPenalties{
			SupportInadequate:   minor(6),
			EnvironmentUnstable: minor(6),
			Coercion:            major(90),
		},
		Environmental: EnvironmentalPenalties{
			HousingUnstable:       minor(10),
			EmploymentUnstable:    Penalty{},
			FinanciallyInadequate: minor(3),
			RelationshipUnstable:  minor(5),
			PartnerUnsupportive:   minor(8),
			LegalIssues:           minor(10),
		},
		InfectiousPositive: moderate(20),
		Combination:        CombinationRule{MajorThreshold: 2, MajorPenalty: 10, IssueThreshold: 4, IssuePenalty: 5},
	}
}
