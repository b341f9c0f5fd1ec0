package extraction

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gc-eligibility-server/internal/domain"
	"github.com/gc-eligibility-server/pkg/obstetric"
)

// Narrative confidence is estimated from how many major sections were
// populated.
const narrativeSectionWeight = 20

var (
	agePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{2})\s*(?:yo|y/o|y\.o\.?|yrs?\s+old|years?\s+old|-?\s*years?-old|-?\s*yr-old)\b`),
		regexp.MustCompile(`(?i)\b(?:age|aged)\s*[:=]?\s*(\d{2})\b`),
		regexp.MustCompile(`(?i)\b(\d{2})\s*(?:year|yr)s?\s+of\s+age\b`),
	}

	heightImperialPattern = regexp.MustCompile(`(\d)\s*(?:'|ft|feet|foot)\s*(\d{1,2})?\s*(?:"|''|in(?:ches)?)?`)
	heightMetricPattern   = regexp.MustCompile(`(?i)\b(1\d{2})\s*cm\b|\b(1\.\d{1,2})\s*m\b`)
	weightPattern         = regexp.MustCompile(`(?i)\b(\d{2,3}(?:\.\d)?)\s*(lbs?|pounds|kg|kilograms?)\b`)
	bmiNarrativePattern   = regexp.MustCompile(`(?i)\b(?:bmi|body mass index)\s*(?:of|was|is|=|:)?\s*(\d{2}(?:\.\d{1,2})?)\b`)

	childrenPattern         = regexp.MustCompile(`(?i)\b(?:has|have|with|raising)\s+` + obstetric.NumberWordPattern + `\s+(?:biological\s+|healthy\s+|living\s+)?(?:children|kids|child|sons?|daughters?|babies)\b`)
	motherOfPattern         = regexp.MustCompile(`(?i)\bmother\s+of\s+` + obstetric.NumberWordPattern + `\b`)
	deliveredPattern        = regexp.MustCompile(`(?i)\b(?:delivered|given\s+birth\s+to|gave\s+birth\s+to|carried)\s+` + obstetric.NumberWordPattern + `\s+(?:healthy\s+)?(?:babies|children|times|pregnancies)\b`)
	priorPregnanciesPattern = regexp.MustCompile(`(?i)\b` + obstetric.NumberWordPattern + `\s+(?:prior|previous|successful|full[- ]term|term)\s+(?:pregnancies|pregnancy|deliveries|births)\b`)

	cesareanProsePattern = regexp.MustCompile(`(?i)\b` + obstetric.NumberWordPattern + `\s+(?:prior\s+|previous\s+)?(?:c-?\s?sections?|ca?esareans?(?:\s+sections?|\s+deliveries)?)\b`)
	cesareanTimesPattern = regexp.MustCompile(`(?i)\b(?:c-?\s?sections?|ca?esareans?(?:\s+sections?)?)\s+` + obstetric.NumberWordPattern + `\s*(?:times)?\b`)
	noCesareanPattern    = regexp.MustCompile(`(?i)\b(?:no|never\s+had\s+(?:a|any))\s+(?:prior\s+|previous\s+)?(?:c-?\s?sections?|ca?esareans?)\b|\ball\s+(?:deliveries\s+)?vaginal\b`)
)

// Smoking and drug use only count with an explicit current/active qualifier.
var (
	smokingMention   = phrase(`smok(?:e|es|er|ers|ing)`, `cigarettes?`, `tobacco`, `vap(?:e|es|ing)`, `nicotine`)
	smokingActive    = phrase(`current(?:ly)?\s+(?:smok(?:es|er|ing)|vap(?:es|ing))`, `active\s+smoker`, `smokes\s+(?:daily|regularly|\d+|a\s+pack)`, `\d+\s+cigarettes?\s+(?:a|per)\s+day`, `(?:half\s+a\s+)?pack[- ](?:a|per)[- ]day`, `still\s+smok(?:es|ing)`, `vapes\s+daily`)
	drugMention      = phrase(`drugs?`, `marijuana`, `cannabis`, `cocaine`, `heroin`, `opioids?`, `meth(?:amphetamine)?`, `substances?`)
	drugActive       = phrase(`current(?:ly)?\s+(?:uses?|using)\s+(?:drugs|marijuana|cannabis|cocaine|heroin|opioids|meth(?:amphetamine)?)`, `active\s+(?:drug|substance)\s+use`, `uses\s+(?:marijuana|cannabis|cocaine|heroin|meth(?:amphetamine)?)\s+(?:daily|weekly|regularly)`, `(?:drug|substance)\s+use:\s*(?:current|active|yes)`, `positive\s+(?:urine\s+)?drug\s+screen`)
	alcoholNone      = phrase(`no\s+alcohol`, `denies\s+alcohol`, `does\s+not\s+drink`, `doesn't\s+drink`, `non-?drinker`, `abstains?`, `sober`, `never\s+drinks`)
	alcoholSocial    = phrase(`social(?:ly)?\s+drink(?:s|er|ing)?`, `drinks\s+socially`, `occasional(?:ly)?\s+(?:alcohol|drinks?|glass\s+of\s+wine)`, `social\s+alcohol`, `glass\s+of\s+wine`)
	alcoholExcess    = phrase(`heavy\s+drink(?:er|ing)`, `drinks\s+heavily`, `alcohol\s+(?:abuse|dependence|use\s+disorder)`, `alcoholism`, `binge\s+drink(?:s|er|ing)`, `drinks\s+daily`, `excessive\s+(?:alcohol|drinking)`)
	bodyModification = phrase(`(?:recent|new)\s+(?:tattoos?|piercings?)`, `(?:tattoo|piercing)\s+(?:done\s+)?(?:recently|last\s+month|this\s+year)`, `tattoo(?:ed)?\s+(?:in\s+the\s+)?(?:last|past)\s+(?:\d+|few|several|six|twelve)\s+months`, `got\s+a\s+(?:tattoo|piercing)`)
)

var psychotropicMedication = phrase(
	`sertraline`, `zoloft`, `fluoxetine`, `prozac`, `citalopram`, `celexa`, `escitalopram`, `lexapro`,
	`paroxetine`, `paxil`, `venlafaxine`, `effexor`, `duloxetine`, `cymbalta`, `bupropion`, `wellbutrin`,
	`lithium`, `lamotrigine`, `lamictal`, `quetiapine`, `seroquel`, `aripiprazole`, `abilify`, `olanzapine`,
	`risperidone`, `buspirone`, `clonazepam`, `klonopin`, `lorazepam`, `ativan`, `alprazolam`, `xanax`,
	`ssris?`, `snris?`, `antidepressants?`, `anti-?anxiety\s+medications?`, `psychiatric\s+medications?`, `mood\s+stabili[sz]ers?`, `antipsychotics?`,
)

var psychEvaluation = phrase(
	`psych(?:ological|iatric)?\s+(?:evaluation|eval|screening|assessment|clearance)\s+(?:was\s+)?(?:completed|passed|done|cleared|normal|unremarkable)`,
	`(?:completed|passed|cleared)\s+(?:a\s+|the\s+|her\s+)?psych(?:ological|iatric)?\s+(?:evaluation|eval|screening|assessment)`,
	`mmpi(?:-2)?\s+(?:completed|normal|within\s+normal\s+limits)`,
)

type synonym[T any] struct {
	value    T
	re       *regexp.Regexp
	notAfter []string
}

// Ordered most specific first; each match is masked before later entries run.
var conditionSynonyms = []synonym[domain.ConditionTag]{
	{value: domain.CONDITION_ECLAMPSIA_HELLP, re: phrase(`hellp(?:\s+syndrome)?`)},
	{value: domain.CONDITION_PREECLAMPSIA, re: phrase(`pre[- ]?eclampsia`, `toxa?emia(?:\s+of\s+pregnancy)?`)},
	{value: domain.CONDITION_ECLAMPSIA_HELLP, re: phrase(`eclampsia`), notAfter: []string{"pre", "pre-", "pre "}},
	{value: domain.CONDITION_PREGNANCY_HYPERTENSION, re: phrase(`gestational\s+hypertension`, `gestational\s+htn`, `pregnancy[- ]induced\s+hypertension`, `pih`, `pregnancy\s+hypertension`, `high\s+blood\s+pressure\s+(?:during|in)\s+(?:her\s+|a\s+|the\s+)?pregnancy`)},
	{value: domain.CONDITION_HYPERTENSION, re: phrase(`chronic\s+hypertension`, `high\s+blood\s+pressure`, `hypertension`, `hypertensive`, `htn`)},
	{value: domain.CONDITION_GESTATIONAL_DIABETES, re: phrase(`gestational\s+diabetes(?:\s+mellitus)?`, `a[12]gdm`, `gdm`, `diabetes\s+(?:during|in)\s+(?:her\s+|a\s+|the\s+)?pregnancy`)},
	{value: domain.CONDITION_DIABETES, re: phrase(`type\s+(?:1|2|one|two|i|ii)\s+diabetes`, `diabetes\s+mellitus`, `t[12]dm`, `iddm`, `niddm`, `diabetic`, `diabetes`)},
	{value: domain.CONDITION_HYPEREMESIS, re: phrase(`hyperemesis(?:\s+gravidarum)?`, `severe\s+morning\s+sickness`)},
	{value: domain.CONDITION_THYROID_DISORDER, re: phrase(`hypothyroid(?:ism)?`, `hyperthyroid(?:ism)?`, `thyroid\s+(?:disorder|disease|condition|problems?)`, `hashimoto'?s?`, `graves'?\s+disease`, `levothyroxine`, `synthroid`)},
	{value: domain.CONDITION_AUTOIMMUNE_DISORDER, re: phrase(`lupus`, `sle`, `rheumatoid\s+arthritis`, `autoimmune\s+(?:disorder|disease|condition)`, `multiple\s+sclerosis`, `crohn'?s(?:\s+disease)?`, `ulcerative\s+colitis`, `celiac\s+disease`, `sjogren'?s`)},
	{value: domain.CONDITION_CLOTTING_DISORDER, re: phrase(`factor\s+v\s+leiden`, `antiphospholipid(?:\s+syndrome)?`, `clotting\s+disorder`, `blood\s+clots?`, `dvt`, `deep\s+vein\s+thrombosis`, `pulmonary\s+embol(?:ism|us)`, `thrombophilia`, `mthfr`)},
	{value: domain.CONDITION_KIDNEY_DISEASE, re: phrase(`(?:chronic\s+)?kidney\s+disease`, `renal\s+(?:disease|failure|insufficiency)`, `ckd`, `kidney\s+failure`, `nephrotic\s+syndrome`)},
	{value: domain.CONDITION_HEART_DISEASE, re: phrase(`heart\s+(?:disease|failure|condition)`, `cardiac\s+disease`, `cardiomyopathy`, `congenital\s+heart(?:\s+defect)?`, `valv(?:e|ular)\s+disease`, `arrhythmia`)},
	{value: domain.CONDITION_BIPOLAR_DISORDER, re: phrase(`bipolar(?:\s+disorder)?`, `manic\s+depression`)},
	{value: domain.CONDITION_DEPRESSION, re: phrase(`major\s+depressive\s+disorder`, `mdd`, `clinical\s+depression`, `depression`, `depressive\s+disorder`), notAfter: []string{"postpartum ", "post-partum ", "post partum "}},
	{value: domain.CONDITION_ANXIETY, re: phrase(`generali[sz]ed\s+anxiety(?:\s+disorder)?`, `gad`, `panic\s+disorder`, `anxiety(?:\s+disorder)?`)},
	{value: domain.CONDITION_ASTHMA, re: phrase(`asthma`, `asthmatic`)},
	{value: domain.CONDITION_PCOS, re: phrase(`pcos`, `polycystic\s+ovar(?:y|ian)\s+syndrome`)},
	{value: domain.CONDITION_UTERINE_SURGERY, re: phrase(`myomectomy`, `uterine\s+surgery`, `fibroid\s+(?:removal|surgery)`, `uterine\s+septum\s+resection`, `septoplasty`, `classical\s+incision`, `t-incision`)},
	{value: domain.CONDITION_POSTPARTUM_HEMORRHAGE, re: phrase(`post[- ]?partum\s+ha?emorrhage`, `pph`)},
	{value: domain.CONDITION_PRETERM_BIRTH, re: phrase(`preterm\s+(?:birth|delivery|labou?r)`, `premature\s+(?:birth|delivery)`)},
	{value: domain.CONDITION_CERVICAL_INSUFFICIENCY, re: phrase(`cervical\s+insufficiency`, `incompetent\s+cervix`, `cervical\s+incompetence`, `cerclage`)},
	{value: domain.CONDITION_EPILEPSY, re: phrase(`epilepsy`, `seizure\s+disorder`, `seizures`)},
	{value: domain.CONDITION_ANEMIA, re: phrase(`ana?emia`, `ana?emic`)},
}

var psychFlagSynonyms = []synonym[domain.PsychFlag]{
	{value: domain.PSYCH_POSTPARTUM_DEPRESSION, re: phrase(`post[- ]?partum\s+depression`, `ppd`)},
	{value: domain.PSYCH_EATING_DISORDER, re: phrase(`eating\s+disorder`, `anorexia(?:\s+nervosa)?`, `bulimia`, `binge\s+eating\s+disorder`)},
	{value: domain.PSYCH_PSYCHIATRIC_HOSPITALIZATION, re: phrase(`psychiatric\s+hospitali[sz]ation`, `hospitali[sz]ed\s+for\s+(?:depression|mental\s+health|psychiatric)`, `inpatient\s+psychiatric`, `psych\s+ward`)},
	{value: domain.PSYCH_SUBSTANCE_ABUSE_HISTORY, re: phrase(`history\s+of\s+(?:drug|substance|alcohol|opioid)\s+(?:use|abuse|dependence)`, `substance\s+abuse`, `recovering\s+(?:addict|alcoholic)`, `in\s+recovery`, `rehab(?:ilitation)?`)},
	{value: domain.PSYCH_SUICIDAL_HISTORY, re: phrase(`suicid(?:e|al)\s+(?:attempts?|ideation|history|thoughts)`, `attempted\s+suicide`)},
	{value: domain.PSYCH_TRAUMA_HISTORY, re: phrase(`ptsd`, `trauma\s+history`, `history\s+of\s+(?:trauma|abuse)`, `domestic\s+violence`, `sexual\s+abuse`, `sexual\s+assault`)},
}

type flagSignal struct {
	field    domain.Field
	negative *regexp.Regexp
	positive *regexp.Regexp
}

// Environmental and support flags default to the favorable value and only
// flip on a negative signal.
var flagSignals = []flagSignal{
	{
		field:    domain.FIELD_SUPPORT_ADEQUATE,
		negative: phrase(`(?:lacks?|limited|poor|inadequate|little)\s+(?:social\s+)?support(?:\s+system)?`, `no\s+(?:social\s+)?support(?:\s+system)?`, `no\s+one\s+to\s+help`, `isolated`),
		positive: phrase(`(?:strong|good|excellent|adequate|great)\s+(?:social\s+)?support(?:\s+system)?`, `supportive\s+family`),
	},
	{
		field:    domain.FIELD_ENVIRONMENT_STABLE,
		negative: phrase(`unstable\s+(?:home|environment|living\s+situation)`, `chaotic\s+(?:home|household)`, `moving\s+frequently`),
		positive: phrase(`stable\s+(?:home|environment|living\s+situation)`),
	},
	{
		field:    domain.FIELD_HOUSING_STABLE,
		negative: phrase(`homeless(?:ness)?`, `unstable\s+housing`, `couch\s+surfing`, `evict(?:ed|ion)`, `(?:living\s+in\s+a\s+)?shelter`, `living\s+in\s+(?:a\s+|her\s+)?car`),
		positive: phrase(`stable\s+housing`, `owns\s+(?:her|a|their)\s+home`, `homeowner`),
	},
	{
		field:    domain.FIELD_EMPLOYMENT_STABLE,
		negative: phrase(`unemployed`, `lost\s+(?:her|my|a)\s+job`, `laid\s+off`, `no\s+(?:job|income)`, `between\s+jobs`, `out\s+of\s+work`),
		positive: phrase(`employed\s+full[- ]time`, `stable\s+(?:employment|job)`, `works\s+full[- ]time`),
	},
	{
		field:    domain.FIELD_FINANCIALLY_ADEQUATE,
		negative: phrase(`financial\s+(?:hardship|difficult(?:y|ies)|stress|strain|problems|instability)`, `bankrupt(?:cy)?`, `in\s+debt`, `struggling\s+financially`, `public\s+assistance`),
		positive: phrase(`financially\s+(?:stable|secure)`),
	},
	{
		field:    domain.FIELD_RELATIONSHIP_STABLE,
		negative: phrase(`going\s+through\s+(?:a\s+)?divorce`, `divorcing`, `separating`, `relationship\s+(?:problems|issues|troubles)`, `unstable\s+relationship`, `recent\s+breakup`),
		positive: phrase(`stable\s+relationship`, `happily\s+married`, `married\s+(?:for\s+)?\d+\s+years`),
	},
	{
		field:    domain.FIELD_PARTNER_SUPPORTIVE,
		negative: phrase(`(?:partner|husband|spouse|boyfriend)\s+(?:is\s+|was\s+)?(?:not\s+supportive|unsupportive|opposed|against\s+(?:it|surrogacy))`, `unsupportive\s+(?:partner|husband|spouse)`),
		positive: phrase(`supportive\s+(?:partner|husband|spouse)`, `(?:partner|husband|spouse)\s+(?:is\s+)?(?:fully\s+)?supportive`),
	},
}

var (
	legalIssues = phrase(`arrest(?:ed)?`, `criminal\s+(?:record|history|charges)`, `felony`, `probation`, `parole`, `pending\s+charges`, `custody\s+(?:battle|dispute)`, `legal\s+(?:issues|problems|trouble)`, `incarcerat(?:ed|ion)`)
	coercion    = phrase(`pressured\s+(?:into|by)`, `coerc(?:ed|ion)`, `forced\s+(?:to|into)`, `being\s+pushed\s+(?:to|into)`, `(?:partner|husband|family)\s+(?:wants|insists)\s+(?:her|she)`)
)

// NarrativeExtractor extracts plain-language descriptions. It holds no state
// and is safe for concurrent use.
//
// Only already-screened candidates reach this pipeline, so smoking and drug
// use default to false unless an explicit current/active qualifier is present,
// and environmental and support flags default to the favorable value unless a
// negative signal is present. Absence of a strong signal is read as the
// favorable answer, not as unknown. This is a screening policy, not a parsing
// limitation.
type NarrativeExtractor struct{}

// NewNarrativeExtractor creates a new narrative extractor
func NewNarrativeExtractor() *NarrativeExtractor {
	return &NarrativeExtractor{}
}

// Extract returns the narrative fragment for text. It never fails.
func (n *NarrativeExtractor) Extract(text string) Fragment {
	f := newFragment(domain.LAYER_NARRATIVE)

	extractAge(text, &f)
	extractBMI(text, &f)
	extractPregnancyCounts(text, &f)
	extractLifestyle(text, &f)
	for _, tag := range MatchConditions(text) {
		f.addCondition(tag)
	}
	extractPsychological(text, &f)
	extractEnvironmental(text, &f)

	f.normalize()
	f.Confidence = narrativeConfidence(f)
	return f
}

func extractAge(text string, f *Fragment) {
	for _, re := range agePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		age, err := strconv.Atoi(m[1])
		if err != nil || age < 16 || age > 70 {
			continue
		}
		f.Record.Age = domain.IntPtr(age)
		f.mark(domain.FIELD_AGE)
		return
	}
}

func extractBMI(text string, f *Fragment) {
	if m := bmiNarrativePattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 12 && v <= 80 {
			f.Record.Lifestyle.BMI = domain.FloatPtr(v)
			f.mark(domain.FIELD_BMI)
			return
		}
	}
	if bmi, ok := bmiFromHeightWeight(text); ok {
		f.Record.Lifestyle.BMI = domain.FloatPtr(bmi)
		f.mark(domain.FIELD_BMI)
	}
}

// bmiFromHeightWeight computes BMI when both a height and a weight are stated,
// in imperial or metric units, rounded to one decimal.
func bmiFromHeightWeight(text string) (float64, bool) {
	heightM := 0.0
	if m := heightMetricPattern.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			cm, _ := strconv.ParseFloat(m[1], 64)
			heightM = cm / 100
		} else {
			heightM, _ = strconv.ParseFloat(m[2], 64)
		}
	} else if m := heightImperialPattern.FindStringSubmatch(text); m != nil {
		feet, _ := strconv.Atoi(m[1])
		inches := 0
		if m[2] != "" {
			inches, _ = strconv.Atoi(m[2])
		}
		if feet >= 4 && feet <= 6 && inches < 12 {
			heightM = float64(feet*12+inches) * 0.0254
		}
	}

	weightKg := 0.0
	if m := weightPattern.FindStringSubmatch(text); m != nil {
		w, _ := strconv.ParseFloat(m[1], 64)
		if strings.HasPrefix(strings.ToLower(m[2]), "k") {
			weightKg = w
		} else {
			weightKg = w * 0.45359237
		}
	}

	if heightM < 1.2 || heightM > 2.2 || weightKg < 30 || weightKg > 250 {
		return 0, false
	}
	bmi := weightKg / (heightM * heightM)
	return math.Round(bmi*10) / 10, true
}

func extractPregnancyCounts(text string, f *Fragment) {
	for _, re := range []*regexp.Regexp{childrenPattern, motherOfPattern, deliveredPattern, priorPregnanciesPattern} {
		m := re.FindStringSubmatchIndex(text)
		if m == nil || isNegated(text, m[0], m[1]) {
			continue
		}
		count, ok := obstetric.ParseCount(text[m[2]:m[3]])
		if !ok || count > 15 {
			continue
		}
		f.Record.PregnancyHistory.TermPregnancyCount = count
		f.Record.PregnancyHistory.TotalDeliveries = domain.IntPtr(count)
		f.mark(domain.FIELD_TERM_PREGNANCY_COUNT, domain.FIELD_TOTAL_DELIVERIES)
		break
	}

	if noCesareanPattern.MatchString(text) {
		f.Record.PregnancyHistory.CesareanCount = 0
		f.mark(domain.FIELD_CESAREAN_COUNT)
		return
	}
	for _, re := range []*regexp.Regexp{cesareanProsePattern, cesareanTimesPattern} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if count, ok := obstetric.ParseCount(m[1]); ok && count <= 10 {
			f.Record.PregnancyHistory.CesareanCount = count
			f.mark(domain.FIELD_CESAREAN_COUNT)
			return
		}
	}
}

func extractLifestyle(text string, f *Fragment) {
	if smokingMention.MatchString(text) {
		f.Record.Lifestyle.Smoker = matchUnnegated(smokingActive, text)
		f.mark(domain.FIELD_SMOKER)
	}
	if drugMention.MatchString(text) {
		f.Record.Lifestyle.DrugUse = matchUnnegated(drugActive, text)
		f.mark(domain.FIELD_DRUG_USE)
	}

	switch {
	case matchUnnegated(alcoholExcess, text):
		f.Record.Lifestyle.AlcoholUse = domain.ALCOHOL_EXCESSIVE
		f.mark(domain.FIELD_ALCOHOL_USE)
	case matchUnnegated(alcoholSocial, text):
		f.Record.Lifestyle.AlcoholUse = domain.ALCOHOL_SOCIAL
		f.mark(domain.FIELD_ALCOHOL_USE)
	case alcoholNone.MatchString(text):
		f.Record.Lifestyle.AlcoholUse = domain.ALCOHOL_NONE
		f.mark(domain.FIELD_ALCOHOL_USE)
	}

	if matchUnnegated(bodyModification, text) {
		f.Record.Lifestyle.RecentBodyModification = true
		f.mark(domain.FIELD_RECENT_BODY_MODIFICATION)
	}
}

func extractPsychological(text string, f *Fragment) {
	if matchUnnegated(psychotropicMedication, text) {
		f.Record.Psychological.OnPsychotropicMedication = true
		f.mark(domain.FIELD_PSYCHOTROPIC_MEDICATION)
	}
	if psychEvaluation.MatchString(text) {
		f.Record.Psychological.EvaluationCompleted = true
		f.mark(domain.FIELD_PSYCH_EVALUATION)
	}
	for _, flag := range matchSynonyms(text, psychFlagSynonyms) {
		f.addPsychFlag(flag)
	}
	if matchUnnegated(coercion, text) {
		f.Record.Psychological.CoercionSuspected = true
		f.mark(domain.FIELD_COERCION_SUSPECTED)
	}
}

func extractEnvironmental(text string, f *Fragment) {
	for _, signal := range flagSignals {
		favorable := true
		switch {
		case matchUnnegated(signal.negative, text):
			favorable = false
		case signal.positive.MatchString(text):
		default:
			continue
		}
		setFlag(&f.Record, signal.field, favorable)
		f.mark(signal.field)
	}
	if matchUnnegated(legalIssues, text) {
		f.Record.Environmental.LegalIssues = true
		f.mark(domain.FIELD_LEGAL_ISSUES)
	}
}

func setFlag(r *domain.CandidateRecord, field domain.Field, value bool) {
	switch field {
	case domain.FIELD_SUPPORT_ADEQUATE:
		r.Psychological.SupportAdequate = value
	case domain.FIELD_ENVIRONMENT_STABLE:
		r.Psychological.EnvironmentStable = value
	case domain.FIELD_HOUSING_STABLE:
		r.Environmental.HousingStable = value
	case domain.FIELD_EMPLOYMENT_STABLE:
		r.Environmental.EmploymentStable = value
	case domain.FIELD_FINANCIALLY_ADEQUATE:
		r.Environmental.FinanciallyAdequate = value
	case domain.FIELD_RELATIONSHIP_STABLE:
		r.Environmental.RelationshipStable = value
	case domain.FIELD_PARTNER_SUPPORTIVE:
		r.Environmental.PartnerSupportive = value
	}
}

// MatchConditions maps free text to condition tags through the synonym
// table. Negated mentions are skipped.
func MatchConditions(text string) []domain.ConditionTag {
	return domain.SortConditions(matchSynonyms(text, conditionSynonyms))
}

func matchSynonyms[T any](text string, table []synonym[T]) []T {
	var out []T
	work := text
	for _, s := range table {
		for _, loc := range s.re.FindAllStringIndex(work, -1) {
			start, end := loc[0], loc[1]
			if len(s.notAfter) > 0 && precededBy(text, start, s.notAfter...) {
				continue
			}
			work = mask(work, start, end)
			if isNegated(text, start, end) {
				continue
			}
			out = append(out, s.value)
		}
	}
	return out
}

func firstUnnegated(re *regexp.Regexp, text string) []int {
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if !isNegated(text, loc[0], loc[1]) {
			return loc
		}
	}
	return nil
}

func matchUnnegated(re *regexp.Regexp, text string) bool {
	return firstUnnegated(re, text) != nil
}

func narrativeConfidence(f Fragment) int {
	sections := [][]domain.Field{
		{domain.FIELD_AGE},
		{domain.FIELD_BMI, domain.FIELD_SMOKER, domain.FIELD_ALCOHOL_USE, domain.FIELD_DRUG_USE, domain.FIELD_RECENT_BODY_MODIFICATION},
		{domain.FIELD_TERM_PREGNANCY_COUNT, domain.FIELD_CESAREAN_COUNT, domain.FIELD_TOTAL_DELIVERIES},
		{domain.FIELD_MEDICAL_CONDITIONS},
		{
			domain.FIELD_PSYCHOTROPIC_MEDICATION, domain.FIELD_PSYCH_EVALUATION, domain.FIELD_PSYCH_HISTORY,
			domain.FIELD_SUPPORT_ADEQUATE, domain.FIELD_ENVIRONMENT_STABLE, domain.FIELD_COERCION_SUSPECTED,
			domain.FIELD_HOUSING_STABLE, domain.FIELD_EMPLOYMENT_STABLE, domain.FIELD_FINANCIALLY_ADEQUATE,
			domain.FIELD_RELATIONSHIP_STABLE, domain.FIELD_PARTNER_SUPPORTIVE, domain.FIELD_LEGAL_ISSUES,
		},
	}
	score := 0
	for _, section := range sections {
		for _, field := range section {
			if f.Has(field) {
				score += narrativeSectionWeight
				break
			}
		}
	}
	return score
}
