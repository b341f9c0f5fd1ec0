package extraction

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gc-eligibility-server/internal/domain"
	"github.com/gc-eligibility-server/pkg/obstetric"
)

// Confidence weights for the pattern layer.
const (
	notationWeight       = 30
	gestationalAgeWeight = 20
	deliveryTypeWeight   = 25
	complicationWeight   = 25
	labValueWeight       = 10
)

type deliveryKind int

const (
	vaginalDelivery deliveryKind = iota
	cesareanDelivery
	operativeDelivery
)

func deliveryToken(tokens ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:\b` + obstetric.NumberWordPattern + `\s+(?:prior\s+|previous\s+)?)?\b(?:` +
		strings.Join(tokens, "|") + `)\b(?:\s*[x×]\s*(\d{1,2}))?`)
}

// Operative first, then cesarean, then vaginal: each match is masked so that
// "operative vaginal delivery" is not also counted as a vaginal delivery.
var deliveryPatterns = []struct {
	kind deliveryKind
	re   *regexp.Regexp
}{
	{operativeDelivery, deliveryToken(
		`operative\s+vaginal(?:\s+deliver(?:y|ies)|\s+births?)?`,
		`forceps(?:[- ]assisted)?(?:\s+deliver(?:y|ies))?`,
		`vacuum(?:[- ]assisted)?(?:\s+deliver(?:y|ies)|\s+extraction)?`,
		`ventouse(?:\s+deliver(?:y|ies))?`,
	)},
	{cesareanDelivery, deliveryToken(
		`repeat\s+c-?\s?sections?`,
		`primary\s+c-?\s?sections?`,
		`c-?\s?sections?`,
		`c/s`,
		`ca?esareans?(?:\s+sections?|\s+deliver(?:y|ies)|\s+births?)?`,
		`lscs`,
		`rcs`,
		`cs`,
	)},
	{vaginalDelivery, deliveryToken(
		`spontaneous\s+vaginal(?:\s+deliver(?:y|ies)|\s+births?)?`,
		`vaginal\s+(?:deliver(?:y|ies)|births?)`,
		`nsvd`,
		`svd`,
		`vbac`,
	)},
}

const deliveryWords = `deliver|\bborn\b|birth|\bsvd\b|\bnsvd\b|c-?\s?section|ca?esarean|labou?r|induc|\bvbac\b|\blscs\b|forceps|vacuum`

var (
	deliveryContext = regexp.MustCompile(`(?i)` + deliveryWords + `|\bG\d`)
	deliveryMention = regexp.MustCompile(`(?i)` + deliveryWords)
)

var (
	bpPattern         = regexp.MustCompile(`(?i)\b(?:bp|blood pressure)\s*(?:of|was|is|=|:)?\s*(\d{2,3})\s*/\s*(\d{2,3})\b`)
	hba1cPattern      = regexp.MustCompile(`(?i)\b(?:hba1c|a1c|hemoglobin\s+a1c)\s*(?:of|was|is|=|:)?\s*(\d{1,2}(?:\.\d{1,2})?)\s*%?`)
	tshPattern        = regexp.MustCompile(`(?i)\btsh\s*(?:of|was|is|=|:)?\s*(\d{1,2}(?:\.\d{1,3})?)`)
	hemoglobinPattern = regexp.MustCompile(`(?i)\b(?:hgb|hb|hemoglobin|haemoglobin)\s*(?:of|was|is|=|:)?\s*(\d{1,2}(?:\.\d)?)\b`)
	bmiPattern        = regexp.MustCompile(`(?i)\bbmi\s*(?:of|was|is|=|:)?\s*(\d{2}(?:\.\d{1,2})?)\b`)
)

var explicitNoComplications = regexp.MustCompile(`(?i)\b(?:no\s+(?:pregnancy\s+|obstetric(?:al)?\s+|prior\s+|previous\s+|known\s+)?complications|uncomplicated|uneventful|without\s+complications|complications:\s*none)\b`)

var pregnancyIndexPattern = regexp.MustCompile(`(?i)\bG(\d{1,2})\s*[:)\-]|\b(\d)(?:st|nd|rd|th)\s+pregnancy\b|\bpregnancy\s*#?\s*(\d{1,2})\b|\b(first|second|third|fourth|fifth|sixth)\s+pregnancy\b`)

// A bare "G2" is a pregnancy marker only when it is not gravida/para notation
// and its clause mentions a delivery or complication.
var (
	bareGravidaPattern = regexp.MustCompile(`\bG(\d{1,2})\b`)
	paraFollows        = regexp.MustCompile(`(?i)^\s*,?\s*P\s*\d`)
)

var ordinalWords = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5, "sixth": 6}

var severityQualifier = regexp.MustCompile(`(?i)\b(mild|moderate|severe)\b`)

type complicationKeyword struct {
	category domain.ComplicationCategory
	severity domain.ComplicationSeverity
	re       *regexp.Regexp
	// notAfter rejects a match when the text right before it ends with one
	// of these prefixes.
	notAfter []string
}

// Ordered most specific first; every match is masked before later keywords run.
var complicationKeywords = []complicationKeyword{
	{category: domain.COMPLICATION_HYPERTENSIVE, severity: domain.SEVERITY_SEVERE, re: phrase(`hellp(?:\s+syndrome)?`)},
	{category: domain.COMPLICATION_HYPERTENSIVE, severity: domain.SEVERITY_SEVERE, re: phrase(`pre[- ]?eclampsia`, `toxa?emia`)},
	{category: domain.COMPLICATION_HYPERTENSIVE, severity: domain.SEVERITY_SEVERE, re: phrase(`eclampsia`), notAfter: []string{"pre", "pre-", "pre "}},
	{category: domain.COMPLICATION_HYPERTENSIVE, severity: domain.SEVERITY_MODERATE, re: phrase(`gestational\s+hypertension`, `pregnancy[- ]induced\s+hypertension`, `pih`, `pregnancy\s+hypertension`, `gestational\s+htn`)},
	{category: domain.COMPLICATION_DIABETIC, severity: domain.SEVERITY_MILD, re: phrase(`a1gdm`, `diet[- ]controlled\s+(?:gdm|gestational\s+diabetes)`)},
	{category: domain.COMPLICATION_DIABETIC, severity: domain.SEVERITY_MODERATE, re: phrase(`a2gdm`, `gestational\s+diabetes(?:\s+mellitus)?`, `gdm`)},
	{category: domain.COMPLICATION_MEMBRANE, severity: domain.SEVERITY_SEVERE, re: phrase(`pprom`, `preterm\s+premature\s+rupture\s+of\s+(?:the\s+)?membranes`)},
	{category: domain.COMPLICATION_MEMBRANE, severity: domain.SEVERITY_MODERATE, re: phrase(`prom`, `premature\s+rupture\s+of\s+(?:the\s+)?membranes`, `prolonged\s+rupture\s+of\s+membranes`)},
	{category: domain.COMPLICATION_PRETERM, severity: domain.SEVERITY_MODERATE, re: phrase(`preterm\s+(?:labou?r|delivery|birth)`, `premature\s+(?:labou?r|delivery|birth)`, `ptl`, `ptb`)},
	{category: domain.COMPLICATION_PLACENTAL, severity: domain.SEVERITY_SEVERE, re: phrase(`placenta\s+(?:previa|praevia|accreta|increta|percreta)`, `placental\s+abruption`, `abruptio\s+placentae`, `abruption`, `accreta`, `increta`, `percreta`)},
	{category: domain.COMPLICATION_PLACENTAL, severity: domain.SEVERITY_MODERATE, re: phrase(`retained\s+placenta`, `low[- ]lying\s+placenta`, `placental\s+insufficiency`)},
	{category: domain.COMPLICATION_GROWTH, severity: domain.SEVERITY_MODERATE, re: phrase(`iugr`, `fgr`, `intrauterine\s+growth\s+restriction`, `fetal\s+growth\s+restriction`, `small\s+for\s+gestational\s+age`, `sga`, `macrosomia`, `large\s+for\s+gestational\s+age`, `lga`)},
	{category: domain.COMPLICATION_HYPEREMESIS, severity: domain.SEVERITY_MODERATE, re: phrase(`hyperemesis(?:\s+gravidarum)?`)},
	{category: domain.COMPLICATION_HEMORRHAGIC, severity: domain.SEVERITY_SEVERE, re: phrase(`post[- ]?partum\s+ha?emorrhage`, `pph`, `obstetric\s+ha?emorrhage`, `ha?emorrhage`)},
	{category: domain.COMPLICATION_HEMORRHAGIC, severity: domain.SEVERITY_MODERATE, re: phrase(`blood\s+transfusion`, `excessive\s+bleeding`, `antepartum\s+bleeding`)},
	{category: domain.COMPLICATION_CERVICAL, severity: domain.SEVERITY_SEVERE, re: phrase(`cervical\s+insufficiency`, `incompetent\s+cervix`, `cervical\s+incompetence`)},
	{category: domain.COMPLICATION_CERVICAL, severity: domain.SEVERITY_MODERATE, re: phrase(`cerclage`, `short\s+cervix`)},
	{category: domain.COMPLICATION_INFECTION, severity: domain.SEVERITY_MODERATE, re: phrase(`chorioamnionitis`, `endometritis`, `intra-?amniotic\s+infection`, `maternal\s+sepsis`, `sepsis`)},
	{category: domain.COMPLICATION_FETAL_LOSS, severity: domain.SEVERITY_SEVERE, re: phrase(`stillbirth`, `still\s+birth`, `iufd`, `intrauterine\s+fetal\s+demise`, `fetal\s+demise`, `neonatal\s+death`)},
	{category: domain.COMPLICATION_OTHER, severity: domain.SEVERITY_MILD, re: phrase(`oligohydramnios`, `polyhydramnios`, `cholestasis(?:\s+of\s+pregnancy)?`, `icp`)},
}

type infectiousTest struct {
	name string
	re   *regexp.Regexp
}

func infectiousPattern(aliases ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(aliases, "|") + `)\b\s*(?:1\s*/\s*2\s*)?(?:test|screen(?:ing)?|antibody|antigen|ab|ag|status|result|serology|igg)?\s*(?:was|is|:|-|=)?\s*(non-?reactive|negative|neg|reactive|positive|pos|immune)\b`)
}

var infectiousTests = []infectiousTest{
	{"hiv", infectiousPattern(`hiv`)},
	{"hepatitis_b", infectiousPattern(`hepatitis\s*b(?:\s+surface\s+antigen)?`, `hep\s*b`, `hbsag`, `hbv`)},
	{"hepatitis_c", infectiousPattern(`hepatitis\s*c`, `hep\s*c`, `hcv`)},
	{"syphilis", infectiousPattern(`syphilis`, `rpr`, `vdrl`)},
	{"cmv", infectiousPattern(`cmv`, `cytomegalovirus`)},
	{"gonorrhea", infectiousPattern(`gonorrh?o?ea`)},
	{"chlamydia", infectiousPattern(`chlamydia`)},
}

// PatternExtractor recognizes structured obstetric shorthand. It holds no
// state and is safe for concurrent use.
type PatternExtractor struct{}

// NewPatternExtractor creates a new pattern extractor
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract runs every pattern sub-extraction over text. Absence of a match is
// a normal outcome and never an error.
func (p *PatternExtractor) Extract(text string) Fragment {
	f := newFragment(domain.LAYER_PATTERN)
	confidence := 0

	notation, hasNotation := obstetric.ParseNotation(text)
	if hasNotation {
		confidence += notationWeight
		f.Record.PregnancyHistory.TermPregnancyCount = notation.TermCount()
		f.Record.PregnancyHistory.TotalDeliveries = domain.IntPtr(notation.TotalDeliveries())
		f.mark(domain.FIELD_TERM_PREGNANCY_COUNT, domain.FIELD_TOTAL_DELIVERIES)
	}

	indexes := pregnancyIndexes(text)

	ages := obstetric.ParseGestationalAges(text)
	pretermDeliveries := 0
	var complications []domain.Complication
	if len(ages) > 0 {
		confidence += gestationalAgeWeight
		for _, ga := range ages {
			if ga.Class() != obstetric.PRETERM || !deliveryContext.MatchString(lineAround(text, ga.Offset)) {
				continue
			}
			pretermDeliveries++
			complications = append(complications, domain.Complication{
				PregnancyIndex: indexes.at(ga.Offset, ga.Offset),
				Category:       domain.COMPLICATION_PRETERM,
				Description:    fmt.Sprintf("preterm delivery at %dw%dd", ga.Weeks, ga.Days),
				Severity:       pretermSeverity(ga),
			})
		}
	}

	if counts, found := countDeliveries(text); found {
		confidence += deliveryTypeWeight
		cesareans := counts[cesareanDelivery]
		// Notation is authoritative for the number of deliveries.
		if hasNotation && cesareans > notation.TotalDeliveries() {
			cesareans = notation.TotalDeliveries()
		}
		f.Record.PregnancyHistory.CesareanCount = cesareans
		f.mark(domain.FIELD_CESAREAN_COUNT)
		if !hasNotation {
			total := counts[vaginalDelivery] + counts[cesareanDelivery] + counts[operativeDelivery]
			term := total - pretermDeliveries
			if term < 0 {
				term = 0
			}
			f.Record.PregnancyHistory.TotalDeliveries = domain.IntPtr(total)
			f.Record.PregnancyHistory.TermPregnancyCount = term
			f.mark(domain.FIELD_TERM_PREGNANCY_COUNT, domain.FIELD_TOTAL_DELIVERIES)
		}
	}

	keywordComplications := findComplications(text, indexes)
	complications = dedupeComplications(append(complications, keywordComplications...))
	if len(complications) > 0 || explicitNoComplications.MatchString(text) {
		confidence += complicationWeight
		f.Record.PregnancyHistory.Complications = complications
		f.Record.PregnancyHistory.ComplicationCount = len(complications)
		f.mark(domain.FIELD_COMPLICATIONS, domain.FIELD_COMPLICATION_COUNT)
	}

	confidence += labValueWeight * extractLabs(text, &f)
	extractInfectiousResults(text, &f)

	if confidence > 100 {
		confidence = 100
	}
	f.Confidence = confidence
	f.normalize()
	return f
}

// countDeliveries tallies delivery-type mentions. Negated mentions are
// ignored. Quantified mentions ("CS x2", "two c-sections") are summed per
// kind; bare mentions only establish that at least one delivery of that kind
// occurred, since notes often name the same delivery more than once.
func countDeliveries(text string) (map[deliveryKind]int, bool) {
	quantified := make(map[deliveryKind]int)
	mentioned := make(map[deliveryKind]bool)
	found := false
	work := text
	for _, dp := range deliveryPatterns {
		for _, m := range dp.re.FindAllStringSubmatchIndex(work, -1) {
			start, end := m[0], m[1]
			work = mask(work, start, end)
			if isNegated(text, start, end) {
				continue
			}
			found = true
			mentioned[dp.kind] = true
			if n, ok := deliveryMultiplier(text, m); ok {
				quantified[dp.kind] += n
			}
		}
	}

	counts := make(map[deliveryKind]int)
	for kind := range mentioned {
		counts[kind] = quantified[kind]
		if counts[kind] == 0 {
			counts[kind] = 1
		}
	}
	return counts, found
}

// deliveryMultiplier returns the explicit count attached to a delivery token,
// if any.
func deliveryMultiplier(text string, m []int) (int, bool) {
	if m[4] >= 0 {
		if n, err := strconv.Atoi(text[m[4]:m[5]]); err == nil && n > 0 && n <= 10 {
			return n, true
		}
	}
	if m[2] >= 0 && !precededBy(text, m[2], "+", "/", ".") {
		if n, ok := obstetric.ParseCount(text[m[2]:m[3]]); ok && n > 0 && n <= 10 {
			return n, true
		}
	}
	return 0, false
}

func pretermSeverity(ga obstetric.GestationalAge) domain.ComplicationSeverity {
	switch {
	case ga.Weeks < 32:
		return domain.SEVERITY_SEVERE
	case ga.Weeks < 34:
		return domain.SEVERITY_MODERATE
	default:
		return domain.SEVERITY_MILD
	}
}

func findComplications(text string, indexes pregnancyIndexMarkers) []domain.Complication {
	var out []domain.Complication
	work := text
	for _, kw := range complicationKeywords {
		for _, loc := range kw.re.FindAllStringIndex(work, -1) {
			start, end := loc[0], loc[1]
			if len(kw.notAfter) > 0 && precededBy(text, start, kw.notAfter...) {
				continue
			}
			work = mask(work, start, end)
			if isNegated(text, start, end) {
				continue
			}
			severity := kw.severity
			if q := severityQualifier.FindStringSubmatch(clauseAround(text, start, end)); q != nil {
				severity = domain.ComplicationSeverity(strings.ToLower(q[1]))
			}
			out = append(out, domain.Complication{
				PregnancyIndex: indexes.at(start, end),
				Category:       kw.category,
				Description:    strings.ToLower(text[start:end]),
				Severity:       severity,
			})
		}
	}
	return out
}

// dedupeComplications keeps one complication per category and pregnancy,
// retaining the most severe grade, ordered by pregnancy then category.
func dedupeComplications(in []domain.Complication) []domain.Complication {
	type key struct {
		index    int
		category domain.ComplicationCategory
	}
	byKey := make(map[key]int)
	out := make([]domain.Complication, 0, len(in))
	for _, c := range in {
		k := key{c.PregnancyIndex, c.Category}
		if i, ok := byKey[k]; ok {
			if c.Severity.Rank() > out[i].Severity.Rank() {
				out[i].Severity = c.Severity
			}
			continue
		}
		byKey[k] = len(out)
		out = append(out, c)
	}
	categoryOrder := make(map[domain.ComplicationCategory]int, len(domain.ComplicationCategories))
	for i, c := range domain.ComplicationCategories {
		categoryOrder[c] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PregnancyIndex != out[j].PregnancyIndex {
			return out[i].PregnancyIndex < out[j].PregnancyIndex
		}
		return categoryOrder[out[i].Category] < categoryOrder[out[j].Category]
	})
	return out
}

// extractLabs records lab values and derived conditions and returns how many
// lab values were recognized.
func extractLabs(text string, f *Fragment) int {
	labs := 0

	if m := bpPattern.FindStringSubmatch(text); m != nil {
		labs++
		systolic, _ := strconv.Atoi(m[1])
		diastolic, _ := strconv.Atoi(m[2])
		if systolic >= 140 || diastolic >= 90 {
			f.addCondition(domain.CONDITION_HYPERTENSION)
		}
	}
	if m := hba1cPattern.FindStringSubmatch(text); m != nil {
		labs++
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 6.5 {
			f.addCondition(domain.CONDITION_DIABETES)
		}
	}
	if m := tshPattern.FindStringSubmatch(text); m != nil {
		labs++
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && (v < 0.4 || v > 4.5) {
			f.addCondition(domain.CONDITION_THYROID_DISORDER)
		}
	}
	if m := hemoglobinPattern.FindStringSubmatch(text); m != nil {
		labs++
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v < 10 {
			f.addCondition(domain.CONDITION_ANEMIA)
		}
	}
	if m := bmiPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 12 && v <= 80 {
			labs++
			f.Record.Lifestyle.BMI = domain.FloatPtr(v)
			f.mark(domain.FIELD_BMI)
		}
	}
	return labs
}

func extractInfectiousResults(text string, f *Fragment) {
	for _, test := range infectiousTests {
		for _, m := range test.re.FindAllStringSubmatch(text, -1) {
			result := domain.TEST_NEGATIVE
			switch strings.ToLower(m[1]) {
			case "reactive", "positive", "pos":
				result = domain.TEST_POSITIVE
			}
			// A single positive report outweighs any negative one.
			if existing, ok := f.Record.InfectiousDiseaseResults[test.name]; ok && existing == domain.TEST_POSITIVE {
				continue
			}
			f.Record.InfectiousDiseaseResults[test.name] = result
			f.mark(domain.FIELD_INFECTIOUS_DISEASE)
		}
	}
}

type pregnancyIndexMarker struct {
	offset int
	index  int
}

type pregnancyIndexMarkers struct {
	text    string
	markers []pregnancyIndexMarker
}

func pregnancyIndexes(text string) pregnancyIndexMarkers {
	out := pregnancyIndexMarkers{text: text}
	seen := make(map[int]bool)
	for _, m := range pregnancyIndexPattern.FindAllStringSubmatchIndex(text, -1) {
		index := 0
		for g := 1; g <= 4; g++ {
			if m[2*g] < 0 {
				continue
			}
			raw := strings.ToLower(text[m[2*g]:m[2*g+1]])
			if n, ok := ordinalWords[raw]; ok {
				index = n
			} else {
				index, _ = strconv.Atoi(raw)
			}
			break
		}
		if index > 0 {
			out.markers = append(out.markers, pregnancyIndexMarker{offset: m[0], index: index})
			seen[m[0]] = true
		}
	}

	for _, m := range bareGravidaPattern.FindAllStringSubmatchIndex(text, -1) {
		if seen[m[0]] || paraFollows.MatchString(text[m[1]:]) {
			continue
		}
		clause := clauseAround(text, m[0], m[1])
		if !deliveryMention.MatchString(clause) && !mentionsComplication(clause) {
			continue
		}
		index, _ := strconv.Atoi(text[m[2]:m[3]])
		if index > 0 {
			out.markers = append(out.markers, pregnancyIndexMarker{offset: m[0], index: index})
		}
	}

	sort.Slice(out.markers, func(i, j int) bool { return out.markers[i].offset < out.markers[j].offset })
	return out
}

func mentionsComplication(text string) bool {
	for _, kw := range complicationKeywords {
		if kw.re.MatchString(text) {
			return true
		}
	}
	return false
}

// at returns the pregnancy index for the span [start, end). A marker in the
// same clause wins; otherwise the nearest marker before start on the same
// line applies. 0 means the pregnancy is unspecified.
func (p pregnancyIndexMarkers) at(start, end int) int {
	lo, hi := clauseStart(p.text, start), clauseEnd(p.text, end)
	index, best := 0, -1
	for _, m := range p.markers {
		if m.offset < lo || m.offset >= hi {
			continue
		}
		distance := start - m.offset
		if m.offset >= end {
			distance = m.offset - end
		}
		if best < 0 || distance < best {
			index, best = m.index, distance
		}
	}
	if best >= 0 {
		return index
	}

	for _, m := range p.markers {
		if m.offset > start {
			break
		}
		if !strings.Contains(p.text[m.offset:start], "\n") {
			index = m.index
		}
	}
	return index
}

func lineAround(text string, pos int) string {
	start := strings.LastIndex(text[:pos], "\n") + 1
	end := strings.Index(text[pos:], "\n")
	if end < 0 {
		return text[start:]
	}
	return text[start : pos+end]
}
