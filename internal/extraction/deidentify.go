package extraction

import (
	"regexp"
	"sort"
	"strings"
)

const candidatePlaceholder = "[CANDIDATE]"

var (
	labeledName    = regexp.MustCompile(`(?m)\b(?i:patient name|candidate name|name|patient|candidate)[ \t]*:[ \t]*([A-Z][a-zA-Z'\-]+(?:[ \t]+[A-Z][a-zA-Z'\-]+){0,3})`)
	honorifiedName = regexp.MustCompile(`\b(?:Mrs|Ms|Miss|Mr|Dr)\.?\s+([A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+)?)`)
)

// Redaction runs in order; SSN must precede phone so a 3-2-4 number is not
// consumed as a phone number.
var redactions = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\b(?:mrn|medical record(?: number| no\.?)?|chart(?: number| no\.?))\s*[:#]?\s*[A-Z0-9\-]{4,}\b`), "[MRN]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{regexp.MustCompile(`(?:\+?1[\s.\-]?)?(?:\(\d{3}\)\s?|\b\d{3}[\s.\-])\d{3}[\s.\-]\d{4}\b`), "[PHONE]"},
	{regexp.MustCompile(`(?i)\b[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}\b`), "[EMAIL]"},
	{regexp.MustCompile(`(?i)\b(?:dob|d\.o\.b\.?|date of birth|born(?: on)?)\s*[:\-]?\s*(?:\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{4}-\d{2}-\d{2}|[A-Z][a-z]+\.?\s+\d{1,2},?\s+\d{4})`), "[DOB]"},
}

// Deidentify removes the candidate's name and direct identifiers from text
// before it leaves the process. knownName may be empty.
func Deidentify(text, knownName string) string {
	out := text
	for _, r := range redactions {
		out = r.re.ReplaceAllString(out, r.replacement)
	}

	names := candidateNames(out, knownName)
	for _, name := range names {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		out = re.ReplaceAllString(out, candidatePlaceholder)
	}
	return out
}

// nonNameWords end a labeled name capture; "Patient: Denies smoking" names
// nobody.
var nonNameWords = map[string]bool{
	"denies": true, "denied": true, "reports": true, "reported": true, "presents": true,
	"states": true, "declines": true, "declined": true, "complains": true, "notes": true,
	"has": true, "had": true, "is": true, "was": true, "with": true, "without": true,
	"no": true, "not": true, "none": true, "unknown": true, "history": true, "hx": true,
	"she": true, "the": true, "female": true, "woman": true, "healthy": true, "pregnant": true,
	"gravida": true, "para": true, "age": true, "aged": true, "married": true, "single": true,
	"referred": true, "currently": true, "smoker": true, "nonsmoker": true,
}

// leadingNameTokens returns the tokens of a capture that precede the first
// non-name word.
func leadingNameTokens(capture string) string {
	var tokens []string
	for _, token := range strings.Fields(capture) {
		if nonNameWords[strings.ToLower(token)] {
			break
		}
		tokens = append(tokens, token)
	}
	return strings.Join(tokens, " ")
}

// candidateNames returns the full names and their parts, longest first, so a
// full name is replaced before its components.
func candidateNames(text, knownName string) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if len(name) < 3 || seen[strings.ToLower(name)] {
			return
		}
		seen[strings.ToLower(name)] = true
		names = append(names, name)
	}

	var full []string
	if knownName != "" {
		full = append(full, knownName)
	}
	for _, m := range labeledName.FindAllStringSubmatch(text, -1) {
		if name := leadingNameTokens(m[1]); name != "" {
			full = append(full, name)
		}
	}
	for _, m := range honorifiedName.FindAllStringSubmatch(text, -1) {
		full = append(full, m[1])
	}

	for _, name := range full {
		add(name)
		for _, part := range strings.Fields(name) {
			add(part)
		}
	}

	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	return names
}
