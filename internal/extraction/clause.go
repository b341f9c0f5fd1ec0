package extraction

import (
	"regexp"
	"strings"
)

// clauseBoundary ends the scope of a negation cue.
var clauseBoundary = regexp.MustCompile(`(?i)\.(?:\s|$)|[;:,\n]|\bbut\b|\bhowever\b|\balthough\b`)

var negationCue = regexp.MustCompile(`(?i)\b(?:no|not|denies|denied|without|negative for|no history of|no hx of|ruled out|r/o|never|absence of|free of|none)\b`)

// Trailing cues negate the term they follow. Their scope runs to the next
// boundary but, unlike clauseBoundary, keeps colons so that "Preeclampsia:
// negative" is a single statement.
var (
	trailingBoundary    = regexp.MustCompile(`(?i)\.(?:\s|$)|[;,\n]|\bbut\b|\bhowever\b|\balthough\b`)
	trailingNegationCue = regexp.MustCompile(`(?i)\b(?:ruled\s+out|negative|neg|absent|not\s+present|not\s+seen|not\s+found|not\s+detected|excluded|denied|none)\b`)
)

// clauseStart returns the offset where the clause containing pos begins.
func clauseStart(text string, pos int) int {
	start := 0
	for _, idx := range clauseBoundary.FindAllStringIndex(text[:pos], -1) {
		start = idx[1]
	}
	return start
}

// clauseEnd returns the offset where the clause containing pos ends.
func clauseEnd(text string, pos int) int {
	if loc := clauseBoundary.FindStringIndex(text[pos:]); loc != nil {
		return pos + loc[0]
	}
	return len(text)
}

// isNegated reports whether the span [start, end) is negated, either by a cue
// before it in the same clause or by a trailing cue such as "ruled out".
func isNegated(text string, start, end int) bool {
	if negationCue.MatchString(text[clauseStart(text, start):start]) {
		return true
	}
	rest := text[end:]
	if loc := trailingBoundary.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	return trailingNegationCue.MatchString(rest)
}

// clauseAround returns the clause that contains the span [start, end).
func clauseAround(text string, start, end int) string {
	return text[clauseStart(text, start):clauseEnd(text, end)]
}

// precededBy reports whether text immediately before pos ends with any prefix,
// ignoring case. It stands in for the lookbehind RE2 lacks.
func precededBy(text string, pos int, prefixes ...string) bool {
	before := strings.ToLower(text[:pos])
	for _, p := range prefixes {
		if strings.HasSuffix(before, p) {
			return true
		}
	}
	return false
}

// mask blanks out a span so later, less specific patterns cannot match it.
// Offsets into the masked text stay aligned with the original.
func mask(text string, start, end int) string {
	return text[:start] + strings.Repeat(" ", end-start) + text[end:]
}

// phrase compiles a case-insensitive, word-bounded alternation.
func phrase(alternatives ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)\b`)
}
