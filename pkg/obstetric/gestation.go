package obstetric

import (
	"regexp"
	"sort"
)

// TermClass classifies a gestational age at delivery.
type TermClass string

const (
	PRETERM   TermClass = "preterm"
	TERM      TermClass = "term"
	POST_TERM TermClass = "post_term"
)

const (
	termStartDays = 37 * 7
	termEndDays   = 42 * 7

	minPlausibleWeeks = 20
	maxPlausibleWeeks = 45
)

// GestationalAge is a weeks+days expression found in text.
type GestationalAge struct {
	Weeks  int    `json:"weeks"`
	Days   int    `json:"days"`
	Raw    string `json:"raw"`
	Offset int    `json:"offset"`
}

// TotalDays returns the gestational age in days.
func (g GestationalAge) TotalDays() int {
	return g.Weeks*7 + g.Days
}

// Class returns preterm below 37w0d, term from 37w0d through 42w0d and
// post-term beyond.
func (g GestationalAge) Class() TermClass {
	switch days := g.TotalDays(); {
	case days < termStartDays:
		return PRETERM
	case days <= termEndDays:
		return TERM
	default:
		return POST_TERM
	}
}

var (
	// 39+2
	gaPlusPattern = regexp.MustCompile(`\b(\d{2})\s*\+\s*([0-6])\b`)
	// 39w2d, 39 wks 2 days, 39 weeks and 2 days
	gaWeeksDaysPattern = regexp.MustCompile(`(?i)\b(\d{2})\s*(?:w|wk|wks|weeks?)\s*,?\s*(?:and\s+)?([0-6])\s*(?:d|days?)\b`)
	// 39 weeks, 39wks, 32w
	gaWeeksPattern = regexp.MustCompile(`(?i)\b(\d{2})\s*(?:w|wk|wks|weeks?)\b`)
)

// ParseGestationalAges returns every plausible gestational age in text in
// order of appearance. Overlapping matches keep the most specific form.
func ParseGestationalAges(text string) []GestationalAge {
	var found []GestationalAge
	taken := make([][2]int, 0)

	overlaps := func(start, end int) bool {
		for _, span := range taken {
			if start < span[1] && end > span[0] {
				return true
			}
		}
		return false
	}

	collect := func(re *regexp.Regexp, withDays bool) {
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := idx[0], idx[1]
			if overlaps(start, end) {
				continue
			}
			weeks := atoi(text[idx[2]:idx[3]])
			if weeks < minPlausibleWeeks || weeks > maxPlausibleWeeks {
				continue
			}
			ga := GestationalAge{Weeks: weeks, Raw: text[start:end], Offset: start}
			if withDays {
				ga.Days = atoi(text[idx[4]:idx[5]])
			}
			taken = append(taken, [2]int{start, end})
			found = append(found, ga)
		}
	}

	collect(gaWeeksDaysPattern, true)
	collect(gaPlusPattern, true)
	collect(gaWeeksPattern, false)

	sort.SliceStable(found, func(i, j int) bool { return found[i].Offset < found[j].Offset })
	return found
}
