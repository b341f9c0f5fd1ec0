package obstetric

import (
	"strconv"
	"strings"
)

var numberWords = map[string]int{
	"zero":   0,
	"no":     0,
	"none":   0,
	"one":    1,
	"a":      1,
	"an":     1,
	"single": 1,
	"once":   1,
	"two":    2,
	"twice":  2,
	"both":   2,
	"three":  3,
	"thrice": 3,
	"four":   4,
	"five":   5,
	"six":    6,
	"seven":  7,
	"eight":  8,
	"nine":   9,
	"ten":    10,
}

// NumberWordPattern is a regexp fragment matching a digit count or a
// spelled-out count understood by ParseCount.
const NumberWordPattern = `(\d{1,2}|zero|one|two|three|four|five|six|seven|eight|nine|ten|single|twice|thrice|both)`

// ParseCount converts a digit string or number word to an integer.
func ParseCount(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	v, ok := numberWords[s]
	return v, ok
}
