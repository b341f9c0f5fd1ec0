// Package obstetric parses structured obstetric shorthand: gravida/para
// notation (including the GTPAL extended form), gestational-age expressions
// and spelled-out counts.
package obstetric

import (
	"regexp"
	"strconv"
)

// Notation is a parsed gravida/para expression.
type Notation struct {
	Raw      string `json:"raw"`
	Gravida  int    `json:"gravida"`
	Para     int    `json:"para"`
	Extended bool   `json:"extended"`
	Term     int    `json:"term"`
	Preterm  int    `json:"preterm"`
	Abortus  int    `json:"abortus"`
	Living   int    `json:"living"`
}

// TermCount is the number of term deliveries. Plain P# notation carries no
// term/preterm split, so para is taken as the term count.
func (n Notation) TermCount() int {
	if n.Extended {
		return n.Term
	}
	return n.Para
}

// TotalDeliveries is term plus preterm deliveries for GTPAL and para otherwise.
func (n Notation) TotalDeliveries() int {
	if n.Extended {
		return n.Term + n.Preterm
	}
	return n.Para
}

// Ordered most specific first; the first pattern that matches wins.
var (
	// G4P2(2-0-1-2)
	gtpalParenPattern = regexp.MustCompile(`(?i)\bG\s*(\d{1,2})\s*,?\s*P\s*(\d{1,2})\s*\(\s*(\d{1,2})\s*[-,/]\s*(\d{1,2})\s*[-,/]\s*(\d{1,2})\s*[-,/]\s*(\d{1,2})\s*\)`)
	// G3 P2-0-1-2
	gtpalDashedPattern = regexp.MustCompile(`(?i)\bG\s*(\d{1,2})\s*,?\s*P\s*(\d{1,2})\s*[-,/]\s*(\d{1,2})\s*[-,/]\s*(\d{1,2})\s*[-,/]\s*(\d{1,2})\b`)
	// G3P2012
	gtpalCompactPattern = regexp.MustCompile(`(?i)\bG\s*(\d)\s*,?\s*P\s*(\d)(\d)(\d)(\d)\b`)
	// G3P2, G3 P2
	gravidaParaPattern = regexp.MustCompile(`(?i)\bG\s*(\d{1,2})\s*,?\s*P\s*(\d{1,2})\b`)
	// gravida 3 para 2
	gravidaParaWordsPattern = regexp.MustCompile(`(?i)\bgravida\s*(\d{1,2})\s*,?\s*para\s*(\d{1,2})\b`)
)

// ParseNotation finds the first gravida/para expression in text. The boolean
// is false when no notation is present, which is a normal outcome.
func ParseNotation(text string) (Notation, bool) {
	if m := gtpalParenPattern.FindStringSubmatch(text); m != nil {
		n := Notation{Raw: m[0], Gravida: atoi(m[1]), Para: atoi(m[2]), Extended: true}
		n.Term, n.Preterm, n.Abortus, n.Living = atoi(m[3]), atoi(m[4]), atoi(m[5]), atoi(m[6])
		return n, true
	}
	if m := gtpalDashedPattern.FindStringSubmatch(text); m != nil {
		n := Notation{Raw: m[0], Gravida: atoi(m[1]), Extended: true}
		n.Term, n.Preterm, n.Abortus, n.Living = atoi(m[2]), atoi(m[3]), atoi(m[4]), atoi(m[5])
		n.Para = n.Term + n.Preterm
		return n, true
	}
	if m := gtpalCompactPattern.FindStringSubmatch(text); m != nil {
		n := Notation{Raw: m[0], Gravida: atoi(m[1]), Extended: true}
		n.Term, n.Preterm, n.Abortus, n.Living = atoi(m[2]), atoi(m[3]), atoi(m[4]), atoi(m[5])
		n.Para = n.Term + n.Preterm
		return n, true
	}
	if m := gravidaParaPattern.FindStringSubmatch(text); m != nil {
		return Notation{Raw: m[0], Gravida: atoi(m[1]), Para: atoi(m[2])}, true
	}
	if m := gravidaParaWordsPattern.FindStringSubmatch(text); m != nil {
		return Notation{Raw: m[0], Gravida: atoi(m[1]), Para: atoi(m[2])}, true
	}
	return Notation{}, false
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
