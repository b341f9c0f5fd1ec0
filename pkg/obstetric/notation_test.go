package obstetric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotation(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantFound  bool
		gravida    int
		para       int
		extended   bool
		termCount  int
		deliveries int
	}{
		{"Simple G/P", "G3P2, 32yo", true, 3, 2, false, 2, 2},
		{"Simple with space", "Patient is G3 P2 with history", true, 3, 2, false, 2, 2},
		{"Lowercase", "g2p1", true, 2, 1, false, 1, 1},
		{"Compact GTPAL", "G3P2012", true, 3, 2, true, 2, 2},
		{"Compact GTPAL with preterm", "G4P2113", true, 4, 3, true, 2, 3},
		{"Dashed GTPAL", "G3 P2-0-1-2", true, 3, 2, true, 2, 2},
		{"Parenthesized GTPAL", "G4P2(2-0-1-2)", true, 4, 2, true, 2, 2},
		{"Parenthesized with preterm", "G4P3(2-1-1-3)", true, 4, 3, true, 2, 3},
		{"Words", "gravida 2 para 2", true, 2, 2, false, 2, 2},
		{"No notation", "healthy 30 year old", false, 0, 0, false, 0, 0},
		{"Empty", "", false, 0, 0, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, found := ParseNotation(tt.input)
			require.Equal(t, tt.wantFound, found)
			if !found {
				return
			}
			assert.Equal(t, tt.gravida, n.Gravida)
			assert.Equal(t, tt.para, n.Para)
			assert.Equal(t, tt.extended, n.Extended)
			assert.Equal(t, tt.termCount, n.TermCount())
			assert.Equal(t, tt.deliveries, n.TotalDeliveries())
		})
	}
}

func TestParseGestationalAges(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []GestationalAge
	}{
		{"Plus notation", "delivered at 39+2", []GestationalAge{{Weeks: 39, Days: 2}}},
		{"Weeks and days", "39 weeks 2 days", []GestationalAge{{Weeks: 39, Days: 2}}},
		{"Compact", "SVD 39w2d", []GestationalAge{{Weeks: 39, Days: 2}}},
		{"Weeks only", "born at 32 wks", []GestationalAge{{Weeks: 32}}},
		{"Multiple in order", "35+1 then 40 weeks", []GestationalAge{{Weeks: 35, Days: 1}, {Weeks: 40}}},
		{"Implausible weeks ignored", "10 weeks ago", nil},
		{"No match", "no gestation info", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseGestationalAges(tt.input)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Weeks, got[i].Weeks)
				assert.Equal(t, tt.want[i].Days, got[i].Days)
			}
		})
	}
}

func TestGestationalAge_Class(t *testing.T) {
	tests := []struct {
		weeks, days int
		want        TermClass
	}{
		{31, 6, PRETERM},
		{36, 6, PRETERM},
		{37, 0, TERM},
		{39, 2, TERM},
		{42, 0, TERM},
		{42, 1, POST_TERM},
		{43, 0, POST_TERM},
	}

	for _, tt := range tests {
		ga := GestationalAge{Weeks: tt.weeks, Days: tt.days}
		assert.Equal(t, tt.want, ga.Class(), "%dw%dd", tt.weeks, tt.days)
	}
}

func TestParseCount(t *testing.T) {
	for input, want := range map[string]int{"3": 3, "two": 2, "Twice": 2, " one ": 1, "ten": 10} {
		got, ok := ParseCount(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}
	_, ok := ParseCount("many")
	assert.False(t, ok)
}
