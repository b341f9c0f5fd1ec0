package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeidentify(t *testing.T) {
	text := "Name: Jane Doe\n" +
		"Jane is a 32yo G3P2. Phone 555-123-4567, email jane.doe@example.com, " +
		"SSN 123-45-6789, DOB: 01/02/1990, MRN: A123456"

	out := Deidentify(text, "")

	assert.NotContains(t, out, "Jane")
	assert.NotContains(t, out, "Doe")
	assert.NotContains(t, out, "555-123-4567")
	assert.NotContains(t, out, "123-45-6789")
	assert.NotContains(t, out, "01/02/1990")
	assert.NotContains(t, out, "A123456")
	for _, placeholder := range []string{"[CANDIDATE]", "[PHONE]", "[EMAIL]", "[SSN]", "[DOB]", "[MRN]"} {
		assert.Contains(t, out, placeholder)
	}
	assert.Contains(t, out, "32yo G3P2", "clinical content is preserved")
}

func TestDeidentify_KnownName(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		knownName string
		expected  string
	}{
		{
			name:      "full name and parts",
			text:      "Sarah Connor delivered twice. Sarah denies smoking.",
			knownName: "Sarah Connor",
			expected:  "[CANDIDATE] delivered twice. [CANDIDATE] denies smoking.",
		},
		{
			name:      "honorific",
			text:      "Mrs. Rivera reports two uncomplicated deliveries.",
			knownName: "",
			expected:  "Mrs. [CANDIDATE] reports two uncomplicated deliveries.",
		},
		{
			name:      "label followed by clinical verb",
			text:      "Patient: Denies smoking. Denies alcohol.",
			knownName: "",
			expected:  "Patient: Denies smoking. Denies alcohol.",
		},
		{
			name:      "label with name then verb",
			text:      "Patient: Ana Silva Reports two deliveries. Ana is well.",
			knownName: "",
			expected:  "Patient: [CANDIDATE] Reports two deliveries. [CANDIDATE] is well.",
		},
		{
			name:      "nothing to redact",
			text:      "G2P2, BP 118/76",
			knownName: "",
			expected:  "G2P2, BP 118/76",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Deidentify(tt.text, tt.knownName))
		})
	}
}
