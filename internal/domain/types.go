// Package domain contains the core entities for gestational-carrier candidate
// assessment: the candidate record assembled by the extraction layers, the
// closed vocabularies shared by extractors and rule engines, and the
// assessment results produced per clinic profile.
//
// Every vocabulary in this file is closed. Extractors may only emit values
// listed here and the rule engines key off these tags, never off free text.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ComplicationCategory is the closed set of high-level pregnancy complication
// classes. The scoring engine keys its penalties off this tag.
type ComplicationCategory string

const (
	COMPLICATION_HYPERTENSIVE ComplicationCategory = "hypertensive"
	COMPLICATION_DIABETIC     ComplicationCategory = "diabetic"
	COMPLICATION_PRETERM      ComplicationCategory = "preterm"
	COMPLICATION_MEMBRANE     ComplicationCategory = "membrane"
	COMPLICATION_PLACENTAL    ComplicationCategory = "placental"
	COMPLICATION_GROWTH       ComplicationCategory = "growth"
	COMPLICATION_HYPEREMESIS  ComplicationCategory = "hyperemesis"
	COMPLICATION_HEMORRHAGIC  ComplicationCategory = "hemorrhagic"
	COMPLICATION_CERVICAL     ComplicationCategory = "cervical"
	COMPLICATION_INFECTION    ComplicationCategory = "infection"
	COMPLICATION_FETAL_LOSS   ComplicationCategory = "fetal_loss"
	COMPLICATION_OTHER        ComplicationCategory = "other"
)

// ComplicationCategories lists the vocabulary in canonical order.
var ComplicationCategories = []ComplicationCategory{
	COMPLICATION_HYPERTENSIVE,
	COMPLICATION_DIABETIC,
	COMPLICATION_PRETERM,
	COMPLICATION_MEMBRANE,
	COMPLICATION_PLACENTAL,
	COMPLICATION_GROWTH,
	COMPLICATION_HYPEREMESIS,
	COMPLICATION_HEMORRHAGIC,
	COMPLICATION_CERVICAL,
	COMPLICATION_INFECTION,
	COMPLICATION_FETAL_LOSS,
	COMPLICATION_OTHER,
}

// ComplicationSeverity grades a single complication.
type ComplicationSeverity string

const (
	SEVERITY_MILD     ComplicationSeverity = "mild"
	SEVERITY_MODERATE ComplicationSeverity = "moderate"
	SEVERITY_SEVERE   ComplicationSeverity = "severe"
)

// ConditionTag is the controlled vocabulary for medical conditions.
type ConditionTag string

const (
	CONDITION_HYPERTENSION           ConditionTag = "hypertension"
	CONDITION_PREGNANCY_HYPERTENSION ConditionTag = "pregnancy_hypertension"
	CONDITION_GESTATIONAL_DIABETES   ConditionTag = "gestational_diabetes"
	CONDITION_DIABETES               ConditionTag = "diabetes"
	CONDITION_PREECLAMPSIA           ConditionTag = "preeclampsia"
	CONDITION_ECLAMPSIA_HELLP        ConditionTag = "eclampsia_hellp"
	CONDITION_HYPEREMESIS            ConditionTag = "hyperemesis"
	CONDITION_THYROID_DISORDER       ConditionTag = "thyroid_disorder"
	CONDITION_AUTOIMMUNE_DISORDER    ConditionTag = "autoimmune_disorder"
	CONDITION_CLOTTING_DISORDER      ConditionTag = "clotting_disorder"
	CONDITION_KIDNEY_DISEASE         ConditionTag = "kidney_disease"
	CONDITION_HEART_DISEASE          ConditionTag = "heart_disease"
	CONDITION_DEPRESSION             ConditionTag = "depression"
	CONDITION_ANXIETY                ConditionTag = "anxiety"
	CONDITION_BIPOLAR_DISORDER       ConditionTag = "bipolar_disorder"
	CONDITION_ASTHMA                 ConditionTag = "asthma"
	CONDITION_PCOS                   ConditionTag = "pcos"
	CONDITION_UTERINE_SURGERY        ConditionTag = "uterine_surgery"
	CONDITION_POSTPARTUM_HEMORRHAGE  ConditionTag = "postpartum_hemorrhage"
	CONDITION_PRETERM_BIRTH          ConditionTag = "preterm_birth"
	CONDITION_CERVICAL_INSUFFICIENCY ConditionTag = "cervical_insufficiency"
	CONDITION_EPILEPSY               ConditionTag = "epilepsy"
	CONDITION_ANEMIA                 ConditionTag = "anemia"
)

// ConditionTags lists the condition vocabulary in canonical order.
var ConditionTags = []ConditionTag{
	CONDITION_HYPERTENSION,
	CONDITION_PREGNANCY_HYPERTENSION,
	CONDITION_GESTATIONAL_DIABETES,
	CONDITION_DIABETES,
	CONDITION_PREECLAMPSIA,
	CONDITION_ECLAMPSIA_HELLP,
	CONDITION_HYPEREMESIS,
	CONDITION_THYROID_DISORDER,
	CONDITION_AUTOIMMUNE_DISORDER,
	CONDITION_CLOTTING_DISORDER,
	CONDITION_KIDNEY_DISEASE,
	CONDITION_HEART_DISEASE,
	CONDITION_DEPRESSION,
	CONDITION_ANXIETY,
	CONDITION_BIPOLAR_DISORDER,
	CONDITION_ASTHMA,
	CONDITION_PCOS,
	CONDITION_UTERINE_SURGERY,
	CONDITION_POSTPARTUM_HEMORRHAGE,
	CONDITION_PRETERM_BIRTH,
	CONDITION_CERVICAL_INSUFFICIENCY,
	CONDITION_EPILEPSY,
	CONDITION_ANEMIA,
}

// PsychFlag is the controlled vocabulary for psychological history flags.
type PsychFlag string

const (
	PSYCH_POSTPARTUM_DEPRESSION       PsychFlag = "postpartum_depression"
	PSYCH_EATING_DISORDER             PsychFlag = "eating_disorder"
	PSYCH_PSYCHIATRIC_HOSPITALIZATION PsychFlag = "psychiatric_hospitalization"
	PSYCH_SUBSTANCE_ABUSE_HISTORY     PsychFlag = "substance_abuse_history"
	PSYCH_SUICIDAL_HISTORY            PsychFlag = "suicidal_history"
	PSYCH_TRAUMA_HISTORY              PsychFlag = "trauma_history"
)

// PsychFlags lists the psychological flag vocabulary in canonical order.
var PsychFlags = []PsychFlag{
	PSYCH_POSTPARTUM_DEPRESSION,
	PSYCH_EATING_DISORDER,
	PSYCH_PSYCHIATRIC_HOSPITALIZATION,
	PSYCH_SUBSTANCE_ABUSE_HISTORY,
	PSYCH_SUICIDAL_HISTORY,
	PSYCH_TRAUMA_HISTORY,
}

// AlcoholUse grades reported alcohol consumption.
type AlcoholUse string

const (
	ALCOHOL_NONE      AlcoholUse = "none"
	ALCOHOL_SOCIAL    AlcoholUse = "social"
	ALCOHOL_EXCESSIVE AlcoholUse = "excessive"
)

// TestResult is the outcome of an infectious-disease screen.
type TestResult string

const (
	TEST_NEGATIVE TestResult = "negative"
	TEST_POSITIVE TestResult = "positive"
)

// Validation errors for the closed vocabularies
var (
	ErrInvalidComplicationCategory = errors.New("complication category outside closed vocabulary")
	ErrInvalidComplicationSeverity = errors.New("invalid complication severity")
	ErrInvalidConditionTag         = errors.New("condition tag outside closed vocabulary")
	ErrInvalidPsychFlag            = errors.New("psychological flag outside closed vocabulary")
	ErrInvalidAlcoholUse           = errors.New("invalid alcohol use value")
	ErrInvalidTestResult           = errors.New("invalid test result")
	ErrInvalidClinicProfile        = errors.New("invalid clinic profile")
)

// IsValid reports whether the category belongs to the closed vocabulary.
func (c ComplicationCategory) IsValid() bool {
	for _, known := range ComplicationCategories {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the category.
func (c ComplicationCategory) String() string {
	return string(c)
}

// UnmarshalJSON rejects categories outside the closed vocabulary so that
// malformed payloads fail at the decoding boundary.
func (c *ComplicationCategory) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	category := ComplicationCategory(s)
	if !category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidComplicationCategory, s)
	}
	*c = category
	return nil
}

// IsValid reports whether the severity is a known grade.
func (s ComplicationSeverity) IsValid() bool {
	switch s {
	case SEVERITY_MILD, SEVERITY_MODERATE, SEVERITY_SEVERE:
		return true
	default:
		return false
	}
}

// Rank orders severities from mild (1) to severe (3).
func (s ComplicationSeverity) Rank() int {
	switch s {
	case SEVERITY_MILD:
		return 1
	case SEVERITY_MODERATE:
		return 2
	case SEVERITY_SEVERE:
		return 3
	default:
		return 0
	}
}

// UnmarshalJSON rejects unknown severities.
func (s *ComplicationSeverity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	severity := ComplicationSeverity(raw)
	if !severity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidComplicationSeverity, raw)
	}
	*s = severity
	return nil
}

// IsValid reports whether the tag belongs to the condition vocabulary.
func (t ConditionTag) IsValid() bool {
	for _, known := range ConditionTags {
		if t == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the tag.
func (t ConditionTag) String() string {
	return string(t)
}

// UnmarshalJSON rejects tags outside the condition vocabulary.
func (t *ConditionTag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	tag := ConditionTag(s)
	if !tag.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidConditionTag, s)
	}
	*t = tag
	return nil
}

// IsValid reports whether the flag belongs to the psych vocabulary.
func (f PsychFlag) IsValid() bool {
	for _, known := range PsychFlags {
		if f == known {
			return true
		}
	}
	return false
}

// IsValid reports whether the alcohol use value is known.
func (a AlcoholUse) IsValid() bool {
	switch a {
	case ALCOHOL_NONE, ALCOHOL_SOCIAL, ALCOHOL_EXCESSIVE:
		return true
	default:
		return false
	}
}

// IsValid reports whether the test result is known.
func (r TestResult) IsValid() bool {
	return r == TEST_NEGATIVE || r == TEST_POSITIVE
}

// SortConditions returns a sorted, de-duplicated copy of tags.
func SortConditions(tags []ConditionTag) []ConditionTag {
	seen := make(map[ConditionTag]bool, len(tags))
	out := make([]ConditionTag, 0, len(tags))
	for _, tag := range tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortPsychFlags returns a sorted, de-duplicated copy of flags.
func SortPsychFlags(flags []PsychFlag) []PsychFlag {
	seen := make(map[PsychFlag]bool, len(flags))
	out := make([]PsychFlag, 0, len(flags))
	for _, flag := range flags {
		if seen[flag] {
			continue
		}
		seen[flag] = true
		out = append(out, flag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
