package extraction

import (
	"math"

	"github.com/gc-eligibility-server/internal/domain"
)

// Layer weights for the aggregate extraction confidence.
const (
	patternWeight   = 0.4
	narrativeWeight = 0.2
	aiWeight        = 0.4
)

// Merger combines the pattern and narrative fragments with caller-supplied
// explicit fields.
type Merger struct{}

// NewMerger creates a new merger
func NewMerger() *Merger {
	return &Merger{}
}

// Merge produces the merged record. Obstetric fields prefer the pattern
// fragment; other scalars prefer the narrative fragment; set-valued fields are
// unioned; explicit fields override everything.
func (m *Merger) Merge(pattern, narrative Fragment, explicit *domain.ExplicitFields) domain.ExtractionResult {
	record := domain.NewCandidateRecord()
	layers := make(map[domain.Layer]bool)

	for _, field := range domain.AllFields {
		inPattern, inNarrative := pattern.Has(field), narrative.Has(field)
		switch {
		case field.IsSet():
			if inPattern {
				copyField(&record, pattern.Record, field)
				record.Provenance[field] = provenance(pattern)
				layers[domain.LAYER_PATTERN] = true
			}
			if inNarrative {
				copyField(&record, narrative.Record, field)
				if !inPattern {
					record.Provenance[field] = provenance(narrative)
				}
				layers[domain.LAYER_NARRATIVE] = true
			}
		case field.IsObstetric() && inPattern, inPattern && !inNarrative:
			copyField(&record, pattern.Record, field)
			record.Provenance[field] = provenance(pattern)
			layers[domain.LAYER_PATTERN] = true
		case inNarrative:
			copyField(&record, narrative.Record, field)
			record.Provenance[field] = provenance(narrative)
			layers[domain.LAYER_NARRATIVE] = true
		}
	}

	if applyExplicit(&record, explicit) {
		layers[domain.LAYER_EXPLICIT] = true
	}

	return domain.ExtractionResult{
		Record:              record,
		Confidence:          AggregateConfidence(pattern.Confidence, narrative.Confidence, 0, false),
		PatternConfidence:   pattern.Confidence,
		NarrativeConfidence: narrative.Confidence,
		SourceLayers:        sortedLayers(layers),
		AIOutcome:           domain.AI_DISABLED,
	}
}

// AggregateConfidence weights the per-layer confidences. When the AI layer did
// not contribute its weight is renormalized away.
func AggregateConfidence(pattern, narrative, ai int, aiUsed bool) int {
	if aiUsed {
		return clampPercent(math.Round(patternWeight*float64(pattern) + narrativeWeight*float64(narrative) + aiWeight*float64(ai)))
	}
	return clampPercent(math.Round((patternWeight*float64(pattern) + narrativeWeight*float64(narrative)) / (patternWeight + narrativeWeight)))
}

func clampPercent(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v)
	}
}

func provenance(f Fragment) domain.FieldProvenance {
	return domain.FieldProvenance{Layer: f.Layer, Confidence: f.Confidence}
}

// applyExplicit overrides record with caller-supplied values and reports
// whether any were applied.
func applyExplicit(record *domain.CandidateRecord, explicit *domain.ExplicitFields) bool {
	if explicit == nil {
		return false
	}
	explicitSource := domain.FieldProvenance{Layer: domain.LAYER_EXPLICIT, Confidence: 100}
	applied := false
	set := func(field domain.Field) {
		record.Provenance[field] = explicitSource
		applied = true
	}

	if explicit.Age != nil {
		record.Age = domain.IntPtr(*explicit.Age)
		set(domain.FIELD_AGE)
	}
	if explicit.BMI != nil {
		record.Lifestyle.BMI = domain.FloatPtr(*explicit.BMI)
		set(domain.FIELD_BMI)
	}
	if explicit.TermPregnancyCount != nil {
		record.PregnancyHistory.TermPregnancyCount = *explicit.TermPregnancyCount
		set(domain.FIELD_TERM_PREGNANCY_COUNT)
	}
	if explicit.CesareanCount != nil {
		record.PregnancyHistory.CesareanCount = *explicit.CesareanCount
		set(domain.FIELD_CESAREAN_COUNT)
	}
	if explicit.TotalDeliveries != nil {
		record.PregnancyHistory.TotalDeliveries = domain.IntPtr(*explicit.TotalDeliveries)
		set(domain.FIELD_TOTAL_DELIVERIES)
	}
	if explicit.Smoker != nil {
		record.Lifestyle.Smoker = *explicit.Smoker
		set(domain.FIELD_SMOKER)
	}
	return applied
}
