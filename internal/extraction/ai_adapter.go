package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gc-eligibility-server/internal/domain"
)

// DefaultAITimeout bounds a single extraction-service call.
const DefaultAITimeout = 5 * time.Second

const defaultAIConfidence = 80

// aiResponse is the fixed schema returned by the extraction service. Pointer
// fields distinguish omitted from zero.
type aiResponse struct {
	PregnancyHistory  *aiPregnancyHistory    `json:"pregnancyHistory"`
	MedicalConditions *[]domain.ConditionTag `json:"medicalConditions"`
	SurgicalHistory   []string               `json:"surgicalHistory"`
	DocumentationGaps []string               `json:"documentationGaps"`
	Summary           *string                `json:"summary"`
	Confidence        *int                   `json:"confidence"`
}

type aiPregnancyHistory struct {
	TotalPregnancies   *int          `json:"totalPregnancies"`
	TermDeliveries     *int          `json:"termDeliveries"`
	CesareanDeliveries *int          `json:"cesareanDeliveries"`
	VaginalDeliveries  *int          `json:"vaginalDeliveries"`
	Pregnancies        []aiPregnancy `json:"pregnancies"`
}

type aiPregnancy struct {
	Index            int              `json:"index"`
	DeliveryType     string           `json:"deliveryType"`
	GestationalWeeks *float64         `json:"gestationalWeeks"`
	Complications    []aiComplication `json:"complications"`
}

type aiComplication struct {
	Category    domain.ComplicationCategory `json:"category"`
	Description string                      `json:"description"`
	Severity    string                      `json:"severity"`
}

var errSchema = errors.New("extraction response failed schema validation")

var uterineSurgery = phrase(`myomectomy`, `uterine`, `hysterotomy`, `septum\s+resection`, `septoplasty`, `fibroid`, `classical\s+(?:incision|cesarean|c-section)`)

// AIAdapter runs the optional AI extraction layer. It is fail-soft: any
// failure leaves the merged record unchanged and is reported only through the
// outcome tag.
type AIAdapter struct {
	client  domain.AIExtractionClient
	timeout time.Duration
	logger  *logrus.Logger
}

// NewAIAdapter creates an adapter. A nil client disables the layer.
func NewAIAdapter(client domain.AIExtractionClient, timeout time.Duration, logger *logrus.Logger) *AIAdapter {
	if timeout <= 0 {
		timeout = DefaultAITimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &AIAdapter{client: client, timeout: timeout, logger: logger}
}

// Enabled reports whether an extraction client is configured.
func (a *AIAdapter) Enabled() bool {
	return a != nil && a.client != nil
}

// Enrich calls the extraction service and overlays its output on merged. The
// returned result always carries a valid record. No retries are attempted.
func (a *AIAdapter) Enrich(ctx context.Context, text string, explicit *domain.ExplicitFields, merged domain.ExtractionResult) domain.ExtractionResult {
	if !a.Enabled() {
		merged.AIOutcome = domain.AI_DISABLED
		return merged
	}

	req := domain.AIExtractionRequest{DeidentifiedText: Deidentify(text, explicitName(explicit))}
	if explicit != nil && (explicit.Age != nil || explicit.BMI != nil || explicit.Notes != "") {
		req.UserProvidedContext = &domain.UserProvidedContext{
			Age:   explicit.Age,
			BMI:   explicit.BMI,
			Notes: Deidentify(explicit.Notes, explicit.Name),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	payload, cached, err := a.client.Extract(callCtx, req, validateAIResponse)
	if err != nil {
		outcome := classifyAIError(err)
		a.logger.WithFields(logrus.Fields{
			"outcome":  outcome,
			"duration": time.Since(start),
		}).WithError(err).Warn("AI extraction failed, continuing with merged record")
		merged.AIOutcome = outcome
		return merged
	}

	// Clients are expected to validate, but the payload is decoded regardless.
	resp, err := decodeAIResponse(payload)
	if err != nil {
		a.logger.WithError(err).Warn("AI extraction returned an invalid response")
		merged.AIOutcome = domain.AI_INVALID_RESPONSE
		return merged
	}

	result := overlayAI(merged, resp, explicit)
	result.AIOutcome = domain.AI_SUCCEEDED
	if cached {
		result.AIOutcome = domain.AI_CACHED
	}

	a.logger.WithFields(logrus.Fields{
		"outcome":    result.AIOutcome,
		"duration":   time.Since(start),
		"confidence": result.Confidence,
	}).Debug("AI extraction applied")
	return result
}

func explicitName(explicit *domain.ExplicitFields) string {
	if explicit == nil {
		return ""
	}
	return explicit.Name
}

func classifyAIError(err error) domain.AIOutcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.AI_TIMEOUT
	case errors.Is(err, domain.ErrCircuitOpen):
		return domain.AI_CIRCUIT_OPEN
	case errors.Is(err, errSchema):
		return domain.AI_INVALID_RESPONSE
	default:
		return domain.AI_FAILED
	}
}

func validateAIResponse(payload []byte) error {
	_, err := decodeAIResponse(payload)
	return err
}

func decodeAIResponse(payload []byte) (*aiResponse, error) {
	var resp aiResponse
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", errSchema, err)
	}
	switch {
	case resp.PregnancyHistory == nil:
		return nil, fmt.Errorf("%w: missing pregnancyHistory", errSchema)
	case resp.MedicalConditions == nil:
		return nil, fmt.Errorf("%w: missing medicalConditions", errSchema)
	case resp.Summary == nil:
		return nil, fmt.Errorf("%w: missing summary", errSchema)
	}

	ph := resp.PregnancyHistory
	for _, count := range []*int{ph.TotalPregnancies, ph.TermDeliveries, ph.CesareanDeliveries, ph.VaginalDeliveries} {
		if count != nil && (*count < 0 || *count > 20) {
			return nil, fmt.Errorf("%w: implausible count %d", errSchema, *count)
		}
	}
	for _, p := range ph.Pregnancies {
		for _, c := range p.Complications {
			if c.Severity != "" && !domain.ComplicationSeverity(c.Severity).IsValid() {
				return nil, fmt.Errorf("%w: unknown severity %q", errSchema, c.Severity)
			}
		}
	}
	if resp.Confidence != nil && (*resp.Confidence < 0 || *resp.Confidence > 100) {
		return nil, fmt.Errorf("%w: confidence out of range", errSchema)
	}
	return &resp, nil
}

// overlayAI applies every field the AI populated. Omitted fields, including
// an empty complications list, keep the merged value. Explicit fields are
// re-applied last so they still win.
func overlayAI(merged domain.ExtractionResult, resp *aiResponse, explicit *domain.ExplicitFields) domain.ExtractionResult {
	out := merged
	out.Record = merged.Record.Clone()
	record := &out.Record

	confidence := defaultAIConfidence
	if resp.Confidence != nil {
		confidence = *resp.Confidence
	}
	source := domain.FieldProvenance{Layer: domain.LAYER_AI, Confidence: confidence}
	used := false
	set := func(field domain.Field) {
		record.Provenance[field] = source
		used = true
	}

	ph := resp.PregnancyHistory
	if ph.TermDeliveries != nil {
		record.PregnancyHistory.TermPregnancyCount = *ph.TermDeliveries
		set(domain.FIELD_TERM_PREGNANCY_COUNT)
	}
	if ph.CesareanDeliveries != nil {
		record.PregnancyHistory.CesareanCount = *ph.CesareanDeliveries
		set(domain.FIELD_CESAREAN_COUNT)
	}
	if ph.VaginalDeliveries != nil && ph.CesareanDeliveries != nil {
		record.PregnancyHistory.TotalDeliveries = domain.IntPtr(*ph.VaginalDeliveries + *ph.CesareanDeliveries)
		set(domain.FIELD_TOTAL_DELIVERIES)
	}

	var complications []domain.Complication
	for _, p := range ph.Pregnancies {
		for _, c := range p.Complications {
			severity := domain.ComplicationSeverity(c.Severity)
			if severity == "" {
				severity = domain.SEVERITY_MODERATE
			}
			complications = append(complications, domain.Complication{
				PregnancyIndex: p.Index,
				Category:       c.Category,
				Description:    c.Description,
				Severity:       severity,
			})
		}
	}
	if len(complications) > 0 {
		record.PregnancyHistory.Complications = complications
		record.PregnancyHistory.ComplicationCount = len(complications)
		set(domain.FIELD_COMPLICATIONS)
		set(domain.FIELD_COMPLICATION_COUNT)
	}

	conditions := append([]domain.ConditionTag{}, *resp.MedicalConditions...)
	for _, procedure := range resp.SurgicalHistory {
		if uterineSurgery.MatchString(procedure) {
			conditions = append(conditions, domain.CONDITION_UTERINE_SURGERY)
		}
	}
	if len(conditions) > 0 {
		record.MedicalConditions = domain.SortConditions(append(record.MedicalConditions, conditions...))
		set(domain.FIELD_MEDICAL_CONDITIONS)
	}

	applyExplicit(record, explicit)

	out.SurgicalHistory = append([]string{}, resp.SurgicalHistory...)
	out.DocumentationGaps = append([]string{}, resp.DocumentationGaps...)
	out.Summary = *resp.Summary

	layers := map[domain.Layer]bool{}
	for _, l := range merged.SourceLayers {
		layers[l] = true
	}
	if used {
		layers[domain.LAYER_AI] = true
	}
	out.SourceLayers = sortedLayers(layers)
	out.Confidence = AggregateConfidence(merged.PatternConfidence, merged.NarrativeConfidence, confidence, used)
	return out
}
