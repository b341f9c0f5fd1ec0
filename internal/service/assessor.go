package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gc-eligibility-server/internal/domain"
	"github.com/gc-eligibility-server/internal/extraction"
	"github.com/gc-eligibility-server/internal/scoring"
	"github.com/gc-eligibility-server/internal/specialist"
)

// DefaultMaxInputBytes bounds candidate text when no limit is configured.
const DefaultMaxInputBytes = 512 * 1024

// maxControlRatio is the share of control characters above which text is
// treated as binary.
const maxControlRatio = 0.05

var _ domain.CandidateAssessor = (*Assessor)(nil)

// Assessor runs the full candidate assessment pipeline. It keeps no
// per-request state and is safe for concurrent use.
type Assessor struct {
	logger        *logrus.Logger
	pattern       *extraction.PatternExtractor
	narrative     *extraction.NarrativeExtractor
	merger        *extraction.Merger
	ai            *extraction.AIAdapter
	engine        *scoring.Engine
	predictor     *specialist.Predictor
	maxInputBytes int
}

// AssessorOptions configures an Assessor.
type AssessorOptions struct {
	// AIClient is optional; nil disables the AI extraction stage.
	AIClient      domain.AIExtractionClient
	AITimeout     time.Duration
	MaxInputBytes int
}

// NewAssessor creates a new assessment service
func NewAssessor(logger *logrus.Logger, opts AssessorOptions) *Assessor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	maxInput := opts.MaxInputBytes
	if maxInput <= 0 {
		maxInput = DefaultMaxInputBytes
	}
	return &Assessor{
		logger:        logger,
		pattern:       extraction.NewPatternExtractor(),
		narrative:     extraction.NewNarrativeExtractor(),
		merger:        extraction.NewMerger(),
		ai:            extraction.NewAIAdapter(opts.AIClient, opts.AITimeout, logger),
		engine:        scoring.NewEngine(logger),
		predictor:     specialist.NewPredictor(logger),
		maxInputBytes: maxInput,
	}
}

// Assess extracts a candidate record from text and scores it against every
// clinic profile and the specialist review rules.
func (a *Assessor) Assess(ctx context.Context, text string, explicit *domain.ExplicitFields) (*domain.AssessmentResult, error) {
	startTime := time.Now()

	if err := a.validateInput(text, explicit); err != nil {
		return nil, domain.WrapAssessmentError(domain.ErrInvalidInput, "invalid candidate input", err)
	}

	assessmentID := uuid.New().String()
	logger := a.logger.WithField("assessment_id", assessmentID)
	logger.WithFields(logrus.Fields{
		"text_bytes":     len(text),
		"explicit_input": explicit != nil,
		"ai_enabled":     a.ai.Enabled(),
	}).Info("Starting candidate assessment")

	// Stage 1: independent extraction layers
	stageStart := time.Now()
	var patternFragment, narrativeFragment extraction.Fragment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		patternFragment = a.pattern.Extract(text)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		narrativeFragment = a.narrative.Extract(text)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extraction cancelled: %w", err)
	}

	// Stage 2: merge
	merged := a.merger.Merge(patternFragment, narrativeFragment, explicit)
	logger.WithFields(logrus.Fields{
		"pattern_confidence":   merged.PatternConfidence,
		"narrative_confidence": merged.NarrativeConfidence,
		"duration":             time.Since(stageStart),
	}).Debug("Extraction layers merged")

	// Stage 3: optional AI enrichment
	stageStart = time.Now()
	extracted := a.ai.Enrich(ctx, text, explicit, merged)
	logger.WithFields(logrus.Fields{
		"ai_outcome": extracted.AIOutcome,
		"duration":   time.Since(stageStart),
	}).Debug("AI extraction stage completed")

	// Stage 4: scoring and specialist prediction
	stageStart = time.Now()
	assessment, err := a.evaluate(extracted.Record)
	if err != nil {
		logger.WithError(err).Error("Scoring invariant violated")
		return nil, err
	}

	result := &domain.AssessmentResult{
		AssessmentID:         assessmentID,
		CandidateRecord:      extracted.Record,
		ExtractionConfidence: extracted.Confidence,
		SourceLayers:         extracted.SourceLayers,
		AIOutcome:            extracted.AIOutcome,
		ClinicAssessments:    assessment.ClinicAssessments,
		SpecialistAssessment: assessment.SpecialistAssessment,
		DocumentationGaps:    extracted.DocumentationGaps,
		SurgicalHistory:      extracted.SurgicalHistory,
		Summary:              extracted.Summary,
		ProcessingTime:       time.Since(startTime),
		CreatedAt:            time.Now().UTC(),
	}

	logger.WithFields(logrus.Fields{
		"extraction_confidence": result.ExtractionConfidence,
		"source_layers":         result.SourceLayers,
		"ai_outcome":            result.AIOutcome,
		"strict_score":          result.ClinicAssessments.Strict.Score,
		"moderate_score":        result.ClinicAssessments.Moderate.Score,
		"lenient_score":         result.ClinicAssessments.Lenient.Score,
		"review_level":          result.SpecialistAssessment.ReviewLevel,
		"scoring_duration":      time.Since(stageStart),
		"processing_time":       result.ProcessingTime,
	}).Info("Candidate assessment completed")

	return result, nil
}

// ScoreRecord scores a caller-supplied record without running extraction.
func (a *Assessor) ScoreRecord(ctx context.Context, record domain.CandidateRecord) (*domain.RecordAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, domain.WrapAssessmentError(domain.ErrInvalidInput, "invalid candidate record", err)
	}
	return a.evaluate(record.Clone())
}

func (a *Assessor) evaluate(record domain.CandidateRecord) (*domain.RecordAssessment, error) {
	var out domain.RecordAssessment
	var g errgroup.Group
	g.Go(func() error {
		clinics, err := a.engine.Score(record)
		if err != nil {
			return err
		}
		out.ClinicAssessments = clinics
		return nil
	})
	g.Go(func() error {
		out.SpecialistAssessment = a.predictor.Predict(record)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, domain.WrapAssessmentError(domain.ErrScoringInvariant, "scoring invariant violated", err)
	}
	return &out, nil
}

func (a *Assessor) validateInput(text string, explicit *domain.ExplicitFields) error {
	if strings.TrimSpace(text) == "" {
		return domain.NewInputError("text", domain.ErrEmptyInput, nil)
	}
	if !isTextual(text) {
		return domain.NewInputError("text", domain.ErrNonTextualInput, nil)
	}
	if len(text) > a.maxInputBytes {
		return domain.NewInputError("text", domain.ErrInputTooLarge, len(text))
	}
	return explicit.Validate()
}

func isTextual(text string) bool {
	if !utf8.ValidString(text) {
		return false
	}
	total, control := 0, 0
	for _, r := range text {
		total++
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			control++
		}
	}
	return float64(control) <= float64(total)*maxControlRatio
}
