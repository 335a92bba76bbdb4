package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/famtime/rewards-api/internal/models"
)

// familySettingsResolver yields the effective settings for a family,
// synthesizing defaults when none are stored.
type familySettingsResolver interface {
	Resolve(ctx context.Context, familyID string) (*models.FamilySettings, error)
}

// ValidationService runs the anti-gaming pipeline over usage sessions
// and turns the verdicts into a point adjustment factor.
type ValidationService struct {
	settings   familySettingsResolver
	validators []SessionValidator
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewValidationService constructs a ValidationService with the default
// validator pipeline.
func NewValidationService(settings familySettingsResolver, metrics *MetricsService, logger *zap.Logger) *ValidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidationService{
		settings:   settings,
		validators: DefaultValidators(),
		metrics:    metrics,
		logger:     logger,
	}
}

// ValidateSession evaluates one session against the family's settings.
// Validator disagreement is a result, never an error; only settings
// lookup failures propagate.
func (s *ValidationService) ValidateSession(ctx context.Context, session *models.UsageSession, familyID string) (*models.ValidationResult, error) {
	started := time.Now()

	settings, err := s.settings.Resolve(ctx, familyID)
	if err != nil {
		return nil, err
	}

	result := s.Evaluate(session, settings)
	s.metrics.ObserveValidation(result, time.Since(started))

	if !result.IsValid {
		s.logger.Info("session flagged by validation",
			zap.String("session_id", session.ID),
			zap.String("child_id", session.ChildID),
			zap.Int("patterns", len(result.Patterns)),
			zap.Float64("confidence", result.ConfidenceLevel))
	}
	return result, nil
}

// Evaluate runs the pipeline against already-resolved settings. Exported
// for callers that batch sessions under one settings snapshot.
func (s *ValidationService) Evaluate(session *models.UsageSession, settings *models.FamilySettings) *models.ValidationResult {
	validators := s.validatorsFor(settings)

	patterns := make([]models.GamingPattern, 0)
	passed := 0
	for _, v := range validators {
		ok, pattern := v.Validate(session, settings)
		if ok {
			passed++
			continue
		}
		if pattern != nil {
			patterns = append(patterns, *pattern)
		}
	}

	confidence := 1.0
	if len(validators) > 0 {
		confidence = float64(passed) / float64(len(validators))
	}

	level := effectiveLevel(settings)
	engagement := DeriveEngagement(session)

	return &models.ValidationResult{
		IsValid:          passed == len(validators),
		ValidationScore:  validationScore(confidence, engagement.InteractionDensity),
		ConfidenceLevel:  confidence,
		Patterns:         patterns,
		Engagement:       engagement,
		Level:            level,
		AdjustmentFactor: adjustmentFactor(confidence, level),
	}
}

// validatorsFor appends the bedtime validator only for families that
// configured a window, keeping the default confidence denominator at
// the core pipeline size.
func (s *ValidationService) validatorsFor(settings *models.FamilySettings) []SessionValidator {
	if settings == nil || !settings.HasBedtimeWindow() {
		return s.validators
	}
	withBedtime := make([]SessionValidator, 0, len(s.validators)+1)
	withBedtime = append(withBedtime, s.validators...)
	return append(withBedtime, BedtimeWindowValidator{})
}

func effectiveLevel(settings *models.FamilySettings) models.ValidationLevel {
	if settings != nil && settings.ValidationLevel.Valid() {
		return settings.ValidationLevel
	}
	return models.ValidationModerate
}

// adjustmentFactor maps pipeline confidence to a point multiplier. At or
// above the level's threshold the session earns in full; below it the
// award degrades linearly instead of dropping to zero.
func adjustmentFactor(confidence float64, level models.ValidationLevel) float64 {
	threshold := level.ConfidenceThreshold()
	if confidence >= threshold {
		return 1.0
	}
	factor := confidence / threshold
	if factor < 0 {
		return 0
	}
	if factor > 1 {
		return 1
	}
	return factor
}

// validationScore blends validator confidence with interaction density
// into the audit score stored on the session. It never feeds the award.
func validationScore(confidence, density float64) float64 {
	score := confidence * (0.7 + 0.3*density)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
