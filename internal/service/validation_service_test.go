package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtime/rewards-api/internal/models"
)

type stubSettingsResolver struct {
	settings *models.FamilySettings
	err      error
	calls    int
}

func (s *stubSettingsResolver) Resolve(ctx context.Context, familyID string) (*models.FamilySettings, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.settings != nil {
		return s.settings, nil
	}
	return models.DefaultFamilySettings(familyID), nil
}

// cleanUsageSession passes all three core validators: long enough, away
// from hour boundaries and with enough derived state changes.
func cleanUsageSession() *models.UsageSession {
	start := time.Date(2026, time.March, 14, 15, 10, 0, 0, time.UTC)
	return &models.UsageSession{
		ID:        "sess-1",
		ChildID:   "child-1",
		AppID:     "com.example.mathquest",
		Category:  models.CategoryLearning,
		StartedAt: start,
		EndedAt:   start.Add(20 * time.Minute),
	}
}

func TestValidationServiceCleanSessionFullCredit(t *testing.T) {
	resolver := &stubSettingsResolver{}
	svc := NewValidationService(resolver, nil, nil)

	result, err := svc.ValidateSession(context.Background(), cleanUsageSession(), "fam-1")
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, 1.0, result.ConfidenceLevel)
	assert.Equal(t, 1.0, result.AdjustmentFactor)
	assert.Equal(t, models.ValidationModerate, result.Level)
	assert.Empty(t, result.Patterns)
	assert.Equal(t, 1, resolver.calls)
}

func TestValidationServicePartialCreditScalesByLevel(t *testing.T) {
	// Starting on the hour trips the timing validator and nothing else,
	// leaving two of three validators passing.
	session := cleanUsageSession()
	session.StartedAt = time.Date(2026, time.March, 14, 15, 0, 0, 0, time.UTC)
	session.EndedAt = session.StartedAt.Add(20*time.Minute + 30*time.Second)

	tests := []struct {
		name   string
		level  models.ValidationLevel
		factor float64
	}{
		{name: "lenient forgives at threshold", level: models.ValidationLenient, factor: 1.0},
		{name: "moderate scales down", level: models.ValidationModerate, factor: (2.0 / 3.0) / 0.75},
		{name: "strict scales down harder", level: models.ValidationStrict, factor: (2.0 / 3.0) / 0.90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewValidationService(&stubSettingsResolver{
				settings: &models.FamilySettings{FamilyID: "fam-1", ValidationLevel: tt.level},
			}, nil, nil)

			result, err := svc.ValidateSession(context.Background(), session, "fam-1")
			require.NoError(t, err)
			assert.False(t, result.IsValid)
			assert.InDelta(t, 2.0/3.0, result.ConfidenceLevel, 1e-9)
			assert.InDelta(t, tt.factor, result.AdjustmentFactor, 1e-9)
			assert.Len(t, result.Patterns, 1)
			assert.Equal(t, "timing_pattern", result.Patterns[0].Validator)
			assert.Equal(t, tt.level, result.Level)
		})
	}
}

func TestValidationServiceBedtimeWindowJoinsPipeline(t *testing.T) {
	start := "21:00"
	end := "07:00"
	withWindow := &models.FamilySettings{
		FamilyID:        "fam-1",
		ValidationLevel: models.ValidationModerate,
		BedtimeStart:    &start,
		BedtimeEnd:      &end,
	}
	svc := NewValidationService(&stubSettingsResolver{settings: withWindow}, nil, nil)

	// A daytime session passes all four validators.
	day := svc.Evaluate(cleanUsageSession(), withWindow)
	assert.True(t, day.IsValid)
	assert.Equal(t, 1.0, day.ConfidenceLevel)

	// A late session fails only the bedtime check. With the window the
	// denominator grows to four, so confidence lands exactly on the
	// moderate threshold and points still get full credit.
	late := cleanUsageSession()
	late.StartedAt = time.Date(2026, time.March, 14, 22, 10, 0, 0, time.UTC)
	late.EndedAt = late.StartedAt.Add(20 * time.Minute)

	result := svc.Evaluate(late, withWindow)
	assert.False(t, result.IsValid)
	assert.InDelta(t, 0.75, result.ConfidenceLevel, 1e-9)
	assert.Equal(t, 1.0, result.AdjustmentFactor)
	require.Len(t, result.Patterns, 1)
	assert.Equal(t, "bedtime_window", result.Patterns[0].Validator)

	// Without a window the same late session sails through three
	// validators untouched.
	noWindow := models.DefaultFamilySettings("fam-1")
	unguarded := svc.Evaluate(late, noWindow)
	assert.True(t, unguarded.IsValid)
	assert.Equal(t, 1.0, unguarded.ConfidenceLevel)
}

func TestValidationServiceUnknownLevelFallsBackToModerate(t *testing.T) {
	svc := NewValidationService(&stubSettingsResolver{
		settings: &models.FamilySettings{FamilyID: "fam-1", ValidationLevel: "paranoid"},
	}, nil, nil)

	result, err := svc.ValidateSession(context.Background(), cleanUsageSession(), "fam-1")
	require.NoError(t, err)
	assert.Equal(t, models.ValidationModerate, result.Level)
}

func TestValidationServiceSettingsErrorPropagates(t *testing.T) {
	boom := errors.New("settings store down")
	svc := NewValidationService(&stubSettingsResolver{err: boom}, nil, nil)

	_, err := svc.ValidateSession(context.Background(), cleanUsageSession(), "fam-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestValidationServiceScoreBlendsEngagement(t *testing.T) {
	svc := NewValidationService(&stubSettingsResolver{}, nil, nil)

	// Clean 20 minute session: density clamps to 1.0, so the score is
	// the full confidence.
	result := svc.Evaluate(cleanUsageSession(), models.DefaultFamilySettings("fam-1"))
	assert.Equal(t, 1.0, result.ValidationScore)
	assert.Equal(t, 1.0, result.Engagement.InteractionDensity)

	// A two hour idle stretch keeps confidence partial and drags the
	// score below it through the clamped 0.1 density.
	idle := cleanUsageSession()
	idle.EndedAt = idle.StartedAt.Add(2 * time.Hour)
	long := svc.Evaluate(idle, models.DefaultFamilySettings("fam-1"))
	assert.False(t, long.IsValid)
	assert.InDelta(t, 2.0/3.0, long.ConfidenceLevel, 1e-9)
	assert.InDelta(t, (2.0/3.0)*(0.7+0.3*0.1), long.ValidationScore, 1e-9)
}
