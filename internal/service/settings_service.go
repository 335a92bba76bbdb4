package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
)

// settingsStore persists per-family policy.
type settingsStore interface {
	Find(ctx context.Context, familyID string) (*models.FamilySettings, error)
	Upsert(ctx context.Context, s *models.FamilySettings) error
}

// SettingsService resolves and maintains per-family policy. Families
// without a stored row get synthesized defaults so validation and
// redemption never fail on missing configuration.
type SettingsService struct {
	repo      settingsStore
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingsStore, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// Resolve returns the family's effective settings, serving from cache
// when possible and synthesizing defaults when nothing is stored.
func (s *SettingsService) Resolve(ctx context.Context, familyID string) (*models.FamilySettings, error) {
	key := settingsCacheKey(familyID)

	var cached models.FamilySettings
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	settings, err := s.repo.Find(ctx, familyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			settings = models.DefaultFamilySettings(familyID)
		} else {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family settings")
		}
	}

	if err := s.cache.Set(ctx, key, settings, s.cacheTTL); err != nil {
		s.logger.Debug("settings cache write failed", zap.String("family_id", familyID), zap.Error(err))
	}
	return settings, nil
}

// Update replaces the family's policy. When a parent PIN is configured
// the request must carry it. The stored PIN hash itself only changes
// through SetPin.
func (s *SettingsService) Update(ctx context.Context, familyID string, req dto.UpdateSettingsRequest) (*models.FamilySettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings")
	}

	start := normalizeClock(req.BedtimeStart)
	end := normalizeClock(req.BedtimeEnd)
	if (start == nil) != (end == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "bedtime window requires both start and end")
	}
	if start != nil {
		if _, ok := parseClock(*start); !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "bedtime start must be HH:MM")
		}
		if _, ok := parseClock(*end); !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "bedtime end must be HH:MM")
		}
	}

	stored, err := s.loadStored(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPin(stored, req.ParentPin); err != nil {
		return nil, err
	}

	level := req.ValidationLevel
	if !level.Valid() {
		level = models.ValidationModerate
	}

	updated := &models.FamilySettings{
		FamilyID:              familyID,
		ValidationLevel:       level,
		DailyTimeLimitMinutes: req.DailyTimeLimitMinutes,
		BedtimeStart:          start,
		BedtimeEnd:            end,
		RestrictedCategories:  req.RestrictedCategories,
	}
	if stored != nil {
		updated.ParentPinHash = stored.ParentPinHash
	}

	if err := s.repo.Upsert(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save family settings")
	}
	s.invalidate(ctx, familyID)

	s.logger.Info("family settings updated",
		zap.String("family_id", familyID),
		zap.String("validation_level", string(level)))
	return updated, nil
}

// SetPin configures or rotates the parent PIN. Rotating requires the
// current PIN.
func (s *SettingsService) SetPin(ctx context.Context, familyID string, req dto.SetPinRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid PIN request")
	}

	stored, err := s.loadStored(ctx, familyID)
	if err != nil {
		return err
	}
	if err := s.checkPin(stored, req.CurrentPin); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPin), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash PIN")
	}

	updated := stored
	if updated == nil {
		updated = models.DefaultFamilySettings(familyID)
	}
	hashStr := string(hash)
	updated.ParentPinHash = &hashStr

	if err := s.repo.Upsert(ctx, updated); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save family settings")
	}
	s.invalidate(ctx, familyID)

	s.logger.Info("parent PIN updated", zap.String("family_id", familyID))
	return nil
}

// loadStored fetches the stored row, mapping absence to nil.
func (s *SettingsService) loadStored(ctx context.Context, familyID string) (*models.FamilySettings, error) {
	stored, err := s.repo.Find(ctx, familyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family settings")
	}
	return stored, nil
}

// checkPin enforces the parent PIN gate when one is configured.
func (s *SettingsService) checkPin(stored *models.FamilySettings, pin string) error {
	if !stored.HasParentPin() {
		return nil
	}
	if pin == "" {
		return appErrors.Clone(appErrors.ErrInvalidPin, "parent PIN required")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*stored.ParentPinHash), []byte(pin)); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidPin, "parent PIN does not match")
	}
	return nil
}

func (s *SettingsService) invalidate(ctx context.Context, familyID string) {
	if err := s.cache.InvalidateKeys(ctx, settingsCacheKey(familyID)); err != nil {
		s.logger.Warn("settings cache invalidation failed", zap.String("family_id", familyID), zap.Error(err))
	}
}

func settingsCacheKey(familyID string) string {
	return fmt.Sprintf("settings:family:%s", familyID)
}

// normalizeClock maps empty strings to nil so optional bounds are
// stored as NULL.
func normalizeClock(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
