package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
)

// appStore manages the per-family app catalog.
type appStore interface {
	Create(ctx context.Context, app *models.AppCategorization) error
	FindByID(ctx context.Context, id string) (*models.AppCategorization, error)
	FindByFamilyApp(ctx context.Context, familyID, appID string) (*models.AppCategorization, error)
	List(ctx context.Context, filter models.AppFilter) ([]models.AppCategorization, error)
	Update(ctx context.Context, app *models.AppCategorization) error
}

// AppService maintains each family's app catalog and the economic
// parameters attached to it.
type AppService struct {
	repo       appStore
	calculator *PointCalculator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAppService constructs an AppService.
func NewAppService(repo appStore, calculator *PointCalculator, validate *validator.Validate, logger *zap.Logger) *AppService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppService{
		repo:       repo,
		calculator: calculator,
		validator:  validate,
		logger:     logger,
	}
}

// Register adds an app to the family catalog. Unset economic parameters
// fall back to the configured defaults; reward apps default to the
// standard conversion rate so they are redeemable immediately.
func (s *AppService) Register(ctx context.Context, req dto.RegisterAppRequest) (*models.AppCategorization, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid app registration")
	}

	if existing, err := s.repo.FindByFamilyApp(ctx, req.FamilyID, req.AppID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "app is already registered for this family")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check app registration")
	}

	app := &models.AppCategorization{
		FamilyID:       req.FamilyID,
		AppID:          req.AppID,
		Name:           req.Name,
		Category:       req.Category,
		PointsPerHour:  req.PointsPerHour,
		ConversionRate: req.ConversionRate,
		Active:         true,
	}
	if app.PointsPerHour <= 0 {
		app.PointsPerHour = s.calculator.RatePerHour(nil)
	}
	if app.Category == models.CategoryReward && app.ConversionRate <= 0 {
		app.ConversionRate = s.calculator.DefaultConversionRate()
	}

	if err := s.repo.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register app")
	}

	s.logger.Info("app registered",
		zap.String("family_id", app.FamilyID),
		zap.String("app_id", app.AppID),
		zap.String("category", string(app.Category)))
	return app, nil
}

// Get fetches one catalog entry by its row ID.
func (s *AppService) Get(ctx context.Context, id string) (*models.AppCategorization, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAppNotFound, "app categorization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load app categorization")
	}
	return app, nil
}

// List returns a family's catalog entries.
func (s *AppService) List(ctx context.Context, filter models.AppFilter) ([]models.AppCategorization, error) {
	if filter.FamilyID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "familyId is required")
	}
	apps, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list app categorizations")
	}
	return apps, nil
}

// Update adjusts a catalog entry. Only provided fields change.
func (s *AppService) Update(ctx context.Context, id string, req dto.UpdateAppRequest) (*models.AppCategorization, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid app update")
	}

	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != "" {
		app.Name = *req.Name
	}
	if req.Category != nil {
		app.Category = *req.Category
	}
	if req.PointsPerHour != nil {
		app.PointsPerHour = *req.PointsPerHour
	}
	if req.ConversionRate != nil {
		app.ConversionRate = *req.ConversionRate
	}
	if req.Active != nil {
		app.Active = *req.Active
	}

	if err := s.repo.Update(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update app categorization")
	}

	s.logger.Info("app categorization updated", zap.String("id", app.ID))
	return app, nil
}
