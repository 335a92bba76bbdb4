package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
	"github.com/famtime/rewards-api/pkg/events"
)

// redemptionRepo reads and advances redemption grants.
type redemptionRepo interface {
	FindByID(ctx context.Context, id string) (*models.Redemption, error)
	List(ctx context.Context, filter models.RedemptionFilter) ([]models.Redemption, error)
	OutstandingMinutes(ctx context.Context, childID string, since, now time.Time) (int, error)
	AdvanceUsage(ctx context.Context, id string, minutesUsed int, now time.Time) (*models.Redemption, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// redemptionChildRepo resolves children for validation.
type redemptionChildRepo interface {
	FindByID(ctx context.Context, id string) (*models.ChildProfile, error)
}

// redemptionAppRepo resolves a family's app registrations.
type redemptionAppRepo interface {
	FindByFamilyApp(ctx context.Context, familyID, appID string) (*models.AppCategorization, error)
}

// RedemptionServiceConfig governs grant lifetime and the daily cap.
type RedemptionServiceConfig struct {
	TTL             time.Duration
	DailyCapMinutes int
	SweepInterval   time.Duration
}

// RedemptionService runs the point-to-time exchange: validating
// requests, committing grants atomically against the ledger and
// advancing grant usage reported by the device agent.
type RedemptionService struct {
	repo         redemptionRepo
	childRepo    redemptionChildRepo
	appRepo      redemptionAppRepo
	ledger       *LedgerService
	calculator   *PointCalculator
	settings     familySettingsResolver
	entitlements *EntitlementService
	events       *events.Bus
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          RedemptionServiceConfig
}

// NewRedemptionService constructs a RedemptionService.
func NewRedemptionService(
	repo redemptionRepo,
	childRepo redemptionChildRepo,
	appRepo redemptionAppRepo,
	ledger *LedgerService,
	calculator *PointCalculator,
	settings familySettingsResolver,
	entitlements *EntitlementService,
	bus *events.Bus,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg RedemptionServiceConfig,
) *RedemptionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.DailyCapMinutes <= 0 {
		cfg.DailyCapMinutes = 180
	}
	return &RedemptionService{
		repo:         repo,
		childRepo:    childRepo,
		appRepo:      appRepo,
		ledger:       ledger,
		calculator:   calculator,
		settings:     settings,
		entitlements: entitlements,
		events:       bus,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
	}
}

// ValidateRedemption dry-runs the redemption checks without committing
// anything. The decision it returns is advisory: Redeem re-validates
// under the child's ledger lock.
func (s *RedemptionService) ValidateRedemption(ctx context.Context, req dto.RedeemRequest) (*models.RedemptionDecision, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid redemption request")
	}

	child, err := s.findChild(ctx, req.ChildID)
	if err != nil {
		return nil, err
	}

	decision, _, err := s.decide(ctx, child, req.AppID, req.Points)
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// Redeem exchanges points for minutes. On an allowed decision the grant,
// its debit transaction and the balance decrement commit as one database
// transaction while the child's ledger lock is held, so concurrent
// redemptions can neither double-spend nor overshoot the daily cap. A
// declined decision is a normal result, not an error.
func (s *RedemptionService) Redeem(ctx context.Context, req dto.RedeemRequest) (*models.RedemptionDecision, *models.RedemptionGrant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid redemption request")
	}

	unlock := s.ledger.LockChild(req.ChildID)
	defer unlock()

	child, err := s.findChild(ctx, req.ChildID)
	if err != nil {
		return nil, nil, err
	}

	decision, app, err := s.decide(ctx, child, req.AppID, req.Points)
	if err != nil {
		return nil, nil, err
	}
	if !decision.Allowed {
		s.metrics.RecordRedemption(decision.Outcome, 0)
		s.publishResult(child, decision, nil, child.PointBalance)
		return decision, nil, nil
	}

	now := time.Now().UTC()
	red := &models.Redemption{
		ChildID:        child.ID,
		AppID:          app.AppID,
		PointsSpent:    req.Points,
		MinutesGranted: decision.MinutesGranted,
		MinutesUsed:    0,
		ConversionRate: app.ConversionRate,
		Status:         models.RedemptionActive,
		RedeemedAt:     now,
		ExpiresAt:      now.Add(s.cfg.TTL),
	}

	reason := fmt.Sprintf("Redeemed %d min in %s", red.MinutesGranted, app.Name)
	_, newBalance, err := s.ledger.ApplyRedemption(ctx, red, reason)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrLedgerConflict.Code {
			// Another writer drained the balance between the check and
			// the conditional debit. Report it as an economic decline.
			decision = &models.RedemptionDecision{
				Outcome:        models.OutcomeInsufficientPoints,
				RequiredPoints: req.Points,
				Message:        "balance changed concurrently, please retry",
			}
			s.metrics.RecordRedemption(decision.Outcome, 0)
			s.publishResult(child, decision, nil, child.PointBalance)
			return decision, nil, nil
		}
		return nil, nil, err
	}

	token, err := s.entitlements.Mint(red)
	if err != nil {
		s.logger.Warn("failed to mint entitlement token",
			zap.String("redemption_id", red.ID), zap.Error(err))
	}

	s.metrics.RecordRedemption(models.OutcomeSuccess, req.Points)
	s.publishResult(child, decision, red, newBalance)
	s.logger.Info("redemption granted",
		zap.String("redemption_id", red.ID),
		zap.String("child_id", child.ID),
		zap.String("app_id", red.AppID),
		zap.Int("points", red.PointsSpent),
		zap.Int("minutes", red.MinutesGranted))

	grant := &models.RedemptionGrant{
		Redemption:       red,
		NewBalance:       newBalance,
		EntitlementToken: token,
	}
	return decision, grant, nil
}

// ReportUsage advances consumed minutes for a grant. Usage is monotonic
// and idempotent: lower or repeated readings change nothing, and
// terminal or expired grants are returned as stored instead of moving.
func (s *RedemptionService) ReportUsage(ctx context.Context, redemptionID string, req dto.UsageReportRequest) (*models.Redemption, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid usage report")
	}

	now := time.Now().UTC()
	red, err := s.repo.AdvanceUsage(ctx, redemptionID, req.MinutesUsed, now)
	if err == nil {
		return red, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance redemption usage")
	}

	// The grant did not move: either it does not exist or it is no
	// longer live. Surface the stored row with its effective status.
	existing, ferr := s.repo.FindByID(ctx, redemptionID)
	if ferr != nil {
		if errors.Is(ferr, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrRedemptionNotFound, "redemption not found")
		}
		return nil, appErrors.Wrap(ferr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load redemption")
	}
	existing.Status = existing.EffectiveStatus(now)
	return existing, nil
}

// ActiveRedemptions lists the child's live grants.
func (s *RedemptionService) ActiveRedemptions(ctx context.Context, childID string) ([]models.Redemption, error) {
	if _, err := s.findChild(ctx, childID); err != nil {
		return nil, err
	}

	reds, err := s.repo.List(ctx, models.RedemptionFilter{ChildID: childID, ActiveOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list redemptions")
	}
	return reds, nil
}

// ListForChild pages through a child's redemption history, applying
// lazy expiry to stored statuses on the way out.
func (s *RedemptionService) ListForChild(ctx context.Context, filter models.RedemptionFilter) ([]models.Redemption, error) {
	if _, err := s.findChild(ctx, filter.ChildID); err != nil {
		return nil, err
	}

	reds, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list redemptions")
	}

	now := time.Now().UTC()
	for i := range reds {
		reds[i].Status = reds[i].EffectiveStatus(now)
	}
	return reds, nil
}

// Quote prices a number of minutes in points at the app's conversion
// rate, rounding up, and reports whether the child can afford it.
func (s *RedemptionService) Quote(ctx context.Context, req dto.QuoteRequest) (*dto.QuoteResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quote request")
	}

	child, err := s.findChild(ctx, req.ChildID)
	if err != nil {
		return nil, err
	}

	app, err := s.appRepo.FindByFamilyApp(ctx, child.FamilyID, req.AppID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAppNotFound, "app is not registered for this family")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load app categorization")
	}
	if app.ConversionRate <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "conversion rate not configured for this app")
	}

	required := s.calculator.PointsForMinutes(req.Minutes, app.ConversionRate)
	return &dto.QuoteResponse{
		AppID:          req.AppID,
		Minutes:        req.Minutes,
		RequiredPoints: required,
		ConversionRate: app.ConversionRate,
		Affordable:     child.PointBalance >= required,
	}, nil
}

// StartExpirySweeper launches the loop that flips grants whose window
// has passed. Readers already treat such rows as expired; the sweep
// keeps stored state convergent for reporting queries.
func (s *RedemptionService) StartExpirySweeper(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expired, err := s.repo.ExpireDue(ctx, time.Now().UTC())
				if err != nil {
					s.logger.Warn("redemption expiry sweep failed", zap.Error(err))
					continue
				}
				if expired > 0 {
					s.logger.Info("expired redemptions", zap.Int64("count", expired))
				}
			}
		}
	}()
}

// decide runs the ordered redemption checks against current state. The
// first failing check wins; later checks are skipped entirely. System
// failures return an error, economic declines return a decision.
func (s *RedemptionService) decide(ctx context.Context, child *models.ChildProfile, appID string, points int) (*models.RedemptionDecision, *models.AppCategorization, error) {
	if child.PointBalance < points {
		return &models.RedemptionDecision{
			Outcome:         models.OutcomeInsufficientPoints,
			RequiredPoints:  points,
			AvailablePoints: child.PointBalance,
			Message:         fmt.Sprintf("insufficient points: need %d, have %d", points, child.PointBalance),
		}, nil, nil
	}

	app, err := s.appRepo.FindByFamilyApp(ctx, child.FamilyID, appID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.RedemptionDecision{
				Outcome:         models.OutcomeInvalidApp,
				AvailablePoints: child.PointBalance,
				Message:         "app is not registered for this family",
			}, nil, nil
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load app categorization")
	}
	if !app.Active {
		return &models.RedemptionDecision{
			Outcome:         models.OutcomeInvalidApp,
			AvailablePoints: child.PointBalance,
			Message:         "app registration is inactive",
		}, nil, nil
	}

	if app.ConversionRate <= 0 {
		return &models.RedemptionDecision{
			Outcome:         models.OutcomeConversionRateNotSet,
			AvailablePoints: child.PointBalance,
			Message:         "conversion rate not configured for this app",
		}, nil, nil
	}

	minutes := s.calculator.MinutesForPoints(points, app.ConversionRate)
	if minutes == 0 {
		return &models.RedemptionDecision{
			Outcome:         models.OutcomeInsufficientPoints,
			RequiredPoints:  s.calculator.PointsForMinutes(1, app.ConversionRate),
			AvailablePoints: child.PointBalance,
			Message:         "points are below the cost of one minute",
		}, nil, nil
	}

	settings, err := s.settings.Resolve(ctx, child.FamilyID)
	if err != nil {
		return nil, nil, err
	}
	capMinutes := s.cfg.DailyCapMinutes
	if settings.DailyTimeLimitMinutes > 0 {
		capMinutes = settings.DailyTimeLimitMinutes
	}

	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	outstanding, err := s.repo.OutstandingMinutes(ctx, child.ID, since, now)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum outstanding minutes")
	}

	remaining := capMinutes - outstanding
	if remaining < 0 {
		remaining = 0
	}
	if outstanding+minutes > capMinutes {
		return &models.RedemptionDecision{
			Outcome:         models.OutcomeTimeLimitExceeded,
			RequiredPoints:  points,
			AvailablePoints: child.PointBalance,
			CapRemaining:    remaining,
			Message:         fmt.Sprintf("daily screen-time cap reached: %d of %d minutes remaining", remaining, capMinutes),
		}, nil, nil
	}

	return &models.RedemptionDecision{
		Outcome:         models.OutcomeSuccess,
		Allowed:         true,
		RequiredPoints:  points,
		AvailablePoints: child.PointBalance,
		MinutesGranted:  minutes,
		CapRemaining:    capMinutes - outstanding - minutes,
	}, app, nil
}

func (s *RedemptionService) findChild(ctx context.Context, childID string) (*models.ChildProfile, error) {
	child, err := s.childRepo.FindByID(ctx, childID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrChildNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}
	return child, nil
}

func (s *RedemptionService) publishResult(child *models.ChildProfile, decision *models.RedemptionDecision, red *models.Redemption, balance int) {
	payload := map[string]interface{}{
		"outcome":    decision.Outcome,
		"allowed":    decision.Allowed,
		"newBalance": balance,
	}
	if red != nil {
		payload["redemptionId"] = red.ID
		payload["appId"] = red.AppID
		payload["pointsSpent"] = red.PointsSpent
		payload["minutesGranted"] = red.MinutesGranted
		payload["expiresAt"] = red.ExpiresAt
	}
	s.events.Publish(events.Event{
		Type:     events.TypeRedemptionResult,
		FamilyID: child.FamilyID,
		ChildID:  child.ID,
		Payload:  payload,
	})
}
