package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
	"github.com/famtime/rewards-api/pkg/events"
	"github.com/famtime/rewards-api/pkg/jobs"
)

// SessionJobType identifies queued session validation work.
const SessionJobType = "session-validate"

// sessionStore persists sessions and their validation outcomes.
type sessionStore interface {
	Create(ctx context.Context, session *models.UsageSession) error
	FindByID(ctx context.Context, id string) (*models.UsageSession, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.UsageSession, int, error)
	SaveValidationOutcome(ctx context.Context, session *models.UsageSession) error
}

// earningChildRepo resolves children for session attribution.
type earningChildRepo interface {
	FindByID(ctx context.Context, id string) (*models.ChildProfile, error)
}

// earningAppRepo resolves per-app earn parameters.
type earningAppRepo interface {
	FindByFamilyApp(ctx context.Context, familyID, appID string) (*models.AppCategorization, error)
}

// sessionDispatcher hands sessions to the background workers.
type sessionDispatcher interface {
	Enqueue(job jobs.Job) error
}

// EarningService runs the earn side of the economy: ingesting finished
// usage sessions, validating them and crediting the resulting points.
type EarningService struct {
	sessions   sessionStore
	childRepo  earningChildRepo
	appRepo    earningAppRepo
	validation *ValidationService
	calculator *PointCalculator
	ledger     *LedgerService
	queue      sessionDispatcher
	events     *events.Bus
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEarningService constructs an EarningService. A nil queue disables
// asynchronous processing; sessions are then validated inline.
func NewEarningService(
	sessions sessionStore,
	childRepo earningChildRepo,
	appRepo earningAppRepo,
	validation *ValidationService,
	calculator *PointCalculator,
	ledger *LedgerService,
	queue sessionDispatcher,
	bus *events.Bus,
	validate *validator.Validate,
	logger *zap.Logger,
) *EarningService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EarningService{
		sessions:   sessions,
		childRepo:  childRepo,
		appRepo:    appRepo,
		validation: validation,
		calculator: calculator,
		ledger:     ledger,
		queue:      queue,
		events:     bus,
		validator:  validate,
		logger:     logger,
	}
}

// RecordSession persists a reported session and either queues it for
// background validation or, when no queue is configured, processes it
// inline. The returned result is nil when the session was queued.
func (s *EarningService) RecordSession(ctx context.Context, req dto.RecordSessionRequest) (*models.UsageSession, *models.ValidationResult, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session")
	}
	if req.EndedAt.Before(req.StartedAt) {
		return nil, nil, false, appErrors.Clone(appErrors.ErrValidation, "session end must not precede start")
	}

	child, err := s.findChild(ctx, req.ChildID)
	if err != nil {
		return nil, nil, false, err
	}

	session := &models.UsageSession{
		ChildID:   child.ID,
		AppID:     req.AppID,
		AppName:   req.AppName,
		Category:  req.Category,
		StartedAt: req.StartedAt.UTC(),
		EndedAt:   req.EndedAt.UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store session")
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: session.ID, Type: SessionJobType}); err == nil {
			return session, nil, true, nil
		}
		s.logger.Warn("session enqueue failed, processing inline",
			zap.String("session_id", session.ID), zap.Error(err))
	}

	result, err := s.ProcessSession(ctx, session)
	if err != nil {
		return nil, nil, false, err
	}
	return session, result, false, nil
}

// ProcessByID loads and processes a stored session. Used by the queue
// workers; already-validated sessions are skipped so redelivery cannot
// credit points twice.
func (s *EarningService) ProcessByID(ctx context.Context, sessionID string) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrSessionNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Validated {
		return nil
	}
	_, err = s.ProcessSession(ctx, session)
	return err
}

// ProcessSession runs the full earn pipeline for a stored session:
// validate, price, credit the ledger and record the outcome on the
// session row.
func (s *EarningService) ProcessSession(ctx context.Context, session *models.UsageSession) (*models.ValidationResult, error) {
	child, err := s.findChild(ctx, session.ChildID)
	if err != nil {
		return nil, err
	}

	result, err := s.validation.ValidateSession(ctx, session, child.FamilyID)
	if err != nil {
		return nil, err
	}

	rate := s.calculator.RatePerHour(nil)
	priced := *session
	app, err := s.appRepo.FindByFamilyApp(ctx, child.FamilyID, session.AppID)
	switch {
	case err == nil:
		// The parent's registration is authoritative over the
		// device-reported category and carries the earn rate.
		rate = s.calculator.RatePerHour(app)
		if app.Category.Valid() {
			priced.Category = app.Category
		}
	case errors.Is(err, sql.ErrNoRows):
		// Unregistered apps earn at the default rate under the
		// device-reported category.
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load app categorization")
	}

	points := s.calculator.CalculatePoints(&priced, rate, result.AdjustmentFactor)
	if points > 0 {
		reason := fmt.Sprintf("Validated usage of %s", sessionAppLabel(session))
		if _, _, err := s.ledger.Credit(ctx, child.ID, points, models.TransactionEarn, reason, &session.ID); err != nil {
			return nil, err
		}
	}

	session.Validated = true
	session.IsValid = &result.IsValid
	session.ValidationScore = &result.ValidationScore
	session.AdjustmentFactor = &result.AdjustmentFactor
	session.PointsEarned = &points
	session.Patterns = result.Patterns

	if err := s.sessions.SaveValidationOutcome(ctx, session); err != nil {
		// Points are already committed; surfacing an error here would
		// make queue redelivery credit them again.
		s.logger.Error("failed to record validation outcome",
			zap.String("session_id", session.ID), zap.Error(err))
	}

	if points > 0 {
		s.events.Publish(events.Event{
			Type:     events.TypePointEarned,
			FamilyID: child.FamilyID,
			ChildID:  child.ID,
			Payload: map[string]interface{}{
				"sessionId": session.ID,
				"appId":     session.AppID,
				"points":    points,
				"isValid":   result.IsValid,
			},
		})
	}

	s.logger.Info("session processed",
		zap.String("session_id", session.ID),
		zap.String("child_id", child.ID),
		zap.Bool("is_valid", result.IsValid),
		zap.Int("points", points))
	return result, nil
}

// GetSession fetches one session with its validation outcome.
func (s *EarningService) GetSession(ctx context.Context, id string) (*models.UsageSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// ListSessions pages through sessions matching the filter.
func (s *EarningService) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.UsageSession, int, error) {
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, total, nil
}

func (s *EarningService) findChild(ctx context.Context, childID string) (*models.ChildProfile, error) {
	child, err := s.childRepo.FindByID(ctx, childID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrChildNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}
	return child, nil
}

func sessionAppLabel(session *models.UsageSession) string {
	if session.AppName != "" {
		return session.AppName
	}
	return session.AppID
}

// SessionWorker bridges queue jobs to the earning pipeline.
type SessionWorker struct {
	earnings *EarningService
	logger   *zap.Logger
}

// NewSessionWorker constructs a worker.
func NewSessionWorker(earnings *EarningService, logger *zap.Logger) *SessionWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionWorker{earnings: earnings, logger: logger}
}

// Handle processes one queued session.
func (w *SessionWorker) Handle(ctx context.Context, job jobs.Job) error {
	if err := w.earnings.ProcessByID(ctx, job.ID); err != nil {
		w.logger.Warn("session processing failed",
			zap.String("session_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err))
		return err
	}
	return nil
}
