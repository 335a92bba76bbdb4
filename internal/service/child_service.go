package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
)

const (
	summaryRecentTransactions = 10
	balanceCacheTTL           = time.Minute
)

func balanceCacheKey(childID string) string {
	return "balance:child:" + childID
}

// childStore manages child profile persistence.
type childStore interface {
	Create(ctx context.Context, child *models.ChildProfile) error
	FindByID(ctx context.Context, id string) (*models.ChildProfile, error)
	ListByFamily(ctx context.Context, familyID string) ([]models.ChildProfile, error)
}

// childRedemptionReader supplies the redemption slices of the summary.
type childRedemptionReader interface {
	List(ctx context.Context, filter models.RedemptionFilter) ([]models.Redemption, error)
	OutstandingMinutes(ctx context.Context, childID string, since, now time.Time) (int, error)
}

// childTransactionReader supplies recent ledger entries.
type childTransactionReader interface {
	List(ctx context.Context, filter models.TransactionFilter) ([]models.PointTransaction, int, error)
}

// ChildService manages child profiles and their dashboard read model.
type ChildService struct {
	repo        childStore
	redemptions childRedemptionReader
	txns        childTransactionReader
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewChildService constructs a ChildService.
func NewChildService(repo childStore, redemptions childRedemptionReader, txns childTransactionReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ChildService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChildService{
		repo:        repo,
		redemptions: redemptions,
		txns:        txns,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// Create registers a child profile with a zero balance.
func (s *ChildService) Create(ctx context.Context, req dto.CreateChildRequest) (*models.ChildProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid child profile")
	}

	child := &models.ChildProfile{
		FamilyID: req.FamilyID,
		Name:     req.Name,
	}
	if err := s.repo.Create(ctx, child); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create child")
	}

	s.logger.Info("child profile created",
		zap.String("child_id", child.ID),
		zap.String("family_id", child.FamilyID))
	return child, nil
}

// Get fetches one child profile.
func (s *ChildService) Get(ctx context.Context, id string) (*models.ChildProfile, error) {
	child, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrChildNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}
	return child, nil
}

// ListByFamily returns a family's children.
func (s *ChildService) ListByFamily(ctx context.Context, familyID string) ([]models.ChildProfile, error) {
	children, err := s.repo.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list children")
	}
	return children, nil
}

// Balance exposes the child's spendable balance. The cached value is
// invalidated by the ledger on every write, so the boolean only reports
// whether this read was served from cache.
func (s *ChildService) Balance(ctx context.Context, childID string) (*dto.BalanceResponse, bool, error) {
	key := balanceCacheKey(childID)
	var cached dto.BalanceResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	child, err := s.Get(ctx, childID)
	if err != nil {
		return nil, false, err
	}
	resp := &dto.BalanceResponse{
		ChildID:           child.ID,
		PointBalance:      child.PointBalance,
		TotalPointsEarned: child.TotalPointsEarned,
	}
	if err := s.cache.Set(ctx, key, resp, balanceCacheTTL); err != nil {
		s.logger.Debug("balance cache store failed", zap.String("child_id", childID), zap.Error(err))
	}
	return resp, false, nil
}

// Summary assembles the child dashboard: profile, live grants, recent
// ledger entries and today's outstanding minutes, fetched concurrently.
func (s *ChildService) Summary(ctx context.Context, childID string) (*models.ChildSummary, error) {
	child, err := s.Get(ctx, childID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var (
		active  []models.Redemption
		recent  []models.PointTransaction
		minutes int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = s.redemptions.List(gctx, models.RedemptionFilter{ChildID: childID, ActiveOnly: true})
		return err
	})
	g.Go(func() error {
		var err error
		recent, _, err = s.txns.List(gctx, models.TransactionFilter{ChildID: childID, Limit: summaryRecentTransactions})
		return err
	})
	g.Go(func() error {
		var err error
		minutes, err = s.redemptions.OutstandingMinutes(gctx, childID, since, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assemble child summary")
	}

	return &models.ChildSummary{
		Child:                   child,
		ActiveRedemptions:       active,
		RecentTransactions:      recent,
		OutstandingMinutesToday: minutes,
	}, nil
}
