package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
)

// ledgerRepo couples ledger entries with balance deltas atomically.
type ledgerRepo interface {
	Credit(ctx context.Context, txn *models.PointTransaction) (int, error)
	RedeemAtomically(ctx context.Context, txn *models.PointTransaction, red *models.Redemption) (int, error)
	SumPoints(ctx context.Context, childID string) (int, error)
}

// ledgerChildRepo resolves child rows for balance reads.
type ledgerChildRepo interface {
	FindByID(ctx context.Context, id string) (*models.ChildProfile, error)
}

// ledgerTransactionRepo pages through the append-only transaction log.
type ledgerTransactionRepo interface {
	List(ctx context.Context, filter models.TransactionFilter) ([]models.PointTransaction, int, error)
}

// childLocks hands out one mutex per child so ledger mutations for the
// same child execute serially while different children proceed in
// parallel. Locks are never evicted; the registry grows with the number
// of distinct children seen by this process.
type childLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newChildLocks() *childLocks {
	return &childLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the child's mutex and returns its release func.
func (l *childLocks) lock(childID string) func() {
	l.mu.Lock()
	m, ok := l.locks[childID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[childID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// LedgerService is the single write path for point balances. Every
// mutation holds the child's lock and lands as one database transaction,
// so the stored balance always equals the sum of the transaction log.
type LedgerService struct {
	repo      ledgerRepo
	childRepo ledgerChildRepo
	txnRepo   ledgerTransactionRepo
	locks     *childLocks
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(repo ledgerRepo, childRepo ledgerChildRepo, txnRepo ledgerTransactionRepo, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		repo:      repo,
		childRepo: childRepo,
		txnRepo:   txnRepo,
		locks:     newChildLocks(),
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

// LockChild acquires the child's serialization lock and returns the
// release func. Redemption holds it across validation and the atomic
// debit so the daily cap cannot be overshot by concurrent grants.
func (s *LedgerService) LockChild(childID string) func() {
	return s.locks.lock(childID)
}

// Credit appends a positive ledger entry and returns it with the new
// balance. Negative adjustments are allowed down to a zero balance.
func (s *LedgerService) Credit(ctx context.Context, childID string, points int, txnType models.TransactionType, reason string, sessionID *string) (*models.PointTransaction, int, error) {
	if points == 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "points must be non-zero")
	}
	if txnType == models.TransactionEarn && points < 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "earn transactions must be positive")
	}

	unlock := s.locks.lock(childID)
	defer unlock()

	if _, err := s.childRepo.FindByID(ctx, childID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrChildNotFound, "child not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	txn := &models.PointTransaction{
		ChildID:   childID,
		Points:    points,
		Type:      txnType,
		Reason:    reason,
		SessionID: sessionID,
	}

	newBalance, err := s.repo.Credit(ctx, txn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrLedgerConflict, "balance cannot go negative")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to credit points")
	}

	_ = s.cache.InvalidateKeys(ctx, balanceCacheKey(childID))
	s.metrics.RecordPointsAwarded(points)
	s.logger.Info("points credited",
		zap.String("child_id", childID),
		zap.Int("points", points),
		zap.String("type", string(txnType)),
		zap.Int("balance", newBalance))
	return txn, newBalance, nil
}

// ApplyRedemption debits the balance and creates the grant in one
// database transaction. The caller must hold the child's lock. A failed
// conditional debit surfaces as ErrLedgerConflict so the redemption
// layer can report insufficient funds instead of a system error.
func (s *LedgerService) ApplyRedemption(ctx context.Context, red *models.Redemption, reason string) (*models.PointTransaction, int, error) {
	txn := &models.PointTransaction{
		ChildID: red.ChildID,
		Points:  -red.PointsSpent,
		Type:    models.TransactionRedemption,
		Reason:  reason,
	}

	newBalance, err := s.repo.RedeemAtomically(ctx, txn, red)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrLedgerConflict, "insufficient balance for redemption")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply redemption")
	}

	_ = s.cache.InvalidateKeys(ctx, balanceCacheKey(red.ChildID))
	s.logger.Info("points redeemed",
		zap.String("child_id", red.ChildID),
		zap.Int("points", red.PointsSpent),
		zap.Int("minutes", red.MinutesGranted),
		zap.Int("balance", newBalance))
	return txn, newBalance, nil
}

// Balance returns the stored balance for a child.
func (s *LedgerService) Balance(ctx context.Context, childID string) (int, error) {
	child, err := s.childRepo.FindByID(ctx, childID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrChildNotFound, "child not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}
	return child.PointBalance, nil
}

// History pages through a child's ledger entries, newest first.
func (s *LedgerService) History(ctx context.Context, filter models.TransactionFilter) ([]models.PointTransaction, int, error) {
	if _, err := s.childRepo.FindByID(ctx, filter.ChildID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrChildNotFound, "child not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	txns, total, err := s.txnRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return txns, total, nil
}

// Reconcile recomputes the transaction sum and compares it to the
// stored balance. Mismatches are reported, never patched.
func (s *LedgerService) Reconcile(ctx context.Context, childID string) (*models.ReconciliationReport, error) {
	unlock := s.locks.lock(childID)
	defer unlock()

	child, err := s.childRepo.FindByID(ctx, childID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrChildNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	computed, err := s.repo.SumPoints(ctx, childID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum transactions")
	}

	report := &models.ReconciliationReport{
		ChildID:         childID,
		StoredBalance:   child.PointBalance,
		ComputedBalance: computed,
		Consistent:      child.PointBalance == computed,
		CheckedAt:       time.Now().UTC(),
	}
	if !report.Consistent {
		s.logger.Error("ledger balance mismatch",
			zap.String("child_id", childID),
			zap.Int("stored", report.StoredBalance),
			zap.Int("computed", report.ComputedBalance))
	}
	return report, nil
}
