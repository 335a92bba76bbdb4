package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/famtime/rewards-api/internal/models"
)

// LedgerRepository owns every balance-affecting write. Each operation
// couples the ledger entry with its balance delta in one database
// transaction so the child row and the transaction log can never
// drift apart.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Credit appends a transaction and applies its delta to the child's
// balance. Negative adjustments that would take the balance below zero
// fail with sql.ErrNoRows, as do credits for unknown children.
func (r *LedgerRepository) Credit(ctx context.Context, txn *models.PointTransaction) (int, error) {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	earnedDelta := 0
	if txn.Type == models.TransactionEarn && txn.Points > 0 {
		earnedDelta = txn.Points
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin credit: %w", err)
	}

	const updateQuery = `UPDATE children
        SET point_balance = point_balance + $1,
            total_points_earned = total_points_earned + $2,
            updated_at = $3
        WHERE id = $4 AND point_balance + $1 >= 0
        RETURNING point_balance`
	var newBalance int
	if err := tx.QueryRowxContext(ctx, updateQuery, txn.Points, earnedDelta, txn.CreatedAt, txn.ChildID).Scan(&newBalance); err != nil {
		tx.Rollback() //nolint:errcheck
		if err == sql.ErrNoRows {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("apply credit: %w", err)
	}

	const insertQuery = `INSERT INTO point_transactions (id, child_id, points, type, reason, session_id, redemption_id, created_at)
        VALUES (:id, :child_id, :points, :type, :reason, :session_id, :redemption_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, txn); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit credit: %w", err)
	}
	return newBalance, nil
}

// RedeemAtomically debits the balance, appends the spend transaction
// and creates the redemption in one database transaction. The debit is
// conditional on sufficient funds; when another writer drained the
// balance first the whole operation fails with sql.ErrNoRows and no
// row is touched.
func (r *LedgerRepository) RedeemAtomically(ctx context.Context, txn *models.PointTransaction, red *models.Redemption) (int, error) {
	now := time.Now().UTC()
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	if red.ID == "" {
		red.ID = uuid.NewString()
	}
	txn.RedemptionID = &red.ID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin redeem: %w", err)
	}

	const debitQuery = `UPDATE children
        SET point_balance = point_balance - $1, updated_at = $2
        WHERE id = $3 AND point_balance >= $1
        RETURNING point_balance`
	var newBalance int
	if err := tx.QueryRowxContext(ctx, debitQuery, red.PointsSpent, now, red.ChildID).Scan(&newBalance); err != nil {
		tx.Rollback() //nolint:errcheck
		if err == sql.ErrNoRows {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("debit balance: %w", err)
	}

	const txnQuery = `INSERT INTO point_transactions (id, child_id, points, type, reason, session_id, redemption_id, created_at)
        VALUES (:id, :child_id, :points, :type, :reason, :session_id, :redemption_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, txnQuery, txn); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("insert spend transaction: %w", err)
	}

	const redQuery = `INSERT INTO redemptions (id, child_id, app_id, points_spent, minutes_granted, minutes_used, conversion_rate, status, redeemed_at, expires_at)
        VALUES (:id, :child_id, :app_id, :points_spent, :minutes_granted, :minutes_used, :conversion_rate, :status, :redeemed_at, :expires_at)`
	if _, err := tx.NamedExecContext(ctx, redQuery, red); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("insert redemption: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit redeem: %w", err)
	}
	return newBalance, nil
}

// SumPoints recomputes the transaction total for a child.
func (r *LedgerRepository) SumPoints(ctx context.Context, childID string) (int, error) {
	const query = `SELECT COALESCE(SUM(points), 0) FROM point_transactions WHERE child_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, childID); err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return total, nil
}
