package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/famtime/rewards-api/internal/models"
)

// TransactionRepository reads the append-only point ledger.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository constructs a TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// List returns ledger entries matching the filter, newest first, with
// the total match count for pagination.
func (r *TransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]models.PointTransaction, int, error) {
	base := "FROM point_transactions WHERE child_id = $1"
	args := []interface{}{filter.ChildID}

	if filter.Type != "" {
		base += fmt.Sprintf(" AND type = $%d", len(args)+1)
		args = append(args, filter.Type)
	}
	if filter.From != nil {
		base += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		base += fmt.Sprintf(" AND created_at < $%d", len(args)+1)
		args = append(args, *filter.To)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT id, child_id, points, type, reason, session_id, redemption_id, created_at
        %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, limit, offset)

	var txns []models.PointTransaction
	if err := r.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	return txns, total, nil
}

// ListForStatement returns a child's ledger entries in chronological
// order for statement rendering. Statements are bounded at 5000 rows.
func (r *TransactionRepository) ListForStatement(ctx context.Context, childID string, from, to *time.Time) ([]models.PointTransaction, error) {
	query := "SELECT id, child_id, points, type, reason, session_id, redemption_id, created_at FROM point_transactions WHERE child_id = $1"
	args := []interface{}{childID}

	if from != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		query += fmt.Sprintf(" AND created_at < $%d", len(args)+1)
		args = append(args, *to)
	}
	query += " ORDER BY created_at ASC LIMIT 5000"

	var txns []models.PointTransaction
	if err := r.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, fmt.Errorf("list statement transactions: %w", err)
	}
	return txns, nil
}

// SumPointsBefore totals a child's entries prior to the cutoff. Used as
// the opening balance of periodic statements.
func (r *TransactionRepository) SumPointsBefore(ctx context.Context, childID string, before time.Time) (int, error) {
	const query = `SELECT COALESCE(SUM(points), 0) FROM point_transactions WHERE child_id = $1 AND created_at < $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, childID, before); err != nil {
		return 0, fmt.Errorf("sum transactions before cutoff: %w", err)
	}
	return total, nil
}
