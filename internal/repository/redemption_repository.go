package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/famtime/rewards-api/internal/models"
)

// RedemptionRepository reads and advances redemption grants. Creation
// happens through LedgerRepository.RedeemAtomically so the debit and
// the grant always land together.
type RedemptionRepository struct {
	db *sqlx.DB
}

// NewRedemptionRepository constructs a RedemptionRepository.
func NewRedemptionRepository(db *sqlx.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// FindByID fetches a redemption by ID.
func (r *RedemptionRepository) FindByID(ctx context.Context, id string) (*models.Redemption, error) {
	const query = `SELECT id, child_id, app_id, points_spent, minutes_granted, minutes_used, conversion_rate, status, redeemed_at, expires_at
        FROM redemptions WHERE id = $1`
	var red models.Redemption
	if err := r.db.GetContext(ctx, &red, query, id); err != nil {
		return nil, err
	}
	return &red, nil
}

// List returns redemptions matching the filter, newest first. The
// ActiveOnly filter excludes grants whose expiry window has passed even
// when their stored status has not been flipped yet.
func (r *RedemptionRepository) List(ctx context.Context, filter models.RedemptionFilter) ([]models.Redemption, error) {
	base := "FROM redemptions WHERE child_id = $1"
	args := []interface{}{filter.ChildID}

	if filter.Status != "" {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.ActiveOnly {
		base += fmt.Sprintf(" AND status = '%s' AND expires_at > $%d", models.RedemptionActive, len(args)+1)
		args = append(args, time.Now().UTC())
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT id, child_id, app_id, points_spent, minutes_granted, minutes_used, conversion_rate, status, redeemed_at, expires_at
        %s ORDER BY redeemed_at DESC LIMIT %d OFFSET %d`, base, limit, offset)

	var reds []models.Redemption
	if err := r.db.SelectContext(ctx, &reds, query, args...); err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	return reds, nil
}

// OutstandingMinutes sums the unconsumed minutes of live grants
// redeemed at or after the given cutoff.
func (r *RedemptionRepository) OutstandingMinutes(ctx context.Context, childID string, since, now time.Time) (int, error) {
	const query = `SELECT COALESCE(SUM(minutes_granted - minutes_used), 0)
        FROM redemptions
        WHERE child_id = $1 AND status = $2 AND redeemed_at >= $3 AND expires_at > $4`
	var minutes int
	if err := r.db.GetContext(ctx, &minutes, query, childID, models.RedemptionActive, since, now); err != nil {
		return 0, fmt.Errorf("sum outstanding minutes: %w", err)
	}
	return minutes, nil
}

// AdvanceUsage raises minutes_used monotonically and flips the grant to
// used once the granted minutes are consumed. Only live grants move:
// terminal or expired rows are left untouched and the call reports
// sql.ErrNoRows so the caller can inspect the stored state.
func (r *RedemptionRepository) AdvanceUsage(ctx context.Context, id string, minutesUsed int, now time.Time) (*models.Redemption, error) {
	const query = `UPDATE redemptions
        SET minutes_used = LEAST(GREATEST(minutes_used, $1), minutes_granted),
            status = CASE WHEN GREATEST(minutes_used, $1) >= minutes_granted THEN 'used' ELSE status END
        WHERE id = $2 AND status = 'active' AND expires_at > $3
        RETURNING id, child_id, app_id, points_spent, minutes_granted, minutes_used, conversion_rate, status, redeemed_at, expires_at`
	var red models.Redemption
	if err := r.db.QueryRowxContext(ctx, query, minutesUsed, id, now).StructScan(&red); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("advance redemption usage: %w", err)
	}
	return &red, nil
}

// CountActive counts live grants across all children at the given
// instant. Used by the metrics gauge.
func (r *RedemptionRepository) CountActive(ctx context.Context, now time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM redemptions WHERE status = $1 AND expires_at > $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.RedemptionActive, now); err != nil {
		return 0, fmt.Errorf("count active redemptions: %w", err)
	}
	return count, nil
}

// ExpireDue flips stored-active grants past their window to expired.
// Readers already treat such rows as expired; the sweep keeps storage
// convergent for reporting queries.
func (r *RedemptionRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE redemptions SET status = $1 WHERE status = $2 AND expires_at <= $3`
	res, err := r.db.ExecContext(ctx, query, models.RedemptionExpired, models.RedemptionActive, now)
	if err != nil {
		return 0, fmt.Errorf("expire redemptions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire redemptions affected: %w", err)
	}
	return affected, nil
}
