package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/famtime/rewards-api/internal/models"
)

// SettingsRepository persists per-family policy.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs a SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Find fetches the stored settings for a family. Callers translate
// sql.ErrNoRows into default settings; absence is not an error at the
// service layer.
func (r *SettingsRepository) Find(ctx context.Context, familyID string) (*models.FamilySettings, error) {
	const query = `SELECT family_id, validation_level, daily_limit_minutes, bedtime_start, bedtime_end, restricted_categories, parent_pin_hash, updated_at
        FROM family_settings WHERE family_id = $1`
	var s models.FamilySettings
	row := r.db.QueryRowxContext(ctx, query, familyID)
	if err := row.Scan(
		&s.FamilyID,
		&s.ValidationLevel,
		&s.DailyTimeLimitMinutes,
		&s.BedtimeStart,
		&s.BedtimeEnd,
		pq.Array(&s.RestrictedCategories),
		&s.ParentPinHash,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert stores the full settings row for a family.
func (r *SettingsRepository) Upsert(ctx context.Context, s *models.FamilySettings) error {
	s.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO family_settings (family_id, validation_level, daily_limit_minutes, bedtime_start, bedtime_end, restricted_categories, parent_pin_hash, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (family_id)
        DO UPDATE SET validation_level = EXCLUDED.validation_level,
            daily_limit_minutes = EXCLUDED.daily_limit_minutes,
            bedtime_start = EXCLUDED.bedtime_start,
            bedtime_end = EXCLUDED.bedtime_end,
            restricted_categories = EXCLUDED.restricted_categories,
            parent_pin_hash = EXCLUDED.parent_pin_hash,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query,
		s.FamilyID,
		s.ValidationLevel,
		s.DailyTimeLimitMinutes,
		s.BedtimeStart,
		s.BedtimeEnd,
		pq.Array(s.RestrictedCategories),
		s.ParentPinHash,
		s.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert family settings: %w", err)
	}
	return nil
}
