package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/famtime/rewards-api/internal/models"
)

// AppRepository manages the per-family app catalog.
type AppRepository struct {
	db *sqlx.DB
}

// NewAppRepository constructs an AppRepository.
func NewAppRepository(db *sqlx.DB) *AppRepository {
	return &AppRepository{db: db}
}

// Create registers an app for a family.
func (r *AppRepository) Create(ctx context.Context, app *models.AppCategorization) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	const query = `INSERT INTO app_categorizations (id, family_id, app_id, name, category, points_per_hour, conversion_rate, active, created_at, updated_at)
        VALUES (:id, :family_id, :app_id, :name, :category, :points_per_hour, :conversion_rate, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create app categorization: %w", err)
	}
	return nil
}

// FindByID fetches a catalog entry by its row ID.
func (r *AppRepository) FindByID(ctx context.Context, id string) (*models.AppCategorization, error) {
	const query = `SELECT id, family_id, app_id, name, category, points_per_hour, conversion_rate, active, created_at, updated_at
        FROM app_categorizations WHERE id = $1`
	var app models.AppCategorization
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByFamilyApp resolves a catalog entry by family and platform app
// identifier, the key sessions arrive with.
func (r *AppRepository) FindByFamilyApp(ctx context.Context, familyID, appID string) (*models.AppCategorization, error) {
	const query = `SELECT id, family_id, app_id, name, category, points_per_hour, conversion_rate, active, created_at, updated_at
        FROM app_categorizations WHERE family_id = $1 AND app_id = $2`
	var app models.AppCategorization
	if err := r.db.GetContext(ctx, &app, query, familyID, appID); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns catalog entries matching the filter.
func (r *AppRepository) List(ctx context.Context, filter models.AppFilter) ([]models.AppCategorization, error) {
	base := "FROM app_categorizations WHERE family_id = $1"
	args := []interface{}{filter.FamilyID}

	if filter.Category != "" {
		base += fmt.Sprintf(" AND category = $%d", len(args)+1)
		args = append(args, filter.Category)
	}
	if filter.Active != nil {
		base += fmt.Sprintf(" AND active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT id, family_id, app_id, name, category, points_per_hour, conversion_rate, active, created_at, updated_at
        %s ORDER BY name ASC LIMIT %d OFFSET %d`, base, limit, offset)

	var apps []models.AppCategorization
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, fmt.Errorf("list app categorizations: %w", err)
	}
	return apps, nil
}

// Update persists mutable catalog fields.
func (r *AppRepository) Update(ctx context.Context, app *models.AppCategorization) error {
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE app_categorizations
        SET name = :name, category = :category, points_per_hour = :points_per_hour,
            conversion_rate = :conversion_rate, active = :active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("update app categorization: %w", err)
	}
	return nil
}
