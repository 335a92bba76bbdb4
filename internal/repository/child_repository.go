package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/famtime/rewards-api/internal/models"
)

// ChildRepository manages persistence for child profiles.
type ChildRepository struct {
	db *sqlx.DB
}

// NewChildRepository constructs a ChildRepository.
func NewChildRepository(db *sqlx.DB) *ChildRepository {
	return &ChildRepository{db: db}
}

// Create inserts a new child profile with a zero balance.
func (r *ChildRepository) Create(ctx context.Context, child *models.ChildProfile) error {
	if child.ID == "" {
		child.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if child.CreatedAt.IsZero() {
		child.CreatedAt = now
	}
	child.UpdatedAt = now
	const query = `INSERT INTO children (id, family_id, name, point_balance, total_points_earned, created_at, updated_at)
        VALUES (:id, :family_id, :name, :point_balance, :total_points_earned, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, child); err != nil {
		return fmt.Errorf("create child: %w", err)
	}
	return nil
}

// FindByID fetches a child profile by ID.
func (r *ChildRepository) FindByID(ctx context.Context, id string) (*models.ChildProfile, error) {
	const query = `SELECT id, family_id, name, point_balance, total_points_earned, created_at, updated_at
        FROM children WHERE id = $1`
	var child models.ChildProfile
	if err := r.db.GetContext(ctx, &child, query, id); err != nil {
		return nil, err
	}
	return &child, nil
}

// ListByFamily returns all children registered for a family.
func (r *ChildRepository) ListByFamily(ctx context.Context, familyID string) ([]models.ChildProfile, error) {
	const query = `SELECT id, family_id, name, point_balance, total_points_earned, created_at, updated_at
        FROM children WHERE family_id = $1 ORDER BY created_at ASC`
	var children []models.ChildProfile
	if err := r.db.SelectContext(ctx, &children, query, familyID); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}
