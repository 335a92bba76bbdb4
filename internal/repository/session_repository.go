package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/famtime/rewards-api/internal/models"
)

// SessionRepository persists usage sessions and their validation
// outcomes.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a freshly reported session. Identity and time bounds
// never change after this write.
func (r *SessionRepository) Create(ctx context.Context, session *models.UsageSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO usage_sessions (id, child_id, app_id, app_name, category, started_at, ended_at, validated, patterns, created_at)
        VALUES (:id, :child_id, :app_id, :app_name, :category, :started_at, :ended_at, :validated, :patterns, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID fetches a session by ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.UsageSession, error) {
	const query = `SELECT id, child_id, app_id, app_name, category, started_at, ended_at, validated,
        is_valid, validation_score, adjustment_factor, points_earned, patterns, created_at
        FROM usage_sessions WHERE id = $1`
	var session models.UsageSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions matching the filter, newest first.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.UsageSession, int, error) {
	base := "FROM usage_sessions WHERE 1=1"
	var args []interface{}

	if filter.ChildID != "" {
		base += fmt.Sprintf(" AND child_id = $%d", len(args)+1)
		args = append(args, filter.ChildID)
	}
	if filter.AppID != "" {
		base += fmt.Sprintf(" AND app_id = $%d", len(args)+1)
		args = append(args, filter.AppID)
	}
	if filter.Category != "" {
		base += fmt.Sprintf(" AND category = $%d", len(args)+1)
		args = append(args, filter.Category)
	}
	if filter.From != nil {
		base += fmt.Sprintf(" AND started_at >= $%d", len(args)+1)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		base += fmt.Sprintf(" AND started_at < $%d", len(args)+1)
		args = append(args, *filter.To)
	}
	if filter.Validated != nil {
		base += fmt.Sprintf(" AND validated = $%d", len(args)+1)
		args = append(args, *filter.Validated)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT id, child_id, app_id, app_name, category, started_at, ended_at, validated,
        is_valid, validation_score, adjustment_factor, points_earned, patterns, created_at
        %s ORDER BY started_at DESC LIMIT %d OFFSET %d`, base, limit, offset)

	var sessions []models.UsageSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// SaveValidationOutcome records the pipeline verdict for a session.
func (r *SessionRepository) SaveValidationOutcome(ctx context.Context, session *models.UsageSession) error {
	const query = `UPDATE usage_sessions
        SET validated = :validated, is_valid = :is_valid, validation_score = :validation_score,
            adjustment_factor = :adjustment_factor, points_earned = :points_earned, patterns = :patterns
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("save validation outcome: %w", err)
	}
	return nil
}
