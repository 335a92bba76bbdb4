package dto

import (
	"time"

	"github.com/famtime/rewards-api/internal/models"
)

// RecordSessionRequest is posted by the device monitor when an app
// session ends.
type RecordSessionRequest struct {
	ChildID   string             `json:"childId" validate:"required"`
	AppID     string             `json:"appId" validate:"required"`
	AppName   string             `json:"appName"`
	Category  models.AppCategory `json:"category" validate:"required,oneof=learning reward"`
	StartedAt time.Time          `json:"startedAt" validate:"required"`
	EndedAt   time.Time          `json:"endedAt" validate:"required"`
}

// SessionAcceptedResponse is returned after a session is queued for
// background processing.
type SessionAcceptedResponse struct {
	SessionID string `json:"sessionId"`
	Queued    bool   `json:"queued"`
}

// SessionOutcomeResponse is returned when a session is processed
// inline.
type SessionOutcomeResponse struct {
	SessionID    string                   `json:"sessionId"`
	PointsEarned int                      `json:"pointsEarned"`
	Validation   *models.ValidationResult `json:"validation,omitempty"`
}

// SessionQuery mirrors supported session listing filters.
type SessionQuery struct {
	ChildID  string
	AppID    string
	Category models.AppCategory
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
