package dto

import (
	"time"

	"github.com/famtime/rewards-api/internal/models"
)

// StatementRequest captures POST /statements payload.
type StatementRequest struct {
	ChildID string                 `json:"childId" validate:"required"`
	Format  models.StatementFormat `json:"format" validate:"required,oneof=csv pdf"`
	From    *time.Time             `json:"from,omitempty"`
	To      *time.Time             `json:"to,omitempty"`
}

// StatementJobResponse is returned after enqueueing a statement export.
type StatementJobResponse struct {
	ID       string                 `json:"id"`
	Status   models.StatementStatus `json:"status"`
	Progress int                    `json:"progress"`
}

// StatementStatusResponse exposes job progress metadata.
type StatementStatusResponse struct {
	ID        string                 `json:"id"`
	Status    models.StatementStatus `json:"status"`
	Progress  int                    `json:"progress"`
	ResultURL *string                `json:"resultUrl,omitempty"`
	Error     *string                `json:"error,omitempty"`
}
