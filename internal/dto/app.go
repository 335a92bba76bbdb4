package dto

import "github.com/famtime/rewards-api/internal/models"

// RegisterAppRequest adds an app to a family's catalog with its
// economic parameters. Zero PointsPerHour or ConversionRate fall back
// to the configured defaults.
type RegisterAppRequest struct {
	FamilyID       string             `json:"familyId" validate:"required"`
	AppID          string             `json:"appId" validate:"required"`
	Name           string             `json:"name" validate:"required"`
	Category       models.AppCategory `json:"category" validate:"required,oneof=learning reward"`
	PointsPerHour  int                `json:"pointsPerHour" validate:"min=0"`
	ConversionRate float64            `json:"conversionRate" validate:"min=0"`
}

// UpdateAppRequest adjusts an app's catalog entry.
type UpdateAppRequest struct {
	Name           *string             `json:"name,omitempty"`
	Category       *models.AppCategory `json:"category,omitempty" validate:"omitempty,oneof=learning reward"`
	PointsPerHour  *int                `json:"pointsPerHour,omitempty" validate:"omitempty,min=0"`
	ConversionRate *float64            `json:"conversionRate,omitempty" validate:"omitempty,min=0"`
	Active         *bool               `json:"active,omitempty"`
}
