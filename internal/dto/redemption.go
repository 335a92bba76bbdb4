package dto

import (
	"time"

	"github.com/famtime/rewards-api/internal/models"
)

// RedeemRequest asks to exchange points for minutes in a reward app.
type RedeemRequest struct {
	ChildID string `json:"childId" validate:"required"`
	AppID   string `json:"appId" validate:"required"`
	Points  int    `json:"points" validate:"required,gt=0"`
}

// QuoteRequest asks how many points a number of minutes would cost.
type QuoteRequest struct {
	ChildID string `json:"childId" validate:"required"`
	AppID   string `json:"appId" validate:"required"`
	Minutes int    `json:"minutes" validate:"required,gt=0"`
}

// QuoteResponse returns the point price for the requested minutes.
type QuoteResponse struct {
	AppID          string  `json:"appId"`
	Minutes        int     `json:"minutes"`
	RequiredPoints int     `json:"requiredPoints"`
	ConversionRate float64 `json:"conversionRate"`
	Affordable     bool    `json:"affordable"`
}

// UsageReportRequest reports consumed minutes for an active redemption.
type UsageReportRequest struct {
	MinutesUsed int `json:"minutesUsed" validate:"min=0"`
}

// RedeemResult pairs the economic decision with the grant produced on
// success. Declined attempts return the decision alone with HTTP 200.
type RedeemResult struct {
	Decision *models.RedemptionDecision `json:"decision"`
	Grant    *models.RedemptionGrant    `json:"grant,omitempty"`
}

// RedemptionResponse serializes one redemption with its effective,
// lazily expired status.
type RedemptionResponse struct {
	ID               string                  `json:"id"`
	ChildID          string                  `json:"childId"`
	AppID            string                  `json:"appId"`
	PointsSpent      int                     `json:"pointsSpent"`
	MinutesGranted   int                     `json:"minutesGranted"`
	MinutesUsed      int                     `json:"minutesUsed"`
	MinutesRemaining int                     `json:"minutesRemaining"`
	ConversionRate   float64                 `json:"conversionRate"`
	Status           models.RedemptionStatus `json:"status"`
	RedeemedAt       string                  `json:"redeemedAt"`
	ExpiresAt        string                  `json:"expiresAt"`
}

// NewRedemptionResponse maps a redemption row onto the wire shape.
func NewRedemptionResponse(red *models.Redemption) RedemptionResponse {
	return RedemptionResponse{
		ID:               red.ID,
		ChildID:          red.ChildID,
		AppID:            red.AppID,
		PointsSpent:      red.PointsSpent,
		MinutesGranted:   red.MinutesGranted,
		MinutesUsed:      red.MinutesUsed,
		MinutesRemaining: red.MinutesRemaining(),
		ConversionRate:   red.ConversionRate,
		Status:           red.Status,
		RedeemedAt:       red.RedeemedAt.UTC().Format(time.RFC3339),
		ExpiresAt:        red.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
