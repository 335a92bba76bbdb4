package models

import "time"

// RedemptionStatus tracks the lifecycle of a point-to-time exchange.
// Active grants become used once their minutes are consumed or expired
// once their window passes; used and expired are terminal.
type RedemptionStatus string

const (
	RedemptionActive  RedemptionStatus = "active"
	RedemptionUsed    RedemptionStatus = "used"
	RedemptionExpired RedemptionStatus = "expired"
)

// Redemption records points exchanged for minutes in a reward app.
// Created atomically with its debit transaction; afterwards only
// minutes_used and status may change.
type Redemption struct {
	ID             string           `db:"id" json:"id"`
	ChildID        string           `db:"child_id" json:"childId"`
	AppID          string           `db:"app_id" json:"appId"`
	PointsSpent    int              `db:"points_spent" json:"pointsSpent"`
	MinutesGranted int              `db:"minutes_granted" json:"minutesGranted"`
	MinutesUsed    int              `db:"minutes_used" json:"minutesUsed"`
	ConversionRate float64          `db:"conversion_rate" json:"conversionRate"`
	Status         RedemptionStatus `db:"status" json:"status"`
	RedeemedAt     time.Time        `db:"redeemed_at" json:"redeemedAt"`
	ExpiresAt      time.Time        `db:"expires_at" json:"expiresAt"`
}

// EffectiveStatus applies lazy expiry: a stored-active grant past its
// expiry window reads as expired without a write.
func (r Redemption) EffectiveStatus(now time.Time) RedemptionStatus {
	if r.Status == RedemptionActive && now.After(r.ExpiresAt) {
		return RedemptionExpired
	}
	return r.Status
}

// MinutesRemaining returns the unconsumed minutes of the grant.
func (r Redemption) MinutesRemaining() int {
	remaining := r.MinutesGranted - r.MinutesUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RedemptionOutcome is the economic verdict of a redemption attempt.
// Outcomes are values, not errors: a declined redemption is a normal
// response, reserved error paths are for system failures only.
type RedemptionOutcome string

const (
	OutcomeSuccess              RedemptionOutcome = "success"
	OutcomeInsufficientPoints   RedemptionOutcome = "insufficientPoints"
	OutcomeInvalidApp           RedemptionOutcome = "invalidApp"
	OutcomeConversionRateNotSet RedemptionOutcome = "conversionRateNotSet"
	OutcomeTimeLimitExceeded    RedemptionOutcome = "timeLimitExceeded"
)

// RedemptionDecision is the result of validating a redemption request
// before (or while) committing it.
type RedemptionDecision struct {
	Outcome         RedemptionOutcome `json:"outcome"`
	Allowed         bool              `json:"allowed"`
	RequiredPoints  int               `json:"requiredPoints,omitempty"`
	AvailablePoints int               `json:"availablePoints,omitempty"`
	MinutesGranted  int               `json:"minutesGranted,omitempty"`
	CapRemaining    int               `json:"capRemainingMinutes,omitempty"`
	Message         string            `json:"message,omitempty"`
}

// RedemptionGrant is the success payload of a committed redemption.
type RedemptionGrant struct {
	Redemption       *Redemption `json:"redemption"`
	NewBalance       int         `json:"newBalance"`
	EntitlementToken string      `json:"entitlementToken,omitempty"`
}

// RedemptionFilter constrains redemption listing queries.
type RedemptionFilter struct {
	ChildID    string
	Status     RedemptionStatus
	ActiveOnly bool
	Limit      int
	Offset     int
}
