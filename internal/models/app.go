package models

import "time"

// AppCategorization registers an app for a family along with its
// economic parameters: how fast it earns (learning apps) and how much a
// minute of it costs (reward apps).
type AppCategorization struct {
	ID             string      `db:"id" json:"id"`
	FamilyID       string      `db:"family_id" json:"familyId"`
	AppID          string      `db:"app_id" json:"appId"`
	Name           string      `db:"name" json:"name"`
	Category       AppCategory `db:"category" json:"category"`
	PointsPerHour  int         `db:"points_per_hour" json:"pointsPerHour"`
	ConversionRate float64     `db:"conversion_rate" json:"conversionRate"`
	Active         bool        `db:"active" json:"active"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`
}

// AppFilter constrains app catalog queries.
type AppFilter struct {
	FamilyID string
	Category AppCategory
	Active   *bool
	Limit    int
	Offset   int
}
