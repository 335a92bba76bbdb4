package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AppCategory distinguishes earning apps from spending apps.
type AppCategory string

const (
	CategoryLearning AppCategory = "learning"
	CategoryReward   AppCategory = "reward"
)

// Valid reports whether the category is one of the known values.
func (c AppCategory) Valid() bool {
	return c == CategoryLearning || c == CategoryReward
}

// UsageSession is a completed span of app usage reported by the device
// monitor. Start/end and identity are immutable once recorded; only the
// validation outcome fields are filled in after the pipeline runs.
type UsageSession struct {
	ID               string      `db:"id" json:"id"`
	ChildID          string      `db:"child_id" json:"childId"`
	AppID            string      `db:"app_id" json:"appId"`
	AppName          string      `db:"app_name" json:"appName"`
	Category         AppCategory `db:"category" json:"category"`
	StartedAt        time.Time   `db:"started_at" json:"startedAt"`
	EndedAt          time.Time   `db:"ended_at" json:"endedAt"`
	Validated        bool        `db:"validated" json:"validated"`
	IsValid          *bool       `db:"is_valid" json:"isValid,omitempty"`
	ValidationScore  *float64    `db:"validation_score" json:"validationScore,omitempty"`
	AdjustmentFactor *float64    `db:"adjustment_factor" json:"adjustmentFactor,omitempty"`
	PointsEarned     *int        `db:"points_earned" json:"pointsEarned,omitempty"`
	Patterns         PatternList `db:"patterns" json:"patterns,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`
}

// Duration returns the elapsed time covered by the session.
func (s UsageSession) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// DurationSeconds returns the session length in seconds.
func (s UsageSession) DurationSeconds() float64 {
	return s.Duration().Seconds()
}

// SessionFilter constrains session listing queries.
type SessionFilter struct {
	ChildID   string
	AppID     string
	Category  AppCategory
	From      *time.Time
	To        *time.Time
	Validated *bool
	Limit     int
	Offset    int
}

// PatternList stores detected gaming patterns as JSONB.
type PatternList []GamingPattern

// Value marshals the pattern list for persistence.
func (p PatternList) Value() (driver.Value, error) {
	if p == nil {
		p = PatternList{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal pattern list: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the pattern list.
func (p *PatternList) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for PatternList", value)
	}
	if len(data) == 0 {
		*p = nil
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal pattern list: %w", err)
	}
	return nil
}
