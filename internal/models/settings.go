package models

import "time"

// FamilySettings holds per-family policy consumed by validation and
// redemption. A family with no stored row gets DefaultFamilySettings;
// missing configuration is never an error.
type FamilySettings struct {
	FamilyID              string          `db:"family_id" json:"familyId"`
	ValidationLevel       ValidationLevel `db:"validation_level" json:"validationLevel"`
	DailyTimeLimitMinutes int             `db:"daily_limit_minutes" json:"dailyTimeLimitMinutes"`
	BedtimeStart          *string         `db:"bedtime_start" json:"bedtimeStart,omitempty"`
	BedtimeEnd            *string         `db:"bedtime_end" json:"bedtimeEnd,omitempty"`
	RestrictedCategories  []string        `db:"-" json:"restrictedCategories,omitempty"`
	ParentPinHash         *string         `db:"parent_pin_hash" json:"-"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updatedAt"`
}

// DefaultFamilySettings is the policy applied when a family has not
// configured anything: moderate validation, no daily limit, no bedtime
// window, no restricted categories.
func DefaultFamilySettings(familyID string) *FamilySettings {
	return &FamilySettings{
		FamilyID:        familyID,
		ValidationLevel: ValidationModerate,
	}
}

// HasBedtimeWindow reports whether both bounds of the bedtime window
// are configured.
func (s *FamilySettings) HasBedtimeWindow() bool {
	return s != nil && s.BedtimeStart != nil && *s.BedtimeStart != "" &&
		s.BedtimeEnd != nil && *s.BedtimeEnd != ""
}

// HasParentPin reports whether a parent PIN gate is configured.
func (s *FamilySettings) HasParentPin() bool {
	return s != nil && s.ParentPinHash != nil && *s.ParentPinHash != ""
}
