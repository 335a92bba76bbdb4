package dto

import "github.com/famtime/rewards-api/internal/models"

// UpdateSettingsRequest replaces a family's policy. ParentPin must
// match the stored PIN when one is configured.
type UpdateSettingsRequest struct {
	ValidationLevel       models.ValidationLevel `json:"validationLevel" validate:"omitempty,oneof=lenient moderate strict"`
	DailyTimeLimitMinutes int                    `json:"dailyTimeLimitMinutes" validate:"min=0"`
	BedtimeStart          *string                `json:"bedtimeStart" validate:"omitempty,len=5"`
	BedtimeEnd            *string                `json:"bedtimeEnd" validate:"omitempty,len=5"`
	RestrictedCategories  []string               `json:"restrictedCategories"`
	ParentPin             string                 `json:"parentPin,omitempty"`
}

// SetPinRequest configures or rotates the parent PIN.
type SetPinRequest struct {
	CurrentPin string `json:"currentPin,omitempty"`
	NewPin     string `json:"newPin" validate:"required,min=4,max=12"`
}
