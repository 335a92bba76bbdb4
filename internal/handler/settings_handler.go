package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
	"github.com/famtime/rewards-api/pkg/response"
)

type settingsService interface {
	Resolve(ctx context.Context, familyID string) (*models.FamilySettings, error)
	Update(ctx context.Context, familyID string, req dto.UpdateSettingsRequest) (*models.FamilySettings, error)
	SetPin(ctx context.Context, familyID string, req dto.SetPinRequest) error
}

// SettingsHandler manages per-family policy.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler constructs the handler.
func NewSettingsHandler(service settingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// Get godoc
// @Summary Resolve family settings
// @Description Families without stored settings receive the defaults.
// @Tags Settings
// @Produce json
// @Param id path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Router /families/{id}/settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.service.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Update godoc
// @Summary Replace family settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param id path string true "Family ID"
// @Param payload body dto.UpdateSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /families/{id}/settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	settings, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// SetPin godoc
// @Summary Configure or rotate the parent PIN
// @Tags Settings
// @Accept json
// @Param id path string true "Family ID"
// @Param payload body dto.SetPinRequest true "PIN payload"
// @Success 204
// @Router /families/{id}/settings/pin [post]
func (h *SettingsHandler) SetPin(c *gin.Context) {
	var req dto.SetPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.SetPin(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
