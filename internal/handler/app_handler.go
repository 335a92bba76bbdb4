package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
	"github.com/famtime/rewards-api/pkg/response"
)

type appService interface {
	Register(ctx context.Context, req dto.RegisterAppRequest) (*models.AppCategorization, error)
	Get(ctx context.Context, id string) (*models.AppCategorization, error)
	List(ctx context.Context, filter models.AppFilter) ([]models.AppCategorization, error)
	Update(ctx context.Context, id string, req dto.UpdateAppRequest) (*models.AppCategorization, error)
}

// AppHandler manages the per-family app catalog.
type AppHandler struct {
	service appService
}

// NewAppHandler constructs the handler.
func NewAppHandler(service appService) *AppHandler {
	return &AppHandler{service: service}
}

// Register godoc
// @Summary Register an app for a family
// @Tags Apps
// @Accept json
// @Produce json
// @Param payload body dto.RegisterAppRequest true "App payload"
// @Success 201 {object} response.Envelope
// @Router /apps [post]
func (h *AppHandler) Register(c *gin.Context) {
	var req dto.RegisterAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	app, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// Get godoc
// @Summary Get app catalog entry
// @Tags Apps
// @Produce json
// @Param id path string true "App catalog ID"
// @Success 200 {object} response.Envelope
// @Router /apps/{id} [get]
func (h *AppHandler) Get(c *gin.Context) {
	app, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// List godoc
// @Summary List a family's registered apps
// @Tags Apps
// @Produce json
// @Param familyId query string true "Family ID"
// @Param category query string false "Filter by category (learning|reward)"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /apps [get]
func (h *AppHandler) List(c *gin.Context) {
	var filter models.AppFilter
	filter.FamilyID = c.Query("familyId")
	filter.Category = models.AppCategory(c.Query("category"))
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be a boolean"))
			return
		}
		filter.Active = &active
	}
	page, limit := pageParams(c)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	apps, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// Update godoc
// @Summary Update app catalog entry
// @Tags Apps
// @Accept json
// @Produce json
// @Param id path string true "App catalog ID"
// @Param payload body dto.UpdateAppRequest true "App payload"
// @Success 200 {object} response.Envelope
// @Router /apps/{id} [put]
func (h *AppHandler) Update(c *gin.Context) {
	var req dto.UpdateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	app, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}
