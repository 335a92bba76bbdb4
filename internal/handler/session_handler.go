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

type sessionService interface {
	RecordSession(ctx context.Context, req dto.RecordSessionRequest) (*models.UsageSession, *models.ValidationResult, bool, error)
	GetSession(ctx context.Context, id string) (*models.UsageSession, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.UsageSession, int, error)
}

// SessionHandler ingests device usage sessions and exposes their
// validation outcomes.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Record godoc
// @Summary Record a finished usage session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.RecordSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope "Validated inline"
// @Success 202 {object} response.Envelope "Queued for background validation"
// @Router /sessions [post]
func (h *SessionHandler) Record(c *gin.Context) {
	var req dto.RecordSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, result, queued, err := h.service.RecordSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if queued {
		response.Accepted(c, dto.SessionAcceptedResponse{SessionID: session.ID, Queued: true})
		return
	}
	outcome := dto.SessionOutcomeResponse{SessionID: session.ID, Validation: result}
	if session.PointsEarned != nil {
		outcome.PointsEarned = *session.PointsEarned
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Get godoc
// @Summary Get session by id
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// List godoc
// @Summary List usage sessions
// @Tags Sessions
// @Produce json
// @Param childId query string false "Filter by child"
// @Param appId query string false "Filter by app"
// @Param category query string false "Filter by category (learning|reward)"
// @Param validated query bool false "Filter by validation state"
// @Param from query string false "Sessions started at or after (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Sessions started before (RFC3339 or YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var filter models.SessionFilter
	filter.ChildID = c.Query("childId")
	filter.AppID = c.Query("appId")
	filter.Category = models.AppCategory(c.Query("category"))
	if raw := c.Query("validated"); raw != "" {
		validated, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "validated must be a boolean"))
			return
		}
		filter.Validated = &validated
	}
	from, ok := parseTimeParam(c.Query("from"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from timestamp"))
		return
	}
	to, ok := parseTimeParam(c.Query("to"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to timestamp"))
		return
	}
	filter.From = from
	filter.To = to

	page, limit := pageParams(c)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	sessions, total, err := h.service.ListSessions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: page, PageSize: limit, TotalCount: total}
	response.JSON(c, http.StatusOK, sessions, pagination)
}
