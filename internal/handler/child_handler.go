package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/middleware"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
	"github.com/famtime/rewards-api/pkg/response"
)

type childService interface {
	Create(ctx context.Context, req dto.CreateChildRequest) (*models.ChildProfile, error)
	Get(ctx context.Context, id string) (*models.ChildProfile, error)
	ListByFamily(ctx context.Context, familyID string) ([]models.ChildProfile, error)
	Balance(ctx context.Context, childID string) (*dto.BalanceResponse, bool, error)
	Summary(ctx context.Context, childID string) (*models.ChildSummary, error)
}

type childLedger interface {
	History(ctx context.Context, filter models.TransactionFilter) ([]models.PointTransaction, int, error)
	Reconcile(ctx context.Context, childID string) (*models.ReconciliationReport, error)
}

type childRedemptions interface {
	ListForChild(ctx context.Context, filter models.RedemptionFilter) ([]models.Redemption, error)
}

// ChildHandler exposes child profiles and their ledger views.
type ChildHandler struct {
	children    childService
	ledger      childLedger
	redemptions childRedemptions
}

// NewChildHandler constructs the handler.
func NewChildHandler(children childService, ledger childLedger, redemptions childRedemptions) *ChildHandler {
	return &ChildHandler{children: children, ledger: ledger, redemptions: redemptions}
}

// Create godoc
// @Summary Register a child profile
// @Tags Children
// @Accept json
// @Produce json
// @Param payload body dto.CreateChildRequest true "Child payload"
// @Success 201 {object} response.Envelope
// @Router /children [post]
func (h *ChildHandler) Create(c *gin.Context) {
	var req dto.CreateChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	child, err := h.children.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, child)
}

// Get godoc
// @Summary Get child profile
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Router /children/{id} [get]
func (h *ChildHandler) Get(c *gin.Context) {
	child, err := h.children.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, child, nil)
}

// List godoc
// @Summary List children of a family
// @Tags Children
// @Produce json
// @Param familyId query string true "Family ID"
// @Success 200 {object} response.Envelope
// @Router /children [get]
func (h *ChildHandler) List(c *gin.Context) {
	familyID := strings.TrimSpace(c.Query("familyId"))
	if familyID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "familyId is required"))
		return
	}
	children, err := h.children.ListByFamily(c.Request.Context(), familyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, children, nil)
}

// Balance godoc
// @Summary Current point balance
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Router /children/{id}/balance [get]
func (h *ChildHandler) Balance(c *gin.Context) {
	start := time.Now()
	balance, cacheHit, err := h.children.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.MarkCacheHit(c, cacheHit)
	meta := middleware.Meta(c)
	meta[middleware.MetaProcessingTimeMS] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, balance, nil, meta)
}

// Summary godoc
// @Summary Child dashboard summary
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Router /children/{id}/summary [get]
func (h *ChildHandler) Summary(c *gin.Context) {
	summary, err := h.children.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Transactions godoc
// @Summary Child transaction history
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Param type query string false "Filter by transaction type"
// @Param from query string false "Transactions at or after (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Transactions before (RFC3339 or YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /children/{id}/transactions [get]
func (h *ChildHandler) Transactions(c *gin.Context) {
	filter := models.TransactionFilter{ChildID: c.Param("id")}
	filter.Type = models.TransactionType(c.Query("type"))
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

	txns, total, err := h.ledger.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: page, PageSize: limit, TotalCount: total}
	response.JSON(c, http.StatusOK, txns, pagination)
}

// Redemptions godoc
// @Summary Child redemption history
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Param active query bool false "Only active grants"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /children/{id}/redemptions [get]
func (h *ChildHandler) Redemptions(c *gin.Context) {
	filter := models.RedemptionFilter{ChildID: c.Param("id")}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be a boolean"))
			return
		}
		filter.ActiveOnly = active
	}
	filter.Status = models.RedemptionStatus(c.Query("status"))

	page, limit := pageParams(c)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	reds, err := h.redemptions.ListForChild(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.RedemptionResponse, 0, len(reds))
	for i := range reds {
		out = append(out, dto.NewRedemptionResponse(&reds[i]))
	}
	response.JSON(c, http.StatusOK, out, nil)
}

// Reconcile godoc
// @Summary Recompute and verify the child's balance
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Router /children/{id}/reconcile [post]
func (h *ChildHandler) Reconcile(c *gin.Context) {
	report, err := h.ledger.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
