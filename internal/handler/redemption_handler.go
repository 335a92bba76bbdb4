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

type redemptionService interface {
	Redeem(ctx context.Context, req dto.RedeemRequest) (*models.RedemptionDecision, *models.RedemptionGrant, error)
	ValidateRedemption(ctx context.Context, req dto.RedeemRequest) (*models.RedemptionDecision, error)
	Quote(ctx context.Context, req dto.QuoteRequest) (*dto.QuoteResponse, error)
	ReportUsage(ctx context.Context, redemptionID string, req dto.UsageReportRequest) (*models.Redemption, error)
}

// RedemptionHandler exposes the spend side of the economy.
type RedemptionHandler struct {
	service redemptionService
}

// NewRedemptionHandler constructs the handler.
func NewRedemptionHandler(service redemptionService) *RedemptionHandler {
	return &RedemptionHandler{service: service}
}

// Redeem godoc
// @Summary Redeem points for screen time
// @Description Declined attempts are economic outcomes, not errors: the
// @Description response carries the decision with HTTP 200 and no grant.
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param payload body dto.RedeemRequest true "Redemption payload"
// @Success 200 {object} response.Envelope
// @Router /redemptions [post]
func (h *RedemptionHandler) Redeem(c *gin.Context) {
	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	decision, grant, err := h.service.Redeem(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.RedeemResult{Decision: decision, Grant: grant}, nil)
}

// Validate godoc
// @Summary Dry-run a redemption
// @Description Runs the full decision pipeline without spending points.
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param payload body dto.RedeemRequest true "Redemption payload"
// @Success 200 {object} response.Envelope
// @Router /redemptions/validate [post]
func (h *RedemptionHandler) Validate(c *gin.Context) {
	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	decision, err := h.service.ValidateRedemption(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// Quote godoc
// @Summary Quote the point cost of reward minutes
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param payload body dto.QuoteRequest true "Quote payload"
// @Success 200 {object} response.Envelope
// @Router /redemptions/quote [post]
func (h *RedemptionHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	quote, err := h.service.Quote(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quote, nil)
}

// ReportUsage godoc
// @Summary Report minutes consumed against a grant
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param id path string true "Redemption ID"
// @Param payload body dto.UsageReportRequest true "Usage payload"
// @Success 200 {object} response.Envelope
// @Router /redemptions/{id}/usage [put]
func (h *RedemptionHandler) ReportUsage(c *gin.Context) {
	var req dto.UsageReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	red, err := h.service.ReportUsage(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewRedemptionResponse(red), nil)
}
