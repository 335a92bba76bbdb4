package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/service"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
	"github.com/famtime/rewards-api/pkg/response"
)

type statementService interface {
	CreateJob(ctx context.Context, req dto.StatementRequest) (*dto.StatementJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.StatementStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.StatementDownload, error)
}

// StatementHandler exposes asynchronous ledger statement exports.
type StatementHandler struct {
	service statementService
}

// NewStatementHandler constructs the handler.
func NewStatementHandler(service statementService) *StatementHandler {
	return &StatementHandler{service: service}
}

// Create godoc
// @Summary Request a point statement export
// @Tags Statements
// @Accept json
// @Produce json
// @Param payload body dto.StatementRequest true "Statement payload"
// @Success 202 {object} response.Envelope
// @Router /statements [post]
func (h *StatementHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "statement service not configured"))
		return
	}
	var req dto.StatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Statement job status
// @Tags Statements
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /statements/status/{id} [get]
func (h *StatementHandler) Status(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "statement service not configured"))
		return
	}
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished statement via signed token
// @Tags Statements
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /statements/download/{token} [get]
func (h *StatementHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "statement service not configured"))
		return
	}
	result, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
