package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	"github.com/famtime/rewards-api/internal/service"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
)

type statementServiceMock struct {
	job         *dto.StatementJobResponse
	jobErr      error
	status      *dto.StatementStatusResponse
	statusErr   error
	download    *service.StatementDownload
	downloadErr error
	lastToken   string
}

func (m *statementServiceMock) CreateJob(ctx context.Context, req dto.StatementRequest) (*dto.StatementJobResponse, error) {
	return m.job, m.jobErr
}

func (m *statementServiceMock) GetStatus(ctx context.Context, id string) (*dto.StatementStatusResponse, error) {
	return m.status, m.statusErr
}

func (m *statementServiceMock) ResolveDownload(ctx context.Context, token string) (*service.StatementDownload, error) {
	m.lastToken = token
	return m.download, m.downloadErr
}

func TestStatementHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &statementServiceMock{
		job: &dto.StatementJobResponse{ID: "stmt-1", Status: models.StatementStatusQueued, Progress: 0},
	}
	handler := NewStatementHandler(mockSvc)

	payload, err := json.Marshal(dto.StatementRequest{ChildID: "child-1", Format: models.StatementFormatCSV})
	require.NoError(t, err)
	c, w := newGinContext(http.MethodPost, "/statements", payload)
	handler.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "stmt-1", envelope.Data["id"])
	assert.Equal(t, "QUEUED", envelope.Data["status"])
}

func TestStatementHandlerCreateBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStatementHandler(&statementServiceMock{})

	c, w := newGinContext(http.MethodPost, "/statements", []byte(`{"childId"`))
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatementHandlerCreateValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &statementServiceMock{jobErr: appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")}
	handler := NewStatementHandler(mockSvc)

	payload, err := json.Marshal(dto.StatementRequest{ChildID: "child-1", Format: "xlsx"})
	require.NoError(t, err)
	c, w := newGinContext(http.MethodPost, "/statements", payload)
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error["code"])
}

func TestStatementHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	url := "/api/v1/statements/download/tok"
	mockSvc := &statementServiceMock{
		status: &dto.StatementStatusResponse{ID: "stmt-1", Status: models.StatementStatusFinished, Progress: 100, ResultURL: &url},
	}
	handler := NewStatementHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/statements/status/stmt-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "stmt-1"}}
	handler.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "FINISHED", envelope.Data["status"])
	assert.Equal(t, url, envelope.Data["resultUrl"])
}

func TestStatementHandlerStatusNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &statementServiceMock{statusErr: appErrors.Clone(appErrors.ErrStatementNotFound, "statement job not found")}
	handler := NewStatementHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/statements/status/stmt-404", nil)
	c.Params = gin.Params{{Key: "id", Value: "stmt-404"}}
	handler.Status(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatementHandlerDownloadStreamsFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp(t.TempDir(), "statement*.csv")
	require.NoError(t, err)
	_, err = file.WriteString("Date,Type,Description,Points,Balance\n")
	require.NoError(t, err)
	_, err = file.Seek(0, 0)
	require.NoError(t, err)

	mockSvc := &statementServiceMock{
		download: &service.StatementDownload{
			File:      file,
			Filename:  "statement_child-1_20260314_151000.csv",
			Format:    models.StatementFormatCSV,
			MimeType:  "text/csv",
			SizeBytes: int64(len("Date,Type,Description,Points,Balance\n")),
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewStatementHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/statements/download/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", mockSvc.lastToken)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "statement_child-1_20260314_151000.csv")
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Points,Balance")
}

func TestStatementHandlerDownloadForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &statementServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")}
	handler := NewStatementHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/statements/download/garbage", nil)
	c.Params = gin.Params{{Key: "token", Value: "garbage"}}
	handler.Download(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "FORBIDDEN", envelope.Error["code"])
}
