package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
)

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Meta       map[string]interface{} `json:"meta"`
	Pagination map[string]interface{} `json:"pagination"`
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

type sessionServiceMock struct {
	session    *models.UsageSession
	result     *models.ValidationResult
	queued     bool
	recordErr  error
	getErr     error
	list       []models.UsageSession
	listTotal  int
	lastFilter models.SessionFilter
}

func (m *sessionServiceMock) RecordSession(ctx context.Context, req dto.RecordSessionRequest) (*models.UsageSession, *models.ValidationResult, bool, error) {
	return m.session, m.result, m.queued, m.recordErr
}

func (m *sessionServiceMock) GetSession(ctx context.Context, id string) (*models.UsageSession, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.session, nil
}

func (m *sessionServiceMock) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.UsageSession, int, error) {
	m.lastFilter = filter
	return m.list, m.listTotal, nil
}

func recordSessionPayload(t *testing.T) []byte {
	t.Helper()
	start := time.Date(2026, time.March, 14, 15, 10, 0, 0, time.UTC)
	payload, err := json.Marshal(dto.RecordSessionRequest{
		ChildID:   "child-1",
		AppID:     "com.example.mathquest",
		AppName:   "Math Quest",
		Category:  models.CategoryLearning,
		StartedAt: start,
		EndedAt:   start.Add(20 * time.Minute),
	})
	require.NoError(t, err)
	return payload
}

func TestSessionHandlerRecordQueued(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &sessionServiceMock{
		session: &models.UsageSession{ID: "sess-1"},
		queued:  true,
	}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/sessions", recordSessionPayload(t))
	handler.Record(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "sess-1", envelope.Data["sessionId"])
	assert.Equal(t, true, envelope.Data["queued"])
}

func TestSessionHandlerRecordInline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	points := 6
	mockSvc := &sessionServiceMock{
		session: &models.UsageSession{ID: "sess-1", PointsEarned: &points},
		result:  &models.ValidationResult{IsValid: true, ConfidenceLevel: 1.0, AdjustmentFactor: 1.0},
	}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/sessions", recordSessionPayload(t))
	handler.Record(c)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, float64(6), envelope.Data["pointsEarned"])
	validation, ok := envelope.Data["validation"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, validation["isValid"])
}

func TestSessionHandlerRecordBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSessionHandler(&sessionServiceMock{})

	c, w := newGinContext(http.MethodPost, "/sessions", []byte(`{"childId":`))
	handler.Record(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandlerRecordUnknownChild(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &sessionServiceMock{recordErr: appErrors.Clone(appErrors.ErrChildNotFound, "child not found")}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/sessions", recordSessionPayload(t))
	handler.Record(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "CHILD_NOT_FOUND", envelope.Error["code"])
}

func TestSessionHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &sessionServiceMock{session: &models.UsageSession{ID: "sess-1", ChildID: "child-1"}}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/sessions/sess-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "sess-1", envelope.Data["id"])
}

func TestSessionHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &sessionServiceMock{getErr: appErrors.Clone(appErrors.ErrSessionNotFound, "usage session not found")}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/sessions/sess-404", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-404"}}
	handler.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandlerListBuildsFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &sessionServiceMock{listTotal: 7}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/sessions?childId=child-1&category=learning&validated=true&from=2026-03-01&page=2&limit=10", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "child-1", mockSvc.lastFilter.ChildID)
	assert.Equal(t, models.CategoryLearning, mockSvc.lastFilter.Category)
	require.NotNil(t, mockSvc.lastFilter.Validated)
	assert.True(t, *mockSvc.lastFilter.Validated)
	require.NotNil(t, mockSvc.lastFilter.From)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), mockSvc.lastFilter.From.UTC())
	assert.Equal(t, 10, mockSvc.lastFilter.Limit)
	assert.Equal(t, 10, mockSvc.lastFilter.Offset)

	envelope := decodeEnvelope(t, w)
	assert.Equal(t, float64(2), envelope.Pagination["page"])
	assert.Equal(t, float64(7), envelope.Pagination["total_count"])
}

func TestSessionHandlerListRejectsBadQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSessionHandler(&sessionServiceMock{})

	c, w := newGinContext(http.MethodGet, "/sessions?validated=maybe", nil)
	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodGet, "/sessions?from=tomorrow", nil)
	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
