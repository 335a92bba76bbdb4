package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
)

type settingsServiceMock struct {
	settings   *models.FamilySettings
	resolveErr error
	updateErr  error
	pinErr     error
	lastFamily string
	lastUpdate dto.UpdateSettingsRequest
	lastPin    dto.SetPinRequest
}

func (m *settingsServiceMock) Resolve(ctx context.Context, familyID string) (*models.FamilySettings, error) {
	m.lastFamily = familyID
	return m.settings, m.resolveErr
}

func (m *settingsServiceMock) Update(ctx context.Context, familyID string, req dto.UpdateSettingsRequest) (*models.FamilySettings, error) {
	m.lastFamily = familyID
	m.lastUpdate = req
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.settings, nil
}

func (m *settingsServiceMock) SetPin(ctx context.Context, familyID string, req dto.SetPinRequest) error {
	m.lastFamily = familyID
	m.lastPin = req
	return m.pinErr
}

func TestSettingsHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &settingsServiceMock{
		settings: &models.FamilySettings{FamilyID: "fam-1", ValidationLevel: models.ValidationStrict, DailyTimeLimitMinutes: 90},
	}
	handler := NewSettingsHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/families/fam-1/settings", nil)
	c.Params = gin.Params{{Key: "id", Value: "fam-1"}}
	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fam-1", mockSvc.lastFamily)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "strict", envelope.Data["validationLevel"])
	assert.Equal(t, float64(90), envelope.Data["dailyTimeLimitMinutes"])
}

func TestSettingsHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	start, end := "21:30", "07:00"
	mockSvc := &settingsServiceMock{
		settings: &models.FamilySettings{FamilyID: "fam-1", ValidationLevel: models.ValidationStrict, BedtimeStart: &start, BedtimeEnd: &end},
	}
	handler := NewSettingsHandler(mockSvc)

	payload, err := json.Marshal(dto.UpdateSettingsRequest{
		ValidationLevel: models.ValidationStrict,
		BedtimeStart:    &start,
		BedtimeEnd:      &end,
	})
	require.NoError(t, err)
	c, w := newGinContext(http.MethodPut, "/families/fam-1/settings", payload)
	c.Params = gin.Params{{Key: "id", Value: "fam-1"}}
	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ValidationStrict, mockSvc.lastUpdate.ValidationLevel)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "21:30", envelope.Data["bedtimeStart"])
}

func TestSettingsHandlerUpdateRejectsPinMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &settingsServiceMock{updateErr: appErrors.Clone(appErrors.ErrInvalidPin, "parent PIN does not match")}
	handler := NewSettingsHandler(mockSvc)

	payload, err := json.Marshal(dto.UpdateSettingsRequest{ValidationLevel: models.ValidationLenient})
	require.NoError(t, err)
	c, w := newGinContext(http.MethodPut, "/families/fam-1/settings", payload)
	c.Params = gin.Params{{Key: "id", Value: "fam-1"}}
	handler.Update(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "INVALID_PIN", envelope.Error["code"])
}

func TestSettingsHandlerSetPin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &settingsServiceMock{}
	handler := NewSettingsHandler(mockSvc)

	payload, err := json.Marshal(dto.SetPinRequest{NewPin: "4321"})
	require.NoError(t, err)
	c, w := newGinContext(http.MethodPost, "/families/fam-1/settings/pin", payload)
	c.Params = gin.Params{{Key: "id", Value: "fam-1"}}
	handler.SetPin(c)
	// gin defers c.Status writes until the engine finalizes the request;
	// flush explicitly since the handler is invoked without an engine.
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "4321", mockSvc.lastPin.NewPin)
	assert.Empty(t, w.Body.Bytes())
}

func TestSettingsHandlerSetPinBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSettingsHandler(&settingsServiceMock{})

	c, w := newGinContext(http.MethodPost, "/families/fam-1/settings/pin", []byte(`{"newPin":`))
	c.Params = gin.Params{{Key: "id", Value: "fam-1"}}
	handler.SetPin(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
