package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
)

type childServiceMock struct {
	child      *models.ChildProfile
	childErr   error
	children   []models.ChildProfile
	balance    *dto.BalanceResponse
	balanceHit bool
	balanceErr error
	summary    *models.ChildSummary
	summaryErr error
}

func (m *childServiceMock) Create(ctx context.Context, req dto.CreateChildRequest) (*models.ChildProfile, error) {
	return m.child, m.childErr
}

func (m *childServiceMock) Get(ctx context.Context, id string) (*models.ChildProfile, error) {
	return m.child, m.childErr
}

func (m *childServiceMock) ListByFamily(ctx context.Context, familyID string) ([]models.ChildProfile, error) {
	return m.children, nil
}

func (m *childServiceMock) Balance(ctx context.Context, childID string) (*dto.BalanceResponse, bool, error) {
	return m.balance, m.balanceHit, m.balanceErr
}

func (m *childServiceMock) Summary(ctx context.Context, childID string) (*models.ChildSummary, error) {
	return m.summary, m.summaryErr
}

type childLedgerMock struct {
	txns       []models.PointTransaction
	total      int
	report     *models.ReconciliationReport
	lastFilter models.TransactionFilter
}

func (m *childLedgerMock) History(ctx context.Context, filter models.TransactionFilter) ([]models.PointTransaction, int, error) {
	m.lastFilter = filter
	return m.txns, m.total, nil
}

func (m *childLedgerMock) Reconcile(ctx context.Context, childID string) (*models.ReconciliationReport, error) {
	return m.report, nil
}

type childRedemptionsMock struct {
	reds       []models.Redemption
	lastFilter models.RedemptionFilter
}

func (m *childRedemptionsMock) ListForChild(ctx context.Context, filter models.RedemptionFilter) ([]models.Redemption, error) {
	m.lastFilter = filter
	return m.reds, nil
}

func TestChildHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &childServiceMock{child: &models.ChildProfile{ID: "child-1", FamilyID: "fam-1", Name: "Mika"}}
	handler := NewChildHandler(mockSvc, &childLedgerMock{}, &childRedemptionsMock{})

	payload, err := json.Marshal(dto.CreateChildRequest{FamilyID: "fam-1", Name: "Mika"})
	require.NoError(t, err)
	c, w := newGinContext(http.MethodPost, "/children", payload)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "child-1", envelope.Data["id"])
}

func TestChildHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &childServiceMock{childErr: appErrors.Clone(appErrors.ErrChildNotFound, "child not found")}
	handler := NewChildHandler(mockSvc, &childLedgerMock{}, &childRedemptionsMock{})

	c, w := newGinContext(http.MethodGet, "/children/child-404", nil)
	c.Params = gin.Params{{Key: "id", Value: "child-404"}}
	handler.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestChildHandlerListRequiresFamily(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewChildHandler(&childServiceMock{}, &childLedgerMock{}, &childRedemptionsMock{})

	c, w := newGinContext(http.MethodGet, "/children", nil)
	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChildHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &childServiceMock{children: []models.ChildProfile{{ID: "child-1"}, {ID: "child-2"}}}
	handler := NewChildHandler(mockSvc, &childLedgerMock{}, &childRedemptionsMock{})

	c, w := newGinContext(http.MethodGet, "/children?familyId=fam-1", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestChildHandlerBalanceReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &childServiceMock{
		balance:    &dto.BalanceResponse{ChildID: "child-1", PointBalance: 80, TotalPointsEarned: 200},
		balanceHit: true,
	}
	handler := NewChildHandler(mockSvc, &childLedgerMock{}, &childRedemptionsMock{})

	c, w := newGinContext(http.MethodGet, "/children/child-1/balance", nil)
	c.Params = gin.Params{{Key: "id", Value: "child-1"}}
	handler.Balance(c)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, float64(80), envelope.Data["pointBalance"])
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestChildHandlerSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &childServiceMock{
		summary: &models.ChildSummary{
			Child:                   &models.ChildProfile{ID: "child-1", Name: "Mika", PointBalance: 80},
			ActiveRedemptions:       []models.Redemption{{ID: "red-1"}},
			OutstandingMinutesToday: 25,
		},
	}
	handler := NewChildHandler(mockSvc, &childLedgerMock{}, &childRedemptionsMock{})

	c, w := newGinContext(http.MethodGet, "/children/child-1/summary", nil)
	c.Params = gin.Params{{Key: "id", Value: "child-1"}}
	handler.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, float64(25), envelope.Data["outstandingMinutesToday"])
}

func TestChildHandlerTransactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := &childLedgerMock{
		txns:  []models.PointTransaction{{ID: "txn-1", Points: 125}},
		total: 31,
	}
	handler := NewChildHandler(&childServiceMock{}, ledger, &childRedemptionsMock{})

	c, w := newGinContext(http.MethodGet, "/children/child-1/transactions?type=earn&page=2&limit=15", nil)
	c.Params = gin.Params{{Key: "id", Value: "child-1"}}
	handler.Transactions(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "child-1", ledger.lastFilter.ChildID)
	assert.Equal(t, models.TransactionEarn, ledger.lastFilter.Type)
	assert.Equal(t, 15, ledger.lastFilter.Limit)
	assert.Equal(t, 15, ledger.lastFilter.Offset)

	// data is a JSON array here, which responseEnvelope's map-typed Data
	// field cannot decode; read pagination directly.
	var envelope struct {
		Pagination map[string]interface{} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, float64(31), envelope.Pagination["total_count"])
}

func TestChildHandlerTransactionsRejectsBadRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewChildHandler(&childServiceMock{}, &childLedgerMock{}, &childRedemptionsMock{})

	c, w := newGinContext(http.MethodGet, "/children/child-1/transactions?from=yesterday", nil)
	c.Params = gin.Params{{Key: "id", Value: "child-1"}}
	handler.Transactions(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChildHandlerRedemptions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now().UTC()
	redemptions := &childRedemptionsMock{
		reds: []models.Redemption{
			{
				ID:             "red-1",
				ChildID:        "child-1",
				MinutesGranted: 5,
				MinutesUsed:    2,
				Status:         models.RedemptionActive,
				RedeemedAt:     now.Add(-time.Hour),
				ExpiresAt:      now.Add(23 * time.Hour),
			},
		},
	}
	handler := NewChildHandler(&childServiceMock{}, &childLedgerMock{}, redemptions)

	c, w := newGinContext(http.MethodGet, "/children/child-1/redemptions?active=true", nil)
	c.Params = gin.Params{{Key: "id", Value: "child-1"}}
	handler.Redemptions(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "child-1", redemptions.lastFilter.ChildID)
	assert.True(t, redemptions.lastFilter.ActiveOnly)
}

func TestChildHandlerRedemptionsRejectsBadActive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewChildHandler(&childServiceMock{}, &childLedgerMock{}, &childRedemptionsMock{})

	c, w := newGinContext(http.MethodGet, "/children/child-1/redemptions?active=soon", nil)
	c.Params = gin.Params{{Key: "id", Value: "child-1"}}
	handler.Redemptions(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChildHandlerReconcile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := &childLedgerMock{
		report: &models.ReconciliationReport{ChildID: "child-1", StoredBalance: 75, ComputedBalance: 75, Consistent: true},
	}
	handler := NewChildHandler(&childServiceMock{}, ledger, &childRedemptionsMock{})

	c, w := newGinContext(http.MethodPost, "/children/child-1/reconcile", nil)
	c.Params = gin.Params{{Key: "id", Value: "child-1"}}
	handler.Reconcile(c)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, true, envelope.Data["consistent"])
}
