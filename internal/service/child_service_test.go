package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
)

type stubCacheRepo struct {
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.store, key)
	}
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	return nil
}

type mockChildDirectory struct {
	children map[string]*models.ChildProfile
	seq      int
	finds    int
}

func newMockChildDirectory() *mockChildDirectory {
	return &mockChildDirectory{children: make(map[string]*models.ChildProfile)}
}

func (m *mockChildDirectory) Create(ctx context.Context, child *models.ChildProfile) error {
	m.seq++
	child.ID = fmt.Sprintf("child-%d", m.seq)
	stored := *child
	m.children[child.ID] = &stored
	return nil
}

func (m *mockChildDirectory) FindByID(ctx context.Context, id string) (*models.ChildProfile, error) {
	m.finds++
	if child, ok := m.children[id]; ok {
		cp := *child
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChildDirectory) ListByFamily(ctx context.Context, familyID string) ([]models.ChildProfile, error) {
	var children []models.ChildProfile
	for _, child := range m.children {
		if child.FamilyID == familyID {
			children = append(children, *child)
		}
	}
	return children, nil
}

func TestChildServiceCreate(t *testing.T) {
	dir := newMockChildDirectory()
	svc := NewChildService(dir, &mockRedemptionRepo{}, &mockLedgerTxns{}, nil, nil, zap.NewNop())

	child, err := svc.Create(context.Background(), dto.CreateChildRequest{FamilyID: "fam-1", Name: "Mika"})
	require.NoError(t, err)
	assert.NotEmpty(t, child.ID)
	assert.Equal(t, "fam-1", child.FamilyID)
	assert.Zero(t, child.PointBalance)
	assert.Zero(t, child.TotalPointsEarned)
}

func TestChildServiceCreateValidation(t *testing.T) {
	svc := NewChildService(newMockChildDirectory(), &mockRedemptionRepo{}, &mockLedgerTxns{}, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), dto.CreateChildRequest{FamilyID: "fam-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestChildServiceGetUnknown(t *testing.T) {
	svc := NewChildService(newMockChildDirectory(), &mockRedemptionRepo{}, &mockLedgerTxns{}, nil, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "child-404")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrChildNotFound.Code, appErrors.FromError(err).Code)
}

func TestChildServiceListByFamily(t *testing.T) {
	dir := newMockChildDirectory()
	svc := NewChildService(dir, &mockRedemptionRepo{}, &mockLedgerTxns{}, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), dto.CreateChildRequest{FamilyID: "fam-1", Name: "Mika"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), dto.CreateChildRequest{FamilyID: "fam-1", Name: "Noor"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), dto.CreateChildRequest{FamilyID: "fam-2", Name: "Ada"})
	require.NoError(t, err)

	children, err := svc.ListByFamily(context.Background(), "fam-1")
	require.NoError(t, err)
	assert.Len(t, children, 2)
}

func TestChildServiceBalanceCaching(t *testing.T) {
	dir := newMockChildDirectory()
	dir.children["child-1"] = &models.ChildProfile{ID: "child-1", FamilyID: "fam-1", Name: "Mika", PointBalance: 80, TotalPointsEarned: 200}
	cache := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewChildService(dir, &mockRedemptionRepo{}, &mockLedgerTxns{}, cache, nil, zap.NewNop())

	ctx := context.Background()
	resp, cached, err := svc.Balance(ctx, "child-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 80, resp.PointBalance)
	assert.Equal(t, 200, resp.TotalPointsEarned)
	assert.Equal(t, 1, dir.finds)

	again, cached, err := svc.Balance(ctx, "child-1")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, resp, again)
	assert.Equal(t, 1, dir.finds)
}

func TestChildServiceBalanceWithoutCache(t *testing.T) {
	dir := newMockChildDirectory()
	dir.children["child-1"] = &models.ChildProfile{ID: "child-1", FamilyID: "fam-1", Name: "Mika", PointBalance: 80}
	svc := NewChildService(dir, &mockRedemptionRepo{}, &mockLedgerTxns{}, nil, nil, zap.NewNop())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, cached, err := svc.Balance(ctx, "child-1")
		require.NoError(t, err)
		assert.False(t, cached)
	}
	assert.Equal(t, 2, dir.finds)
}

func TestChildServiceBalanceUnknownChild(t *testing.T) {
	svc := NewChildService(newMockChildDirectory(), &mockRedemptionRepo{}, &mockLedgerTxns{}, nil, nil, zap.NewNop())

	_, _, err := svc.Balance(context.Background(), "child-404")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrChildNotFound.Code, appErrors.FromError(err).Code)
}

func TestChildServiceSummary(t *testing.T) {
	dir := newMockChildDirectory()
	dir.children["child-1"] = &models.ChildProfile{ID: "child-1", FamilyID: "fam-1", Name: "Mika", PointBalance: 80}
	now := time.Now().UTC()
	redemptions := &mockRedemptionRepo{
		listResult: []models.Redemption{
			{ID: "red-1", ChildID: "child-1", Status: models.RedemptionActive, MinutesGranted: 15, ExpiresAt: now.Add(time.Hour)},
		},
		outstanding: 25,
	}
	txns := &mockLedgerTxns{
		items: []models.PointTransaction{
			{ID: "txn-2", ChildID: "child-1", Points: -50, Type: models.TransactionRedemption},
			{ID: "txn-1", ChildID: "child-1", Points: 125, Type: models.TransactionEarn},
		},
		total: 2,
	}
	svc := NewChildService(dir, redemptions, txns, nil, nil, zap.NewNop())

	summary, err := svc.Summary(context.Background(), "child-1")
	require.NoError(t, err)
	require.NotNil(t, summary.Child)
	assert.Equal(t, "Mika", summary.Child.Name)
	assert.Len(t, summary.ActiveRedemptions, 1)
	assert.Len(t, summary.RecentTransactions, 2)
	assert.Equal(t, 25, summary.OutstandingMinutesToday)
}

func TestChildServiceSummaryUnknownChild(t *testing.T) {
	svc := NewChildService(newMockChildDirectory(), &mockRedemptionRepo{}, &mockLedgerTxns{}, nil, nil, zap.NewNop())

	_, err := svc.Summary(context.Background(), "child-404")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrChildNotFound.Code, appErrors.FromError(err).Code)
}

func TestChildServiceSummaryPropagatesReadErrors(t *testing.T) {
	dir := newMockChildDirectory()
	dir.children["child-1"] = &models.ChildProfile{ID: "child-1", FamilyID: "fam-1", Name: "Mika"}
	txns := &mockLedgerTxns{err: assert.AnError}
	svc := NewChildService(dir, &mockRedemptionRepo{}, txns, nil, nil, zap.NewNop())

	_, err := svc.Summary(context.Background(), "child-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
