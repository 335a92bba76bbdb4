package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	"github.com/famtime/rewards-api/internal/repository"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
	"github.com/famtime/rewards-api/pkg/jobs"
	"github.com/famtime/rewards-api/pkg/storage"
)

type mockStatementJobs struct {
	items  map[string]*models.StatementJob
	seq    int
	queued []models.StatementJob
}

func (m *mockStatementJobs) Create(ctx context.Context, job *models.StatementJob) error {
	m.seq++
	if job.ID == "" {
		job.ID = fmt.Sprintf("stmt-%d", m.seq)
	}
	job.CreatedAt = time.Now().UTC()
	cp := *job
	m.items[job.ID] = &cp
	return nil
}

func (m *mockStatementJobs) GetByID(ctx context.Context, id string) (*models.StatementJob, error) {
	if job, ok := m.items[id]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStatementJobs) Update(ctx context.Context, id string, params repository.UpdateStatementJobParams) error {
	job, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockStatementJobs) ListQueued(ctx context.Context, limit int) ([]models.StatementJob, error) {
	return m.queued, nil
}

func (m *mockStatementJobs) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.StatementJob, error) {
	return nil, nil
}

type mockStatementLedger struct {
	txns    []models.PointTransaction
	opening int
}

func (m *mockStatementLedger) ListForStatement(ctx context.Context, childID string, from, to *time.Time) ([]models.PointTransaction, error) {
	return m.txns, nil
}

func (m *mockStatementLedger) SumPointsBefore(ctx context.Context, childID string, before time.Time) (int, error) {
	return m.opening, nil
}

type mockStatementGenerator struct {
	result *ExportResult
	err    error
	calls  int
}

func (m *mockStatementGenerator) Generate(ctx context.Context, job *models.StatementJob) (*ExportResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type statementFixture struct {
	jobs     *mockStatementJobs
	queue    *mockSessionQueue
	children *mockLedgerChildren
	ledger   *mockStatementLedger
	signer   *storage.SignedURLSigner
	exporter *ExportService
	svc      *StatementService
	worker   *StatementWorker
}

func newStatementFixture(t *testing.T) *statementFixture {
	t.Helper()
	_, children := oneChildLedger(100)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("statement-secret", time.Hour)
	ledger := &mockStatementLedger{}
	exporter := NewExportService(ledger, children, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), nil, nil)
	jobStore := &mockStatementJobs{items: map[string]*models.StatementJob{}}
	queue := &mockSessionQueue{}
	svc := NewStatementService(jobStore, children, queue, exporter, validator.New(), zap.NewNop(), StatementServiceConfig{})
	worker := NewStatementWorker(jobStore, exporter, 3, zap.NewNop())
	return &statementFixture{
		jobs:     jobStore,
		queue:    queue,
		children: children,
		ledger:   ledger,
		signer:   signer,
		exporter: exporter,
		svc:      svc,
		worker:   worker,
	}
}

func TestStatementServiceCreateJob(t *testing.T) {
	f := newStatementFixture(t)

	resp, err := f.svc.CreateJob(context.Background(), dto.StatementRequest{
		ChildID: "child-1", Format: models.StatementFormatCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatementStatusQueued, resp.Status)
	assert.Equal(t, 0, resp.Progress)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, resp.ID, f.queue.jobs[0].ID)
	assert.Equal(t, StatementJobType, f.queue.jobs[0].Type)
}

func TestStatementServiceCreateJobValidation(t *testing.T) {
	f := newStatementFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateJob(ctx, dto.StatementRequest{ChildID: "child-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateJob(ctx, dto.StatementRequest{ChildID: "child-1", Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	from := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(-24 * time.Hour)
	_, err = f.svc.CreateJob(ctx, dto.StatementRequest{ChildID: "child-1", Format: models.StatementFormatCSV, From: &from, To: &to})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateJob(ctx, dto.StatementRequest{ChildID: "ghost", Format: models.StatementFormatCSV})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrChildNotFound.Code, appErrors.FromError(err).Code)
}

func TestStatementServiceCreateJobEnqueueFailure(t *testing.T) {
	f := newStatementFixture(t)
	f.queue.err = fmt.Errorf("queue stopped")

	_, err := f.svc.CreateJob(context.Background(), dto.StatementRequest{
		ChildID: "child-1", Format: models.StatementFormatCSV,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	require.Len(t, f.jobs.items, 1)
	for _, job := range f.jobs.items {
		assert.Equal(t, models.StatementStatusFailed, job.Status)
		assert.Equal(t, 100, job.Progress)
		require.NotNil(t, job.ErrorMessage)
		assert.Equal(t, "failed to enqueue job", *job.ErrorMessage)
		assert.NotNil(t, job.FinishedAt)
	}
}

func TestStatementServiceGetStatus(t *testing.T) {
	f := newStatementFixture(t)

	_, err := f.svc.GetStatus(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStatementNotFound.Code, appErrors.FromError(err).Code)

	url := "/api/v1/statements/download/tok"
	f.jobs.items["stmt-1"] = &models.StatementJob{
		ID: "stmt-1", Status: models.StatementStatusFinished, Progress: 100, ResultURL: &url,
	}
	resp, err := f.svc.GetStatus(context.Background(), "stmt-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatementStatusFinished, resp.Status)
	require.NotNil(t, resp.ResultURL)
	assert.Equal(t, url, *resp.ResultURL)
	assert.Nil(t, resp.Error)

	msg := "render exploded"
	f.jobs.items["stmt-2"] = &models.StatementJob{
		ID: "stmt-2", Status: models.StatementStatusFailed, Progress: 100, ErrorMessage: &msg,
	}
	resp, err = f.svc.GetStatus(context.Background(), "stmt-2")
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, msg, *resp.Error)
}

func TestStatementFlowGeneratesAndServesDownload(t *testing.T) {
	f := newStatementFixture(t)
	f.ledger.opening = 30
	earned := time.Date(2026, time.March, 11, 9, 30, 0, 0, time.UTC)
	spent := time.Date(2026, time.March, 12, 17, 45, 0, 0, time.UTC)
	f.ledger.txns = []models.PointTransaction{
		{ID: "txn-1", ChildID: "child-1", Points: 125, Type: models.TransactionEarn, Reason: "Validated usage of Math Quest", CreatedAt: earned},
		{ID: "txn-2", ChildID: "child-1", Points: -50, Type: models.TransactionRedemption, Reason: "Redeemed 5 min in Blocks World", CreatedAt: spent},
	}

	from := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 13, 0, 0, 0, 0, time.UTC)
	resp, err := f.svc.CreateJob(context.Background(), dto.StatementRequest{
		ChildID: "child-1", Format: models.StatementFormatCSV, From: &from, To: &to,
	})
	require.NoError(t, err)

	require.NoError(t, f.worker.Handle(context.Background(), jobs.Job{ID: resp.ID, Type: StatementJobType, Attempt: 1}))

	status, err := f.svc.GetStatus(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatementStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.ResultURL)
	require.True(t, strings.HasPrefix(*status.ResultURL, "/api/v1/statements/download/"))

	token := strings.TrimPrefix(*status.ResultURL, "/api/v1/statements/download/")
	download, err := f.svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()

	assert.Equal(t, "text/csv", download.MimeType)
	assert.Greater(t, download.SizeBytes, int64(0))
	assert.True(t, strings.HasPrefix(download.Filename, "statement_child-1_"))
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Date,Type,Description,Points,Balance", lines[0])
	assert.Contains(t, lines[1], "Opening balance")
	assert.Contains(t, lines[1], "30")
	assert.Contains(t, lines[2], "+125")
	assert.Contains(t, lines[2], "155")
	assert.Contains(t, lines[3], "-50")
	assert.Contains(t, lines[3], "105")
	assert.Contains(t, lines[4], "Closing balance")
	assert.Contains(t, lines[4], "105")
}

func TestStatementServiceResolveDownloadGuards(t *testing.T) {
	f := newStatementFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResolveDownload(ctx, "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Well signed token, but no such job.
	orphan, _, err := f.signer.Generate("stmt-404", "orphan.csv")
	require.NoError(t, err)
	_, err = f.svc.ResolveDownload(ctx, orphan)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStatementNotFound.Code, appErrors.FromError(err).Code)

	// Job exists but its stored URL carries a different token.
	stray := "/api/v1/statements/download/other-token"
	mismatchToken, _, err := f.signer.Generate("stmt-1", "first.csv")
	require.NoError(t, err)
	f.jobs.items["stmt-1"] = &models.StatementJob{
		ID: "stmt-1", Status: models.StatementStatusFinished, Progress: 100, ResultURL: &stray,
	}
	_, err = f.svc.ResolveDownload(ctx, mismatchToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Matching token on a job that has not finished yet.
	pendingToken, _, err := f.signer.Generate("stmt-2", "pending.csv")
	require.NoError(t, err)
	pendingURL := "/api/v1/statements/download/" + pendingToken
	f.jobs.items["stmt-2"] = &models.StatementJob{
		ID: "stmt-2", Status: models.StatementStatusProcessing, Progress: 10, ResultURL: &pendingURL,
	}
	_, err = f.svc.ResolveDownload(ctx, pendingToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStatementWorkerRetriesBeforeFailing(t *testing.T) {
	jobStore := &mockStatementJobs{items: map[string]*models.StatementJob{
		"stmt-1": {ID: "stmt-1", Status: models.StatementStatusQueued, Params: models.StatementParams{ChildID: "child-1", Format: models.StatementFormatCSV}},
	}}
	generator := &mockStatementGenerator{err: fmt.Errorf("render exploded")}
	worker := NewStatementWorker(jobStore, generator, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "stmt-1", Type: StatementJobType, Attempt: 1})
	require.Error(t, err)
	job := jobStore.items["stmt-1"]
	assert.Equal(t, models.StatementStatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "render exploded", *job.ErrorMessage)
	assert.Nil(t, job.FinishedAt)

	err = worker.Handle(context.Background(), jobs.Job{ID: "stmt-1", Type: StatementJobType, Attempt: 3})
	require.Error(t, err)
	job = jobStore.items["stmt-1"]
	assert.Equal(t, models.StatementStatusFailed, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.FinishedAt)
	assert.Equal(t, 2, generator.calls)
}

func TestStatementServiceRecoverPendingJobs(t *testing.T) {
	f := newStatementFixture(t)
	f.jobs.queued = []models.StatementJob{
		{ID: "stmt-1", Status: models.StatementStatusQueued},
		{ID: "stmt-2", Status: models.StatementStatusQueued},
	}

	f.svc.RecoverPendingJobs(context.Background())
	require.Len(t, f.queue.jobs, 2)
	assert.Equal(t, "stmt-1", f.queue.jobs[0].ID)
	assert.Equal(t, "stmt-2", f.queue.jobs[1].ID)
}
