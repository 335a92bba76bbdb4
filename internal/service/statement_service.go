package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/famtime/rewards-api/internal/dto"
	"github.com/famtime/rewards-api/internal/models"
	"github.com/famtime/rewards-api/internal/repository"
	appErrors "github.com/famtime/rewards-api/pkg/errors"
	"github.com/famtime/rewards-api/pkg/jobs"
)

// StatementJobType names statement export jobs on the queue.
const StatementJobType = "statement-export"

type statementJobStore interface {
	Create(ctx context.Context, job *models.StatementJob) error
	GetByID(ctx context.Context, id string) (*models.StatementJob, error)
	Update(ctx context.Context, id string, params repository.UpdateStatementJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.StatementJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.StatementJob, error)
}

type statementDispatcher interface {
	Enqueue(job jobs.Job) error
}

type statementGenerator interface {
	Generate(ctx context.Context, job *models.StatementJob) (*ExportResult, error)
}

// StatementService orchestrates ledger statement job lifecycle
// management.
type StatementService struct {
	repo      statementJobStore
	children  statementChildReader
	queue     statementDispatcher
	exporter  *ExportService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       StatementServiceConfig
}

// StatementServiceConfig governs queue recovery and cleanup.
type StatementServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// StatementDownload aggregates resolved download data.
type StatementDownload struct {
	File      *os.File
	Filename  string
	Format    models.StatementFormat
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// NewStatementService constructs the statement service.
func NewStatementService(repo statementJobStore, children statementChildReader, queue statementDispatcher, exporter *ExportService, validate *validator.Validate, logger *zap.Logger, cfg StatementServiceConfig) *StatementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &StatementService{
		repo:      repo,
		children:  children,
		queue:     queue,
		exporter:  exporter,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob validates the request, persists the job, and enqueues
// processing.
func (s *StatementService) CreateJob(ctx context.Context, req dto.StatementRequest) (*dto.StatementJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid statement request")
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "statement period end must not precede start")
	}
	if _, err := s.children.FindByID(ctx, req.ChildID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrChildNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child profile")
	}

	job := &models.StatementJob{
		Params: models.StatementParams{
			ChildID: req.ChildID,
			Format:  req.Format,
			From:    req.From,
			To:      req.To,
		},
		Status:   models.StatementStatusQueued,
		Progress: 0,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create statement job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: StatementJobType}); err != nil {
		status := models.StatementStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateStatementJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue statement job")
	}
	return &dto.StatementJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients.
func (s *StatementService) GetStatus(ctx context.Context, id string) (*dto.StatementStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStatementNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statement job")
	}
	resp := &dto.StatementStatusResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored statement
// file.
func (s *StatementService) ResolveDownload(ctx context.Context, token string) (*StatementDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStatementNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statement job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.StatementStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "statement not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open statement file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat statement file")
	}
	return &StatementDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		MimeType:  statementMimeType(job.Params.Format),
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func statementMimeType(format models.StatementFormat) string {
	if format == models.StatementFormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// RecoverPendingJobs replays queued jobs (e.g. after process restart).
func (s *StatementService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued statement jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: StatementJobType}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending statement job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired statement files
// periodically.
func (s *StatementService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *StatementService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
		if err != nil {
			s.logger.Sugar().Warnw("statement cleanup list failed", "error", err)
			return
		}
		if len(expired) == 0 {
			break
		}
		for _, job := range expired {
			if job.ResultURL == nil {
				continue
			}
			token := extractToken(*job.ResultURL)
			if token == "" {
				continue
			}
			_, relPath, _, err := s.exporter.ParseToken(token, true)
			if err != nil {
				continue
			}
			if err := s.exporter.Delete(relPath); err != nil {
				s.logger.Sugar().Warnw("statement cleanup delete failed", "job_id", job.ID, "error", err)
			}
		}
		if len(expired) < 100 {
			break
		}
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("statement filesystem cleanup failed", "error", err)
	}
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// StatementWorker bridges queue jobs to the exporter.
type StatementWorker struct {
	repo       statementJobStore
	exporter   statementGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewStatementWorker constructs a worker.
func NewStatementWorker(repo statementJobStore, exporter statementGenerator, maxRetries int, logger *zap.Logger) *StatementWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &StatementWorker{
		repo:       repo,
		exporter:   exporter,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *StatementWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.StatementStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateStatementJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.StatementStatusFailed
			progress = 100
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateStatementJobParams{
				Status:       &failed,
				Progress:     &progress,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark statement job failed", "job_id", job.ID, "error", updateErr)
			}
		} else {
			queued := models.StatementStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateStatementJobParams{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark statement job queued", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}
	finished := models.StatementStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateStatementJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark statement job finished", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}
