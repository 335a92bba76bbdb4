package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/famtime/rewards-api/internal/models"
	"github.com/famtime/rewards-api/pkg/export"
	"github.com/famtime/rewards-api/pkg/storage"
)

type statementLedgerReader interface {
	ListForStatement(ctx context.Context, childID string, from, to *time.Time) ([]models.PointTransaction, error)
	SumPointsBefore(ctx context.Context, childID string, before time.Time) (int, error)
}

type statementChildReader interface {
	FindByID(ctx context.Context, id string) (*models.ChildProfile, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes statement export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.StatementFormat
	ExpiresAt    time.Time
}

// ExportService renders ledger statements and persists the files.
type ExportService struct {
	ledger   statementLedgerReader
	children statementChildReader
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(ledger statementLedgerReader, children statementChildReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		ledger:   ledger,
		children: children,
		storage:  store,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate builds the statement dataset for the job and stores the
// rendered file.
func (s *ExportService) Generate(ctx context.Context, job *models.StatementJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job.Params)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.StatementFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.StatementFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/statements/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored statement file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.StatementJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	childPart := sanitizeFilename(job.Params.ChildID)
	return fmt.Sprintf("statement_%s_%s.%s", childPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// buildDataset assembles a chronological ledger statement with a
// running balance between the opening and closing lines.
func (s *ExportService) buildDataset(ctx context.Context, params models.StatementParams) (export.Dataset, string, error) {
	child, err := s.children.FindByID(ctx, params.ChildID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load child for statement: %w", err)
	}

	opening := 0
	if params.From != nil {
		opening, err = s.ledger.SumPointsBefore(ctx, params.ChildID, *params.From)
		if err != nil {
			return export.Dataset{}, "", err
		}
	}

	txns, err := s.ledger.ListForStatement(ctx, params.ChildID, params.From, params.To)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([]map[string]string, 0, len(txns)+2)
	rows = append(rows, map[string]string{
		"Date":        formatStatementTime(params.From),
		"Type":        "",
		"Description": "Opening balance",
		"Points":      "",
		"Balance":     fmt.Sprintf("%d", opening),
	})

	running := opening
	for _, txn := range txns {
		running += txn.Points
		created := txn.CreatedAt
		rows = append(rows, map[string]string{
			"Date":        formatStatementTime(&created),
			"Type":        string(txn.Type),
			"Description": txn.Reason,
			"Points":      fmt.Sprintf("%+d", txn.Points),
			"Balance":     fmt.Sprintf("%d", running),
		})
	}

	rows = append(rows, map[string]string{
		"Date":        formatStatementTime(params.To),
		"Type":        "",
		"Description": "Closing balance",
		"Points":      "",
		"Balance":     fmt.Sprintf("%d", running),
	})

	dataset := export.Dataset{
		Headers:        []string{"Date", "Type", "Description", "Points", "Balance"},
		Rows:           rows,
		Subtitle:       statementPeriod(params.From, params.To),
		NumericColumns: []string{"Points", "Balance"},
	}
	title := fmt.Sprintf("Point Statement %s", child.Name)
	return dataset, title, nil
}

func statementPeriod(from, to *time.Time) string {
	switch {
	case from != nil && to != nil:
		return fmt.Sprintf("%s to %s", from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	case from != nil:
		return fmt.Sprintf("from %s", from.UTC().Format("2006-01-02"))
	case to != nil:
		return fmt.Sprintf("until %s", to.UTC().Format("2006-01-02"))
	default:
		return "full history"
	}
}

func formatStatementTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
