package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/eduvault/eduvault-api/internal/authz"
	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
	"github.com/eduvault/eduvault-api/pkg/export"
	"github.com/eduvault/eduvault-api/pkg/jobs"
	"github.com/eduvault/eduvault-api/pkg/storage"
)

type exportRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type catalogRepository interface {
	List(ctx context.Context, filter models.FileFilter, ownerScope string) ([]models.File, int, error)
}

type exportStorage interface {
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

// ExportConfig tunes catalog export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	Workers   int
	Retries   int
}

// ExportStatus is what clients poll while an export runs. The download
// URL only appears once the artifact is ready.
type ExportStatus struct {
	ID          string     `json:"id"`
	Format      string     `json:"format"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExportService renders catalog snapshots asynchronously. A request
// enqueues a job; workers pull the full file listing visible to the
// requester, render it to CSV or PDF and store the artifact behind a
// signed download URL.
type ExportService struct {
	repo      exportRepository
	catalog   catalogRepository
	storage   exportStorage
	signer    *storage.SignedURLSigner
	csv       csvRenderer
	pdf       pdfRenderer
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService and its worker queue.
func NewExportService(repo exportRepository, catalog catalogRepository, store exportStorage, signer *storage.SignedURLSigner, cfg ExportConfig, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}

	s := &ExportService{
		repo:      repo,
		catalog:   catalog,
		storage:   store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
	s.queue = jobs.NewQueue("catalog-exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

type exportPayload struct {
	JobID      string
	OwnerScope string
}

// Request records a new export job and enqueues it. Students cannot
// request exports.
func (s *ExportService) Request(ctx context.Context, claims *models.JWTClaims, req models.CreateExportRequest) (*ExportStatus, error) {
	if err := authz.RequireCreate(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	job := &models.ExportJob{
		RequestedBy: claims.UserID,
		Format:      req.Format,
		Status:      models.ExportStatusPending,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record export job")
	}

	if err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    "catalog-export",
		Payload: exportPayload{JobID: job.ID, OwnerScope: authz.OwnerScope(claims)},
	}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "export queue unavailable"); markErr != nil {
			s.logger.Warn("failed to mark unqueued export", zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	return s.status(job), nil
}

// Get returns the job status. The requester sees their own jobs;
// administrators and managers see everyone's.
func (s *ExportService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*ExportStatus, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export")
	}
	if job.RequestedBy != claims.UserID {
		if err := authz.RequireRole(claims, models.RoleAdmin, models.RoleManager); err != nil {
			return nil, err
		}
	}
	return s.status(job), nil
}

// ListMine returns the caller's recent export jobs.
func (s *ExportService) ListMine(ctx context.Context, claims *models.JWTClaims, limit int) ([]ExportStatus, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	recs, err := s.repo.ListByUser(ctx, claims.UserID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exports")
	}
	out := make([]ExportStatus, 0, len(recs))
	for i := range recs {
		out = append(out, *s.status(&recs[i]))
	}
	return out, nil
}

// OpenDownload validates a signed token and opens the stored artifact.
func (s *ExportService) OpenDownload(token string) (*os.File, string, error) {
	exportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export artifact no longer exists")
	}
	return file, exportID, nil
}

// Cleanup removes artifacts older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

// process is the queue handler: it renders one catalog export.
func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		return fmt.Errorf("unexpected export payload %T", job.Payload)
	}

	if err := s.repo.MarkRunning(ctx, payload.JobID); err != nil {
		s.logger.Warn("failed to mark export running", zap.Error(err))
	}

	rec, err := s.repo.FindByID(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("load export job: %w", err)
	}

	dataset, err := s.buildCatalogDataset(ctx, payload.OwnerScope)
	if err != nil {
		return s.fail(ctx, rec.ID, err)
	}

	var artifact []byte
	switch rec.Format {
	case models.ExportFormatCSV:
		artifact, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		artifact, err = s.pdf.Render(dataset, "Library Catalog")
	default:
		err = fmt.Errorf("unsupported format %s", rec.Format)
	}
	if err != nil {
		return s.fail(ctx, rec.ID, err)
	}

	filename := fmt.Sprintf("catalog_%s.%s", time.Now().UTC().Format("20060102_150405"), rec.Format)
	relPath, err := s.storage.Save(filename, artifact)
	if err != nil {
		return s.fail(ctx, rec.ID, err)
	}

	if err := s.repo.MarkCompleted(ctx, rec.ID, relPath); err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}
	s.logger.Info("catalog export completed", zap.String("export_id", rec.ID), zap.String("path", relPath))
	return nil
}

func (s *ExportService) fail(ctx context.Context, id string, cause error) error {
	if err := s.repo.MarkFailed(ctx, id, cause.Error()); err != nil {
		s.logger.Warn("failed to mark export failed", zap.Error(err))
	}
	return cause
}

// buildCatalogDataset pulls every file visible to the requester, one
// page at a time, into a flat dataset.
func (s *ExportService) buildCatalogDataset(ctx context.Context, ownerScope string) (export.Dataset, error) {
	headers := []string{"ID", "Name", "Filename", "Type", "Size", "Classes", "Owner", "Created At"}
	rows := make([]map[string]string, 0)

	for page := 1; ; page++ {
		files, total, err := s.catalog.List(ctx, models.FileFilter{Page: page, Limit: models.MaxPageLimit}, ownerScope)
		if err != nil {
			return export.Dataset{}, fmt.Errorf("load catalog page %d: %w", page, err)
		}
		for _, f := range files {
			rows = append(rows, map[string]string{
				"ID":         f.ID,
				"Name":       f.Name,
				"Filename":   f.Filename,
				"Type":       f.Type,
				"Size":       strconv.FormatInt(f.Size, 10),
				"Classes":    joinClasses(f.Classes),
				"Owner":      f.OwnerName,
				"Created At": f.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if len(rows) >= total || len(files) == 0 {
			break
		}
	}

	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func (s *ExportService) status(job *models.ExportJob) *ExportStatus {
	st := &ExportStatus{
		ID:          job.ID,
		Format:      job.Format,
		Status:      job.Status,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Status == models.ExportStatusCompleted && job.FilePath != "" {
		token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
		if err != nil {
			s.logger.Warn("failed to sign export download", zap.Error(err))
			return st
		}
		prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
		if prefix == "" {
			prefix = "/api/v1"
		}
		st.DownloadURL = fmt.Sprintf("%s/exports/download/%s", prefix, token)
		st.ExpiresAt = &expiresAt
	}
	return st
}

func joinClasses(classes []int64) string {
	parts := make([]string, 0, len(classes))
	for _, c := range classes {
		parts = append(parts, strconv.FormatInt(c, 10))
	}
	return strings.Join(parts, ",")
}
