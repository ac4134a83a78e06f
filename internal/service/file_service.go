package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/eduvault/eduvault-api/internal/authz"
	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
	"github.com/eduvault/eduvault-api/pkg/storage"
)

type fileRepository interface {
	List(ctx context.Context, filter models.FileFilter, ownerScope string) ([]models.File, int, error)
	FindByID(ctx context.Context, id string) (*models.File, error)
	Create(ctx context.Context, file *models.File) error
	Update(ctx context.Context, file *models.File) error
	Delete(ctx context.Context, id string) error
}

type fileUploader interface {
	Upload(r io.Reader, folder, filename string) (*storage.UploadResult, error)
	Remove(publicID string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// FileListResult is the listing payload. When the repository fails the
// listing degrades: Items is empty, the total is zero and Error carries
// a short description instead of the request failing outright.
type FileListResult struct {
	Items      []models.File    `json:"items"`
	Error      string           `json:"error,omitempty"`
	Pagination *models.PageInfo `json:"-"`
}

// cachedFileListing is the cache representation of an unfiltered first page.
type cachedFileListing struct {
	Items []models.File `json:"items"`
	Total int           `json:"total"`
}

// FileServiceConfig tunes upload validation and listing cache behaviour.
type FileServiceConfig struct {
	CacheTTL     time.Duration
	AllowedMIMEs []string
}

// FileService implements the media file use cases.
type FileService struct {
	repo      fileRepository
	uploader  fileUploader
	audit     auditWriter
	cache     listingCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       FileServiceConfig
	mimeSet   map[string]struct{}
}

// NewFileService constructs a FileService.
func NewFileService(repo fileRepository, uploader fileUploader, audit auditWriter, cache listingCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg FileServiceConfig) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"image/jpeg",
			"image/png",
			"image/gif",
			"image/webp",
			"video/mp4",
			"audio/mpeg",
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		}
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &FileService{repo: repo, uploader: uploader, audit: audit, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg, mimeSet: mimeSet}
}

const fileListCachePrefix = "files:list:"

// List returns files matching the filter scoped to the caller. Teachers
// only ever see their own uploads; everyone else browses the full
// library. An unconstrained first page is served from cache when
// available.
func (s *FileService) List(ctx context.Context, claims *models.JWTClaims, filter models.FileFilter) (*FileListResult, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	scope := authz.OwnerScope(claims)

	filter.Page = models.ClampPage(filter.Page)
	filter.Limit = models.ClampLimit(filter.Limit)
	if filter.DateTo != nil {
		eod := endOfDay(*filter.DateTo)
		filter.DateTo = &eod
	}

	cacheable := s.cache != nil && filter.IsUnconstrained() && filter.Page == 1
	cacheKey := fmt.Sprintf("%sscope=%s:p%d:l%d", fileListCachePrefix, scope, filter.Page, filter.Limit)
	if cacheable {
		var cached cachedFileListing
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &FileListResult{
				Items:      cached.Items,
				Pagination: models.NewPageInfo(cached.Total, filter.Page, filter.Limit),
			}, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	files, total, err := s.repo.List(ctx, filter, scope)
	if err != nil {
		s.logger.Error("file listing degraded", zap.Error(err))
		return &FileListResult{
			Items:      []models.File{},
			Error:      "failed to load files",
			Pagination: models.NewPageInfo(0, filter.Page, filter.Limit),
		}, nil
	}
	if files == nil {
		files = []models.File{}
	}

	result := &FileListResult{
		Items:      files,
		Pagination: models.NewPageInfo(total, filter.Page, filter.Limit),
	}
	if cacheable {
		if err := s.cache.Set(ctx, cacheKey, cachedFileListing{Items: files, Total: total}, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache file listing", zap.Error(err))
		}
	}
	return result, nil
}

// Get returns a single file by id.
func (s *FileService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.File, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	file, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	return file, nil
}

// Upload stores the binary and records the file metadata in one step.
// The stored blob is removed again if the metadata insert fails.
func (s *FileService) Upload(ctx context.Context, claims *models.JWTClaims, req models.CreateFileRequest, content io.Reader, filename string) (*models.File, error) {
	if err := authz.RequireCreate(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid file payload")
	}
	if filename == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "filename is required")
	}

	mimeType, content, err := s.detectMime(content, filename)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[mimeType]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not allowed", mimeType))
	}

	uploaded, err := s.uploader.Upload(content, "files", filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}

	file := &models.File{
		Filename:    filename,
		URL:         uploaded.URL,
		PublicID:    uploaded.PublicID,
		DownloadURL: uploaded.URL,
		Name:        req.Name,
		Description: req.Description,
		Classes:     pq.Int64Array(req.Classes),
		Type:        uploaded.ResourceType,
		Size:        uploaded.Bytes,
		CategoryID:  normalizeCategoryID(req.CategoryID),
		OwnerID:     claims.UserID,
		OwnerName:   claims.FullName,
	}
	if err := s.repo.Create(ctx, file); err != nil {
		if removeErr := s.uploader.Remove(uploaded.PublicID); removeErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create file")
	}

	s.invalidateListing(ctx)
	s.writeAudit(ctx, claims, models.AuditActionResourceCreate, "file", file.ID)
	return file, nil
}

// Update applies a partial metadata update. Missing fields stay as they
// are; an empty description or category clears the value. Ownership and
// the stored blob never change.
func (s *FileService) Update(ctx context.Context, claims *models.JWTClaims, id string, req models.UpdateFileRequest) (*models.File, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid file payload")
	}

	file, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if err := authz.RequireMutate(claims, file.OwnerID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		file.Name = *req.Name
	}
	if req.Description != nil {
		file.Description = *req.Description
	}
	if req.Classes != nil {
		file.Classes = pq.Int64Array(*req.Classes)
	}
	if req.CategoryID != nil {
		file.CategoryID = normalizeCategoryID(req.CategoryID)
	}

	if err := s.repo.Update(ctx, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update file")
	}

	s.invalidateListing(ctx)
	s.writeAudit(ctx, claims, models.AuditActionResourceUpdate, "file", file.ID)
	return file, nil
}

// Delete removes the file metadata and its stored blob.
func (s *FileService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if err := authz.RequireAuth(claims); err != nil {
		return err
	}

	file, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if err := authz.RequireMutate(claims, file.OwnerID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file")
	}
	if file.PublicID != "" {
		if err := s.uploader.Remove(file.PublicID); err != nil {
			s.logger.Warn("failed to remove stored blob", zap.String("public_id", file.PublicID), zap.Error(err))
		}
	}

	s.invalidateListing(ctx)
	s.writeAudit(ctx, claims, models.AuditActionResourceDelete, "file", id)
	return nil
}

func (s *FileService) invalidateListing(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fileListCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate file listing cache", zap.Error(err))
	}
}

func (s *FileService) writeAudit(ctx context.Context, claims *models.JWTClaims, action, resource, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// detectMime resolves the media type from the extension, sniffing the
// first bytes when the extension is unknown. The consumed prefix is
// stitched back onto the returned reader.
func (s *FileService) detectMime(content io.Reader, filename string) (string, io.Reader, error) {
	header := make([]byte, 512)
	n, err := io.ReadFull(content, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect upload")
	}
	if n == 0 {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "empty file")
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if mimeType == "" {
		mimeType = http.DetectContentType(header[:n])
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType)), io.MultiReader(bytes.NewReader(header[:n]), content), nil
}

func normalizeCategoryID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}
