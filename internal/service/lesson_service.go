package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/eduvault/eduvault-api/internal/authz"
	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
)

type lessonRepository interface {
	List(ctx context.Context, filter models.LessonFilter, ownerScope string) ([]models.Lesson, int, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

type lessonFileRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.File, error)
}

// LessonListResult mirrors FileListResult for lessons.
type LessonListResult struct {
	Items      []models.Lesson  `json:"items"`
	Error      string           `json:"error,omitempty"`
	Pagination *models.PageInfo `json:"-"`
}

// LessonService implements the lesson use cases. Lessons reference
// files by id; the full file records are resolved on read through an
// explicit second query rather than a SQL join.
type LessonService struct {
	repo      lessonRepository
	files     lessonFileRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs a LessonService.
func NewLessonService(repo lessonRepository, files lessonFileRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LessonService{repo: repo, files: files, audit: audit, validator: validate, logger: logger}
}

// List returns lessons matching the filter, each with its files resolved.
func (s *LessonService) List(ctx context.Context, claims *models.JWTClaims, filter models.LessonFilter) (*LessonListResult, error) {
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

	lessons, total, err := s.repo.List(ctx, filter, scope)
	if err != nil {
		s.logger.Error("lesson listing degraded", zap.Error(err))
		return &LessonListResult{
			Items:      []models.Lesson{},
			Error:      "failed to load lessons",
			Pagination: models.NewPageInfo(0, filter.Page, filter.Limit),
		}, nil
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	if err := s.populateFiles(ctx, lessons); err != nil {
		s.logger.Warn("failed to resolve lesson files", zap.Error(err))
	}
	return &LessonListResult{
		Items:      lessons,
		Pagination: models.NewPageInfo(total, filter.Page, filter.Limit),
	}, nil
}

// Get returns a single lesson with its files resolved.
func (s *LessonService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Lesson, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	single := []models.Lesson{*lesson}
	if err := s.populateFiles(ctx, single); err != nil {
		s.logger.Warn("failed to resolve lesson files", zap.Error(err))
	}
	return &single[0], nil
}

// Create inserts a new lesson owned by the caller. Every referenced
// file must exist, and at most ten may be attached.
func (s *LessonService) Create(ctx context.Context, claims *models.JWTClaims, req models.CreateLessonRequest) (*models.Lesson, error) {
	if err := authz.RequireCreate(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if err := s.checkFileIDs(ctx, req.FileIDs); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		Title:       req.Title,
		Description: req.Description,
		ClassID:     req.ClassID,
		FileIDs:     pq.StringArray(req.FileIDs),
		OwnerID:     claims.UserID,
		OwnerName:   claims.FullName,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}

	single := []models.Lesson{*lesson}
	if err := s.populateFiles(ctx, single); err != nil {
		s.logger.Warn("failed to resolve lesson files", zap.Error(err))
	}
	s.writeAudit(ctx, claims, models.AuditActionResourceCreate, lesson.ID)
	return &single[0], nil
}

// Update applies a partial update after the ownership check.
func (s *LessonService) Update(ctx context.Context, claims *models.JWTClaims, id string, req models.UpdateLessonRequest) (*models.Lesson, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := authz.RequireMutate(claims, lesson.OwnerID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		lesson.Title = *req.Title
	}
	if req.Description != nil {
		lesson.Description = *req.Description
	}
	if req.ClassID != nil {
		lesson.ClassID = *req.ClassID
	}
	if req.FileIDs != nil {
		if err := s.checkFileIDs(ctx, *req.FileIDs); err != nil {
			return nil, err
		}
		lesson.FileIDs = pq.StringArray(*req.FileIDs)
	}

	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}

	single := []models.Lesson{*lesson}
	if err := s.populateFiles(ctx, single); err != nil {
		s.logger.Warn("failed to resolve lesson files", zap.Error(err))
	}
	s.writeAudit(ctx, claims, models.AuditActionResourceUpdate, lesson.ID)
	return &single[0], nil
}

// Delete removes a lesson after the ownership check. Attached files are
// untouched; the lesson only references them.
func (s *LessonService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if err := authz.RequireAuth(claims); err != nil {
		return err
	}

	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := authz.RequireMutate(claims, lesson.OwnerID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}

	s.writeAudit(ctx, claims, models.AuditActionResourceDelete, id)
	return nil
}

// checkFileIDs validates the attachment set before any write: the cap
// applies first, then every id must resolve to an existing file.
func (s *LessonService) checkFileIDs(ctx context.Context, ids []string) error {
	if len(ids) > models.MaxLessonFiles {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("a lesson may reference at most %d files", models.MaxLessonFiles))
	}
	if len(ids) == 0 {
		return nil
	}
	files, err := s.files.FindByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify lesson files")
	}
	if len(files) != len(uniqueStrings(ids)) {
		return appErrors.Clone(appErrors.ErrValidation, "one or more referenced files do not exist")
	}
	return nil
}

// populateFiles resolves file id arrays into full records with a single
// batched lookup across all lessons.
func (s *LessonService) populateFiles(ctx context.Context, lessons []models.Lesson) error {
	idSet := make(map[string]struct{})
	for _, lesson := range lessons {
		for _, id := range lesson.FileIDs {
			idSet[id] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return nil
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	files, err := s.files.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	byID := make(map[string]models.File, len(files))
	for _, file := range files {
		byID[file.ID] = file
	}
	for i := range lessons {
		resolved := make([]models.File, 0, len(lessons[i].FileIDs))
		for _, id := range lessons[i].FileIDs {
			if file, ok := byID[id]; ok {
				resolved = append(resolved, file)
			}
		}
		lessons[i].Files = resolved
	}
	return nil
}

func (s *LessonService) writeAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "lesson",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
