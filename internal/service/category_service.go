package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/eduvault/eduvault-api/internal/authz"
	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
)

type categoryRepository interface {
	List(ctx context.Context, filter models.CategoryFilter) ([]models.Category, int, error)
	FindByID(ctx context.Context, id string) (*models.Category, error)
	FindBySlug(ctx context.Context, rootPath, slug string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
}

// DefaultCategoryRootPath anchors categories created without an explicit root.
const DefaultCategoryRootPath = "/library"

// CategoryListResult mirrors FileListResult for categories.
type CategoryListResult struct {
	Items      []models.Category `json:"items"`
	Error      string            `json:"error,omitempty"`
	Pagination *models.PageInfo  `json:"-"`
}

// CategoryService implements the taxonomy use cases.
type CategoryService struct {
	repo      categoryRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCategoryService constructs a CategoryService.
func NewCategoryService(repo categoryRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CategoryService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns categories matching the filter. Categories are shared
// taxonomy, so no owner scoping applies.
func (s *CategoryService) List(ctx context.Context, claims *models.JWTClaims, filter models.CategoryFilter) (*CategoryListResult, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}

	filter.Page = models.ClampPage(filter.Page)
	filter.Limit = models.ClampLimit(filter.Limit)

	categories, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("category listing degraded", zap.Error(err))
		return &CategoryListResult{
			Items:      []models.Category{},
			Error:      "failed to load categories",
			Pagination: models.NewPageInfo(0, filter.Page, filter.Limit),
		}, nil
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return &CategoryListResult{
		Items:      categories,
		Pagination: models.NewPageInfo(total, filter.Page, filter.Limit),
	}, nil
}

// Get returns a single category by id.
func (s *CategoryService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Category, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	return category, nil
}

// Create inserts a new category. The slug derives from the name and must
// be unique within the root path.
func (s *CategoryService) Create(ctx context.Context, claims *models.JWTClaims, req models.CreateCategoryRequest) (*models.Category, error) {
	if err := authz.RequireCreate(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}

	rootPath := req.RootPath
	if rootPath == "" {
		rootPath = DefaultCategoryRootPath
	}
	slug := Slugify(req.Name)
	if slug == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "category name yields an empty slug")
	}

	if existing, err := s.repo.FindBySlug(ctx, rootPath, slug); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a category with this name already exists")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check category slug")
	}

	category := &models.Category{
		Name:        req.Name,
		Description: req.Description,
		RootPath:    rootPath,
		Slug:        slug,
		OwnerID:     claims.UserID,
		OwnerName:   claims.FullName,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}

	s.writeAudit(ctx, claims, models.AuditActionResourceCreate, category.ID)
	return category, nil
}

// Update applies a partial update after the ownership check. Renaming a
// category regenerates its slug.
func (s *CategoryService) Update(ctx context.Context, claims *models.JWTClaims, id string, req models.UpdateCategoryRequest) (*models.Category, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}

	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	if err := authz.RequireMutate(claims, category.OwnerID); err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != category.Name {
		slug := Slugify(*req.Name)
		if slug == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "category name yields an empty slug")
		}
		if existing, err := s.repo.FindBySlug(ctx, category.RootPath, slug); err == nil && existing != nil && existing.ID != category.ID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a category with this name already exists")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check category slug")
		}
		category.Name = *req.Name
		category.Slug = slug
	}
	if req.Description != nil {
		category.Description = *req.Description
	}

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update category")
	}

	s.writeAudit(ctx, claims, models.AuditActionResourceUpdate, category.ID)
	return category, nil
}

// Delete removes a category after the ownership check. Content keeps a
// dangling category id; listings simply stop matching it.
func (s *CategoryService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if err := authz.RequireAuth(claims); err != nil {
		return err
	}

	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}
	if err := authz.RequireMutate(claims, category.OwnerID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete category")
	}

	s.writeAudit(ctx, claims, models.AuditActionResourceDelete, id)
	return nil
}

func (s *CategoryService) writeAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "category",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

var slugStripPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a name and collapses everything that is not a
// letter or digit into single hyphens.
func Slugify(name string) string {
	slug := slugStripPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
