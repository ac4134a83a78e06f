package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/eduvault/eduvault-api/internal/authz"
	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
)

type documentRepository interface {
	List(ctx context.Context, filter models.DocumentFilter, ownerScope string) ([]models.Document, int, error)
	FindByID(ctx context.Context, id string) (*models.Document, error)
	Create(ctx context.Context, document *models.Document) error
	Update(ctx context.Context, document *models.Document) error
	Delete(ctx context.Context, id string) error
}

// DocumentListResult mirrors FileListResult for documents.
type DocumentListResult struct {
	Items      []models.Document `json:"items"`
	Error      string            `json:"error,omitempty"`
	Pagination *models.PageInfo  `json:"-"`
}

// DocumentService implements the document use cases.
type DocumentService struct {
	repo      documentRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(repo documentRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DocumentService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns documents matching the filter, scoped for teachers.
func (s *DocumentService) List(ctx context.Context, claims *models.JWTClaims, filter models.DocumentFilter) (*DocumentListResult, error) {
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

	documents, total, err := s.repo.List(ctx, filter, scope)
	if err != nil {
		s.logger.Error("document listing degraded", zap.Error(err))
		return &DocumentListResult{
			Items:      []models.Document{},
			Error:      "failed to load documents",
			Pagination: models.NewPageInfo(0, filter.Page, filter.Limit),
		}, nil
	}
	if documents == nil {
		documents = []models.Document{}
	}
	return &DocumentListResult{
		Items:      documents,
		Pagination: models.NewPageInfo(total, filter.Page, filter.Limit),
	}, nil
}

// Get returns a single document by id.
func (s *DocumentService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Document, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	document, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return document, nil
}

// Create inserts a new document owned by the caller.
func (s *DocumentService) Create(ctx context.Context, claims *models.JWTClaims, req models.CreateDocumentRequest) (*models.Document, error) {
	if err := authz.RequireCreate(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}

	document := &models.Document{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Classes:     pq.Int64Array(req.Classes),
		CategoryID:  normalizeCategoryID(req.CategoryID),
		OwnerID:     claims.UserID,
		OwnerName:   claims.FullName,
	}
	if err := s.repo.Create(ctx, document); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}

	s.writeAudit(ctx, claims, models.AuditActionResourceCreate, document.ID)
	return document, nil
}

// Update applies a partial update after the ownership check.
func (s *DocumentService) Update(ctx context.Context, claims *models.JWTClaims, id string, req models.UpdateDocumentRequest) (*models.Document, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}

	document, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if err := authz.RequireMutate(claims, document.OwnerID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		document.Title = *req.Title
	}
	if req.Description != nil {
		document.Description = *req.Description
	}
	if req.Content != nil {
		document.Content = *req.Content
	}
	if req.Classes != nil {
		document.Classes = pq.Int64Array(*req.Classes)
	}
	if req.CategoryID != nil {
		document.CategoryID = normalizeCategoryID(req.CategoryID)
	}

	if err := s.repo.Update(ctx, document); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}

	s.writeAudit(ctx, claims, models.AuditActionResourceUpdate, document.ID)
	return document, nil
}

// Delete removes a document after the ownership check.
func (s *DocumentService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if err := authz.RequireAuth(claims); err != nil {
		return err
	}

	document, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if err := authz.RequireMutate(claims, document.OwnerID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}

	s.writeAudit(ctx, claims, models.AuditActionResourceDelete, id)
	return nil
}

func (s *DocumentService) writeAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "document",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
