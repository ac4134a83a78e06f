package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/eduvault/eduvault-api/internal/models"
)

// DocumentRepository manages persistence for literary reference entries.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, title, description, content, classes, category_id, owner_id, owner_name, created_at, updated_at`

// List returns documents matching the filter plus the matching total.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter, ownerScope string) ([]models.Document, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, likePattern(search))
	}
	if len(filter.Classes) > 0 {
		conditions = append(conditions, fmt.Sprintf("classes && $%d", len(args)+1))
		args = append(args, pq.Array(filter.Classes))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Owner != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(owner_name) LIKE $%d", len(args)+1))
		args = append(args, likePattern(filter.Owner))
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if ownerScope != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)+1))
		args = append(args, ownerScope)
	}
	whereClause := strings.Join(conditions, " AND ")

	order := orderClause(filter.SortBy, filter.SortOrder, map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"title":      "title",
	})
	size, offset := pageBounds(filter.Page, filter.Limit)

	query := fmt.Sprintf("SELECT %s FROM documents WHERE %s ORDER BY %s LIMIT %d OFFSET %d", documentColumns, whereClause, order, size, offset)
	var documents []models.Document
	if err := r.db.SelectContext(ctx, &documents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM documents WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return documents, total, nil
}

// FindByID fetches a document by identifier.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf("SELECT %s FROM documents WHERE id = $1 LIMIT 1", documentColumns)
	var document models.Document
	if err := r.db.GetContext(ctx, &document, query, id); err != nil {
		return nil, err
	}
	return &document, nil
}

// Create inserts a new document.
func (r *DocumentRepository) Create(ctx context.Context, document *models.Document) error {
	document.ID = uuid.NewString()
	now := time.Now().UTC()
	if document.CreatedAt.IsZero() {
		document.CreatedAt = now
	}
	document.UpdatedAt = now
	const query = `INSERT INTO documents (id, title, description, content, classes, category_id, owner_id, owner_name, created_at, updated_at)
        VALUES (:id, :title, :description, :content, :classes, :category_id, :owner_id, :owner_name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, document); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Update modifies an existing document.
func (r *DocumentRepository) Update(ctx context.Context, document *models.Document) error {
	document.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents SET title = :title, description = :description, content = :content, classes = :classes, category_id = :category_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, document); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// Delete removes a document.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
