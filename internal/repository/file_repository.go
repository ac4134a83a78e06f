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

// FileRepository manages persistence for uploaded file metadata.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs a FileRepository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, filename, url, public_id, download_url, name, description, classes, type, size, category_id, owner_id, owner_name, created_at`

// buildFileWhere composes the WHERE clause for a file filter. The same
// clause feeds both the page query and the count query so the two can
// never drift apart.
func buildFileWhere(filter models.FileFilter, ownerScope string) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(filename) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, likePattern(search))
	}
	if len(filter.Types) > 0 {
		conditions = append(conditions, fmt.Sprintf("type = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.Types))
	}
	if len(filter.Classes) > 0 {
		// && is overlap (at least one shared class), @> is containment
		// (every requested class present).
		op := "&&"
		if filter.AllClasses {
			op = "@>"
		}
		conditions = append(conditions, fmt.Sprintf("classes %s $%d", op, len(args)+1))
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
	if filter.MinSize != nil {
		conditions = append(conditions, fmt.Sprintf("size >= $%d", len(args)+1))
		args = append(args, *filter.MinSize)
	}
	if filter.MaxSize != nil {
		conditions = append(conditions, fmt.Sprintf("size <= $%d", len(args)+1))
		args = append(args, *filter.MaxSize)
	}
	if ownerScope != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)+1))
		args = append(args, ownerScope)
	}

	return strings.Join(conditions, " AND "), args
}

// List returns files matching the filter plus the matching total.
// ownerScope, when non-empty, restricts results to a single owner.
func (r *FileRepository) List(ctx context.Context, filter models.FileFilter, ownerScope string) ([]models.File, int, error) {
	whereClause, args := buildFileWhere(filter, ownerScope)

	order := orderClause(filter.SortBy, filter.SortOrder, map[string]string{
		"created_at": "created_at",
		"name":       "name",
		"size":       "size",
	})
	size, offset := pageBounds(filter.Page, filter.Limit)

	query := fmt.Sprintf("SELECT %s FROM files WHERE %s ORDER BY %s LIMIT %d OFFSET %d", fileColumns, whereClause, order, size, offset)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list files: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM files WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count files: %w", err)
	}
	return files, total, nil
}

// FindByID fetches a file by identifier.
func (r *FileRepository) FindByID(ctx context.Context, id string) (*models.File, error) {
	query := fmt.Sprintf("SELECT %s FROM files WHERE id = $1 LIMIT 1", fileColumns)
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// FindByIDs fetches the files for the given id set, newest first.
func (r *FileRepository) FindByIDs(ctx context.Context, ids []string) ([]models.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM files WHERE id = ANY($1) ORDER BY created_at DESC", fileColumns)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find files by ids: %w", err)
	}
	return files, nil
}

// Create inserts a new file metadata row. The identifier is always
// minted here, never taken from a request payload.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	file.ID = uuid.NewString()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO files (id, filename, url, public_id, download_url, name, description, classes, type, size, category_id, owner_id, owner_name, created_at)
        VALUES (:id, :filename, :url, :public_id, :download_url, :name, :description, :classes, :type, :size, :category_id, :owner_id, :owner_name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// Update modifies the mutable metadata of a file. Ownership and the
// stored blob reference are immutable after creation.
func (r *FileRepository) Update(ctx context.Context, file *models.File) error {
	const query = `UPDATE files SET name = :name, description = :description, classes = :classes, category_id = :category_id WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// Delete removes a file row.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM files WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
