package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eduvault/eduvault-api/internal/models"
)

// CategoryRepository manages persistence for taxonomy categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs a CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, name, description, root_path, slug, owner_id, owner_name, created_at`

// List returns categories matching the filter plus the matching total.
func (r *CategoryRepository) List(ctx context.Context, filter models.CategoryFilter) ([]models.Category, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, likePattern(search))
	}
	if filter.RootPath != "" {
		conditions = append(conditions, fmt.Sprintf("root_path = $%d", len(args)+1))
		args = append(args, filter.RootPath)
	}
	whereClause := strings.Join(conditions, " AND ")

	size, offset := pageBounds(filter.Page, filter.Limit)

	query := fmt.Sprintf("SELECT %s FROM categories WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d", categoryColumns, whereClause, size, offset)
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM categories WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}
	return categories, total, nil
}

// FindByID fetches a category by identifier.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	query := fmt.Sprintf("SELECT %s FROM categories WHERE id = $1 LIMIT 1", categoryColumns)
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}

// FindBySlug fetches a category by its slug within a root path.
func (r *CategoryRepository) FindBySlug(ctx context.Context, rootPath, slug string) (*models.Category, error) {
	query := fmt.Sprintf("SELECT %s FROM categories WHERE root_path = $1 AND slug = $2 LIMIT 1", categoryColumns)
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, rootPath, slug); err != nil {
		return nil, err
	}
	return &category, nil
}

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	category.ID = uuid.NewString()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO categories (id, name, description, root_path, slug, owner_id, owner_name, created_at)
        VALUES (:id, :name, :description, :root_path, :slug, :owner_id, :owner_name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// Update modifies an existing category.
func (r *CategoryRepository) Update(ctx context.Context, category *models.Category) error {
	const query = `UPDATE categories SET name = :name, description = :description, slug = :slug WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// Delete removes a category.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
