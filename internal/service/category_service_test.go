package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
)

type mockCategoryRepo struct {
	items      map[string]*models.Category
	slugIndex  map[string]*models.Category
	listResult []models.Category
	listTotal  int
	listErr    error
}

func (m *mockCategoryRepo) List(ctx context.Context, filter models.CategoryFilter) ([]models.Category, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockCategoryRepo) FindByID(ctx context.Context, id string) (*models.Category, error) {
	if category, ok := m.items[id]; ok {
		cp := *category
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCategoryRepo) FindBySlug(ctx context.Context, rootPath, slug string) (*models.Category, error) {
	if category, ok := m.slugIndex[rootPath+"|"+slug]; ok {
		cp := *category
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCategoryRepo) Create(ctx context.Context, category *models.Category) error {
	if m.items == nil {
		m.items = make(map[string]*models.Category)
	}
	if category.ID == "" {
		category.ID = "generated"
	}
	cp := *category
	m.items[category.ID] = &cp
	return nil
}

func (m *mockCategoryRepo) Update(ctx context.Context, category *models.Category) error {
	cp := *category
	m.items[category.ID] = &cp
	return nil
}

func (m *mockCategoryRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "science-videos", Slugify("Science Videos"))
	assert.Equal(t, "grade-7-math", Slugify("  Grade 7: Math!  "))
	assert.Equal(t, "a-b-c", Slugify("a---b___c"))
	assert.Equal(t, "", Slugify("???"))
}

func TestCategoryServiceCreate(t *testing.T) {
	repo := &mockCategoryRepo{}
	service := NewCategoryService(repo, nil, nil, zap.NewNop())

	category, err := service.Create(context.Background(), adminClaims(), models.CreateCategoryRequest{
		Name: "Science Videos",
	})
	require.NoError(t, err)
	assert.Equal(t, "science-videos", category.Slug)
	assert.Equal(t, DefaultCategoryRootPath, category.RootPath)
	assert.Equal(t, "admin-1", category.OwnerID)
}

func TestCategoryServiceCreateSlugConflict(t *testing.T) {
	repo := &mockCategoryRepo{slugIndex: map[string]*models.Category{
		DefaultCategoryRootPath + "|science-videos": {ID: "c1", Slug: "science-videos"},
	}}
	service := NewCategoryService(repo, nil, nil, zap.NewNop())

	_, err := service.Create(context.Background(), adminClaims(), models.CreateCategoryRequest{
		Name: "Science Videos",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestCategoryServiceCreateEmptySlug(t *testing.T) {
	service := NewCategoryService(&mockCategoryRepo{}, nil, nil, zap.NewNop())

	_, err := service.Create(context.Background(), adminClaims(), models.CreateCategoryRequest{Name: "???"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestCategoryServiceCreateForbiddenForStudents(t *testing.T) {
	service := NewCategoryService(&mockCategoryRepo{}, nil, nil, zap.NewNop())

	_, err := service.Create(context.Background(), studentClaims(), models.CreateCategoryRequest{Name: "Anything"})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestCategoryServiceRenameRegeneratesSlug(t *testing.T) {
	repo := &mockCategoryRepo{items: map[string]*models.Category{
		"c1": {ID: "c1", Name: "Old Name", Slug: "old-name", RootPath: DefaultCategoryRootPath, OwnerID: "t1"},
	}}
	service := NewCategoryService(repo, nil, nil, zap.NewNop())

	name := "Brand New"
	category, err := service.Update(context.Background(), teacherClaims("t1"), "c1", models.UpdateCategoryRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "brand-new", category.Slug)
}

func TestCategoryServiceListDegradesOnRepoError(t *testing.T) {
	repo := &mockCategoryRepo{listErr: sql.ErrConnDone}
	service := NewCategoryService(repo, nil, nil, zap.NewNop())

	result, err := service.List(context.Background(), studentClaims(), models.CategoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, "failed to load categories", result.Error)
}

func TestCategoryServiceDeleteOwnership(t *testing.T) {
	repo := &mockCategoryRepo{items: map[string]*models.Category{
		"c1": {ID: "c1", OwnerID: "t1"},
	}}
	service := NewCategoryService(repo, nil, nil, zap.NewNop())

	err := service.Delete(context.Background(), teacherClaims("t2"), "c1")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	require.NoError(t, service.Delete(context.Background(), teacherClaims("t1"), "c1"))
	assert.Empty(t, repo.items)
}
