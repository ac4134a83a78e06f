package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
)

type mockDocumentRepo struct {
	items      map[string]*models.Document
	listResult []models.Document
	listTotal  int
	listErr    error
	lastFilter models.DocumentFilter
	lastScope  string
	deleted    []string
}

func (m *mockDocumentRepo) List(ctx context.Context, filter models.DocumentFilter, ownerScope string) ([]models.Document, int, error) {
	m.lastFilter = filter
	m.lastScope = ownerScope
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	if document, ok := m.items[id]; ok {
		cp := *document
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) Create(ctx context.Context, document *models.Document) error {
	document.ID = "d-created"
	if m.items == nil {
		m.items = make(map[string]*models.Document)
	}
	m.items[document.ID] = document
	return nil
}

func (m *mockDocumentRepo) Update(ctx context.Context, document *models.Document) error {
	m.items[document.ID] = document
	return nil
}

func (m *mockDocumentRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func TestDocumentServiceCreateSnapshotsOwner(t *testing.T) {
	repo := &mockDocumentRepo{}
	audit := &mockAudit{}
	service := NewDocumentService(repo, audit, nil, zap.NewNop())

	document, err := service.Create(context.Background(), teacherClaims("t1"), models.CreateDocumentRequest{
		Title:   "Curriculum notes",
		Content: "chapter one",
		Classes: []int64{7, 8},
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", document.OwnerID)
	assert.Equal(t, "Tom Teacher", document.OwnerName)
	assert.Equal(t, pq.Int64Array{7, 8}, document.Classes)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionResourceCreate, audit.logs[0].Action)
}

func TestDocumentServiceCreateForbiddenForStudents(t *testing.T) {
	service := NewDocumentService(&mockDocumentRepo{}, nil, nil, zap.NewNop())

	_, err := service.Create(context.Background(), studentClaims(), models.CreateDocumentRequest{Title: "Notes"})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestDocumentServiceCreateRejectsInvalidClasses(t *testing.T) {
	service := NewDocumentService(&mockDocumentRepo{}, nil, nil, zap.NewNop())

	_, err := service.Create(context.Background(), adminClaims(), models.CreateDocumentRequest{
		Title:   "Notes",
		Classes: []int64{13},
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestDocumentServiceListScopesTeachers(t *testing.T) {
	repo := &mockDocumentRepo{}
	service := NewDocumentService(repo, nil, nil, zap.NewNop())

	_, err := service.List(context.Background(), teacherClaims("t1"), models.DocumentFilter{})
	require.NoError(t, err)
	assert.Equal(t, "t1", repo.lastScope)

	_, err = service.List(context.Background(), adminClaims(), models.DocumentFilter{})
	require.NoError(t, err)
	assert.Equal(t, "", repo.lastScope)
}

func TestDocumentServiceListDegradesOnRepoError(t *testing.T) {
	repo := &mockDocumentRepo{listErr: errors.New("db down")}
	service := NewDocumentService(repo, nil, nil, zap.NewNop())

	result, err := service.List(context.Background(), adminClaims(), models.DocumentFilter{Page: 3})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, "failed to load documents", result.Error)
	assert.Equal(t, 3, result.Pagination.Page)
	assert.Equal(t, 0, result.Pagination.Total)
}

func TestDocumentServiceUpdateOwnership(t *testing.T) {
	repo := &mockDocumentRepo{items: map[string]*models.Document{
		"d1": {ID: "d1", Title: "Notes", OwnerID: "t1"},
	}}
	service := NewDocumentService(repo, nil, nil, zap.NewNop())

	title := "Revised notes"
	_, err := service.Update(context.Background(), teacherClaims("t2"), "d1", models.UpdateDocumentRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	document, err := service.Update(context.Background(), teacherClaims("t1"), "d1", models.UpdateDocumentRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Revised notes", document.Title)
}

func TestDocumentServiceUpdateNotFoundBeforeForbidden(t *testing.T) {
	service := NewDocumentService(&mockDocumentRepo{}, nil, nil, zap.NewNop())

	title := "Revised"
	_, err := service.Update(context.Background(), studentClaims(), "missing", models.UpdateDocumentRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestDocumentServiceDelete(t *testing.T) {
	repo := &mockDocumentRepo{items: map[string]*models.Document{
		"d1": {ID: "d1", OwnerID: "t1"},
	}}
	service := NewDocumentService(repo, nil, nil, zap.NewNop())

	require.NoError(t, service.Delete(context.Background(), adminClaims(), "d1"))
	assert.Equal(t, []string{"d1"}, repo.deleted)
}
