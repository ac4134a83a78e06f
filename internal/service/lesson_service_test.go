package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
)

type mockLessonRepo struct {
	items      map[string]*models.Lesson
	listResult []models.Lesson
	listTotal  int
	listErr    error
	lastScope  string
	deleted    []string
}

func (m *mockLessonRepo) List(ctx context.Context, filter models.LessonFilter, ownerScope string) ([]models.Lesson, int, error) {
	m.lastScope = ownerScope
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	if lesson, ok := m.items[id]; ok {
		cp := *lesson
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLessonRepo) Create(ctx context.Context, lesson *models.Lesson) error {
	if m.items == nil {
		m.items = make(map[string]*models.Lesson)
	}
	if lesson.ID == "" {
		lesson.ID = "generated"
	}
	cp := *lesson
	m.items[lesson.ID] = &cp
	return nil
}

func (m *mockLessonRepo) Update(ctx context.Context, lesson *models.Lesson) error {
	cp := *lesson
	m.items[lesson.ID] = &cp
	return nil
}

func (m *mockLessonRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

type mockLessonFiles struct {
	files map[string]models.File
	calls int
}

func (m *mockLessonFiles) FindByIDs(ctx context.Context, ids []string) ([]models.File, error) {
	m.calls++
	out := make([]models.File, 0, len(ids))
	seen := make(map[string]struct{})
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if file, ok := m.files[id]; ok {
			out = append(out, file)
		}
	}
	return out, nil
}

// uuid4At mints a deterministic but well-formed v4 id for test fixtures.
func uuid4At(n int) string {
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", n, n)
}

func TestLessonServiceCreate(t *testing.T) {
	fileID := uuid4At(1)
	repo := &mockLessonRepo{}
	files := &mockLessonFiles{files: map[string]models.File{
		fileID: {ID: fileID, Name: "Worksheet"},
	}}
	service := NewLessonService(repo, files, nil, nil, zap.NewNop())

	lesson, err := service.Create(context.Background(), teacherClaims("t1"), models.CreateLessonRequest{
		Title:   "Fractions",
		ClassID: 5,
		FileIDs: []string{fileID},
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", lesson.OwnerID)
	assert.Equal(t, "Tom Teacher", lesson.OwnerName)
	require.Len(t, lesson.Files, 1)
	assert.Equal(t, "Worksheet", lesson.Files[0].Name)
}

func TestLessonServiceCreateRejectsTooManyFiles(t *testing.T) {
	ids := make([]string, models.MaxLessonFiles+1)
	for i := range ids {
		ids[i] = uuid4At(i)
	}
	service := NewLessonService(&mockLessonRepo{}, &mockLessonFiles{}, nil, nil, zap.NewNop())

	_, err := service.Create(context.Background(), teacherClaims("t1"), models.CreateLessonRequest{
		Title:   "Overfull",
		ClassID: 5,
		FileIDs: ids,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestLessonServiceCreateRejectsUnknownFiles(t *testing.T) {
	known := uuid4At(1)
	missing := uuid4At(2)
	files := &mockLessonFiles{files: map[string]models.File{known: {ID: known}}}
	service := NewLessonService(&mockLessonRepo{}, files, nil, nil, zap.NewNop())

	_, err := service.Create(context.Background(), teacherClaims("t1"), models.CreateLessonRequest{
		Title:   "Broken refs",
		ClassID: 5,
		FileIDs: []string{known, missing},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Contains(t, appErr.Message, "do not exist")
}

func TestLessonServiceListResolvesFilesInOneLookup(t *testing.T) {
	a, b := uuid4At(1), uuid4At(2)
	repo := &mockLessonRepo{
		listResult: []models.Lesson{
			{ID: "l1", FileIDs: pq.StringArray{a, b}},
			{ID: "l2", FileIDs: pq.StringArray{b}},
		},
		listTotal: 2,
	}
	files := &mockLessonFiles{files: map[string]models.File{
		a: {ID: a, Name: "A"},
		b: {ID: b, Name: "B"},
	}}
	service := NewLessonService(repo, files, nil, nil, zap.NewNop())

	result, err := service.List(context.Background(), adminClaims(), models.LessonFilter{})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 1, files.calls)

	require.Len(t, result.Items[0].Files, 2)
	assert.Equal(t, "A", result.Items[0].Files[0].Name)
	assert.Equal(t, "B", result.Items[0].Files[1].Name)
	require.Len(t, result.Items[1].Files, 1)
}

func TestLessonServiceListDegradesOnRepoError(t *testing.T) {
	repo := &mockLessonRepo{listErr: sql.ErrConnDone}
	service := NewLessonService(repo, &mockLessonFiles{}, nil, nil, zap.NewNop())

	result, err := service.List(context.Background(), adminClaims(), models.LessonFilter{})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, "failed to load lessons", result.Error)
	assert.Equal(t, 0, result.Pagination.Total)
}

func TestLessonServiceUpdateOwnership(t *testing.T) {
	repo := &mockLessonRepo{items: map[string]*models.Lesson{
		"l1": {ID: "l1", Title: "Old", ClassID: 3, OwnerID: "t1"},
	}}
	service := NewLessonService(repo, &mockLessonFiles{}, nil, nil, zap.NewNop())

	title := "New"
	_, err := service.Update(context.Background(), teacherClaims("t2"), "l1", models.UpdateLessonRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	lesson, err := service.Update(context.Background(), teacherClaims("t1"), "l1", models.UpdateLessonRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "New", lesson.Title)
	assert.Equal(t, 3, lesson.ClassID)
}

func TestLessonServiceDeleteNotFound(t *testing.T) {
	service := NewLessonService(&mockLessonRepo{}, &mockLessonFiles{}, nil, nil, zap.NewNop())

	err := service.Delete(context.Background(), studentClaims(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
