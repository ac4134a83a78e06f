package service

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
	"github.com/eduvault/eduvault-api/pkg/jobs"
	"github.com/eduvault/eduvault-api/pkg/storage"
)

// mockExportRepo is shared between the test goroutine and queue workers.
type mockExportRepo struct {
	mu   sync.Mutex
	jobs map[string]*models.ExportJob
}

func newMockExportRepo() *mockExportRepo {
	return &mockExportRepo{jobs: make(map[string]*models.ExportJob)}
}

func (m *mockExportRepo) job(id string) *models.ExportJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.jobs[id]
	return &cp
}

func (m *mockExportRepo) Create(ctx context.Context, job *models.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = "export-1"
	}
	if job.Status == "" {
		job.Status = models.ExportStatusPending
	}
	job.CreatedAt = time.Now().UTC()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockExportRepo) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExportRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ExportJob, 0)
	for _, job := range m.jobs {
		if job.RequestedBy == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockExportRepo) MarkRunning(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Status = models.ExportStatusRunning
	return nil
}

func (m *mockExportRepo) MarkCompleted(ctx context.Context, id, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.jobs[id].Status = models.ExportStatusCompleted
	m.jobs[id].FilePath = filePath
	m.jobs[id].CompletedAt = &now
	return nil
}

func (m *mockExportRepo) MarkFailed(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Status = models.ExportStatusFailed
	m.jobs[id].Error = reason
	return nil
}

type mockCatalog struct {
	files     []models.File
	lastScope string
}

func (m *mockCatalog) List(ctx context.Context, filter models.FileFilter, ownerScope string) ([]models.File, int, error) {
	m.lastScope = ownerScope
	if filter.Page > 1 {
		return nil, len(m.files), nil
	}
	return m.files, len(m.files), nil
}

func newExportServiceForTest(t *testing.T, repo *mockExportRepo, catalog *mockCatalog) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewExportService(repo, catalog, store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, nil, zap.NewNop())
}

func TestExportServiceRequestForbiddenForStudents(t *testing.T) {
	service := newExportServiceForTest(t, newMockExportRepo(), &mockCatalog{})

	_, err := service.Request(context.Background(), studentClaims(), models.CreateExportRequest{Format: "csv"})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestExportServiceRequestFailsWithoutWorkers(t *testing.T) {
	repo := newMockExportRepo()
	service := newExportServiceForTest(t, repo, &mockCatalog{})

	// workers never started, so the enqueue fails and the job is marked
	_, err := service.Request(context.Background(), adminClaims(), models.CreateExportRequest{Format: "csv"})
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportServiceProcessCSV(t *testing.T) {
	repo := newMockExportRepo()
	catalog := &mockCatalog{files: []models.File{
		{ID: "f1", Name: "Slides", Filename: "slides.png", Type: "image", Size: 100, Classes: []int64{7, 8}, OwnerName: "Tom Teacher", CreatedAt: time.Now()},
		{ID: "f2", Name: "Notes", Filename: "notes.pdf", Type: "document", Size: 50, OwnerName: "Ada Admin", CreatedAt: time.Now()},
	}}
	service := newExportServiceForTest(t, repo, catalog)

	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{ID: "e1", RequestedBy: "t1", Format: models.ExportFormatCSV}))
	require.NoError(t, service.process(context.Background(), jobs.Job{ID: "e1", Payload: exportPayload{JobID: "e1", OwnerScope: "t1"}}))

	assert.Equal(t, "t1", catalog.lastScope)
	job := repo.job("e1")
	assert.Equal(t, models.ExportStatusCompleted, job.Status)
	assert.True(t, strings.HasSuffix(job.FilePath, ".csv"))

	// status carries a signed download URL once completed
	status, err := service.Get(context.Background(), teacherClaims("t1"), "e1")
	require.NoError(t, err)
	assert.Contains(t, status.DownloadURL, "/api/v1/exports/download/")
	require.NotNil(t, status.ExpiresAt)

	token := status.DownloadURL[strings.LastIndex(status.DownloadURL, "/")+1:]
	file, exportID, err := service.OpenDownload(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "e1", exportID)

	info, err := file.Stat()
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceProcessPDF(t *testing.T) {
	repo := newMockExportRepo()
	catalog := &mockCatalog{files: []models.File{
		{ID: "f1", Name: "Slides", Filename: "slides.png", Type: "image", Size: 100, CreatedAt: time.Now()},
	}}
	service := newExportServiceForTest(t, repo, catalog)

	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{ID: "e1", RequestedBy: "admin-1", Format: models.ExportFormatPDF}))
	require.NoError(t, service.process(context.Background(), jobs.Job{ID: "e1", Payload: exportPayload{JobID: "e1"}}))

	job := repo.job("e1")
	assert.Equal(t, models.ExportStatusCompleted, job.Status)
	assert.True(t, strings.HasSuffix(job.FilePath, ".pdf"))
}

func TestExportServiceGetHidesForeignJobs(t *testing.T) {
	repo := newMockExportRepo()
	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{ID: "e1", RequestedBy: "t1", Format: "csv"}))
	service := newExportServiceForTest(t, repo, &mockCatalog{})

	_, err := service.Get(context.Background(), teacherClaims("t2"), "e1")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	// managers can inspect anyone's jobs
	_, err = service.Get(context.Background(), &models.JWTClaims{UserID: "m1", Role: models.RoleManager}, "e1")
	require.NoError(t, err)

	_, err = service.Get(context.Background(), adminClaims(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestExportServiceOpenDownloadRejectsBadToken(t *testing.T) {
	service := newExportServiceForTest(t, newMockExportRepo(), &mockCatalog{})

	_, _, err := service.OpenDownload("not-a-token")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestExportServiceQueueRoundTrip(t *testing.T) {
	repo := newMockExportRepo()
	catalog := &mockCatalog{}
	service := newExportServiceForTest(t, repo, catalog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)
	defer service.Stop()

	status, err := service.Request(context.Background(), adminClaims(), models.CreateExportRequest{Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusPending, status.Status)

	require.Eventually(t, func() bool {
		st, err := service.Get(context.Background(), adminClaims(), status.ID)
		return err == nil && st.Status == models.ExportStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExportServiceCleanup(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = store.Save("old.csv", []byte("data"))
	require.NoError(t, err)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("old.csv"), old, old))

	signer := storage.NewSignedURLSigner("secret", time.Hour)
	service := NewExportService(newMockExportRepo(), &mockCatalog{}, store, signer, ExportConfig{ResultTTL: time.Hour}, nil, zap.NewNop())

	deleted, err := service.Cleanup()
	require.NoError(t, err)
	assert.Contains(t, deleted, "old.csv")
}
