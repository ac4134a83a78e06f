package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduvault/eduvault-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func fileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "filename", "url", "public_id", "download_url", "name", "description", "classes", "type", "size", "category_id", "owner_id", "owner_name", "created_at"}).
		AddRow("f1", "slides.png", "http://media/slides.png", "files/blob-1", "http://media/slides.png", "Slides", "", []byte("{7,8}"), "image", 100, nil, "t1", "Tom Teacher", time.Now())
}

func TestFileRepositoryListDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, filename, url, public_id, download_url, name, description, classes, type, size, category_id, owner_id, owner_name, created_at FROM files WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(fileRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM files WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	files, total, err := repo.List(context.Background(), models.FileFilter{}, "")
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, pq.Int64Array{7, 8}, files[0].Classes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryListOwnerScope(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM files WHERE 1=1 AND owner_id = $1 ORDER BY created_at DESC")).
		WithArgs("t1").
		WillReturnRows(fileRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM files WHERE 1=1 AND owner_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), models.FileFilter{}, "t1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryListClassesOverlapVersusContainment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("classes && $1")).
		WillReturnRows(fileRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), models.FileFilter{Classes: []int64{7, 8}}, "")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("classes @> $1")).
		WillReturnRows(fileRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err = repo.List(context.Background(), models.FileFilter{Classes: []int64{7, 8}, AllClasses: true}, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryListCombinedPredicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	minSize := int64(10)

	expected := regexp.QuoteMeta("(LOWER(name) LIKE $1 OR LOWER(filename) LIKE $1 OR LOWER(description) LIKE $1) AND type = ANY($2) AND created_at >= $3 AND created_at <= $4 AND LOWER(owner_name) LIKE $5 AND category_id = $6 AND size >= $7")
	mock.ExpectQuery(expected).
		WithArgs("%algebra%", sqlmock.AnyArg(), from, to, "%smith%", "cat-1", minSize).
		WillReturnRows(fileRows())
	mock.ExpectQuery(expected).
		WithArgs("%algebra%", sqlmock.AnyArg(), from, to, "%smith%", "cat-1", minSize).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, total, err := repo.List(context.Background(), models.FileFilter{
		Search:     "Algebra",
		Types:      []string{"video", "image"},
		DateFrom:   &from,
		DateTo:     &to,
		Owner:      "Smith",
		CategoryID: "cat-1",
		MinSize:    &minSize,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryListSortWhitelist(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	// an unknown sort column falls back to created_at
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WillReturnRows(fileRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), models.FileFilter{SortBy: "name; DROP TABLE files"}, "")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY size ASC")).
		WillReturnRows(fileRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err = repo.List(context.Background(), models.FileFilter{SortBy: "size", SortOrder: "asc"}, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryFindByIDNoRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM files WHERE id = $1 LIMIT 1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryFindByIDsShortCircuitsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	files, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, files)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryCreateMintsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	mock.ExpectExec("INSERT INTO files").
		WillReturnResult(sqlmock.NewResult(1, 1))

	file := &models.File{ID: "client-supplied", Name: "Slides", OwnerID: "t1"}
	require.NoError(t, repo.Create(context.Background(), file))
	assert.NotEqual(t, "client-supplied", file.ID)
	assert.False(t, file.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM files WHERE id = $1")).
		WithArgs("f1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Delete(context.Background(), "f1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
