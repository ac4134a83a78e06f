package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduvault/eduvault-api/internal/models"
	"github.com/eduvault/eduvault-api/internal/repository"
)

func newAuditRepo(t *testing.T) (*repository.UserRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return repository.NewUserRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo, mock, cleanup := newAuditRepo(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	r := gin.New()
	r.GET("/downloads/:token",
		func(c *gin.Context) { c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}) },
		Audit(repo, models.AuditActionExportDownload, "export"),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/downloads/tok-1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditSkipsFailedRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo, mock, cleanup := newAuditRepo(t)
	defer cleanup()

	// no insert expected: 4xx responses leave no trail
	r := gin.New()
	r.GET("/downloads/:token",
		Audit(repo, models.AuditActionExportDownload, "export"),
		func(c *gin.Context) { c.Status(http.StatusUnauthorized) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/downloads/tok-1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRecordsAnonymousRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo, mock, cleanup := newAuditRepo(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	// pre-signed downloads work without a session; the row has no user id
	r := gin.New()
	r.GET("/downloads/:token",
		Audit(repo, models.AuditActionExportDownload, "export"),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/downloads/tok-1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
