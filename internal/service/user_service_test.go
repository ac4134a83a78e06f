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

type mockUserRepo struct {
	users        map[string]*models.User
	listResult   []models.User
	listTotal    int
	statusSet    map[string]models.UserStatus
	roleSet      map[string]models.UserRole
	revokedUsers []string
	auditLogs    []models.AuditLog
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockUserRepo) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	if m.statusSet == nil {
		m.statusSet = make(map[string]models.UserStatus)
	}
	m.statusSet[id] = status
	m.users[id].Status = status
	return nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	if m.roleSet == nil {
		m.roleSet = make(map[string]models.UserRole)
	}
	m.roleSet[id] = role
	m.users[id].Role = role
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

func TestUserServiceListRequiresManagerOrAdmin(t *testing.T) {
	service := NewUserService(&mockUserRepo{}, zap.NewNop())

	_, _, err := service.List(context.Background(), teacherClaims("t1"), models.UserFilter{})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	_, _, err = service.List(context.Background(), adminClaims(), models.UserFilter{})
	require.NoError(t, err)
}

func TestUserServiceGetSelfOrPrivileged(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher},
	}}
	service := NewUserService(repo, zap.NewNop())

	// self
	user, err := service.Get(context.Background(), teacherClaims("t1"), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", user.ID)

	// another teacher's account
	_, err = service.Get(context.Background(), teacherClaims("t2"), "t1")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	// manager sees everyone
	_, err = service.Get(context.Background(), &models.JWTClaims{UserID: "m1", Role: models.RoleManager}, "t1")
	require.NoError(t, err)
}

func TestUserServiceApprove(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher, Status: models.StatusPending},
	}}
	service := NewUserService(repo, zap.NewNop())

	user, err := service.Approve(context.Background(), adminClaims(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, user.Status)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserApprove, repo.auditLogs[0].Action)
}

func TestUserServiceApproveIdempotent(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher, Status: models.StatusApproved},
	}}
	service := NewUserService(repo, zap.NewNop())

	user, err := service.Approve(context.Background(), adminClaims(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, user.Status)
	assert.Empty(t, repo.statusSet)
	assert.Empty(t, repo.auditLogs)
}

func TestUserServiceApproveNonPendingConflicts(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher, Status: models.StatusRejected},
	}}
	service := NewUserService(repo, zap.NewNop())

	_, err := service.Approve(context.Background(), adminClaims(), "t1")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestUserServiceApproveNotFoundBeforeConflict(t *testing.T) {
	service := NewUserService(&mockUserRepo{}, zap.NewNop())

	_, err := service.Approve(context.Background(), adminClaims(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestUserServiceRejectRevokesSessions(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher, Status: models.StatusPending},
	}}
	service := NewUserService(repo, zap.NewNop())

	user, err := service.Reject(context.Background(), adminClaims(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, user.Status)
	assert.Equal(t, []string{"t1"}, repo.revokedUsers)
}

func TestUserServiceChangeRoleAdminOnly(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher, Status: models.StatusApproved},
	}}
	service := NewUserService(repo, zap.NewNop())

	_, err := service.ChangeRole(context.Background(), &models.JWTClaims{UserID: "m1", Role: models.RoleManager}, "t1", models.RoleManager)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	user, err := service.ChangeRole(context.Background(), adminClaims(), "t1", models.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)
	assert.Equal(t, []string{"t1"}, repo.revokedUsers)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserPromote, repo.auditLogs[0].Action)
}

func TestUserServiceChangeRoleDemote(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"m1": {ID: "m1", Role: models.RoleManager, Status: models.StatusApproved},
	}}
	service := NewUserService(repo, zap.NewNop())

	user, err := service.ChangeRole(context.Background(), adminClaims(), "m1", models.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, user.Role)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDemote, repo.auditLogs[0].Action)
}

func TestUserServiceChangeRoleSelfForbidden(t *testing.T) {
	claims := adminClaims()
	repo := &mockUserRepo{users: map[string]*models.User{
		claims.UserID: {ID: claims.UserID, Role: models.RoleAdmin},
	}}
	service := NewUserService(repo, zap.NewNop())

	_, err := service.ChangeRole(context.Background(), claims, claims.UserID, models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestUserServiceChangeRoleUnknownRole(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher},
	}}
	service := NewUserService(repo, zap.NewNop())

	_, err := service.ChangeRole(context.Background(), adminClaims(), "t1", models.UserRole("SUPERUSER"))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestUserServiceCapabilities(t *testing.T) {
	service := NewUserService(&mockUserRepo{}, zap.NewNop())

	caps := service.Capabilities(studentClaims())
	assert.False(t, caps.CanCreate)
	assert.True(t, caps.CanView)

	caps = service.Capabilities(adminClaims())
	assert.True(t, caps.CanChangeRoles)
}
