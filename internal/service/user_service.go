package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eduvault/eduvault-api/internal/authz"
	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService handles account administration: listing accounts,
// approving or rejecting teacher applications and changing roles.
type UserService struct {
	repo   userRepository
	logger *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// List returns accounts visible to the caller. Only administrators and
// managers may browse accounts.
func (s *UserService) List(ctx context.Context, claims *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.PageInfo, error) {
	if err := authz.RequireRole(claims, models.RoleAdmin, models.RoleManager); err != nil {
		return nil, nil, err
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, models.NewPageInfo(total, filter.Page, filter.Limit), nil
}

// Get returns a single account.
func (s *UserService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.User, error) {
	if err := authz.RequireAuth(claims); err != nil {
		return nil, err
	}
	if claims.UserID != id {
		if err := authz.RequireRole(claims, models.RoleAdmin, models.RoleManager); err != nil {
			return nil, err
		}
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Approve moves a pending account to APPROVED. Administrators and
// managers may approve.
func (s *UserService) Approve(ctx context.Context, claims *models.JWTClaims, id string) (*models.User, error) {
	return s.transitionStatus(ctx, claims, id, models.StatusApproved, models.AuditActionUserApprove)
}

// Reject moves a pending account to REJECTED.
func (s *UserService) Reject(ctx context.Context, claims *models.JWTClaims, id string) (*models.User, error) {
	user, err := s.transitionStatus(ctx, claims, id, models.StatusRejected, models.AuditActionUserReject)
	if err != nil {
		return nil, err
	}
	// Rejected accounts lose any live sessions immediately.
	if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
		s.logger.Warn("failed to revoke sessions of rejected account", zap.Error(err))
	}
	return user, nil
}

func (s *UserService) transitionStatus(ctx context.Context, claims *models.JWTClaims, id string, status models.UserStatus, action string) (*models.User, error) {
	if err := authz.RequireRole(claims, models.RoleAdmin, models.RoleManager); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if user.Status == status {
		return user, nil
	}
	if user.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account is not awaiting review")
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account status")
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "user",
		ResourceID: &id,
		OldValues:  []byte(fmt.Sprintf(`{"status":%q}`, user.Status)),
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, status)),
	}); err != nil {
		s.logger.Warn("failed to record status change audit log", zap.Error(err))
	}

	user.Status = status
	return user, nil
}

// ChangeRole promotes or demotes an account. Only administrators may
// change roles, and nobody can change their own.
func (s *UserService) ChangeRole(ctx context.Context, claims *models.JWTClaims, id string, role models.UserRole) (*models.User, error) {
	if err := authz.RequireRoleChange(claims); err != nil {
		return nil, err
	}
	if claims.UserID == id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change your own role")
	}
	switch role {
	case models.RoleAdmin, models.RoleManager, models.RoleTeacher, models.RoleStudent:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role == role {
		return user, nil
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}

	// Role is baked into access tokens, so active sessions are revoked
	// and the user must sign in again under the new role.
	if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
		s.logger.Warn("failed to revoke sessions after role change", zap.Error(err))
	}

	action := models.AuditActionUserPromote
	if roleRank(role) < roleRank(user.Role) {
		action = models.AuditActionUserDemote
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "user",
		ResourceID: &id,
		OldValues:  []byte(fmt.Sprintf(`{"role":%q}`, user.Role)),
		NewValues:  []byte(fmt.Sprintf(`{"role":%q}`, role)),
	}); err != nil {
		s.logger.Warn("failed to record role change audit log", zap.Error(err))
	}

	user.Role = role
	return user, nil
}

// Capabilities derives the caller's capability set for UI gating.
func (s *UserService) Capabilities(claims *models.JWTClaims) authz.Capabilities {
	return authz.ForClaims(claims)
}

func roleRank(role models.UserRole) int {
	switch role {
	case models.RoleAdmin:
		return 3
	case models.RoleManager:
		return 2
	case models.RoleTeacher:
		return 1
	default:
		return 0
	}
}
