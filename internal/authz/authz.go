// Package authz implements the permission model over principals and
// resource ownership. All checks are pure functions of the JWT claims and
// the target's owner snapshot; nothing here touches storage, so the same
// rules serve handlers, services and tests alike.
package authz

import (
	"github.com/eduvault/eduvault-api/internal/models"
	appErrors "github.com/eduvault/eduvault-api/pkg/errors"
)

// Capabilities is the static capability set derived from a role,
// exposed to clients so they can shape their UI without probing.
type Capabilities struct {
	CanCreate      bool `json:"can_create"`
	CanView        bool `json:"can_view"`
	CanManageUsers bool `json:"can_manage_users"`
	CanChangeRoles bool `json:"can_change_roles"`
	IsAdmin        bool `json:"is_admin"`
	IsManager      bool `json:"is_manager"`
	IsTeacher      bool `json:"is_teacher"`
	IsStudent      bool `json:"is_student"`
}

// ForRole derives the capability set for a role.
func ForRole(role models.UserRole) Capabilities {
	caps := Capabilities{CanView: true}
	switch role {
	case models.RoleAdmin:
		caps.IsAdmin = true
		caps.CanCreate = true
		caps.CanManageUsers = true
		caps.CanChangeRoles = true
	case models.RoleManager:
		caps.IsManager = true
		caps.CanCreate = true
		caps.CanManageUsers = true
		caps.CanChangeRoles = true
	case models.RoleTeacher:
		caps.IsTeacher = true
		caps.CanCreate = true
	default:
		caps.IsStudent = true
	}
	return caps
}

// ForClaims derives capabilities from claims, failing closed to the
// read-only student set when no principal is present.
func ForClaims(claims *models.JWTClaims) Capabilities {
	if claims == nil {
		return ForRole(models.RoleStudent)
	}
	return ForRole(claims.Role)
}

// RequireAuth fails with 401 when no principal was resolved.
func RequireAuth(claims *models.JWTClaims) error {
	if claims == nil || claims.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	return nil
}

// RequireRole fails with 403 when the principal's role is not in the
// allowed set, and 401 when there is no principal at all.
func RequireRole(claims *models.JWTClaims, allowed ...models.UserRole) error {
	if err := RequireAuth(claims); err != nil {
		return err
	}
	for _, role := range allowed {
		if claims.Role == role {
			return nil
		}
	}
	return appErrors.ErrForbidden
}

// RequireCreate gates resource creation: every role except STUDENT may
// create.
func RequireCreate(claims *models.JWTClaims) error {
	if err := RequireAuth(claims); err != nil {
		return err
	}
	if claims.Role == models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "students cannot create content")
	}
	return nil
}

// RequireMutate gates update and delete with the same predicate:
// ADMIN and MANAGER may mutate anything, TEACHER only resources they
// own, STUDENT nothing. Callers must confirm the resource exists before
// invoking this, so a missing resource surfaces as 404 rather than 403.
func RequireMutate(claims *models.JWTClaims, ownerID string) error {
	if err := RequireAuth(claims); err != nil {
		return err
	}
	switch claims.Role {
	case models.RoleAdmin, models.RoleManager:
		return nil
	case models.RoleTeacher:
		if ownerID == claims.UserID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "you do not own this resource")
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "students cannot modify content")
	}
}

// RequireRoleChange gates promote/demote operations to ADMIN exactly.
// Managers approve teacher applications but never change roles.
func RequireRoleChange(claims *models.JWTClaims) error {
	return RequireRole(claims, models.RoleAdmin)
}

// OwnerScope returns the owner id listings must be restricted to, or ""
// when the principal sees everything. Only TEACHER is scoped to own
// content; STUDENT browses the full library read-only.
func OwnerScope(claims *models.JWTClaims) string {
	if claims != nil && claims.Role == models.RoleTeacher {
		return claims.UserID
	}
	return ""
}
