package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleManager UserRole = "MANAGER"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// UserStatus tracks the approval lifecycle of an account.
type UserStatus string

const (
	StatusPending  UserStatus = "PENDING"
	StatusApproved UserStatus = "APPROVED"
	StatusActive   UserStatus = "ACTIVE"
	StatusRejected UserStatus = "REJECTED"
)

// User represents an application user stored in the users table.
type User struct {
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FullName      string     `db:"full_name" json:"full_name"`
	Role          UserRole   `db:"role" json:"role"`
	Status        UserStatus `db:"status" json:"status"`
	EmailVerified bool       `db:"email_verified" json:"email_verified"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// CanAuthenticate reports whether the account may obtain a session.
// PENDING and REJECTED accounts never authenticate. Students must have
// reached ACTIVE through email verification; teachers must have been
// approved by an administrator.
func (u *User) CanAuthenticate() bool {
	switch u.Status {
	case StatusPending, StatusRejected:
		return false
	}
	switch u.Role {
	case RoleStudent:
		return u.Status == StatusActive
	case RoleTeacher:
		return u.Status == StatusApproved || u.Status == StatusActive
	case RoleAdmin, RoleManager:
		return u.Status == StatusApproved || u.Status == StatusActive
	default:
		return false
	}
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Status    *UserStatus
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}
