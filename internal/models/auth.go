package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types
const (
	TokenTypeAccess   = "access"
	TokenTypeGuardian = "guardian"
)

type TokenClaims struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	Role       Role   `json:"role,omitempty"`
	GuardianID string `json:"guardian_id,omitempty"`
	jwt.RegisteredClaims
}

// CallerContext identifies who is performing an operation. It is built once
// per request from verified credentials and passed explicitly to services.
//
// For guardian sessions MemberID is the protected member and GuardianID is set.
type CallerContext struct {
	MemberID   string
	Role       Role
	GuardianID string
}

// IsAdmin reports whether the caller is an administrator.
func (c CallerContext) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// IsStaff reports whether the caller is a moderator or administrator.
func (c CallerContext) IsStaff() bool {
	return c.Role == RoleModerator || c.Role == RoleAdmin
}

// IsGuardian reports whether the caller signed in through the guardian dashboard.
func (c CallerContext) IsGuardian() bool {
	return c.Role == RoleGuardian && c.GuardianID != ""
}
