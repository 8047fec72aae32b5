package models

import (
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Role string

const (
	RoleSeeker    Role = "seeker"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"

	// RoleGuardian is never stored on a member. It marks callers signed in
	// through the guardian dashboard.
	RoleGuardian Role = "guardian"
)

type Member struct {
	ID               string
	Email            string
	PasswordHash     string
	Name             string
	Gender           Gender
	Role             Role
	IsActive         bool
	IsBanned         bool
	BannedAt         *time.Time
	SuspendUntil     *time.Time
	SuspensionReason string
	Warnings         []Warning
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Warning is a moderator notice recorded against a member.
type Warning struct {
	ID        string
	MemberID  string
	Reason    string
	IssuedBy  string
	CreatedAt time.Time
}

// IsStaff reports whether the member can act on moderation cases.
func (m *Member) IsStaff() bool {
	return m.Role == RoleModerator || m.Role == RoleAdmin
}

// IsSuspended reports whether the member is inactive without being banned.
func (m *Member) IsSuspended() bool {
	return !m.IsActive && !m.IsBanned
}
