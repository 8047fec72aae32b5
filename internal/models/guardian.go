package models

import "time"

type GuardianStatus string

const (
	GuardianStatusPending  GuardianStatus = "pending"
	GuardianStatusApproved GuardianStatus = "approved"
	GuardianStatusRejected GuardianStatus = "rejected"
)

type GuardianType string

const (
	GuardianTypeFamily           GuardianType = "family"
	GuardianTypePaid             GuardianType = "paid"
	GuardianTypePlatformAssigned GuardianType = "platform-assigned"
)

// Guardian (wali) supervising a female member's participation in messaging.
// A record is authoritative only while its status is approved.
type Guardian struct {
	ID                   string
	UserID               string
	Name                 string
	Email                string
	Relationship         string
	Type                 GuardianType
	Status               GuardianStatus
	HasAccessToDashboard bool
	PlatformServicePaid  bool
	NotifyOnNewMessage   bool
	TOTPSecretEncrypted  []byte
	TOTPNonce            []byte
	TOTPLastUsedAt       *time.Time
	ReviewedBy           *string
	ReviewedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsApproved reports whether the record can act as an authorization source.
func (g *Guardian) IsApproved() bool {
	return g != nil && g.Status == GuardianStatusApproved
}

// IsServiceActive reports whether the guardianship has been operationalized,
// not merely requested.
func (g *Guardian) IsServiceActive() bool {
	return g.IsApproved() && (g.PlatformServicePaid || g.HasAccessToDashboard)
}

// WantsMessageNotifications reports whether new-message emails should be sent.
func (g *Guardian) WantsMessageNotifications() bool {
	return g.IsApproved() && g.NotifyOnNewMessage && g.Email != ""
}

// HasAuthenticator reports whether a dashboard authenticator is enrolled.
func (g *Guardian) HasAuthenticator() bool {
	return len(g.TOTPSecretEncrypted) > 0 && len(g.TOTPNonce) > 0
}
