package models

import "time"

type ReportStatus string

const (
	ReportStatusPending       ReportStatus = "pending"
	ReportStatusInvestigating ReportStatus = "investigating"
	ReportStatusResolved      ReportStatus = "resolved"
	ReportStatusDismissed     ReportStatus = "dismissed"
)

// IsTerminal reports whether no further transition is allowed.
func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusResolved || s == ReportStatusDismissed
}

type ReportSeverity string

const (
	SeverityLow    ReportSeverity = "low"
	SeverityMedium ReportSeverity = "medium"
	SeverityHigh   ReportSeverity = "high"
)

type ReportAction string

const (
	ActionWarning      ReportAction = "warning"
	ActionTemporaryBan ReportAction = "temporary_ban"
	ActionPermanentBan ReportAction = "permanent_ban"
	ActionNone         ReportAction = "none"
)

const (
	ReportTypeHarassment           = "harassment"
	ReportTypeSpam                 = "spam"
	ReportTypeInappropriateContent = "inappropriate_content"
	ReportTypeFakeProfile          = "fake_profile"
	ReportTypeScam                 = "scam"
	ReportTypeOther                = "other"
)

type Report struct {
	ID             string
	ReporterID     string
	ReportedUserID string
	Type           string
	Description    string
	Evidence       []string
	Status         ReportStatus
	Severity       ReportSeverity
	Resolution     string
	ActionTaken    ReportAction
	ReviewedBy     *string
	ReviewedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
