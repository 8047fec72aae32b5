package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Event types for the moderation audit trail
const (
	AuditEventReport       = "report"
	AuditEventEnforcement  = "enforcement"
	AuditEventMessage      = "message_moderation"
	AuditEventGuardian     = "guardian_review"
	AuditEventSuspensionEx = "suspension_expired"
)

// Resource types
const (
	AuditResourceMember   = "member"
	AuditResourceReport   = "report"
	AuditResourceMessage  = "message"
	AuditResourceGuardian = "guardian"
	AuditResourceLike     = "like"
)

// Actions
const (
	AuditActionInvestigate = "investigate"
	AuditActionResolve     = "resolve"
	AuditActionDismiss     = "dismiss"
	AuditActionSuspend     = "suspend"
	AuditActionWarn        = "warn"
	AuditActionBan         = "ban"
	AuditActionUnblock     = "unblock"
	AuditActionBlock       = "block"
	AuditActionUnblockMsg  = "unblock_message"
	AuditActionApprove     = "approve"
	AuditActionReject      = "reject"
	AuditActionReactivate  = "reactivate"
)

type AuditLog struct {
	ID            string        `db:"id"`
	EventType     string        `db:"event_type"`
	ActorID       *string       `db:"actor_id"`
	TargetID      *string       `db:"target_id"`
	ResourceType  *string       `db:"resource_type"`
	ResourceID    *string       `db:"resource_id"`
	Action        string        `db:"action"`
	Success       bool          `db:"success"`
	FailureReason *string       `db:"failure_reason"`
	Metadata      AuditMetadata `db:"metadata"`
	CreatedAt     time.Time     `db:"created_at"`
}

// AuditMetadata holds additional context for audit events
type AuditMetadata map[string]interface{}

// NewEnforcementMetadata builds metadata for member enforcement actions.
// Zero-valued fields are omitted.
func NewEnforcementMetadata(reason string, durationDays int, reportID string, warnings []string) AuditMetadata {
	md := AuditMetadata{}
	if reason != "" {
		md["reason"] = reason
	}
	if durationDays > 0 {
		md["duration_days"] = durationDays
	}
	if reportID != "" {
		md["report_id"] = reportID
	}
	if len(warnings) > 0 {
		md["warnings"] = warnings
	}
	return md
}

// Scan implements sql.Scanner for JSONB
func (am *AuditMetadata) Scan(value interface{}) error {
	if value == nil {
		*am = make(AuditMetadata)
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*am = AuditMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AuditMetadata) Value() (driver.Value, error) {
	if am == nil {
		return nil, nil
	}
	return json.Marshal(map[string]interface{}(am))
}
