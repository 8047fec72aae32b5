package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/pkg/logger"
)

// AuditLogStore persists moderation audit rows
type AuditLogStore interface {
	Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	ListByTarget(ctx context.Context, targetID string, limit, offset int) ([]*models.AuditLog, error)
	List(ctx context.Context, eventType string, limit, offset int) ([]*models.AuditLog, error)
}

// AuditEntry describes one moderation action
type AuditEntry struct {
	EventType     string
	Action        string
	ActorID       string
	TargetID      string
	ResourceType  string
	ResourceID    string
	Success       bool
	FailureReason string
	Metadata      models.AuditMetadata
}

// AuditRecorder records moderation actions
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditService handles audit logging with dual-write pattern (slog + database)
type AuditService struct {
	repo   AuditLogStore
	audit  *logger.AuditLogger
	logger *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo AuditLogStore, log *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		audit:  logger.NewAuditLogger(log),
		logger: log,
	}
}

// Record writes the audit line, then persists the row. Persistence failures
// are logged and never fail the moderation action.
func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	s.audit.Log(ctx, logger.AuditEvent{
		EventType:     e.EventType,
		Action:        e.Action,
		ActorID:       e.ActorID,
		TargetID:      e.TargetID,
		ResourceID:    e.ResourceID,
		Success:       e.Success,
		FailureReason: e.FailureReason,
		Metadata:      e.Metadata,
	})

	row := &models.AuditLog{
		EventType:     e.EventType,
		ActorID:       optional(e.ActorID),
		TargetID:      optional(e.TargetID),
		ResourceType:  optional(e.ResourceType),
		ResourceID:    optional(e.ResourceID),
		Action:        e.Action,
		Success:       e.Success,
		FailureReason: optional(e.FailureReason),
		Metadata:      e.Metadata,
	}

	if _, err := s.repo.Create(ctx, row); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log",
			slog.String("event_type", e.EventType),
			slog.String("action", e.Action),
			slog.Any("error", err),
		)
	}
}

// List returns audit rows for a target member, or all rows of an event type
// when targetID is empty. Staff only.
func (s *AuditService) List(ctx context.Context, caller models.CallerContext, targetID, eventType string, limit, offset int) ([]*models.AuditLog, error) {
	if !caller.IsStaff() {
		return nil, models.ErrForbidden
	}

	var (
		logs []*models.AuditLog
		err  error
	)
	if targetID != "" {
		logs, err = s.repo.ListByTarget(ctx, targetID, limit, offset)
	} else {
		logs, err = s.repo.List(ctx, eventType, limit, offset)
	}
	if err != nil {
		s.logger.Error("failed to list audit logs", slog.String("target_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return logs, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
