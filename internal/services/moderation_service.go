package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/mithaq/internal/metrics"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/repositories"
)

// MemberEnforcementStore mutates member moderation state
type MemberEnforcementStore interface {
	GetByID(ctx context.Context, id string) (*models.Member, error)
	Suspend(ctx context.Context, id string, until time.Time, reason string) (*models.Member, error)
	Ban(ctx context.Context, id string, reason string, at time.Time) (*models.Member, error)
	Reactivate(ctx context.Context, id string) (*models.Member, error)
	LiftSuspension(ctx context.Context, id string, now time.Time) (*models.Member, error)
	ListExpiredSuspensions(ctx context.Context, now time.Time, limit int) ([]*models.Member, error)
	AddWarning(ctx context.Context, w *models.Warning) (*models.Warning, error)
	ListWarnings(ctx context.Context, memberID string) ([]models.Warning, error)
}

// ReportStore owns reports
type ReportStore interface {
	Create(ctx context.Context, rep *models.Report) (*models.Report, error)
	GetByID(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, status models.ReportStatus, limit, offset int) ([]*models.Report, error)
	Transition(ctx context.Context, id string, t repositories.ReportTransition) (*models.Report, error)
}

// BanCascadeStore records ban cascade progress
type BanCascadeStore interface {
	Start(ctx context.Context, memberID string) error
	MarkStep(ctx context.Context, memberID, step string) error
	RecordError(ctx context.Context, memberID, message string) error
	Complete(ctx context.Context, memberID string) error
	Get(ctx context.Context, memberID string) (*models.BanCascade, error)
}

// MessagePurger deletes messages of a banned member
type MessagePurger interface {
	DeleteBySender(ctx context.Context, senderID string) (int64, error)
	DeleteInConversationsOf(ctx context.Context, memberID string) (int64, error)
}

// ConversationPurger deletes conversations of a banned member
type ConversationPurger interface {
	DeleteByParticipant(ctx context.Context, memberID string) (int64, error)
}

// LikePurger deletes likes of a banned member
type LikePurger interface {
	DeleteByMember(ctx context.Context, memberID string) (int64, error)
}

// MemberNotifier sends moderation notices to members
type MemberNotifier interface {
	NotifySuspended(member *models.Member, reason string, until time.Time)
	NotifyWarned(member *models.Member, reason string)
	NotifyBanned(member *models.Member, reason string)
}

// ModerationDeps groups the collaborators of ModerationService
type ModerationDeps struct {
	Members       MemberEnforcementStore
	Reports       ReportStore
	Cascades      BanCascadeStore
	Messages      MessagePurger
	Conversations ConversationPurger
	Likes         LikePurger
	Notifier      MemberNotifier
	Audit         AuditRecorder
}

// ReportInput is a new report filed by a member
type ReportInput struct {
	ReportedUserID string
	Type           string
	Description    string
	Evidence       []string
	Severity       models.ReportSeverity
}

// ResolveInput carries the moderator's decision when approving a report
type ResolveInput struct {
	Resolution   string
	Action       models.ReportAction
	DurationDays int
}

// BanResult is returned by BanMember. Warnings lists cascade steps that failed.
type BanResult struct {
	Member   *models.Member
	Cascade  *models.BanCascade
	Warnings []string
}

type cascadeStep struct {
	name string
	run  func(ctx context.Context, memberID string) (int64, error)
}

// ModerationService owns the report lifecycle and member enforcement
type ModerationService struct {
	members     MemberEnforcementStore
	reports     ReportStore
	cascades    BanCascadeStore
	steps       []cascadeStep
	notifier    MemberNotifier
	audit       AuditRecorder
	highSevDays int
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewModerationService(deps ModerationDeps, highSeverityDays int, m *metrics.Metrics, logger *slog.Logger) *ModerationService {
	steps := map[string]func(ctx context.Context, memberID string) (int64, error){
		models.CascadeStepMessagesSent:         deps.Messages.DeleteBySender,
		models.CascadeStepConversationMessages: deps.Messages.DeleteInConversationsOf,
		models.CascadeStepConversations:        deps.Conversations.DeleteByParticipant,
		models.CascadeStepLikes:                deps.Likes.DeleteByMember,
	}

	ordered := make([]cascadeStep, 0, len(models.BanCascadeSteps))
	for _, name := range models.BanCascadeSteps {
		ordered = append(ordered, cascadeStep{name: name, run: steps[name]})
	}

	return &ModerationService{
		members:     deps.Members,
		reports:     deps.Reports,
		cascades:    deps.Cascades,
		steps:       ordered,
		notifier:    deps.Notifier,
		audit:       deps.Audit,
		highSevDays: highSeverityDays,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

var validReportTypes = map[string]bool{
	models.ReportTypeHarassment:           true,
	models.ReportTypeSpam:                 true,
	models.ReportTypeInappropriateContent: true,
	models.ReportTypeFakeProfile:          true,
	models.ReportTypeScam:                 true,
	models.ReportTypeOther:                true,
}

func validSeverity(s models.ReportSeverity) bool {
	return s == models.SeverityLow || s == models.SeverityMedium || s == models.SeverityHigh
}

// CreateReport files a report against another member.
func (s *ModerationService) CreateReport(ctx context.Context, caller models.CallerContext, in ReportInput) (*models.Report, error) {
	if caller.IsGuardian() {
		return nil, models.ErrForbidden
	}
	if in.ReportedUserID == caller.MemberID {
		return nil, models.NewValidationError("cannot report yourself")
	}
	if !validReportTypes[in.Type] {
		return nil, models.NewValidationError("unknown report type %q", in.Type)
	}
	if in.Severity == "" {
		in.Severity = models.SeverityLow
	}
	if !validSeverity(in.Severity) {
		return nil, models.NewValidationError("unknown severity %q", in.Severity)
	}

	if _, err := s.loadMember(ctx, in.ReportedUserID); err != nil {
		return nil, err
	}

	rep, err := s.reports.Create(ctx, &models.Report{
		ReporterID:     caller.MemberID,
		ReportedUserID: in.ReportedUserID,
		Type:           in.Type,
		Description:    strings.TrimSpace(in.Description),
		Evidence:       in.Evidence,
		Severity:       in.Severity,
	})
	if err != nil {
		s.logger.Error("failed to create report", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("report created",
		slog.String("report_id", rep.ID),
		slog.String("type", rep.Type),
		slog.String("severity", string(rep.Severity)))
	return rep, nil
}

// ListReports returns reports for the moderation queue.
func (s *ModerationService) ListReports(ctx context.Context, caller models.CallerContext, status models.ReportStatus, limit, offset int) ([]*models.Report, error) {
	if !caller.IsStaff() {
		return nil, models.ErrForbidden
	}

	reports, err := s.reports.List(ctx, status, limit, offset)
	if err != nil {
		s.logger.Error("failed to list reports", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return reports, nil
}

// InvestigateReport moves a pending report to investigating, optionally
// re-grading its severity.
func (s *ModerationService) InvestigateReport(ctx context.Context, caller models.CallerContext, reportID string, severity models.ReportSeverity) (*models.Report, error) {
	if !caller.IsStaff() {
		return nil, models.ErrForbidden
	}

	t := repositories.ReportTransition{
		From:       []models.ReportStatus{models.ReportStatusPending},
		To:         models.ReportStatusInvestigating,
		ReviewedBy: caller.MemberID,
	}
	if severity != "" {
		if !validSeverity(severity) {
			return nil, models.NewValidationError("unknown severity %q", severity)
		}
		t.Severity = &severity
	}

	rep, err := s.transition(ctx, reportID, t)
	if err != nil {
		return nil, err
	}

	s.recordReport(ctx, caller, rep, models.AuditActionInvestigate, "")
	return rep, nil
}

// ApproveReport resolves a report and applies its enforcement action. High
// severity always suspends the reported member. The action runs before the
// status write so a failed action leaves the report open for retry.
func (s *ModerationService) ApproveReport(ctx context.Context, caller models.CallerContext, reportID string, in ResolveInput) (*models.Report, error) {
	if !caller.IsStaff() {
		return nil, models.ErrForbidden
	}

	rep, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, lookupError(s.logger, err, "report", reportID)
	}
	if rep.Status.IsTerminal() {
		return nil, models.ErrInvalidState
	}

	action := in.Action
	days := in.DurationDays
	if rep.Severity == models.SeverityHigh {
		action = models.ActionTemporaryBan
		days = s.highSevDays
	}
	if action == "" {
		action = models.ActionNone
	}

	reason := fmt.Sprintf("report %s: %s", rep.ID, rep.Type)
	switch action {
	case models.ActionNone:
	case models.ActionWarning:
		_, err = s.warn(ctx, caller, rep.ReportedUserID, reason, rep.ID)
	case models.ActionTemporaryBan:
		if days <= 0 {
			days = s.highSevDays
		}
		_, err = s.suspend(ctx, caller, rep.ReportedUserID, reason, days, rep.ID)
	case models.ActionPermanentBan:
		_, err = s.ban(ctx, caller, rep.ReportedUserID, reason, rep.ID)
	default:
		return nil, models.NewValidationError("unknown action %q", action)
	}
	if err != nil {
		return nil, err
	}

	resolution := strings.TrimSpace(in.Resolution)
	rep, err = s.transition(ctx, reportID, repositories.ReportTransition{
		From:        []models.ReportStatus{models.ReportStatusPending, models.ReportStatusInvestigating},
		To:          models.ReportStatusResolved,
		Resolution:  &resolution,
		ActionTaken: &action,
		ReviewedBy:  caller.MemberID,
	})
	if err != nil {
		return nil, err
	}

	s.recordReport(ctx, caller, rep, models.AuditActionResolve, string(action))
	return rep, nil
}

// DismissReport closes a report without changing member state.
func (s *ModerationService) DismissReport(ctx context.Context, caller models.CallerContext, reportID, resolution string) (*models.Report, error) {
	if !caller.IsStaff() {
		return nil, models.ErrForbidden
	}

	resolution = strings.TrimSpace(resolution)
	none := models.ActionNone
	rep, err := s.transition(ctx, reportID, repositories.ReportTransition{
		From:        []models.ReportStatus{models.ReportStatusPending, models.ReportStatusInvestigating},
		To:          models.ReportStatusDismissed,
		Resolution:  &resolution,
		ActionTaken: &none,
		ReviewedBy:  caller.MemberID,
	})
	if err != nil {
		return nil, err
	}

	s.recordReport(ctx, caller, rep, models.AuditActionDismiss, "")
	return rep, nil
}

func (s *ModerationService) transition(ctx context.Context, reportID string, t repositories.ReportTransition) (*models.Report, error) {
	rep, err := s.reports.Transition(ctx, reportID, t)
	if err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			return nil, models.ErrInvalidState
		}
		return nil, lookupError(s.logger, err, "report", reportID)
	}
	return rep, nil
}

func (s *ModerationService) recordReport(ctx context.Context, caller models.CallerContext, rep *models.Report, action, taken string) {
	md := models.AuditMetadata{"status": string(rep.Status), "severity": string(rep.Severity)}
	if taken != "" {
		md["action_taken"] = taken
	}

	s.audit.Record(ctx, AuditEntry{
		EventType:    models.AuditEventReport,
		Action:       action,
		ActorID:      caller.MemberID,
		TargetID:     rep.ReportedUserID,
		ResourceType: models.AuditResourceReport,
		ResourceID:   rep.ID,
		Success:      true,
		Metadata:     md,
	})
	s.metrics.IncModerationAction(action)
}

// SuspendMember deactivates a member for durationDays.
func (s *ModerationService) SuspendMember(ctx context.Context, caller models.CallerContext, memberID, reason string, durationDays int) (*models.Member, error) {
	if durationDays < 1 {
		return nil, models.NewValidationError("durationDays must be at least 1")
	}
	return s.suspend(ctx, caller, memberID, reason, durationDays, "")
}

func (s *ModerationService) suspend(ctx context.Context, caller models.CallerContext, memberID, reason string, days int, reportID string) (*models.Member, error) {
	target, err := s.authorizeTarget(ctx, caller, memberID)
	if err != nil {
		return nil, err
	}
	if target.IsBanned {
		// A report against an already banned member resolves without a new suspension.
		if reportID != "" {
			return target, nil
		}
		return nil, models.ErrConflict
	}
	memberID = target.ID

	until := s.now().UTC().Add(time.Duration(days) * 24 * time.Hour)
	member, err := s.members.Suspend(ctx, memberID, until, reason)
	if err != nil {
		return nil, lookupError(s.logger, err, "member", memberID)
	}

	s.notifier.NotifySuspended(member, reason, until)
	s.recordEnforcement(ctx, caller, memberID, models.AuditActionSuspend, models.NewEnforcementMetadata(reason, days, reportID, nil), "")
	return member, nil
}

// WarnMember appends a warning to a member's record.
func (s *ModerationService) WarnMember(ctx context.Context, caller models.CallerContext, memberID, reason string) (*models.Member, error) {
	return s.warn(ctx, caller, memberID, reason, "")
}

func (s *ModerationService) warn(ctx context.Context, caller models.CallerContext, memberID, reason, reportID string) (*models.Member, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, models.NewValidationError("reason is required")
	}

	target, err := s.authorizeTarget(ctx, caller, memberID)
	if err != nil {
		return nil, err
	}
	memberID = target.ID

	if _, err := s.members.AddWarning(ctx, &models.Warning{
		MemberID: memberID,
		Reason:   reason,
		IssuedBy: caller.MemberID,
	}); err != nil {
		return nil, lookupError(s.logger, err, "member", memberID)
	}

	warnings, err := s.members.ListWarnings(ctx, memberID)
	if err != nil {
		s.logger.Error("failed to list warnings", slog.String("member_id", memberID), slog.Any("error", err))
	}
	target.Warnings = warnings

	s.notifier.NotifyWarned(target, reason)
	s.recordEnforcement(ctx, caller, memberID, models.AuditActionWarn, models.NewEnforcementMetadata(reason, 0, reportID, nil), "")
	return target, nil
}

// BanMember permanently bans a member and runs the cascade. Admin only.
// Failed cascade steps are reported as warnings; re-invoking the ban re-runs
// every step.
func (s *ModerationService) BanMember(ctx context.Context, caller models.CallerContext, memberID, reason string) (*BanResult, error) {
	return s.ban(ctx, caller, memberID, reason, "")
}

func (s *ModerationService) ban(ctx context.Context, caller models.CallerContext, memberID, reason, reportID string) (*BanResult, error) {
	if !caller.IsAdmin() {
		return nil, models.ErrForbidden
	}
	target, err := s.authorizeTarget(ctx, caller, memberID)
	if err != nil {
		return nil, err
	}
	memberID = target.ID

	member, err := s.members.Ban(ctx, memberID, reason, s.now().UTC())
	if err != nil {
		return nil, lookupError(s.logger, err, "member", memberID)
	}

	warnings := s.runCascade(ctx, memberID)

	cascade, err := s.cascades.Get(ctx, memberID)
	if err != nil {
		s.logger.Error("failed to load ban cascade", slog.String("member_id", memberID), slog.Any("error", err))
	}

	s.notifier.NotifyBanned(member, reason)
	failure := ""
	if len(warnings) > 0 {
		failure = "cascade incomplete"
	}
	s.recordEnforcement(ctx, caller, memberID, models.AuditActionBan, models.NewEnforcementMetadata(reason, 0, reportID, warnings), failure)

	return &BanResult{Member: member, Cascade: cascade, Warnings: warnings}, nil
}

// runCascade executes every step in order. A failed step does not stop later
// steps. The completion marker is only set when all steps succeeded.
func (s *ModerationService) runCascade(ctx context.Context, memberID string) []string {
	warnings := make([]string, 0)

	if err := s.cascades.Start(ctx, memberID); err != nil {
		s.logger.Error("failed to record ban cascade start", slog.String("member_id", memberID), slog.Any("error", err))
		warnings = append(warnings, "cascade marker not recorded")
	}

	for _, step := range s.steps {
		n, err := step.run(ctx, memberID)
		if err != nil {
			s.logger.Error("ban cascade step failed",
				slog.String("member_id", memberID),
				slog.String("step", step.name),
				slog.Any("error", err))
			s.metrics.IncCascadeStepFailure(step.name)
			warnings = append(warnings, fmt.Sprintf("step %s failed", step.name))
			if recErr := s.cascades.RecordError(ctx, memberID, fmt.Sprintf("%s: %v", step.name, err)); recErr != nil {
				s.logger.Error("failed to record cascade error", slog.Any("error", recErr))
			}
			continue
		}

		s.logger.Info("ban cascade step completed",
			slog.String("member_id", memberID),
			slog.String("step", step.name),
			slog.Int64("deleted", n))
		if err := s.cascades.MarkStep(ctx, memberID, step.name); err != nil {
			s.logger.Error("failed to record cascade step", slog.String("step", step.name), slog.Any("error", err))
		}
	}

	if len(warnings) == 0 {
		if err := s.cascades.Complete(ctx, memberID); err != nil {
			s.logger.Error("failed to complete ban cascade", slog.String("member_id", memberID), slog.Any("error", err))
			warnings = append(warnings, "cascade completion not recorded")
		}
	}
	return warnings
}

// UnblockMember clears suspension and ban flags. Admin only.
func (s *ModerationService) UnblockMember(ctx context.Context, caller models.CallerContext, memberID string) (*models.Member, error) {
	if !caller.IsAdmin() {
		return nil, models.ErrForbidden
	}
	target, err := s.authorizeTarget(ctx, caller, memberID)
	if err != nil {
		return nil, err
	}
	memberID = target.ID

	member, err := s.members.Reactivate(ctx, memberID)
	if err != nil {
		return nil, lookupError(s.logger, err, "member", memberID)
	}

	s.recordEnforcement(ctx, caller, memberID, models.AuditActionUnblock, nil, "")
	return member, nil
}

// LiftExpiredSuspensions reactivates members whose suspension has elapsed.
// It returns the number of members reactivated.
func (s *ModerationService) LiftExpiredSuspensions(ctx context.Context, batchSize int) (int, error) {
	now := s.now().UTC()

	expired, err := s.members.ListExpiredSuspensions(ctx, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired suspensions: %w", err)
	}

	lifted := 0
	for _, m := range expired {
		if _, err := s.members.LiftSuspension(ctx, m.ID, now); err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				s.logger.Error("failed to lift suspension", slog.String("member_id", m.ID), slog.Any("error", err))
			}
			continue
		}
		lifted++

		s.audit.Record(ctx, AuditEntry{
			EventType:    models.AuditEventSuspensionEx,
			Action:       models.AuditActionReactivate,
			TargetID:     m.ID,
			ResourceType: models.AuditResourceMember,
			ResourceID:   m.ID,
			Success:      true,
		})
		s.metrics.IncModerationAction(models.AuditActionReactivate)
	}
	return lifted, nil
}

// authorizeTarget loads the target member and rejects self-moderation and
// moderators acting on admins.
func (s *ModerationService) authorizeTarget(ctx context.Context, caller models.CallerContext, memberID string) (*models.Member, error) {
	if !caller.IsStaff() {
		return nil, models.ErrForbidden
	}
	target, err := s.loadMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	// Ids compare in canonical form; the store matches uuids case-insensitively.
	if target.ID == caller.MemberID {
		return nil, models.ErrForbidden
	}
	if target.Role == models.RoleAdmin && !caller.IsAdmin() {
		return nil, models.ErrForbidden
	}
	return target, nil
}

func (s *ModerationService) loadMember(ctx context.Context, id string) (*models.Member, error) {
	m, err := s.members.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(s.logger, err, "member", id)
	}
	return m, nil
}

func (s *ModerationService) recordEnforcement(ctx context.Context, caller models.CallerContext, memberID, action string, md models.AuditMetadata, failure string) {
	s.audit.Record(ctx, AuditEntry{
		EventType:     models.AuditEventEnforcement,
		Action:        action,
		ActorID:       caller.MemberID,
		TargetID:      memberID,
		ResourceType:  models.AuditResourceMember,
		ResourceID:    memberID,
		Success:       failure == "",
		FailureReason: failure,
		Metadata:      md,
	})
	s.metrics.IncModerationAction(action)
}
