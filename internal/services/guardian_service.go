package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/mithaq/internal/auth"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/repositories"
	pkglogger "github.com/BradenHooton/mithaq/pkg/logger"
)

// GuardianStore owns guardian records
type GuardianStore interface {
	Create(ctx context.Context, g *models.Guardian) (*models.Guardian, error)
	GetByID(ctx context.Context, id string) (*models.Guardian, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Guardian, error)
	ExistsOpenWithEmail(ctx context.Context, userID, email string) (bool, error)
	Review(ctx context.Context, id string, review repositories.GuardianReview) (*models.Guardian, error)
	UpdateNotifyOnNewMessage(ctx context.Context, id string, notify bool) (*models.Guardian, error)
	SetAuthenticator(ctx context.Context, id string, encryptedSecret, nonce []byte) error
	MarkAuthenticatorUsed(ctx context.Context, id string, at time.Time) error
}

// Authenticator enrolls and verifies guardian dashboard codes
type Authenticator interface {
	Enroll(accountName string) (*auth.Enrollment, error)
	Verify(encrypted, nonce []byte, code string, lastUsedAt *time.Time, now time.Time) error
}

// GuardianRequest holds the details of a requested guardian
type GuardianRequest struct {
	Name               string
	Email              string
	Relationship       string
	Type               models.GuardianType
	NotifyOnNewMessage bool
}

// GuardianDecision is an administrator's review of a guardian request
type GuardianDecision struct {
	Status               models.GuardianStatus
	HasAccessToDashboard bool
	PlatformServicePaid  bool
	NotifyOnNewMessage   bool
}

// GuardianService manages the guardian registry and dashboard sign-in
type GuardianService struct {
	members       MemberReader
	guardians     GuardianStore
	authenticator Authenticator
	tokens        TokenIssuer
	audit         AuditRecorder
	auditLogger   *pkglogger.AuditLogger
	logger        *slog.Logger
	now           func() time.Time
}

// NewGuardianService creates a GuardianService. A nil authenticator disables
// dashboard enrollment and sign-in.
func NewGuardianService(members MemberReader, guardians GuardianStore, authenticator Authenticator, tokens TokenIssuer, audit AuditRecorder, logger *slog.Logger) *GuardianService {
	return &GuardianService{
		members:       members,
		guardians:     guardians,
		authenticator: authenticator,
		tokens:        tokens,
		audit:         audit,
		auditLogger:   pkglogger.NewAuditLogger(logger),
		logger:        logger,
		now:           time.Now,
	}
}

// RequestGuardian files a pending guardian record for a female member.
func (s *GuardianService) RequestGuardian(ctx context.Context, caller models.CallerContext, req GuardianRequest) (*models.Guardian, error) {
	if caller.IsGuardian() {
		return nil, models.ErrForbidden
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		return nil, models.NewValidationError("name is required")
	}
	if _, err := normalizeEmail(email); err != nil {
		return nil, err
	}
	switch req.Type {
	case "":
		req.Type = models.GuardianTypeFamily
	case models.GuardianTypeFamily, models.GuardianTypePaid, models.GuardianTypePlatformAssigned:
	default:
		return nil, models.NewValidationError("unknown guardian type %q", req.Type)
	}

	member, err := s.members.GetByID(ctx, caller.MemberID)
	if err != nil {
		return nil, lookupError(s.logger, err, "member", caller.MemberID)
	}
	if member.Gender != models.GenderFemale {
		return nil, models.ErrForbidden
	}

	exists, err := s.guardians.ExistsOpenWithEmail(ctx, member.ID, email)
	if err != nil {
		s.logger.Error("failed to check guardian email", slog.String("member_id", member.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if exists {
		return nil, models.ErrConflict
	}

	guardian, err := s.guardians.Create(ctx, &models.Guardian{
		UserID:             member.ID,
		Name:               name,
		Email:              email,
		Relationship:       strings.TrimSpace(req.Relationship),
		Type:               req.Type,
		NotifyOnNewMessage: req.NotifyOnNewMessage,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create guardian", slog.String("member_id", member.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("guardian requested",
		slog.String("member_id", member.ID),
		slog.String("guardian_id", guardian.ID),
		slog.String("email", pkglogger.SanitizedEmail(email)),
	)
	return guardian, nil
}

// ListGuardians returns the caller's guardian records
func (s *GuardianService) ListGuardians(ctx context.Context, caller models.CallerContext) ([]*models.Guardian, error) {
	if caller.IsGuardian() {
		return nil, models.ErrForbidden
	}

	guardians, err := s.guardians.ListByUser(ctx, caller.MemberID)
	if err != nil {
		s.logger.Error("failed to list guardians", slog.String("member_id", caller.MemberID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return guardians, nil
}

// UpdatePreferences toggles new-message emails for one of the caller's guardians.
func (s *GuardianService) UpdatePreferences(ctx context.Context, caller models.CallerContext, guardianID string, notify bool) (*models.Guardian, error) {
	if _, err := s.owned(ctx, caller, guardianID); err != nil {
		return nil, err
	}

	guardian, err := s.guardians.UpdateNotifyOnNewMessage(ctx, guardianID, notify)
	if err != nil {
		return nil, lookupError(s.logger, err, "guardian", guardianID)
	}
	return guardian, nil
}

// Review records an administrator's decision on a guardian record.
func (s *GuardianService) Review(ctx context.Context, caller models.CallerContext, guardianID string, d GuardianDecision) (*models.Guardian, error) {
	if !caller.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if d.Status != models.GuardianStatusApproved && d.Status != models.GuardianStatusRejected {
		return nil, models.NewValidationError("status must be approved or rejected")
	}

	guardian, err := s.guardians.Review(ctx, guardianID, repositories.GuardianReview{
		Status:               d.Status,
		HasAccessToDashboard: d.HasAccessToDashboard,
		PlatformServicePaid:  d.PlatformServicePaid,
		NotifyOnNewMessage:   d.NotifyOnNewMessage,
		ReviewedBy:           caller.MemberID,
	})
	if err != nil {
		return nil, lookupError(s.logger, err, "guardian", guardianID)
	}

	action := models.AuditActionApprove
	if d.Status == models.GuardianStatusRejected {
		action = models.AuditActionReject
	}
	s.audit.Record(ctx, AuditEntry{
		EventType:    models.AuditEventGuardian,
		Action:       action,
		ActorID:      caller.MemberID,
		TargetID:     guardian.UserID,
		ResourceType: models.AuditResourceGuardian,
		ResourceID:   guardian.ID,
		Success:      true,
		Metadata: models.AuditMetadata{
			"has_access_to_dashboard": d.HasAccessToDashboard,
			"platform_service_paid":   d.PlatformServicePaid,
		},
	})

	return guardian, nil
}

// EnrollAuthenticator issues a new dashboard authenticator for an approved
// guardian with dashboard access. The protected member or an admin may enroll.
// Any previous authenticator stops working.
func (s *GuardianService) EnrollAuthenticator(ctx context.Context, caller models.CallerContext, guardianID string) (*auth.Enrollment, error) {
	var (
		guardian *models.Guardian
		err      error
	)
	if caller.IsAdmin() {
		guardian, err = s.guardians.GetByID(ctx, guardianID)
		if err != nil {
			return nil, lookupError(s.logger, err, "guardian", guardianID)
		}
	} else if guardian, err = s.owned(ctx, caller, guardianID); err != nil {
		return nil, err
	}

	if !guardian.IsApproved() || !guardian.HasAccessToDashboard || s.authenticator == nil {
		return nil, models.ErrInvalidState
	}

	enrollment, err := s.authenticator.Enroll(guardian.Email)
	if err != nil {
		s.logger.Error("failed to enroll authenticator", slog.String("guardian_id", guardian.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if err := s.guardians.SetAuthenticator(ctx, guardian.ID, enrollment.EncryptedSecret, enrollment.Nonce); err != nil {
		return nil, lookupError(s.logger, err, "guardian", guardian.ID)
	}

	s.logger.Info("guardian authenticator enrolled",
		slog.String("guardian_id", guardian.ID),
		slog.String("enrolled_by", caller.MemberID),
	)
	return enrollment, nil
}

// SignIn exchanges an authenticator code for a guardian dashboard token.
func (s *GuardianService) SignIn(ctx context.Context, guardianID, code, ip string) (*Session, error) {
	if s.authenticator == nil {
		return nil, models.ErrUnauthorized
	}
	guardian, err := s.guardians.GetByID(ctx, guardianID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthAttempt(ctx, "guardian_login_failed", guardianID, ip, false, "unknown_guardian")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load guardian", slog.String("guardian_id", guardianID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !guardian.IsApproved() || !guardian.HasAccessToDashboard || !guardian.HasAuthenticator() {
		s.auditLogger.LogAuthAttempt(ctx, "guardian_login_failed", guardian.ID, ip, false, "dashboard_unavailable")
		return nil, models.ErrUnauthorized
	}

	now := s.now()
	if err := s.authenticator.Verify(guardian.TOTPSecretEncrypted, guardian.TOTPNonce, code, guardian.TOTPLastUsedAt, now); err != nil {
		reason := "invalid_code"
		if errors.Is(err, auth.ErrCodeReplay) {
			reason = "code_replay"
		} else if !errors.Is(err, auth.ErrInvalidCode) {
			s.logger.Error("failed to verify authenticator code", slog.String("guardian_id", guardian.ID), slog.Any("error", err))
		}
		s.auditLogger.LogAuthAttempt(ctx, "guardian_login_failed", guardian.ID, ip, false, reason)
		return nil, models.ErrUnauthorized
	}

	if err := s.guardians.MarkAuthenticatorUsed(ctx, guardian.ID, now); err != nil {
		s.logger.Error("failed to record authenticator use", slog.String("guardian_id", guardian.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, expiresAt, err := s.tokens.GenerateGuardianToken(guardian)
	if err != nil {
		s.logger.Error("failed to generate guardian token", slog.String("guardian_id", guardian.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(ctx, "guardian_login_success", guardian.ID, ip, true, "")
	return &Session{AccessToken: token, ExpiresAt: expiresAt}, nil
}

// owned loads a guardian record belonging to the calling member. Records of
// other members are reported as not found.
func (s *GuardianService) owned(ctx context.Context, caller models.CallerContext, guardianID string) (*models.Guardian, error) {
	if caller.IsGuardian() {
		return nil, models.ErrForbidden
	}
	guardian, err := s.guardians.GetByID(ctx, guardianID)
	if err != nil {
		return nil, lookupError(s.logger, err, "guardian", guardianID)
	}
	if guardian.UserID != caller.MemberID {
		return nil, models.ErrNotFound
	}
	return guardian, nil
}
