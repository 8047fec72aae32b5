package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/BradenHooton/mithaq/internal/models"
	pkgauth "github.com/BradenHooton/mithaq/pkg/auth"
	pkglogger "github.com/BradenHooton/mithaq/pkg/logger"
)

// MemberAccountStore defines the member operations needed for sign-up and sign-in
type MemberAccountStore interface {
	GetByEmail(ctx context.Context, email string) (*models.Member, error)
	Create(ctx context.Context, m *models.Member) (*models.Member, error)
}

// TokenIssuer signs member and guardian tokens
type TokenIssuer interface {
	GenerateAccessToken(member *models.Member) (string, time.Time, error)
	GenerateGuardianToken(guardian *models.Guardian) (string, time.Time, error)
}

// Session is an issued access token
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	Member      *models.Member
}

// RegisterInput holds a new member's account details
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Gender   models.Gender
}

// AuthService handles member registration and sign-in
type AuthService struct {
	members     MemberAccountStore
	tokens      TokenIssuer
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(members MemberAccountStore, tokens TokenIssuer, logger *slog.Logger) *AuthService {
	return &AuthService{
		members:     members,
		tokens:      tokens,
		logger:      logger,
		auditLogger: pkglogger.NewAuditLogger(logger),
	}
}

// Register creates a seeker account and signs it in
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.NewValidationError("name is required")
	}
	if in.Gender != models.GenderMale && in.Gender != models.GenderFemale {
		return nil, models.NewValidationError("gender must be male or female")
	}
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError("%s", err.Error())
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	member, err := s.members.Create(ctx, &models.Member{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Gender:       in.Gender,
		Role:         models.RoleSeeker,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create member", slog.String("email", pkglogger.SanitizedEmail(email)), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("member registered", slog.String("member_id", member.ID))
	return s.issue(member)
}

// Login verifies credentials. Banned and suspended members cannot sign in.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.ErrUnauthorized
	}

	member, err := s.members.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.CompareDummy(password)
			s.auditLogger.LogAuthAttempt(ctx, "login_failed", "", ip, false, "invalid_credentials")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get member by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(member.PasswordHash, password); err != nil {
		s.auditLogger.LogAuthAttempt(ctx, "login_failed", member.ID, ip, false, "invalid_credentials")
		return nil, models.ErrUnauthorized
	}

	switch {
	case member.IsBanned:
		s.auditLogger.LogAuthAttempt(ctx, "login_failed", member.ID, ip, false, "account_banned")
		return nil, models.ErrAccountBanned
	case !member.IsActive:
		s.auditLogger.LogAuthAttempt(ctx, "login_failed", member.ID, ip, false, "account_suspended")
		return nil, models.ErrAccountSuspended
	}

	s.auditLogger.LogAuthAttempt(ctx, "login_success", member.ID, ip, true, "")
	return s.issue(member)
}

// EnsureAdmin creates the bootstrap administrator when no account uses email.
// An existing account is left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	existing, err := s.members.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			s.logger.Warn("bootstrap admin email belongs to a non-admin account",
				slog.String("member_id", existing.ID))
		}
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return models.NewValidationError("admin %s", err.Error())
	}
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return err
	}

	admin, err := s.members.Create(ctx, &models.Member{
		Email:        email,
		PasswordHash: hash,
		Name:         "Administrator",
		Gender:       models.GenderMale,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return err
	}

	s.logger.Info("bootstrap admin created", slog.String("member_id", admin.ID))
	return nil
}

func (s *AuthService) issue(member *models.Member) (*Session, error) {
	token, expiresAt, err := s.tokens.GenerateAccessToken(member)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("member_id", member.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return &Session{AccessToken: token, ExpiresAt: expiresAt, Member: member}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", models.NewValidationError("invalid email address")
	}
	return email, nil
}
