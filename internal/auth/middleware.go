package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/mithaq/internal/models"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const callerContextKey contextKey = "caller"

// MemberLoader fetches the current state of a member
type MemberLoader interface {
	GetByID(ctx context.Context, id string) (*models.Member, error)
}

// GuardianLoader fetches the current state of a guardian record
type GuardianLoader interface {
	GetByID(ctx context.Context, id string) (*models.Guardian, error)
}

// WithCaller stores the caller in ctx
func WithCaller(ctx context.Context, caller models.CallerContext) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext returns the caller stored by Middleware
func CallerFromContext(ctx context.Context) (models.CallerContext, bool) {
	caller, ok := ctx.Value(callerContextKey).(models.CallerContext)
	return caller, ok
}

// Middleware verifies the bearer token, reloads the member or guardian it
// names and stores the resulting CallerContext. Banned and suspended members
// are rejected with a policy code. WebSocket upgrades may pass the token in
// the access_token query parameter.
func Middleware(tm *TokenManager, members MemberLoader, guardians GuardianLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			var caller models.CallerContext
			switch claims.Type {
			case models.TokenTypeGuardian:
				caller, err = guardianCaller(r.Context(), guardians, claims)
			default:
				caller, err = memberCaller(r.Context(), members, claims)
			}
			if err != nil {
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

func memberCaller(ctx context.Context, members MemberLoader, claims *models.TokenClaims) (models.CallerContext, error) {
	member, err := members.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.CallerContext{}, models.ErrUnauthorized
		}
		return models.CallerContext{}, err
	}
	if member.IsBanned {
		return models.CallerContext{}, models.ErrAccountBanned
	}
	if !member.IsActive {
		return models.CallerContext{}, models.ErrAccountSuspended
	}

	return models.CallerContext{MemberID: member.ID, Role: member.Role}, nil
}

func guardianCaller(ctx context.Context, guardians GuardianLoader, claims *models.TokenClaims) (models.CallerContext, error) {
	guardian, err := guardians.GetByID(ctx, claims.GuardianID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.CallerContext{}, models.ErrUnauthorized
		}
		return models.CallerContext{}, err
	}
	if !guardian.IsApproved() || !guardian.HasAccessToDashboard || guardian.UserID != claims.UserID {
		return models.CallerContext{}, models.ErrUnauthorized
	}

	return models.CallerContext{
		MemberID:   guardian.UserID,
		Role:       models.RoleGuardian,
		GuardianID: guardian.ID,
	}, nil
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "invalid or expired token")
	case errors.Is(err, models.ErrAccountBanned):
		pkghttp.WritePolicyDenied(w, models.CodeAccountBanned, "this account has been banned", nil, 0)
	case errors.Is(err, models.ErrAccountSuspended):
		pkghttp.WritePolicyDenied(w, models.CodeAccountSuspended, "this account is suspended", nil, 0)
	default:
		pkghttp.WriteInternalError(w, "unable to verify credentials")
	}
}

// Require admits only callers accepted by allow. It must run after Middleware.
func Require(allow func(models.CallerContext) bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}
			if !allow(caller) {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMember rejects guardian sessions.
func RequireMember() func(next http.Handler) http.Handler {
	return Require(func(c models.CallerContext) bool { return !c.IsGuardian() })
}

// RequireStaff admits moderators and admins.
func RequireStaff() func(next http.Handler) http.Handler {
	return Require(models.CallerContext.IsStaff)
}

// RequireAdmin admits admins only.
func RequireAdmin() func(next http.Handler) http.Handler {
	return Require(models.CallerContext.IsAdmin)
}

// RequireGuardianOrAdmin admits guardian sessions and admins.
func RequireGuardianOrAdmin() func(next http.Handler) http.Handler {
	return Require(func(c models.CallerContext) bool { return c.IsGuardian() || c.IsAdmin() })
}
