package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/services"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
)

// AuthServiceInterface defines the interface for member sign-up and sign-in
type AuthServiceInterface interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.Session, error)
	Login(ctx context.Context, email, password, ip string) (*services.Session, error)
}

// GuardianSignInService exchanges authenticator codes for guardian tokens
type GuardianSignInService interface {
	SignIn(ctx context.Context, guardianID, code, ip string) (*services.Session, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service   AuthServiceInterface
	guardians GuardianSignInService
	trusted   pkghttp.TrustedProxies
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, guardians GuardianSignInService, trusted pkghttp.TrustedProxies) *AuthHandler {
	return &AuthHandler{
		service:   service,
		guardians: guardians,
		trusted:   trusted,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Gender   string `json:"gender" validate:"required,oneof=male female"`
}

// GuardianSessionRequest represents the request body for guardian dashboard sign-in
type GuardianSessionRequest struct {
	GuardianID string `json:"guardianId" validate:"required,uuid"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
}

func sessionToResponse(s *services.Session) *SessionResponse {
	return &SessionResponse{
		AccessToken: s.AccessToken,
		ExpiresAt:   formatTime(s.ExpiresAt),
		Member:      memberToResponse(s.Member),
	}
}

// Register handles seeker sign-up
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.service.Register(r.Context(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Gender:   models.Gender(req.Gender),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, sessionToResponse(session))
}

// Login handles member login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password, pkghttp.ClientIP(r, h.trusted))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, sessionToResponse(session))
}

// GuardianSession signs a guardian into the dashboard with an authenticator code
func (h *AuthHandler) GuardianSession(w http.ResponseWriter, r *http.Request) {
	var req GuardianSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.guardians.SignIn(r.Context(), req.GuardianID, req.Code, pkghttp.ClientIP(r, h.trusted))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, sessionToResponse(session))
}
