package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/mithaq/internal/auth"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/services"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
)

// GuardianServiceInterface defines the guardian registry operations
type GuardianServiceInterface interface {
	RequestGuardian(ctx context.Context, caller models.CallerContext, req services.GuardianRequest) (*models.Guardian, error)
	ListGuardians(ctx context.Context, caller models.CallerContext) ([]*models.Guardian, error)
	UpdatePreferences(ctx context.Context, caller models.CallerContext, guardianID string, notify bool) (*models.Guardian, error)
	Review(ctx context.Context, caller models.CallerContext, guardianID string, d services.GuardianDecision) (*models.Guardian, error)
	EnrollAuthenticator(ctx context.Context, caller models.CallerContext, guardianID string) (*auth.Enrollment, error)
}

// GuardianHandler handles guardian registry requests
type GuardianHandler struct {
	service GuardianServiceInterface
}

// NewGuardianHandler creates a new GuardianHandler
func NewGuardianHandler(service GuardianServiceInterface) *GuardianHandler {
	return &GuardianHandler{service: service}
}

// RequestGuardianRequest represents the request body for adding a guardian
type RequestGuardianRequest struct {
	Name               string `json:"name" validate:"required,max=100"`
	Email              string `json:"email" validate:"required,email"`
	Relationship       string `json:"relationship" validate:"required,max=50"`
	Type               string `json:"type" validate:"omitempty,oneof=family paid platform-assigned"`
	NotifyOnNewMessage bool   `json:"notifyOnNewMessage"`
}

// UpdatePreferencesRequest represents the request body for guardian notification preferences
type UpdatePreferencesRequest struct {
	NotifyOnNewMessage *bool `json:"notifyOnNewMessage" validate:"required"`
}

// ReviewGuardianRequest represents an administrator's decision on a guardian
type ReviewGuardianRequest struct {
	Status               string `json:"status" validate:"required,oneof=approved rejected"`
	HasAccessToDashboard bool   `json:"hasAccessToDashboard"`
	PlatformServicePaid  bool   `json:"platformServicePaid"`
	NotifyOnNewMessage   bool   `json:"notifyOnNewMessage"`
}

// EnrollmentResponse carries the authenticator secret. It is shown once.
type EnrollmentResponse struct {
	GuardianID    string `json:"guardianId"`
	Secret        string `json:"secret"`
	QRCodeDataURL string `json:"qrCode"`
}

// RequestGuardian handles POST /guardians
func (h *GuardianHandler) RequestGuardian(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req RequestGuardianRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	g, err := h.service.RequestGuardian(r.Context(), caller, services.GuardianRequest{
		Name:               req.Name,
		Email:              req.Email,
		Relationship:       req.Relationship,
		Type:               models.GuardianType(req.Type),
		NotifyOnNewMessage: req.NotifyOnNewMessage,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, guardianToResponse(g))
}

// ListGuardians handles GET /guardians
func (h *GuardianHandler) ListGuardians(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}

	guardians, err := h.service.ListGuardians(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"guardians": mapSlice(guardians, guardianToResponse)})
}

// UpdatePreferences handles PATCH /guardians/{id}/preferences
func (h *GuardianHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdatePreferencesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	g, err := h.service.UpdatePreferences(r.Context(), caller, id, *req.NotifyOnNewMessage)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, guardianToResponse(g))
}

// EnrollAuthenticator handles POST /guardians/{id}/authenticator
func (h *GuardianHandler) EnrollAuthenticator(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	guardianID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	enrollment, err := h.service.EnrollAuthenticator(r.Context(), caller, guardianID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, EnrollmentResponse{
		GuardianID:    guardianID,
		Secret:        enrollment.Secret,
		QRCodeDataURL: enrollment.QRCodeDataURL,
	})
}

// Review handles POST /admin/guardians/{id}/review
func (h *GuardianHandler) Review(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ReviewGuardianRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	g, err := h.service.Review(r.Context(), caller, id, services.GuardianDecision{
		Status:               models.GuardianStatus(req.Status),
		HasAccessToDashboard: req.HasAccessToDashboard,
		PlatformServicePaid:  req.PlatformServicePaid,
		NotifyOnNewMessage:   req.NotifyOnNewMessage,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, guardianToResponse(g))
}
