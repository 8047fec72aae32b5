package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/mithaq/internal/models"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
)

// AuditLister reads the moderation audit trail
type AuditLister interface {
	List(ctx context.Context, caller models.CallerContext, targetID, eventType string, limit, offset int) ([]*models.AuditLog, error)
}

// AuditHandler handles audit log HTTP requests
type AuditHandler struct {
	service AuditLister
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service AuditLister) *AuditHandler {
	return &AuditHandler{service: service}
}

// List handles GET /admin/audit?targetId&eventType&limit&offset
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	logs, err := h.service.List(r.Context(), caller, r.URL.Query().Get("targetId"), r.URL.Query().Get("eventType"), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"logs":   mapSlice(logs, auditLogToResponse),
		"limit":  limit,
		"offset": offset,
	})
}
