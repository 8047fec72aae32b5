package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/BradenHooton/mithaq/internal/auth"
	"github.com/BradenHooton/mithaq/internal/models"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// writeServiceError maps a service error onto the HTTP error body.
func writeServiceError(w http.ResponseWriter, err error) {
	if pe, ok := models.AsPolicyError(err); ok {
		pkghttp.WritePolicyDenied(w, pe.Code, pe.Message, pe.BlockedContent, pe.MessagesRemaining)
		return
	}

	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		pkghttp.WriteBadRequest(w, ve.Message)
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrAccountBanned):
		pkghttp.WritePolicyDenied(w, models.CodeAccountBanned, "account is banned", nil, 0)
	case errors.Is(err, models.ErrAccountSuspended):
		pkghttp.WritePolicyDenied(w, models.CodeAccountSuspended, "account is suspended", nil, 0)
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrInvalidState):
		pkghttp.WriteConflict(w, "Operation not allowed in the current state")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// pathID reads a uuid path parameter in canonical form. It writes the 400
// itself and reports false when the value is not a uuid.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		pkghttp.WriteBadRequest(w, name+" must be a uuid")
		return "", false
	}
	return id.String(), true
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes the
// 400 itself and reports false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// callerOrUnauthorized returns the authenticated caller or writes a 401.
func callerOrUnauthorized(w http.ResponseWriter, r *http.Request) (models.CallerContext, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
	}
	return caller, ok
}

// pagination reads limit and offset, clamping out-of-range values to defaults.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxPageSize {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
