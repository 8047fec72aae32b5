package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/mithaq/internal/models"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
)

// MatchServiceInterface defines the like and guardian review operations
type MatchServiceInterface interface {
	CreateLike(ctx context.Context, caller models.CallerContext, toID string) (*models.Like, error)
	ListPendingLikes(ctx context.Context, caller models.CallerContext) ([]*models.Like, error)
	ApproveLike(ctx context.Context, caller models.CallerContext, likeID string) (*models.Like, error)
	RejectLike(ctx context.Context, caller models.CallerContext, likeID string) error
}

// LikeHandler handles likes and their guardian review
type LikeHandler struct {
	service MatchServiceInterface
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(service MatchServiceInterface) *LikeHandler {
	return &LikeHandler{service: service}
}

// CreateLikeRequest represents the request body for liking a member
type CreateLikeRequest struct {
	To string `json:"to" validate:"required,uuid"`
}

// CreateLike handles POST /likes
func (h *LikeHandler) CreateLike(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req CreateLikeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	like, err := h.service.CreateLike(r.Context(), caller, req.To)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, likeToResponse(like))
}

// ListPending handles GET /guardian/likes
func (h *LikeHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}

	likes, err := h.service.ListPendingLikes(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"likes": mapSlice(likes, likeToResponse)})
}

// Approve handles POST /guardian/likes/{id}/approve
func (h *LikeHandler) Approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	like, err := h.service.ApproveLike(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, likeToResponse(like))
}

// Reject handles POST /guardian/likes/{id}/reject. The like is removed.
func (h *LikeHandler) Reject(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.RejectLike(r.Context(), caller, id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
