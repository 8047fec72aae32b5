package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/mithaq/internal/models"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
)

// MessagingServiceInterface defines the conversation and message operations
type MessagingServiceInterface interface {
	StartConversation(ctx context.Context, caller models.CallerContext, participantID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, caller models.CallerContext, limit, offset int) ([]*models.Conversation, error)
	FetchMessages(ctx context.Context, caller models.CallerContext, conversationID string, limit, offset int) ([]*models.Message, error)
	SendMessage(ctx context.Context, caller models.CallerContext, conversationID, text string) (*models.Message, error)
	DeleteMessage(ctx context.Context, caller models.CallerContext, messageID string) (*models.Message, error)
	ModerateMessage(ctx context.Context, caller models.CallerContext, messageID string, blocked bool, reason string) (*models.Message, error)
}

// ConversationHandler handles conversation and message requests
type ConversationHandler struct {
	service MessagingServiceInterface
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(service MessagingServiceInterface) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// StartConversationRequest represents the request body for starting a conversation
type StartConversationRequest struct {
	ParticipantID string `json:"participantId" validate:"required,uuid"`
}

// SendMessageRequest represents the request body for sending a message. Length
// limits are enforced by the messaging service.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId" validate:"required,uuid"`
	Text           string `json:"text" validate:"required"`
}

// ModerateMessageRequest represents the request body for blocking or unblocking a message
type ModerateMessageRequest struct {
	Blocked *bool  `json:"blocked" validate:"required"`
	Reason  string `json:"reason" validate:"max=500"`
}

// StartConversation handles POST /conversations
func (h *ConversationHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req StartConversationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	conv, err := h.service.StartConversation(r.Context(), caller, req.ParticipantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, conversationToResponse(conv))
}

// ListConversations handles GET /conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	convs, err := h.service.ListConversations(r.Context(), caller, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"conversations": mapSlice(convs, conversationToResponse),
		"limit":         limit,
		"offset":        offset,
	})
}

// FetchMessages handles GET /conversations/{id}/messages
func (h *ConversationHandler) FetchMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	limit, offset := pagination(r)
	msgs, err := h.service.FetchMessages(r.Context(), caller, id, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"messages": mapSlice(msgs, messageToResponse),
		"limit":    limit,
		"offset":   offset,
	})
}

// SendMessage handles POST /messages
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.service.SendMessage(r.Context(), caller, req.ConversationID, req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, messageToResponse(msg))
}

// DeleteMessage handles DELETE /messages/{id}
func (h *ConversationHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	msg, err := h.service.DeleteMessage(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, messageToResponse(msg))
}

// ModerateMessage handles PUT /admin/messages/{id}/block
func (h *ConversationHandler) ModerateMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ModerateMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.service.ModerateMessage(r.Context(), caller, id, *req.Blocked, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, moderatedMessageToResponse(msg))
}
