package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/BradenHooton/mithaq/internal/metrics"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/realtime"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// LiveAuthorizer decides whether the caller may watch a conversation
type LiveAuthorizer interface {
	LiveConversation(ctx context.Context, caller models.CallerContext, conversationID string) (*models.Conversation, error)
}

// LiveHandler streams conversation events over WebSocket. Sessions are
// receive-only; messages are still sent through POST /messages.
type LiveHandler struct {
	authorizer LiveAuthorizer
	broker     realtime.Broker
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewLiveHandler creates a LiveHandler. Browser origins must be listed in
// allowedOrigins; requests without an Origin header are accepted.
func NewLiveHandler(authorizer LiveAuthorizer, broker realtime.Broker, allowedOrigins []string, m *metrics.Metrics, logger *slog.Logger) *LiveHandler {
	return &LiveHandler{
		authorizer: authorizer,
		broker:     broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		metrics: m,
		logger:  logger,
	}
}

// Serve handles GET /conversations/{id}/live
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	conv, err := h.authorizer.LiveConversation(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// The request context is not cancelled when a hijacked connection drops,
	// so the session owns its own lifetime.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub, err := h.broker.Subscribe(ctx, conv.ID)
	if err != nil {
		h.logger.Error("failed to subscribe to conversation", slog.String("conversation_id", conv.ID), slog.Any("error", err))
		writeServiceError(w, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", slog.String("conversation_id", conv.ID), slog.Any("error", err))
		return
	}
	defer conn.Close()

	h.metrics.LiveSessionOpened()
	defer h.metrics.LiveSessionClosed()

	h.logger.Debug("live session opened",
		slog.String("conversation_id", conv.ID),
		slog.String("member_id", caller.MemberID))

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, sub)
}

// readPump drains control frames and ends the session when the peer goes away.
func (h *LiveHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("live session read error", slog.Any("error", err))
			}
			return
		}
	}
}

func (h *LiveHandler) writePump(ctx context.Context, conn *websocket.Conn, sub *realtime.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return

		case event, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
