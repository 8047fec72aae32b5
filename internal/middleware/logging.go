package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/mithaq/internal/auth"
	pkglogger "github.com/BradenHooton/mithaq/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

type requestLogKey struct{}

// requestLog carries fields discovered by inner handlers back to SecureLogger.
type requestLog struct {
	callerID   string
	guardianID string
}

// SecureLogger returns a middleware for logging HTTP requests with sensitive data redaction
func SecureLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			entry := &requestLog{}
			r = r.WithContext(context.WithValue(r.Context(), requestLogKey{}, entry))

			// Wrap response writer to capture status and size
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			// Query strings may carry tokens (WebSocket access_token)
			path := r.URL.Path
			if pkglogger.IsSensitiveQuery(r.URL.RawQuery) {
				path = path + "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path = r.URL.Path + "?" + r.URL.RawQuery
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", wrapped.Status()),
				slog.Int64("bytes", int64(wrapped.BytesWritten())),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if entry.callerID != "" {
				attrs = append(attrs, slog.String("caller_id", entry.callerID))
			}
			if entry.guardianID != "" {
				attrs = append(attrs, slog.String("guardian_id", entry.guardianID))
			}

			level := slog.LevelInfo
			if wrapped.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "http_request", attrs...)
		})
	}
}

// TagCaller attaches the authenticated caller to the access log line. It must
// run after auth.Middleware.
func TagCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if entry, ok := r.Context().Value(requestLogKey{}).(*requestLog); ok {
			if caller, ok := auth.CallerFromContext(r.Context()); ok {
				entry.callerID = caller.MemberID
				entry.guardianID = caller.GuardianID
			}
		}
		next.ServeHTTP(w, r)
	})
}
