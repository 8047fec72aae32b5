package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/mithaq/internal/auth"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultAuthRateLimit limits sign-in and registration attempts per client (10 per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 10, Window: time.Minute}
}

// PerMinute is a limit of n requests per minute
func PerMinute(n int) RateLimitConfig {
	return RateLimitConfig{Requests: n, Window: time.Minute}
}

// PerHour is a limit of n requests per hour
func PerHour(n int) RateLimitConfig {
	return RateLimitConfig{Requests: n, Window: time.Hour}
}

func limitExceeded(w http.ResponseWriter, _ *http.Request) {
	pkghttp.WriteTooManyRequests(w, "rate limit exceeded")
}

// RateLimitByIP limits requests per client IP. Forwarding headers are only
// honored from trusted proxies.
func RateLimitByIP(config RateLimitConfig, trusted pkghttp.TrustedProxies) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ClientIP(r, trusted), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitByCaller limits requests per authenticated member and falls back
// to the client IP. It must run after auth.Middleware.
func RateLimitByCaller(config RateLimitConfig, trusted pkghttp.TrustedProxies) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if caller, ok := auth.CallerFromContext(r.Context()); ok {
				return "member:" + caller.MemberID, nil
			}
			return "ip:" + pkghttp.ClientIP(r, trusted), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}
