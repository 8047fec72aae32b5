package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/mithaq/internal/auth"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitByIP(t *testing.T) {
	h := RateLimitByIP(PerMinute(2), nil)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "198.51.100.4:5000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own budget.
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "198.51.100.5:5000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitByIP_IgnoresSpoofedForwardedFor(t *testing.T) {
	h := RateLimitByIP(PerMinute(1), nil)(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/", nil)
	first.RemoteAddr = "198.51.100.4:5000"
	first.Header.Set("X-Forwarded-For", "203.0.113.1")
	h.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/", nil)
	second.RemoteAddr = "198.51.100.4:5000"
	second.Header.Set("X-Forwarded-For", "203.0.113.2")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, second)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimitByCaller(t *testing.T) {
	h := RateLimitByCaller(PerMinute(1), nil)(okHandler())

	send := func(memberID string) int {
		req := httptest.NewRequest(http.MethodPost, "/messages", nil)
		req.RemoteAddr = "198.51.100.4:5000"
		req = req.WithContext(auth.WithCaller(req.Context(), models.CallerContext{MemberID: memberID, Role: models.RoleSeeker}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("m1"))
	assert.Equal(t, http.StatusTooManyRequests, send("m1"))
	// Same IP, different member.
	assert.Equal(t, http.StatusOK, send("m2"))
}
