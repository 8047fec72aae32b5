package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/mithaq/internal/models"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMembers map[string]*models.Member

func (s stubMembers) GetByID(_ context.Context, id string) (*models.Member, error) {
	if m, ok := s[id]; ok {
		return m, nil
	}
	return nil, models.ErrNotFound
}

type stubGuardians map[string]*models.Guardian

func (s stubGuardians) GetByID(_ context.Context, id string) (*models.Guardian, error) {
	if g, ok := s[id]; ok {
		return g, nil
	}
	return nil, models.ErrNotFound
}

const testSecret = "test-secret-key-with-enough-entropy-0123456789"

func newTestTokenManager() *TokenManager {
	return NewTokenManager(testSecret, time.Hour, 30*time.Minute)
}

// captureCaller returns a handler recording the caller it was invoked with.
func captureCaller(got *models.CallerContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, _ = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware_MemberToken(t *testing.T) {
	tm := newTestTokenManager()
	member := &models.Member{ID: "m1", Role: models.RoleModerator, IsActive: true}
	token, _, err := tm.GenerateAccessToken(member)
	require.NoError(t, err)

	var got models.CallerContext
	h := Middleware(tm, stubMembers{"m1": member}, stubGuardians{})(captureCaller(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "m1", got.MemberID)
	assert.Equal(t, models.RoleModerator, got.Role)
	assert.False(t, got.IsGuardian())
}

func TestMiddleware_RoleIsReadFromCurrentMember(t *testing.T) {
	tm := newTestTokenManager()
	token, _, err := tm.GenerateAccessToken(&models.Member{ID: "m1", Role: models.RoleAdmin})
	require.NoError(t, err)

	demoted := &models.Member{ID: "m1", Role: models.RoleSeeker, IsActive: true}
	var got models.CallerContext
	h := Middleware(tm, stubMembers{"m1": demoted}, stubGuardians{})(captureCaller(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, models.RoleSeeker, got.Role)
}

func TestMiddleware_AccountStates(t *testing.T) {
	tests := []struct {
		name   string
		member *models.Member
		code   string
	}{
		{"banned", &models.Member{ID: "m1", IsBanned: true}, models.CodeAccountBanned},
		{"suspended", &models.Member{ID: "m1", IsActive: false}, models.CodeAccountSuspended},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := newTestTokenManager()
			token, _, err := tm.GenerateAccessToken(tt.member)
			require.NoError(t, err)

			var got models.CallerContext
			h := Middleware(tm, stubMembers{"m1": tt.member}, stubGuardians{})(captureCaller(&got))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, http.StatusForbidden, w.Code)
			var resp pkghttp.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.Empty(t, got.MemberID)
		})
	}
}

func TestMiddleware_GuardianToken(t *testing.T) {
	tm := newTestTokenManager()
	guardian := &models.Guardian{
		ID:                   "g1",
		UserID:               "ward",
		Status:               models.GuardianStatusApproved,
		HasAccessToDashboard: true,
	}
	token, _, err := tm.GenerateGuardianToken(guardian)
	require.NoError(t, err)

	t.Run("active guardian", func(t *testing.T) {
		var got models.CallerContext
		h := Middleware(tm, stubMembers{}, stubGuardians{"g1": guardian})(captureCaller(&got))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.True(t, got.IsGuardian())
		assert.Equal(t, "ward", got.MemberID)
		assert.Equal(t, "g1", got.GuardianID)
	})

	t.Run("revoked dashboard access", func(t *testing.T) {
		revoked := *guardian
		revoked.HasAccessToDashboard = false
		var got models.CallerContext
		h := Middleware(tm, stubMembers{}, stubGuardians{"g1": &revoked})(captureCaller(&got))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestMiddleware_RejectsMissingAndInvalidTokens(t *testing.T) {
	tm := newTestTokenManager()
	var got models.CallerContext
	h := Middleware(tm, stubMembers{}, stubGuardians{})(captureCaller(&got))

	for _, header := range []string{"", "Basic abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestMiddleware_WebSocketQueryToken(t *testing.T) {
	tm := newTestTokenManager()
	member := &models.Member{ID: "m1", Role: models.RoleSeeker, IsActive: true}
	token, _, err := tm.GenerateAccessToken(member)
	require.NoError(t, err)

	var got models.CallerContext
	h := Middleware(tm, stubMembers{"m1": member}, stubGuardians{})(captureCaller(&got))

	req := httptest.NewRequest(http.MethodGet, "/live?access_token="+token, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "query token requires an upgrade request")

	req.Header.Set("Upgrade", "websocket")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireRoles(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name   string
		mw     func(http.Handler) http.Handler
		caller models.CallerContext
		want   int
	}{
		{"staff allows moderator", RequireStaff(), models.CallerContext{MemberID: "a", Role: models.RoleModerator}, http.StatusOK},
		{"staff rejects seeker", RequireStaff(), models.CallerContext{MemberID: "a", Role: models.RoleSeeker}, http.StatusForbidden},
		{"admin rejects moderator", RequireAdmin(), models.CallerContext{MemberID: "a", Role: models.RoleModerator}, http.StatusForbidden},
		{"member rejects guardian", RequireMember(), models.CallerContext{MemberID: "a", Role: models.RoleGuardian, GuardianID: "g"}, http.StatusForbidden},
		{"guardian route allows guardian", RequireGuardianOrAdmin(), models.CallerContext{MemberID: "a", Role: models.RoleGuardian, GuardianID: "g"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithCaller(req.Context(), tt.caller))
			w := httptest.NewRecorder()

			tt.mw(ok).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}

	t.Run("no caller", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequireStaff()(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
