package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/services"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Register(t *testing.T) {
	svc := &MockAuthService{
		RegisterFunc: func(_ context.Context, in services.RegisterInput) (*services.Session, error) {
			if in.Email == "taken@example.com" {
				return nil, models.ErrConflict
			}
			return &services.Session{
				AccessToken: "token",
				ExpiresAt:   time.Now().Add(time.Hour),
				Member:      &models.Member{ID: brotherID, Email: in.Email, Name: in.Name, Gender: in.Gender, Role: models.RoleSeeker, IsActive: true},
			}, nil
		},
	}
	h := NewAuthHandler(svc, svc, nil)

	t.Run("created", func(t *testing.T) {
		body := RegisterRequest{Email: "bilal@example.com", Password: "a long passphrase", Name: "Bilal", Gender: "male"}
		w := httptest.NewRecorder()
		h.Register(w, NewTestRequest(t, http.MethodPost, "/auth/register", body))

		var resp SessionResponse
		AssertJSONResponse(t, w, http.StatusCreated, &resp)
		assert.Equal(t, "token", resp.AccessToken)
		require.NotNil(t, resp.Member)
		assert.Equal(t, "seeker", resp.Member.Role)
	})

	t.Run("conflict", func(t *testing.T) {
		body := RegisterRequest{Email: "taken@example.com", Password: "a long passphrase", Name: "Bilal", Gender: "male"}
		w := httptest.NewRecorder()
		h.Register(w, NewTestRequest(t, http.MethodPost, "/auth/register", body))
		AssertErrorResponse(t, w, http.StatusConflict, "conflict")
	})

	t.Run("role cannot be chosen", func(t *testing.T) {
		body := map[string]string{"email": "x@example.com", "password": "a long passphrase", "name": "X", "gender": "male", "role": "admin"}
		w := httptest.NewRecorder()
		h.Register(w, NewTestRequest(t, http.MethodPost, "/auth/register", body))
		AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})
}

func TestAuthHandler_Login(t *testing.T) {
	trusted, err := pkghttp.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	var gotIP string
	svc := &MockAuthService{
		LoginFunc: func(_ context.Context, email, password, ip string) (*services.Session, error) {
			gotIP = ip
			switch email {
			case "banned@example.com":
				return nil, models.ErrAccountBanned
			case "ok@example.com":
				return &services.Session{AccessToken: "token", ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			return nil, models.ErrUnauthorized
		},
	}
	h := NewAuthHandler(svc, svc, trusted)

	req := NewTestRequest(t, http.MethodPost, "/auth/login", LoginRequest{Email: "ok@example.com", Password: "secret"})
	req.RemoteAddr = "10.1.2.3:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	w := httptest.NewRecorder()
	h.Login(w, req)
	AssertJSONResponse(t, w, http.StatusOK, nil)
	assert.Equal(t, "198.51.100.7", gotIP)

	w = httptest.NewRecorder()
	h.Login(w, NewTestRequest(t, http.MethodPost, "/auth/login", LoginRequest{Email: "nobody@example.com", Password: "secret"}))
	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")

	w = httptest.NewRecorder()
	h.Login(w, NewTestRequest(t, http.MethodPost, "/auth/login", LoginRequest{Email: "banned@example.com", Password: "secret"}))
	resp := AssertErrorResponse(t, w, http.StatusForbidden, "forbidden")
	assert.Equal(t, models.CodeAccountBanned, resp.Code)
}

func TestAuthHandler_GuardianSession(t *testing.T) {
	svc := &MockAuthService{
		SignInFunc: func(_ context.Context, id, code, _ string) (*services.Session, error) {
			if id == guardianID && code == "123456" {
				return &services.Session{AccessToken: "guardian-token", ExpiresAt: time.Now().Add(30 * time.Minute)}, nil
			}
			return nil, models.ErrUnauthorized
		},
	}
	h := NewAuthHandler(svc, svc, nil)

	w := httptest.NewRecorder()
	h.GuardianSession(w, NewTestRequest(t, http.MethodPost, "/guardian/session", GuardianSessionRequest{GuardianID: guardianID, Code: "123456"}))
	var resp SessionResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "guardian-token", resp.AccessToken)
	assert.Nil(t, resp.Member)

	w = httptest.NewRecorder()
	h.GuardianSession(w, NewTestRequest(t, http.MethodPost, "/guardian/session", GuardianSessionRequest{GuardianID: guardianID, Code: "654321"}))
	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")

	w = httptest.NewRecorder()
	h.GuardianSession(w, NewTestRequest(t, http.MethodPost, "/guardian/session", GuardianSessionRequest{GuardianID: guardianID, Code: "12ab56"}))
	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}
