package auth

import (
	"testing"
	"time"

	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_AccessTokenRoundTrip(t *testing.T) {
	tm := newTestTokenManager()

	token, expiresAt, err := tm.GenerateAccessToken(&models.Member{ID: "m1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeAccess, claims.Type)
	assert.Equal(t, "m1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_GuardianToken(t *testing.T) {
	tm := newTestTokenManager()

	token, _, err := tm.GenerateGuardianToken(&models.Guardian{ID: "g1", UserID: "ward"})
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeGuardian, claims.Type)
	assert.Equal(t, "ward", claims.UserID)
	assert.Equal(t, "g1", claims.GuardianID)
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	other := NewTokenManager("another-secret-key-with-enough-entropy-987654", time.Hour, time.Hour)
	token, _, err := other.GenerateAccessToken(&models.Member{ID: "m1"})
	require.NoError(t, err)

	_, err = newTestTokenManager().ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := NewTokenManager(testSecret, -time.Minute, time.Minute)
	token, _, err := tm.GenerateAccessToken(&models.Member{ID: "m1"})
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsUnknownType(t *testing.T) {
	claims := &models.TokenClaims{Type: "refresh", UserID: "m1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestTokenManager().ValidateToken(token)
	assert.Error(t, err)
}
