package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret              []byte
	accessTokenExpiry   time.Duration
	guardianTokenExpiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, guardianExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:              []byte(secret),
		accessTokenExpiry:   accessExpiry,
		guardianTokenExpiry: guardianExpiry,
	}
}

// GenerateAccessToken creates a member access token
func (tm *TokenManager) GenerateAccessToken(member *models.Member) (string, time.Time, error) {
	return tm.sign(&models.TokenClaims{
		Type:   models.TokenTypeAccess,
		UserID: member.ID,
		Role:   member.Role,
	}, tm.accessTokenExpiry)
}

// GenerateGuardianToken creates a guardian dashboard token scoped to the ward
func (tm *TokenManager) GenerateGuardianToken(guardian *models.Guardian) (string, time.Time, error) {
	return tm.sign(&models.TokenClaims{
		Type:       models.TokenTypeGuardian,
		UserID:     guardian.UserID,
		Role:       models.RoleGuardian,
		GuardianID: guardian.ID,
	}, tm.guardianTokenExpiry)
}

func (tm *TokenManager) sign(claims *models.TokenClaims, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", claims.Type, err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken verifies a token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	switch claims.Type {
	case models.TokenTypeAccess:
	case models.TokenTypeGuardian:
		if claims.GuardianID == "" {
			return nil, fmt.Errorf("invalid token: guardian token without guardian id")
		}
	default:
		return nil, fmt.Errorf("invalid token: unknown type %q", claims.Type)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("invalid token: missing user id")
	}

	return claims, nil
}
