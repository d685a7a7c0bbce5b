package security

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types embedded in the claims so a refresh token cannot be replayed
// as an access token.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AuthService issues and validates the JWTs used by the API.
type AuthService struct {
	secret             []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
}

func NewAuthService(jwtSecret string, accessExpiry, refreshExpiry time.Duration) *AuthService {
	return &AuthService{
		secret:             []byte(jwtSecret),
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
	}
}

type tokenClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateAccessToken creates a short-lived access token for the user.
func (s *AuthService) GenerateAccessToken(userID int64) (string, error) {
	return s.generateToken(userID, TokenTypeAccess, s.accessTokenExpiry)
}

// GenerateRefreshToken creates a long-lived refresh token for the user.
func (s *AuthService) GenerateRefreshToken(userID int64) (string, error) {
	return s.generateToken(userID, TokenTypeRefresh, s.refreshTokenExpiry)
}

func (s *AuthService) generateToken(userID int64, tokenType string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ValidateToken verifies the signature and expiry of a token of the expected
// type and returns the user id it was issued for.
func (s *AuthService) ValidateToken(tokenString, expectedType string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("token claims invalid")
	}
	if claims.TokenType != expectedType {
		return "", fmt.Errorf("token type %q, expected %q", claims.TokenType, expectedType)
	}
	return claims.Subject, nil
}
