package auth

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	tokenIssuer       = "resource-hub"
	defaultTokenTTL   = 24 * time.Hour
	developmentSecret = "hub-dev-secret-change-in-production"
)

var (
	settingsMu sync.RWMutex
	secret     []byte
	tokenTTL   time.Duration
)

// Claims represents the JWT claims
type Claims struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	SystemRole string `json:"system_role"`
	jwt.RegisteredClaims
}

// Configure sets the signing secret and token lifetime.
// An empty secret falls back to JWT_SECRET, then to a development secret.
func Configure(signingSecret string, ttl time.Duration) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	secret = []byte(signingSecret)
	tokenTTL = ttl
}

// getJWTSecret returns the configured secret, the environment's, or a default for development
func getJWTSecret() []byte {
	settingsMu.RLock()
	s := secret
	settingsMu.RUnlock()
	if len(s) > 0 {
		return s
	}

	if env := os.Getenv("JWT_SECRET"); env != "" {
		return []byte(env)
	}
	return []byte(developmentSecret)
}

func getTokenDuration() time.Duration {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	if tokenTTL <= 0 {
		return defaultTokenTTL
	}
	return tokenTTL
}

// GenerateToken creates a new JWT token for a user
func GenerateToken(userID uint, email string, systemRole string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:     userID,
		Email:      email,
		SystemRole: systemRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenDuration())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTSecret())
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return getJWTSecret(), nil
	}, jwt.WithIssuer(tokenIssuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
