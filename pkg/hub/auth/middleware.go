package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/datasociety/hub/pkg/hub/models"
	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyEmail is the key for email in gin context
	ContextKeyEmail = "email"
	// ContextKeySystemRole is the key for system role in gin context
	ContextKeySystemRole = "system_role"
)

var errMissingBearer = errors.New("invalid authorization header format")

// Principal is the caller a request was authenticated as.
type Principal struct {
	ID      uint
	Email   string
	IsAdmin bool
}

// SetPrincipal stores the authenticated caller in the gin context
func SetPrincipal(c *gin.Context, userID uint, email, systemRole string) {
	c.Set(ContextKeyUserID, userID)
	c.Set(ContextKeyEmail, email)
	c.Set(ContextKeySystemRole, systemRole)
}

// CurrentUser returns the authenticated caller, if any
func CurrentUser(c *gin.Context) (Principal, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		return Principal{}, false
	}
	email, _ := GetEmail(c)
	role, _ := GetSystemRole(c)
	return Principal{
		ID:      userID,
		Email:   email,
		IsAdmin: role == string(models.SystemRoleAdmin),
	}, true
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// It returns "" with a nil error when the header is absent.
func BearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", errMissingBearer
	}
	return strings.TrimSpace(parts[1]), nil
}

func abortInvalidToken(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errMissingBearer):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
	case errors.Is(err, ErrExpiredToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
	default:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
	}
	c.Abort()
}

// AuthMiddleware validates JWT tokens and sets user info in context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := BearerToken(c)
		if err != nil {
			abortInvalidToken(c, err)
			return
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := ValidateToken(tokenString)
		if err != nil {
			abortInvalidToken(c, err)
			return
		}

		SetPrincipal(c, claims.UserID, claims.Email, claims.SystemRole)
		c.Next()
	}
}

// OptionalAuth sets user info when a valid token is presented and lets
// anonymous requests through. A malformed or invalid token is still rejected.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := BearerToken(c)
		if err != nil {
			abortInvalidToken(c, err)
			return
		}
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := ValidateToken(tokenString)
		if err != nil {
			abortInvalidToken(c, err)
			return
		}

		SetPrincipal(c, claims.UserID, claims.Email, claims.SystemRole)
		c.Next()
	}
}

// RequireAdmin middleware checks if the user has admin system role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextKeySystemRole)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		if role != string(models.SystemRoleAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetEmail returns the email from the gin context
func GetEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(ContextKeyEmail)
	if !exists {
		return "", false
	}
	s, ok := email.(string)
	return s, ok
}

// GetSystemRole returns the system role from the gin context
func GetSystemRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(ContextKeySystemRole)
	if !exists {
		return "", false
	}
	s, ok := role.(string)
	return s, ok
}
