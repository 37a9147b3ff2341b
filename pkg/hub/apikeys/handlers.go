// Package apikeys lets members create keys for scripted submissions.
package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/datasociety/hub/pkg/hub/auth"
	"github.com/datasociety/hub/pkg/hub/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// KeyLength is the number of random bytes in a key; keys are hex encoded.
	KeyLength = 32
	// KeyPrefixLength is how much of a key is stored in clear for display.
	KeyPrefixLength = 8
)

// ErrInvalidKey is returned when no live key matches.
var ErrInvalidKey = errors.New("invalid api key")

// Handler manages the caller's own API keys.
type Handler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewHandler creates a new API keys handler
func NewHandler(db *gorm.DB, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, logger: logger}
}

// KeyResponse describes a key without its secret.
type KeyResponse struct {
	ID          uint               `json:"id"`
	KeyPrefix   string             `json:"key_prefix"`
	Description string             `json:"description"`
	Scope       models.APIKeyScope `json:"scope"`
	LastUsedAt  *time.Time         `json:"last_used_at"`
	CreatedAt   time.Time          `json:"created_at"`
}

func keyResponse(k models.APIKey) KeyResponse {
	return KeyResponse{
		ID:          k.ID,
		KeyPrefix:   k.KeyPrefix,
		Description: k.Description,
		Scope:       k.Scope,
		LastUsedAt:  k.LastUsedAt,
		CreatedAt:   k.CreatedAt,
	}
}

// KeyListResponse lists the caller's keys next to how many resources they
// have submitted, so a member can tell whether a script is still posting.
type KeyListResponse struct {
	Keys            []KeyResponse `json:"keys"`
	SubmissionCount int64         `json:"submission_count"`
}

// CreateRequest is the optional body of a key creation. Scope defaults to submit.
type CreateRequest struct {
	Description string             `json:"description"`
	Scope       models.APIKeyScope `json:"scope"`
}

// CreateResponse is the only response that carries the key itself.
type CreateResponse struct {
	KeyResponse
	Key string `json:"key"`
}

func generateKey() (string, error) {
	buf := make([]byte, KeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Create issues a key for the caller. Only admins may ask for an admin scope.
func (h *Handler) Create(c *gin.Context) {
	principal, _ := auth.CurrentUser(c)

	var req CreateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Scope == "" {
		req.Scope = models.APIKeyScopeSubmit
	}
	if !req.Scope.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be submit or admin"})
		return
	}
	if req.Scope == models.APIKeyScopeAdmin && !principal.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required for an admin key"})
		return
	}

	key, err := generateKey()
	if err != nil {
		h.logger.Error("api key generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate API key"})
		return
	}

	record := models.APIKey{
		UserID:      principal.ID,
		KeyHash:     hashKey(key),
		KeyPrefix:   key[:KeyPrefixLength],
		Description: req.Description,
		Scope:       req.Scope,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&record).Error; err != nil {
		h.logger.Error("api key create failed", zap.Uint("user_id", principal.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
		return
	}

	h.logger.Info("api key created",
		zap.Uint("user_id", principal.ID),
		zap.String("key_prefix", record.KeyPrefix),
		zap.String("scope", string(record.Scope)),
	)
	c.JSON(http.StatusCreated, CreateResponse{KeyResponse: keyResponse(record), Key: key})
}

// List returns the caller's keys, newest first, and their submission count.
func (h *Handler) List(c *gin.Context) {
	principal, _ := auth.CurrentUser(c)
	db := h.db.WithContext(c.Request.Context())

	var keys []models.APIKey
	if err := db.Where("user_id = ?", principal.ID).Order("created_at DESC").Order("id DESC").Find(&keys).Error; err != nil {
		h.logger.Error("api key list failed", zap.Uint("user_id", principal.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch API keys"})
		return
	}

	resp := KeyListResponse{Keys: make([]KeyResponse, len(keys))}
	for i, k := range keys {
		resp.Keys[i] = keyResponse(k)
	}
	if err := db.Model(&models.Resource{}).Where("author_id = ?", principal.ID).Count(&resp.SubmissionCount).Error; err != nil {
		h.logger.Error("submission count failed", zap.Uint("user_id", principal.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch API keys"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Delete revokes one of the caller's keys. Other members' keys read as missing.
func (h *Handler) Delete(c *gin.Context) {
	principal, _ := auth.CurrentUser(c)
	keyID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid API key ID"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", keyID, principal.ID).
		Delete(&models.APIKey{})
	if res.Error != nil {
		h.logger.Error("api key delete failed", zap.Uint64("key_id", keyID), zap.Error(res.Error))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete API key"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}

	h.logger.Info("api key revoked", zap.Uint("user_id", principal.ID), zap.Uint64("key_id", keyID))
	c.JSON(http.StatusOK, gin.H{"message": "API key deleted"})
}

// ValidateAPIKey returns the live key matching key together with its owner,
// or ErrInvalidKey.
func ValidateAPIKey(ctx context.Context, db *gorm.DB, key string) (*models.APIKey, error) {
	var found []models.APIKey
	err := db.WithContext(ctx).Preload("User").Where("key_hash = ?", hashKey(key)).Limit(1).Find(&found).Error
	if err != nil {
		return nil, err
	}
	// A soft-deleted owner is not preloaded.
	if len(found) == 0 || found[0].User.ID == 0 {
		return nil, ErrInvalidKey
	}
	return &found[0], nil
}

// UpdateLastUsed stamps the key as used now.
func UpdateLastUsed(ctx context.Context, db *gorm.DB, apiKeyID uint) error {
	return db.WithContext(ctx).Model(&models.APIKey{}).Where("id = ?", apiKeyID).Update("last_used_at", time.Now()).Error
}

// roleFor is the role a request made with k runs under. A submit key never
// grants more than member rights.
func roleFor(k *models.APIKey) models.SystemRole {
	if k.Scope == models.APIKeyScopeAdmin && k.User.IsAdmin() {
		return models.SystemRoleAdmin
	}
	return models.SystemRoleUser
}

// CombinedAuthMiddleware accepts either a session JWT or an API key as the
// bearer token. JWTs contain dots; API keys are bare hex.
func CombinedAuthMiddleware(db *gorm.DB, logger *zap.Logger) gin.HandlerFunc {
	return authenticate(db, logger, true)
}

// OptionalAuthMiddleware behaves like CombinedAuthMiddleware but lets requests
// without an Authorization header through anonymously.
func OptionalAuthMiddleware(db *gorm.DB, logger *zap.Logger) gin.HandlerFunc {
	return authenticate(db, logger, false)
}

func authenticate(db *gorm.DB, logger *zap.Logger, required bool) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}
		if token == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				return
			}
			c.Next()
			return
		}

		if strings.Contains(token, ".") {
			claims, err := auth.ValidateToken(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				return
			}
			auth.SetPrincipal(c, claims.UserID, claims.Email, claims.SystemRole)
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key, err := ValidateAPIKey(ctx, db, token)
		if errors.Is(err, ErrInvalidKey) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}
		if err != nil {
			logger.Error("api key lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
			return
		}

		if err := UpdateLastUsed(ctx, db, key.ID); err != nil {
			logger.Warn("api key last-used update failed", zap.String("key_prefix", key.KeyPrefix), zap.Error(err))
		}

		auth.SetPrincipal(c, key.User.ID, key.User.Email, string(roleFor(key)))
		c.Next()
	}
}

// RegisterRoutes registers API key routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/api-keys", h.Create)
	rg.GET("/api-keys", h.List)
	rg.DELETE("/api-keys/:id", h.Delete)
}
