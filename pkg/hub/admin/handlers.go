package admin

import (
	"net/http"
	"strconv"

	"github.com/datasociety/hub/pkg/hub/auth"
	"github.com/datasociety/hub/pkg/hub/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID            uint   `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	SystemRole    string `json:"system_role"`
	CreatedAt     string `json:"created_at"`
	ResourceCount int64  `json:"resource_count"`
	APIKeyCount   int64  `json:"api_key_count"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name       *string `json:"name"`
	SystemRole *string `json:"system_role"`
}

// StatsResponse represents catalog and account statistics
type StatsResponse struct {
	TotalUsers        int64 `json:"total_users"`
	AdminUsers        int64 `json:"admin_users"`
	TotalResources    int64 `json:"total_resources"`
	FeaturedResources int64 `json:"featured_resources"`
	TotalCategories   int64 `json:"total_categories"`
	UnusedCategories  int64 `json:"unused_categories"`
	TotalTypes        int64 `json:"total_types"`
	ActiveAPIKeys     int64 `json:"active_api_keys"`
}

func (h *Handler) userResponse(user models.User) UserResponse {
	var resourceCount, apiKeyCount int64
	h.db.Model(&models.Resource{}).Where("author_id = ?", user.ID).Count(&resourceCount)
	h.db.Model(&models.APIKey{}).Where("user_id = ?", user.ID).Count(&apiKeyCount)

	return UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		SystemRole:    string(user.SystemRole),
		CreatedAt:     user.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		ResourceCount: resourceCount,
		APIKeyCount:   apiKeyCount,
	}
}

// ListUsers returns all users (admin only)
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.Order("created_at DESC")

	// Optional search by email or name
	if search := c.Query("q"); search != "" {
		query = query.Where("email LIKE ? OR name LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	// Optional filter by role
	if role := c.Query("role"); role != "" {
		query = query.Where("system_role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = h.userResponse(user)
	}

	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID (admin only)
func (h *Handler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, h.userResponse(user))
}

// UpdateUser updates a user's profile (admin only)
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Prevent admin from demoting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID && req.SystemRole != nil && *req.SystemRole != string(models.SystemRoleAdmin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.SystemRole != nil {
		if *req.SystemRole != string(models.SystemRoleAdmin) && *req.SystemRole != string(models.SystemRoleUser) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid system role"})
			return
		}
		updates["system_role"] = *req.SystemRole
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}

	// Reload user
	h.db.First(&user, id)

	c.JSON(http.StatusOK, h.userResponse(user))
}

// DeleteUser soft-deletes a user and revokes their API keys (admin only).
// Resources they authored stay in the catalog.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	// Prevent admin from deleting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	// Delete user and related data in a transaction
	err = h.db.Transaction(func(tx *gorm.DB) error {
		// Delete API keys
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}
		// Delete user
		return tx.Delete(&user).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns catalog and account statistics (admin only)
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse
	db := h.db.WithContext(c.Request.Context())

	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&stats.AdminUsers)
	db.Model(&models.Resource{}).Count(&stats.TotalResources)
	db.Model(&models.Resource{}).Where("featured = ?", true).Count(&stats.FeaturedResources)
	db.Model(&models.Category{}).Count(&stats.TotalCategories)
	db.Model(&models.ResourceType{}).Count(&stats.TotalTypes)
	db.Model(&models.APIKey{}).Count(&stats.ActiveAPIKeys)

	// Categories left behind when their last resource was re-tagged or deleted
	db.Model(&models.Category{}).
		Where("id NOT IN (?)", db.Model(&models.ResourceCategory{}).Select("category_id")).
		Count(&stats.UnusedCategories)

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
