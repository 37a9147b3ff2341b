// Package tags serves the category vocabulary with usage counts.
package tags

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles tag-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	ResourceCount int    `json:"resource_count"`
}

// List returns every category with the number of resources linked to it,
// most used first. Unused categories are included with a zero count
// unless ?used=true is given.
func (h *Handler) List(c *gin.Context) {
	var results []TagResponse
	query := h.db.WithContext(c.Request.Context()).Table("categories").
		Select("categories.id, categories.name, COUNT(resource_categories.resource_id) as resource_count").
		Joins("LEFT JOIN resource_categories ON resource_categories.category_id = categories.id").
		Group("categories.id, categories.name").
		Order("resource_count DESC, categories.name ASC")

	if c.Query("used") == "true" {
		query = query.Having("COUNT(resource_categories.resource_id) > 0")
	}

	if err := query.Scan(&results).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}

	if results == nil {
		results = []TagResponse{}
	}
	c.JSON(http.StatusOK, results)
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
}
