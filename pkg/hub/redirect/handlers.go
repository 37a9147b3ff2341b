// Package redirect sends visitors from a resource's short path to its URL.
package redirect

import (
	"errors"
	"net/http"

	"github.com/datasociety/hub/pkg/hub/catalog"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles redirect requests
type Handler struct {
	reader *catalog.Reader
	logger *zap.Logger
}

// NewHandler creates a new redirect handler
func NewHandler(reader *catalog.Reader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reader: reader, logger: logger}
}

// Visit redirects to the URL of the resource named by :id.
// Resources are public, so no authentication is needed.
func (h *Handler) Visit(c *gin.Context) {
	resource, err := h.reader.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
		return
	}
	if err != nil {
		h.logger.Error("redirect lookup failed", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch resource"})
		return
	}

	c.Redirect(http.StatusFound, resource.URL)
}

// RegisterRoutes registers redirect routes on the root router
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/go/:id", h.Visit)
}
