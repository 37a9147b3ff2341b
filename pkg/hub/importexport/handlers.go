package importexport

import (
	"net/http"

	"github.com/datasociety/hub/pkg/hub/auth"
	"github.com/datasociety/hub/pkg/hub/catalog"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles catalog import/export requests
type Handler struct {
	reader *catalog.Reader
	writer *catalog.Writer
	logger *zap.Logger
}

// NewHandler creates a new import/export handler
func NewHandler(reader *catalog.Reader, writer *catalog.Writer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reader: reader, writer: writer, logger: logger}
}

// ImportRequest represents an import request
type ImportRequest struct {
	Resources []BundleItem `json:"resources" binding:"required"`
}

// Import creates resources from a bundle. Bad items are reported and skipped.
// @Summary Import resources
// @Tags admin
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Bundle"
// @Success 200 {object} ImportResult
// @Security BearerAuth
// @Router /admin/import [post]
func (h *Handler) Import(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := ImportBundle(c.Request.Context(), h.writer, req.Resources, userID, h.logger)

	h.logger.Info("catalog import finished",
		zap.Uint("user_id", userID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
	c.JSON(http.StatusOK, result)
}

// Export returns the whole catalog, newest first. With format=bundle the
// output can be fed back to Import.
// @Summary Export resources
// @Tags admin
// @Produce json
// @Param format query string false "flattened (default) or bundle"
// @Param download query bool false "Serve as an attachment"
// @Success 200 {array} catalog.FlattenedResource
// @Security BearerAuth
// @Router /admin/export [get]
func (h *Handler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "flattened")
	if format != "flattened" && format != "bundle" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown export format"})
		return
	}

	all, err := h.reader.FetchAll(c.Request.Context())
	if err != nil {
		h.logger.Error("export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch resources"})
		return
	}

	// Set content disposition for download
	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=resources-export.json")
	}

	if format == "flattened" {
		c.JSON(http.StatusOK, all)
		return
	}

	items := make([]BundleItem, len(all))
	for i, r := range all {
		items[i] = toBundleItem(r)
	}
	c.JSON(http.StatusOK, items)
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
	rg.GET("/export", h.Export)
}
