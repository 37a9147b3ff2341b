package resources

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/datasociety/hub/pkg/hub/auth"
	"github.com/datasociety/hub/pkg/hub/catalog"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler serves the resource library
type Handler struct {
	reader    *catalog.Reader
	writer    *catalog.Writer
	submitter *catalog.Submitter
	logger    *zap.Logger
}

// NewHandler creates a new resources handler
func NewHandler(reader *catalog.Reader, writer *catalog.Writer, submitter *catalog.Submitter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reader: reader, writer: writer, submitter: submitter, logger: logger}
}

// ResourceRequest is the body accepted by edits and admin writes
type ResourceRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Type        string   `json:"type"`
	Content     *string  `json:"content"`
	Tags        []string `json:"tags"`
	Featured    *bool    `json:"featured"`
}

func (r ResourceRequest) fields(authorID uint, featured bool) catalog.Fields {
	if r.Featured != nil {
		featured = *r.Featured
	}
	return catalog.Fields{
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		Type:        r.Type,
		Content:     r.Content,
		AuthorID:    authorID,
		Featured:    featured,
	}
}

// ListResponse is one page of filtered resources
type ListResponse struct {
	Resources []catalog.FlattenedResource `json:"resources"`
	Total     int                         `json:"total"`
	Limit     int                         `json:"limit"`
	Offset    int                         `json:"offset"`
}

// FacetsResponse lists the values each filter facet can take
type FacetsResponse struct {
	Categories []string `json:"categories"`
	Types      []string `json:"types"`
	Tags       []string `json:"tags"`
}

// filterFromQuery reads ?q=&category=&type=&tag=; list facets may repeat.
func filterFromQuery(c *gin.Context) catalog.FilterState {
	return catalog.FilterState{
		SearchTerm: c.Query("q"),
		Categories: c.QueryArray("category"),
		Types:      c.QueryArray("type"),
		Tags:       c.QueryArray("tag"),
	}
}

func pageFromQuery(c *gin.Context) (catalog.Page, error) {
	var page catalog.Page
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, errors.New("invalid limit")
		}
		page.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, errors.New("invalid offset")
		}
		page.Offset = n
	}
	return page.Normalize(), nil
}

// List returns the filtered resource library, newest first
// @Summary List resources
// @Tags resources
// @Produce json
// @Param q query string false "Search title, description and tags"
// @Param category query []string false "Category (repeatable)"
// @Param type query []string false "Resource type (repeatable)"
// @Param tag query []string false "Tag (repeatable)"
// @Param limit query int false "Page size (1-100)"
// @Param offset query int false "Offset"
// @Success 200 {object} ListResponse
// @Router /resources [get]
func (h *Handler) List(c *gin.Context) {
	page, err := pageFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	all, err := h.reader.FetchAll(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to fetch resources", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch resources"})
		return
	}

	matched := catalog.Filter(all, filterFromQuery(c))
	start := min(page.Offset, len(matched))
	end := min(start+page.Limit, len(matched))

	c.JSON(http.StatusOK, ListResponse{
		Resources: matched[start:end],
		Total:     len(matched),
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
}

// Get returns a single resource
// @Summary Get a resource
// @Tags resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} catalog.FlattenedResource
// @Failure 404 {object} map[string]string "Resource not found"
// @Router /resources/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	resource, err := h.reader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resource)
}

// Facets returns every category, type and tag a filter can select
// @Summary List filter facets
// @Tags resources
// @Produce json
// @Success 200 {object} FacetsResponse
// @Router /resources/facets [get]
func (h *Handler) Facets(c *gin.Context) {
	var (
		categories, types []string
		all               []catalog.FlattenedResource
	)

	eg, ctx := errgroup.WithContext(c.Request.Context())
	eg.Go(func() (err error) {
		categories, err = h.reader.DistinctCategories(ctx)
		return err
	})
	eg.Go(func() (err error) {
		types, err = h.reader.DistinctTypes(ctx)
		return err
	})
	eg.Go(func() (err error) {
		all, err = h.reader.FetchAll(ctx)
		return err
	})
	if err := eg.Wait(); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, FacetsResponse{
		Categories: categories,
		Types:      types,
		Tags:       catalog.AllTags(all),
	})
}

// Submit creates a resource on behalf of the signed-in member
// @Summary Submit a resource
// @Tags resources
// @Accept json
// @Produce json
// @Param request body catalog.Submission true "Resource"
// @Success 201 {object} catalog.FlattenedResource
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /resources [post]
func (h *Handler) Submit(c *gin.Context) {
	var authorID uint
	if principal, ok := auth.CurrentUser(c); ok {
		authorID = principal.ID
	}

	var req catalog.Submission
	if err := c.ShouldBindJSON(&req); err != nil && authorID != 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.submitter.Submit(c.Request.Context(), req, authorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update edits a resource; only its author or an admin may do so
// @Summary Update a resource
// @Tags resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param request body ResourceRequest true "Resource"
// @Success 200 {object} catalog.FlattenedResource
// @Failure 403 {object} map[string]string "Not the author"
// @Security BearerAuth
// @Router /resources/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	principal, ok := auth.CurrentUser(c)
	if !ok {
		h.respondError(c, catalog.ErrAuthRequired)
		return
	}

	existing, err := h.reader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if existing.AuthorID != principal.ID && !principal.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the author or an admin can edit this resource"})
		return
	}

	var req ResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Members cannot feature their own resources.
	if !principal.IsAdmin {
		req.Featured = nil
	}

	updated, err := h.writer.Update(c.Request.Context(), existing.ID, req.fields(existing.AuthorID, existing.Featured), req.Tags)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// AdminCreate creates a resource, optionally featured
// @Summary Create a resource (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param request body ResourceRequest true "Resource"
// @Success 201 {object} catalog.FlattenedResource
// @Security BearerAuth
// @Router /admin/resources [post]
func (h *Handler) AdminCreate(c *gin.Context) {
	principal, ok := auth.CurrentUser(c)
	if !ok {
		h.respondError(c, catalog.ErrAuthRequired)
		return
	}

	var req ResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.writer.Create(c.Request.Context(), req.fields(principal.ID, false), req.Tags)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// AdminUpdate updates any resource, including its featured flag
// @Summary Update a resource (admin)
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param request body ResourceRequest true "Resource"
// @Success 200 {object} catalog.FlattenedResource
// @Security BearerAuth
// @Router /admin/resources/{id} [put]
func (h *Handler) AdminUpdate(c *gin.Context) {
	existing, err := h.reader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req ResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.writer.Update(c.Request.Context(), existing.ID, req.fields(existing.AuthorID, existing.Featured), req.Tags)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// AdminDelete removes a resource and its category links
// @Summary Delete a resource (admin)
// @Tags admin
// @Param id path string true "Resource ID"
// @Success 200 {object} map[string]string "Resource deleted"
// @Security BearerAuth
// @Router /admin/resources/{id} [delete]
func (h *Handler) AdminDelete(c *gin.Context) {
	if err := h.writer.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Resource deleted"})
}

// respondError maps catalog errors onto HTTP statuses. Store failures are
// logged and answered with a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var ve *catalog.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, catalog.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	default:
		fields := []zap.Field{zap.Error(err), zap.String("path", c.FullPath())}
		var we *catalog.WriteError
		if errors.As(err, &we) {
			fields = append(fields, zap.String("phase", string(we.Phase)))
		}
		h.logger.Error("resource request failed", fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process resource"})
	}
}

// RegisterRoutes registers the public and member routes.
// The group is expected to carry optional authentication.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/facets", h.Facets)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Submit)
	rg.PUT("/:id", h.Update)
}

// RegisterAdminRoutes registers resource management under an admin group
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/resources", h.AdminCreate)
	rg.PUT("/resources/:id", h.AdminUpdate)
	rg.DELETE("/resources/:id", h.AdminDelete)
}
