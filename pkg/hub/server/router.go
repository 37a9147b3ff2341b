// Package server wires the HTTP handlers into a gin engine.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/datasociety/hub/pkg/hub/admin"
	"github.com/datasociety/hub/pkg/hub/apikeys"
	"github.com/datasociety/hub/pkg/hub/auth"
	"github.com/datasociety/hub/pkg/hub/catalog"
	"github.com/datasociety/hub/pkg/hub/importexport"
	"github.com/datasociety/hub/pkg/hub/logging"
	"github.com/datasociety/hub/pkg/hub/redirect"
	"github.com/datasociety/hub/pkg/hub/resources"
	"github.com/datasociety/hub/pkg/hub/tags"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the collaborators the router needs.
type Deps struct {
	DB     *gorm.DB
	Logger *zap.Logger

	// Cache is optional. A nil Cache means every read goes to the store.
	Cache    catalog.Cache
	CacheTTL time.Duration

	// AllowedOrigins restricts CORS outside development. Empty allows any origin.
	AllowedOrigins []string
	Dev            bool
}

// NewRouter builds the engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(logger))
	r.Use(cors.New(corsConfig(d.AllowedOrigins, d.Dev)))

	reader := catalog.NewReader(d.DB, d.Cache, d.CacheTTL, logger.Named("catalog"))
	writer := catalog.NewWriter(d.DB, d.Cache, logger.Named("catalog"))
	submitter := catalog.NewSubmitter(writer, logger.Named("submission"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "resource-hub",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(d.DB, logger.Named("auth"))
		authHandler.RegisterRoutes(api.Group("/auth"))

		// API keys routes (JWT only - need to be logged in to manage keys)
		apiKeysHandler := apikeys.NewHandler(d.DB, logger.Named("apikeys"))
		apiKeysHandler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		// Resource library: reads are public, submissions need JWT or API key
		resourcesHandler := resources.NewHandler(reader, writer, submitter, logger.Named("resources"))
		resourcesHandler.RegisterRoutes(api.Group("/resources", apikeys.OptionalAuthMiddleware(d.DB, logger)))

		// Tag vocabulary with usage counts (public)
		tags.NewHandler(d.DB).RegisterRoutes(api)

		// Admin routes (JWT or an admin-scope API key, admin role required)
		adminGroup := api.Group("/admin")
		adminGroup.Use(apikeys.CombinedAuthMiddleware(d.DB, logger), auth.RequireAdmin())

		admin.NewHandler(d.DB).RegisterRoutes(adminGroup)
		resourcesHandler.RegisterAdminRoutes(adminGroup)
		importexport.NewHandler(reader, writer, logger.Named("import")).RegisterRoutes(adminGroup)
	}

	// Outbound links to resource URLs (public)
	redirect.NewHandler(reader, logger.Named("redirect")).RegisterRoutes(r)

	return r
}

func corsConfig(origins []string, dev bool) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 || dev {
		cfg.AllowOriginFunc = func(string) bool { return true }
		return cfg
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	cfg.AllowOriginFunc = func(origin string) bool {
		_, ok := allowed[strings.TrimSuffix(origin, "/")]
		return ok
	}
	return cfg
}
