// Package api exposes the operational HTTP surface of the gateway: health
// checks, cache statistics and invalidation, and a listing of the registered
// resources. MCP traffic does not flow through here.
package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/opsforge/maas-mcp/pkg/cache"
	"github.com/opsforge/maas-mcp/pkg/helpers"
	"github.com/opsforge/maas-mcp/pkg/resources"
)

// Server represents the HTTP operations API server
type Server struct {
	store    *cache.Cache
	handlers []*resources.Handler
	router   *gin.Engine
}

// NewServer creates the operations API server bound to addr.
func NewServer(addr string, store *cache.Cache, handlers []*resources.Handler, log *slog.Logger) *http.Server {
	app := &Server{
		store:    store,
		handlers: handlers,
	}

	app.setupRouter(log)

	return &http.Server{
		Addr:    addr,
		Handler: app.Router(),
	}
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter(log *slog.Logger) {
	// Set Gin mode based on environment variable or default to release
	serverMode := os.Getenv("ENV_SERVER_MODE")
	if serverMode == "" {
		serverMode = gin.ReleaseMode
	}
	gin.SetMode(serverMode)

	r := gin.New()
	s.setupMiddlewares(r, log)
	s.setupHealthEndpoints(r)
	s.setupAPIRoutes(r)

	s.router = r
}

func getLoggerFromGinContext(c *gin.Context) *slog.Logger {
	return helpers.GetLoggerFromContext(c.Request.Context())
}

// setupMiddlewares adds all necessary middleware to the router
func (s *Server) setupMiddlewares(r *gin.Engine, log *slog.Logger) {
	// Should be at the top since it puts the log object into the context for
	// the rest of the request processing
	r.Use(ginLoggerMiddleware(log))

	// Add CORS middleware early in the chain
	r.Use(corsMiddleware())

	r.Use(gin.Recovery())

	r.Use(apiKeyAuthMiddleware())
	// Add rate limiting middleware
	r.Use(rateLimitMiddleware(log))
}

func (s *Server) setupHealthEndpoints(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	v1.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
}

func (s *Server) setupAPIRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	{
		// Registered resources
		v1.GET("/resources", s.handleListResources())

		// Cache endpoints
		v1.GET("/cache/stats", s.handleCacheStats())
		v1.POST("/cache/invalidate", s.handleCacheInvalidate())
	}
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// handleListResources returns the catalog of registered resources with their
// current cache settings.
func (s *Server) handleListResources() gin.HandlerFunc {
	return func(c *gin.Context) {
		infos := make([]ResourceInfo, 0, len(s.handlers))
		for _, h := range s.handlers {
			desc := h.Descriptor()
			infos = append(infos, ResourceInfo{
				Name:        desc.Name,
				URIPattern:  desc.URIPattern,
				Description: desc.Description,
				List:        desc.List,
				CacheTTL:    h.CacheOptions().TTLSeconds,
			})
		}
		c.JSON(http.StatusOK, ResourcesResponse{Resources: infos})
	}
}

// handleCacheStats returns current cache occupancy per namespace.
func (s *Server) handleCacheStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.store.Stats())
	}
}

// handleCacheInvalidate drops cached entries for one resource namespace, or
// for a single id within it when one is given.
func (s *Server) handleCacheInvalidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := getLoggerFromGinContext(c)

		var payload InvalidateRequest
		if err := c.ShouldBindJSON(&payload); err != nil {
			log.Error("Error binding invalidate request", slog.Any("error", err))
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Status:  "error",
				Message: "Invalid invalidate request: " + err.Error(),
			})
			return
		}

		if !s.knownResource(payload.Resource) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Status:  "error",
				Message: "Unknown resource: " + payload.Resource,
			})
			return
		}

		var removed int
		if payload.ID != "" {
			removed = s.store.InvalidateResource(payload.Resource, payload.ID)
		} else {
			removed = s.store.InvalidateResource(payload.Resource)
		}

		log.Info("Cache invalidated",
			slog.String("resource", payload.Resource),
			slog.String("id", payload.ID),
			slog.Int("removed", removed),
		)

		c.JSON(http.StatusOK, InvalidateResponse{
			Status:   "success",
			Resource: payload.Resource,
			ID:       payload.ID,
			Removed:  removed,
		})
	}
}

func (s *Server) knownResource(name string) bool {
	for _, h := range s.handlers {
		if h.Descriptor().Name == name {
			return true
		}
	}
	return false
}
