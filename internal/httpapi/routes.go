package httpapi

import "github.com/gin-gonic/gin"

// maxUploadMemory bounds the multipart form held in memory; the rest spills to disk.
const maxUploadMemory = 64 << 20

// RegisterRoutes mounts the API under /api.
func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.MaxMultipartMemory = maxUploadMemory

	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.POST("/merge", h.merge)
		api.POST("/preview", h.preview)
		api.DELETE("/cache", h.clearCache)
	}
}

// NewRouter returns a gin engine with recovery and, in debug mode, request
// logging, with the API routes registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if h.cfg.Debug {
		r.Use(gin.Logger())
	}
	RegisterRoutes(r, h)
	return r
}
