package api

import (
	"log/slog"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// RouteConfig controls the surface RegisterRoutes exposes.
type RouteConfig struct {
	// VideosMount is the URL prefix for OutputDir.
	VideosMount string
	// OutputDir is served read-only under VideosMount.
	OutputDir string
	// APIToken guards /api when set.
	APIToken string
}

// NewEngine builds a gin engine with the standard middleware and routes.
func NewEngine(cfg RouteConfig, h *Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), CORS())
	RegisterRoutes(r, cfg, h)
	return r
}

// RegisterRoutes attaches manimate's routes to r.
func RegisterRoutes(r *gin.Engine, cfg RouteConfig, h *Handler) {
	r.GET("/", h.Root)
	r.POST("/generate", h.Generate)
	r.POST("/generate/", h.Generate)

	if strings.TrimSpace(cfg.OutputDir) != "" {
		mount := path.Join("/", cfg.VideosMount)
		if mount == "/" {
			mount = "/videos"
		}
		r.Static(mount, cfg.OutputDir)
	}

	authed := r.Group("/api", BearerAuth(cfg.APIToken))
	{
		authed.GET("/status", h.Status)
		authed.GET("/renders", h.ListRenders)
		authed.GET("/renders/:id", h.GetRender)
	}
}
