package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"manimate/internal/generate"
	"manimate/internal/history"
	"manimate/internal/logging"
	"manimate/internal/preflight"
)

// GenerationFailedDetail is the body detail returned when no video could be produced.
const GenerationFailedDetail = "Internal Server Error. Video generation failed completely."

// Generator runs one prompt to completion. *generate.Service satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (generate.Result, error)
}

// Status is the /api/status payload.
type Status struct {
	Ready     bool               `json:"ready"`
	WorkDir   string             `json:"work_dir"`
	OutputDir string             `json:"output_dir"`
	VideoURL  string             `json:"video_url"`
	Checks    []preflight.Result `json:"checks"`
}

// StatusFunc assembles the current Status.
type StatusFunc func(ctx context.Context) Status

// Handler serves the routes registered by RegisterRoutes.
type Handler struct {
	generator Generator
	history   history.Store
	status    StatusFunc
	logger    *slog.Logger
}

// NewHandler wires the route handlers. store and status may be nil.
func NewHandler(generator Generator, store history.Store, status StatusFunc, logger *slog.Logger) *Handler {
	if store == nil {
		store = history.Nop{}
	}
	return &Handler{
		generator: generator,
		history:   store,
		status:    status,
		logger:    logging.NewComponentLogger(logger, "api"),
	}
}

// Root answers the liveness check.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello World"})
}

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Generate renders a prompt and returns the public URL of the video.
func (h *Handler) Generate(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	res, err := h.generator.Generate(c.Request.Context(), body.Prompt)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(c.Request.Context(), h.logger), "generate request failed", "generate_failed",
			logging.Error(err),
			logging.String(logging.FieldRenderID, res.ID.String()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": GenerationFailedDetail})
		return
	}
	c.JSON(http.StatusOK, gin.H{"video_url": res.VideoURL})
}

// Status reports readiness.
func (h *Handler) Status(c *gin.Context) {
	if h.status == nil {
		c.JSON(http.StatusOK, Status{Ready: true})
		return
	}
	c.JSON(http.StatusOK, h.status(c.Request.Context()))
}

// ListRenders returns the newest render attempts.
func (h *Handler) ListRenders(c *gin.Context) {
	limit := history.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	records, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Warn("list renders failed", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list renders"})
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"renders": records})
}

// GetRender returns one render attempt by id.
func (h *Handler) GetRender(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid render id"})
		return
	}
	rec, err := h.history.Get(c.Request.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "render not found"})
		return
	}
	if err != nil {
		h.logger.Warn("get render failed", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load render"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
