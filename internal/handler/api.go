// Package handler exposes the honeypot pipeline over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"honeypot/internal/models"
)

// Honeypot is the turn pipeline behind the API.
type Honeypot interface {
	ProcessTurn(ctx context.Context, req models.TurnRequest) (*models.TurnResponse, error)
	Session(ctx context.Context, id string) (models.Session, error)
	Intelligence(ctx context.Context, id string) (models.IntelligenceRecord, error)
	Classify(text string) models.ClassificationResult
	Ping(ctx context.Context) error
}

// Handler handles HTTP requests
type Handler struct {
	honeypot Honeypot
	logger   *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(honeypot Honeypot, logger *zap.Logger) *Handler {
	return &Handler{
		honeypot: honeypot,
		logger:   logger,
	}
}

// RegisterRoutes registers all API routes. auth guards every route that
// touches session data.
func (h *Handler) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	r.GET("/", h.Root)
	r.GET("/health", h.HealthCheck)
	r.GET("/api/honeypot", h.Usage)

	api := r.Group("/api")
	api.Use(auth)
	{
		api.POST("/honeypot", h.Turn)
		api.GET("/session/:id", h.GetSession)
	}

	v1 := r.Group("/api/v1")
	v1.Use(auth)
	{
		v1.POST("/classify", h.Classify)
		v1.GET("/sessions/:id/intelligence", h.GetIntelligence)
	}
}

// Turn handles one inbound conversation message
func (h *Handler) Turn(c *gin.Context) {
	var req models.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	resp, err := h.honeypot.ProcessTurn(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Usage documents the turn endpoint for clients that GET it
func (h *Handler) Usage(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{
		"status":   "error",
		"error":    "Method not allowed. Use POST instead.",
		"endpoint": "POST /api/honeypot",
		"required_headers": gin.H{
			"x-api-key":    "your-api-key",
			"Content-Type": "application/json",
		},
	})
}

// GetSession returns the status of one session
func (h *Handler) GetSession(c *gin.Context) {
	id := c.Param("id")

	s, err := h.honeypot.Session(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": fmt.Sprintf("Session %s not found", id)})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":              s.ID,
		"scam_detected":          s.LatestClassification.IsScam,
		"confidence":             s.LatestClassification.Confidence,
		"risk_tier":              s.LatestClassification.RiskTier,
		"message_count":          s.MessageCount,
		"extracted_intelligence": s.CumulativeIntelligence,
		"agent_notes":            s.Notes,
		"final_result_sent":      s.Emitted,
	})
}

// GetIntelligence returns the intelligence recorded for a session
func (h *Handler) GetIntelligence(c *gin.Context) {
	id := c.Param("id")

	rec, err := h.honeypot.Intelligence(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": fmt.Sprintf("Session %s not found", id)})
			return
		}
		h.writeError(c, err)
		return
	}

	items := rec.Items()
	c.JSON(http.StatusOK, gin.H{
		"sessionId":    id,
		"intelligence": rec,
		"items":        items,
		"total":        len(items),
	})
}

// Classify scores a single text without creating a session
func (h *Handler) Classify(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.honeypot.Classify(req.Text))
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{
		"status":    "healthy",
		"service":   "honeypot",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.honeypot.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		body["status"] = "degraded"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	c.JSON(http.StatusOK, body)
}

// Root lists the entry points
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":       "Honeypot API",
		"health":        "/health",
		"main_endpoint": "POST /api/honeypot",
		"session":       "GET /api/session/:id",
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "request cancelled"})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":    "error",
			"error":     "internal error",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
