package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"brewpulse/internal/suggest"
)

// GetMenu returns the configured menu.
func (h *Handler) GetMenu(c *gin.Context) {
	c.JSON(http.StatusOK, h.menu.Entries())
}

// Healthz reports whether the store answers.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type suggestionRequest struct {
	Mood string `json:"mood"`
}

// Suggest returns a drink recommendation. It always answers 200; failures
// fall back to the fixed suggestion.
func (h *Handler) Suggest(c *gin.Context) {
	var req suggestionRequest
	_ = c.ShouldBindJSON(&req)
	c.JSON(http.StatusOK, gin.H{"suggestion": suggest.OrFallback(c.Request.Context(), h.suggester, req.Mood)})
}
