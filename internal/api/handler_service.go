package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type serviceState struct {
	Open *bool `json:"open" binding:"required"`
}

// GetService returns the service-availability flag.
func (h *Handler) GetService(c *gin.Context) {
	open, err := h.store.ServiceOpen(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"open": open})
}

// PutService switches order submission on or off.
func (h *Handler) PutService(c *gin.Context) {
	var req serviceState
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open is required", "kind": "validation"})
		return
	}
	if err := h.store.SetServiceOpen(c.Request.Context(), *req.Open); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
