package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"brewpulse/internal/auth"
	"brewpulse/internal/mw"
)

type adminSignInRequest struct {
	Password string `json:"password" binding:"required"`
}

// SignInAnon issues a guest session.
func (h *Handler) SignInAnon(c *gin.Context) {
	sess, err := h.auth.SignInAnon()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// SignInAdmin issues an admin session for the shared password.
func (h *Handler) SignInAdmin(c *gin.Context) {
	var req adminSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	sess, err := h.auth.SignInAdmin(req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "kind": "permission_denied"})
		return
	case errors.Is(err, auth.ErrAdminDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// SignOut revokes the calling session.
func (h *Handler) SignOut(c *gin.Context) {
	h.auth.SignOut(mw.BearerToken(c))
	c.Status(http.StatusNoContent)
}
