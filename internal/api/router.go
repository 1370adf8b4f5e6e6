package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"brewpulse/config"
	"brewpulse/internal/auth"
	"brewpulse/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	session := mw.RequireSession(h.auth)
	admin := mw.RequireRole(auth.RoleAdmin)

	api := r.Group("/api")
	{
		// The stream is long-lived and must not count against the limiter.
		api.GET("/stream", session, h.Stream)
	}

	limited := api.Group("")
	limited.Use(rateLimiter)
	{
		limited.GET("/healthz", h.Healthz)
		limited.GET("/menu", caching, h.GetMenu)
		limited.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		limited.POST("/sessions/anon", h.SignInAnon)
		limited.POST("/sessions/admin", h.SignInAdmin)
		limited.DELETE("/sessions", session, h.SignOut)

		limited.GET("/orders", session, h.ListOrders)
		limited.POST("/orders", session, h.CreateOrder)
		limited.PATCH("/orders/:id", session, admin, h.UpdateOrder)
		limited.DELETE("/orders/:id", session, admin, h.DeleteOrder)

		limited.GET("/service", session, h.GetService)
		limited.PUT("/service", session, admin, h.PutService)

		limited.POST("/suggestions", session, h.Suggest)

		limited.GET("/subscriptions", session, admin, h.GetSubscription)
		limited.PUT("/subscriptions", session, admin, h.PutSubscription)
		limited.DELETE("/subscriptions", session, admin, h.DeleteSubscription)
	}

	return r
}
