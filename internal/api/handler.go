package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"brewpulse/internal/auth"
	"brewpulse/internal/notification"
	"brewpulse/internal/order"
	"brewpulse/internal/store"
	"brewpulse/internal/suggest"
)

// DefaultHeartbeat is the interval of keep-alive events on the stream.
const DefaultHeartbeat = 15 * time.Second

// Backend is the store served over HTTP.
type Backend interface {
	store.Store
	store.Pinger
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Store     Backend
	Auth      *auth.Service
	Menu      order.Menu
	Suggester suggest.Suggester
	Registry  *notification.Registry // nil disables push registration
	WebPush   *webpush.Options
	Heartbeat time.Duration
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     Backend
	auth      *auth.Service
	menu      order.Menu
	suggester suggest.Suggester
	registry  *notification.Registry
	webpush   *webpush.Options
	heartbeat time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		store:     d.Store,
		auth:      d.Auth,
		menu:      d.Menu,
		suggester: d.Suggester,
		registry:  d.Registry,
		webpush:   d.WebPush,
		heartbeat: d.Heartbeat,
	}
	if h.menu == nil {
		h.menu = order.DefaultMenu()
	}
	if h.heartbeat <= 0 {
		h.heartbeat = DefaultHeartbeat
	}
	return h
}

const kindInvalidTransition = "invalid_transition"

// writeError answers with the status matching err's kind.
func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}

	var ve *order.ValidationError
	if errors.As(err, &ve) {
		body["kind"] = "validation"
		body["field"] = ve.Field
		body["reason"] = ve.Reason
		c.JSON(http.StatusBadRequest, body)
		return
	}
	if errors.Is(err, order.ErrInvalidTransition) {
		body["kind"] = kindInvalidTransition
		c.JSON(http.StatusConflict, body)
		return
	}

	status := http.StatusServiceUnavailable
	switch store.KindOf(err) {
	case store.ErrPermissionDenied:
		status = http.StatusForbidden
	case store.ErrNotFound:
		status = http.StatusNotFound
	case store.ErrTimeout:
		status = http.StatusGatewayTimeout
	}
	body["kind"] = store.KindName(err)
	if body["kind"] == "" {
		body["kind"] = store.KindName(store.ErrUnavailable)
	}
	c.JSON(status, body)
}
