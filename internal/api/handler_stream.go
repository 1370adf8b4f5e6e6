package api

import (
	"io"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"brewpulse/internal/order"
	"brewpulse/internal/snapshot"
	"brewpulse/internal/store"
)

// Stream event names.
const (
	EventOrders  = "orders"
	EventService = "service"
	EventError   = "error"
	EventPing    = "ping"
)

type streamEvent struct {
	name string
	data any
}

// Stream pushes the order collection and the service flag as Server-Sent
// Events: the current state first, then one event per change.
func (h *Handler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	events := make(chan streamEvent, 16)
	send := func(e streamEvent) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	}
	fail := func(err error) {
		send(streamEvent{name: EventError, data: gin.H{"error": err.Error(), "kind": store.KindName(err)}})
	}

	cancelOrders := h.store.Subscribe(func(orders []order.Order) {
		send(streamEvent{name: EventOrders, data: snapshot.SortNewestFirst(orders)})
	}, fail)
	defer cancelOrders()

	cancelService := h.store.SubscribeService(func(open bool) {
		send(streamEvent{name: EventService, data: gin.H{"open": open}})
	}, fail)
	defer cancelService()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	log.Printf("stream: client %s connected", c.ClientIP())
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e := <-events:
			c.SSEvent(e.name, e.data)
			return true
		case t := <-ticker.C:
			c.SSEvent(EventPing, t.UnixMilli())
			return true
		}
	})
	log.Printf("stream: client %s disconnected", c.ClientIP())
}
