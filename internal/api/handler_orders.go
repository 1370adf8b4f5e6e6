package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"brewpulse/internal/order"
	"brewpulse/internal/snapshot"
)

// ListOrders returns the current collection, newest first.
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot.SortNewestFirst(orders))
}

// current reads one snapshot through a short-lived subscription.
func (h *Handler) current(ctx context.Context) ([]order.Order, error) {
	type result struct {
		orders []order.Order
		err    error
	}
	ch := make(chan result, 1)
	cancel := h.store.Subscribe(
		func(orders []order.Order) {
			select {
			case ch <- result{orders: orders}:
			default:
			}
		},
		func(err error) {
			select {
			case ch <- result{err: err}:
			default:
			}
		},
	)
	defer cancel()

	select {
	case r := <-ch:
		return r.orders, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CreateOrder validates the draft against the menu and stores it.
func (h *Handler) CreateOrder(c *gin.Context) {
	var d order.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "kind": "validation"})
		return
	}

	d, err := order.Normalize(h.menu, d)
	if err != nil {
		writeError(c, err)
		return
	}

	id, err := h.store.Create(c.Request.Context(), d)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateOrder merges the patch into the order.
func (h *Handler) UpdateOrder(c *gin.Context) {
	var p order.Patch
	if err := c.ShouldBindJSON(&p); err != nil || p.Status == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required", "kind": "validation"})
		return
	}

	if err := h.store.Update(c.Request.Context(), c.Param("id"), p); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteOrder removes the order. Unknown ids succeed.
func (h *Handler) DeleteOrder(c *gin.Context) {
	if err := h.store.Remove(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
