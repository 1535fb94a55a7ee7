package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"mfgerp/internal/core/id"
	"mfgerp/internal/domain/sales"
)

// SalesStatusSyncer recomputes a sales order's status from production.
type SalesStatusSyncer interface {
	Sync(ctx context.Context, salesOrderID id.ID) error
}

// SalesOrderReader loads a sales order.
type SalesOrderReader interface {
	GetByID(ctx context.Context, orderID id.ID) (*sales.Order, error)
}

// SalesHandler serves the sales order status endpoint.
type SalesHandler struct {
	*BaseHandler
	syncer SalesStatusSyncer
	orders SalesOrderReader
}

// NewSalesHandler creates the handler.
func NewSalesHandler(base *BaseHandler, syncer SalesStatusSyncer, orders SalesOrderReader) *SalesHandler {
	return &SalesHandler{BaseHandler: base, syncer: syncer, orders: orders}
}

// RegisterRoutes mounts the handler on rg.
func (h *SalesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/sync-status", h.SyncStatus)
}

// SyncStatus re-derives the order status and returns the order.
// POST /sales-orders/:id/sync-status
func (h *SalesHandler) SyncStatus(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.syncer.Sync(ctx, orderID); err != nil {
		h.Error(c, err)
		return
	}

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}
