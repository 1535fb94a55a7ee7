package handlers

import (
	"github.com/gin-gonic/gin"

	"mfgerp/internal/domain/inventory/ledger"
	"mfgerp/internal/infrastructure/http/v1/dto"
)

// InventoryHandler serves the on-hand and ledger views.
type InventoryHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewInventoryHandler creates the handler.
func NewInventoryHandler(base *BaseHandler, service *ledger.Service) *InventoryHandler {
	return &InventoryHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the handler on rg.
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/onhand", h.OnHand)
	rg.GET("/ledger", h.Ledger)
}

// OnHand returns balances per location for items and variants.
// GET /inventory/onhand
func (h *InventoryHandler) OnHand(c *gin.Context) {
	var req dto.OnHandRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.OnHand(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Ledger returns posted lines with their signed quantities.
// GET /inventory/ledger
func (h *InventoryHandler) Ledger(c *gin.Context) {
	var req dto.LedgerRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Ledger(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
