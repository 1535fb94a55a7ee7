package handlers

import (
	"github.com/gin-gonic/gin"

	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/infrastructure/http/v1/dto"
)

// StockMoveHandler serves the stock move endpoints.
type StockMoveHandler struct {
	*BaseHandler
	service *stockmove.Service
}

// NewStockMoveHandler creates the handler.
func NewStockMoveHandler(base *BaseHandler, service *stockmove.Service) *StockMoveHandler {
	return &StockMoveHandler{BaseHandler: base, service: service}
}

// Create stores a DRAFT move.
// POST /stock-moves
func (h *StockMoveHandler) Create(c *gin.Context) {
	var req dto.CreateStockMoveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	move, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, move)
}

// List returns a page of moves.
// GET /stock-moves
func (h *StockMoveHandler) List(c *gin.Context) {
	var req dto.StockMoveListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get returns one move with its lines.
// GET /stock-moves/:id
func (h *StockMoveHandler) Get(c *gin.Context) {
	moveID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	move, err := h.service.Get(c.Request.Context(), moveID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, move)
}

// Post posts a DRAFT move and returns it.
// POST /stock-moves/:id/post
func (h *StockMoveHandler) Post(c *gin.Context) {
	moveID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.service.Post(ctx, moveID); err != nil {
		h.Error(c, err)
		return
	}

	move, err := h.service.Get(ctx, moveID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, move)
}
