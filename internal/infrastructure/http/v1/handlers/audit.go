package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"mfgerp/internal/core/id"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/infrastructure/http/v1/dto"
	"mfgerp/internal/infrastructure/storage/postgres"
)

// AuditHistoryReader reads the audit trail of one entity, newest first.
type AuditHistoryReader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// AuditHandler serves audit trails.
type AuditHandler struct {
	*BaseHandler
	audit AuditHistoryReader
	moves *stockmove.Service
}

// NewAuditHandler creates the handler.
func NewAuditHandler(base *BaseHandler, audit AuditHistoryReader, moves *stockmove.Service) *AuditHandler {
	return &AuditHandler{BaseHandler: base, audit: audit, moves: moves}
}

// StockMoveHistory returns the create and post entries of one move.
// GET /stock-moves/:id/history
func (h *AuditHandler) StockMoveHistory(c *gin.Context) {
	moveID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.HistoryRequest
	if !h.BindQuery(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.moves.Get(ctx, moveID); err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.audit.History(ctx, postgres.AuditEntityStockMove, moveID, req.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": entries})
}
