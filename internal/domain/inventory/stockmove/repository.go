package stockmove

import (
	"context"
	"time"

	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain"
)

// Repository defines persistence for stock moves.
type Repository interface {
	// Create inserts the header and all lines.
	Create(ctx context.Context, move *StockMove) error

	// GetByID returns the move with its lines (NotFound if absent).
	GetByID(ctx context.Context, moveID id.ID) (*StockMove, error)

	// GetForUpdate returns the move with its lines and locks the header row
	// until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, moveID id.ID) (*StockMove, error)

	// MarkPosted persists the DRAFT -> POSTED flip.
	MarkPosted(ctx context.Context, moveID id.ID, postedAt time.Time) error

	// List returns move headers (without lines).
	List(ctx context.Context, filter ListFilter) (domain.ListResult[StockMove], error)

	// PostedVariantTotals sums variant line quantities of POSTED moves with
	// the given link and type.
	PostedVariantTotals(ctx context.Context, link Link, moveType MoveType) (types.Totals, error)
}

// ListFilter for filtering stock moves.
type ListFilter struct {
	domain.Pagination

	WarehouseID *id.ID
	Status      *Status
	MoveType    *MoveType
	// LinkKind with an optional OrderID narrows to moves posted against one order.
	LinkKind LinkKind
	OrderID  *id.ID
	// Search matches the move number (case-insensitive substring).
	Search   string
	DateFrom *time.Time
	DateTo   *time.Time
}
