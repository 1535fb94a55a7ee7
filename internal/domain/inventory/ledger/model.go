// Package ledger derives on-hand stock and the movement ledger from the
// lines of POSTED stock moves. Nothing here is stored; every figure is a
// fold over the append-only ledger.
package ledger

import (
	"context"
	"time"

	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain"
	"mfgerp/internal/domain/inventory/stockmove"
)

// Scope restricts which posted lines are considered.
// WarehouseID matches the owning move; LocationID matches either the
// source or the destination of a line.
type Scope struct {
	WarehouseID *id.ID
	LocationID  *id.ID
	ItemID      *id.ID
	VariantID   *id.ID
}

// PostedLine is a line of a POSTED move joined with its move header.
type PostedLine struct {
	LineID         id.ID              `db:"line_id" json:"lineId"`
	MoveID         id.ID              `db:"move_id" json:"moveId"`
	MoveNo         string             `db:"move_no" json:"moveNo"`
	MoveType       stockmove.MoveType `db:"move_type" json:"moveType"`
	MoveDate       time.Time          `db:"move_date" json:"moveDate"`
	WarehouseID    id.ID              `db:"warehouse_id" json:"warehouseId"`
	ItemID         *id.ID             `db:"item_id" json:"itemId,omitempty"`
	VariantID      *id.ID             `db:"variant_id" json:"variantId,omitempty"`
	UOM            string             `db:"uom" json:"uom"`
	Qty            types.Quantity     `db:"qty" json:"qty"`
	SrcLocationID  *id.ID             `db:"src_location_id" json:"srcLocationId,omitempty"`
	DestLocationID *id.ID             `db:"dest_location_id" json:"destLocationId,omitempty"`
	Note           string             `db:"note" json:"note,omitempty"`
}

// OnHandFilter selects and pages the on-hand view.
type OnHandFilter struct {
	Scope
	domain.Pagination

	// Search matches item code/name and variant sku/name, case-insensitive.
	Search string
	// ItemType narrows the item collection only.
	ItemType string
	// IncludeZero keeps balances that net to zero.
	IncludeZero bool
}

// LedgerFilter selects and pages the ledger view.
type LedgerFilter struct {
	Scope
	domain.Pagination

	MoveType *stockmove.MoveType
	DateFrom *time.Time
	DateTo   *time.Time
}

// Repository reads posted lines. Only lines of POSTED moves are ever returned.
type Repository interface {
	// PostedLines returns every posted line in scope.
	PostedLines(ctx context.Context, scope Scope) ([]PostedLine, error)

	// LedgerPage returns one page of posted lines ordered by move date
	// descending, then line id descending, plus the total match count.
	LedgerPage(ctx context.Context, filter LedgerFilter) ([]PostedLine, int64, error)
}
