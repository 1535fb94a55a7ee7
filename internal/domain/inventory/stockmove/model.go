// Package stockmove provides the StockMove aggregate: a batch of inventory
// movement lines that is created as DRAFT and posted exactly once.
package stockmove

import (
	"context"
	"time"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
)

// MoveType classifies the physical movement.
type MoveType string

const (
	MoveTypeReceipt  MoveType = "RECEIPT"
	MoveTypeIssue    MoveType = "ISSUE"
	MoveTypeOut      MoveType = "OUT"
	MoveTypeAdjust   MoveType = "ADJUST"
	MoveTypeTransfer MoveType = "TRANSFER"
)

// Valid reports whether t is a known move type.
func (t MoveType) Valid() bool {
	switch t {
	case MoveTypeReceipt, MoveTypeIssue, MoveTypeOut, MoveTypeAdjust, MoveTypeTransfer:
		return true
	}
	return false
}

// Status of a stock move. CANCELLED is accepted by list filters only;
// no operation produces it.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPosted, StatusCancelled:
		return true
	}
	return false
}

// StockMove is the aggregate root. It exclusively owns its lines.
type StockMove struct {
	ID          id.ID      `db:"id" json:"id"`
	MoveNo      string     `db:"move_no" json:"moveNo"`
	MoveType    MoveType   `db:"move_type" json:"moveType"`
	WarehouseID id.ID      `db:"warehouse_id" json:"warehouseId"`
	Status      Status     `db:"status" json:"status"`
	Link        Link       `db:"-" json:"link"`
	CreatedBy   string     `db:"created_by" json:"createdBy,omitempty"`
	MoveDate    time.Time  `db:"move_date" json:"moveDate"`
	Note        string     `db:"note" json:"note,omitempty"`
	PostedAt    *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one movement of an item or a product variant. Immutable once created.
type Line struct {
	ID             id.ID          `db:"id" json:"id"`
	MoveID         id.ID          `db:"move_id" json:"moveId"`
	LineNo         int            `db:"line_no" json:"lineNo"`
	ItemID         *id.ID         `db:"item_id" json:"itemId,omitempty"`
	VariantID      *id.ID         `db:"variant_id" json:"variantId,omitempty"`
	UOM            string         `db:"uom" json:"uom"`
	Qty            types.Quantity `db:"qty" json:"qty"`
	SrcLocationID  *id.ID         `db:"src_location_id" json:"srcLocationId,omitempty"`
	DestLocationID *id.ID         `db:"dest_location_id" json:"destLocationId,omitempty"`
	Note           string         `db:"note" json:"note,omitempty"`
}

// IsItem reports whether the line moves an item (raw material / inventory SKU).
func (l Line) IsItem() bool { return l.ItemID != nil && l.VariantID == nil }

// IsVariant reports whether the line moves a product variant (finished good).
func (l Line) IsVariant() bool { return l.VariantID != nil && l.ItemID == nil }

// New builds a DRAFT move. Lines are added with AddItemLine / AddVariantLine.
func New(moveNo string, moveType MoveType, warehouseID id.ID, link Link) *StockMove {
	now := time.Now().UTC()
	return &StockMove{
		ID:          id.New(),
		MoveNo:      moveNo,
		MoveType:    moveType,
		WarehouseID: warehouseID,
		Status:      StatusDraft,
		Link:        link,
		MoveDate:    now,
		CreatedAt:   now,
		Lines:       make([]Line, 0),
	}
}

// AddLine appends a line, assigning its id, move id and line number.
func (m *StockMove) AddLine(line Line) *Line {
	line.ID = id.New()
	line.MoveID = m.ID
	line.LineNo = len(m.Lines) + 1
	m.Lines = append(m.Lines, line)
	return &m.Lines[len(m.Lines)-1]
}

// AddItemLine appends an item line.
func (m *StockMove) AddItemLine(itemID id.ID, qty types.Quantity, src, dest *id.ID) *Line {
	return m.AddLine(Line{ItemID: &itemID, Qty: qty, SrcLocationID: src, DestLocationID: dest})
}

// AddVariantLine appends a product variant line.
func (m *StockMove) AddVariantLine(variantID id.ID, qty types.Quantity, src, dest *id.ID) *Line {
	return m.AddLine(Line{VariantID: &variantID, Qty: qty, SrcLocationID: src, DestLocationID: dest})
}

// Validate checks the header and the shape of every line.
func (m *StockMove) Validate(_ context.Context) error {
	if !m.MoveType.Valid() {
		return apperror.NewValidation("unknown move type").
			WithDetail("field", "moveType").
			WithDetail("value", m.MoveType)
	}

	if id.IsNil(m.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}

	if err := m.Link.Validate(); err != nil {
		return err
	}

	for i, line := range m.Lines {
		if line.ItemID == nil && line.VariantID == nil {
			return apperror.NewValidation("line must reference an item or a variant").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.ItemID != nil && line.VariantID != nil {
			return apperror.NewValidation("line cannot reference both an item and a variant").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Qty.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1).
				WithDetail("qty", line.Qty.String())
		}
	}

	return nil
}

// CanPost checks the one-way DRAFT -> POSTED transition.
func (m *StockMove) CanPost() error {
	if m.Status != StatusDraft {
		return apperror.NewInvalidState("stock_move", m.ID, string(m.Status),
			"only a DRAFT move can be posted")
	}
	return nil
}

// MarkPosted flips the status. Callers run it after every reconciler succeeded.
func (m *StockMove) MarkPosted(at time.Time) {
	m.Status = StatusPosted
	m.PostedAt = &at
}

// ItemTotals sums line quantities per item. Variant lines are skipped.
func (m *StockMove) ItemTotals() types.Totals {
	totals := types.Totals{}
	for _, l := range m.Lines {
		if l.ItemID != nil {
			totals.Add(*l.ItemID, l.Qty)
		}
	}
	return totals
}

// VariantTotals sums line quantities per variant. Item lines are skipped.
func (m *StockMove) VariantTotals() types.Totals {
	totals := types.Totals{}
	for _, l := range m.Lines {
		if l.VariantID != nil {
			totals.Add(*l.VariantID, l.Qty)
		}
	}
	return totals
}

// RequireItemLines fails on the first line that is not an item line.
func (m *StockMove) RequireItemLines(reason string) error {
	for _, l := range m.Lines {
		if !l.IsItem() {
			return apperror.NewValidation(reason).
				WithDetail("moveId", m.ID).
				WithDetail("lineNo", l.LineNo).
				WithDetail("expected", "item")
		}
	}
	return nil
}

// RequireVariantLines fails on the first line that is not a variant line.
func (m *StockMove) RequireVariantLines(reason string) error {
	for _, l := range m.Lines {
		if !l.IsVariant() {
			return apperror.NewValidation(reason).
				WithDetail("moveId", m.ID).
				WithDetail("lineNo", l.LineNo).
				WithDetail("expected", "variant")
		}
	}
	return nil
}
