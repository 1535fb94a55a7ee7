package dto

import (
	"encoding/json"
	"time"

	"mfgerp/internal/core/id"
	"mfgerp/internal/domain/inventory/stockmove"
)

// LinkRequest names the order a move posts against.
type LinkRequest struct {
	Kind    string `json:"kind"`
	OrderID id.ID  `json:"orderId"`
}

// StockMoveLineRequest is one requested line. Qty accepts a JSON number or
// a decimal string.
type StockMoveLineRequest struct {
	ItemID         *id.ID      `json:"itemId"`
	VariantID      *id.ID      `json:"variantId"`
	UOM            string      `json:"uom"`
	Qty            json.Number `json:"qty"`
	SrcLocationID  *id.ID      `json:"srcLocationId"`
	DestLocationID *id.ID      `json:"destLocationId"`
	Note           string      `json:"note"`
}

// CreateStockMoveRequest is the body of POST /stock-moves.
type CreateStockMoveRequest struct {
	MoveNo      string                 `json:"moveNo"`
	MoveType    string                 `json:"moveType" binding:"required"`
	WarehouseID id.ID                  `json:"warehouseId"`
	Link        *LinkRequest           `json:"link"`
	MoveDate    *time.Time             `json:"moveDate"`
	Note        string                 `json:"note"`
	Lines       []StockMoveLineRequest `json:"lines"`
}

// ToInput converts the request to the service input.
func (r CreateStockMoveRequest) ToInput() stockmove.CreateInput {
	in := stockmove.CreateInput{
		MoveNo:      r.MoveNo,
		MoveType:    stockmove.MoveType(r.MoveType),
		WarehouseID: r.WarehouseID,
		MoveDate:    r.MoveDate,
		Note:        r.Note,
		Lines:       make([]stockmove.LineInput, 0, len(r.Lines)),
	}
	if r.Link != nil {
		in.Link = stockmove.Link{Kind: stockmove.LinkKind(r.Link.Kind), OrderID: r.Link.OrderID}
	}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, stockmove.LineInput{
			ItemID:         l.ItemID,
			VariantID:      l.VariantID,
			UOM:            l.UOM,
			Qty:            l.Qty.String(),
			SrcLocationID:  l.SrcLocationID,
			DestLocationID: l.DestLocationID,
			Note:           l.Note,
		})
	}
	return in
}

// StockMoveListRequest holds the query of GET /stock-moves.
type StockMoveListRequest struct {
	PaginationRequest
	DateRange
	WarehouseID string `form:"warehouseId"`
	Status      string `form:"status"`
	MoveType    string `form:"moveType"`
	LinkKind    string `form:"linkKind"`
	OrderID     string `form:"orderId"`
	Search      string `form:"search"`
}

// ToFilter converts the query to a list filter.
func (r StockMoveListRequest) ToFilter() (stockmove.ListFilter, error) {
	f := stockmove.ListFilter{
		Pagination: r.PaginationRequest.ToDomain(),
		LinkKind:   stockmove.LinkKind(r.LinkKind),
		Search:     r.Search,
		DateFrom:   r.DateFrom,
		DateTo:     r.DateTo,
	}

	var err error
	if f.WarehouseID, err = ParseOptionalID("warehouseId", r.WarehouseID); err != nil {
		return f, err
	}
	if f.OrderID, err = ParseOptionalID("orderId", r.OrderID); err != nil {
		return f, err
	}
	if r.Status != "" {
		s := stockmove.Status(r.Status)
		f.Status = &s
	}
	if r.MoveType != "" {
		t := stockmove.MoveType(r.MoveType)
		f.MoveType = &t
	}
	return f, nil
}

// HistoryRequest pages an audit trail. Zero takes the store default.
type HistoryRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}
