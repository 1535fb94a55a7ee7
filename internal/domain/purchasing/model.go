// Package purchasing holds the purchase order data contract consumed by receipt posting.
package purchasing

import (
	"context"

	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
)

// Status of a purchase order.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusReceived  Status = "RECEIVED"
	StatusCancelled Status = "CANCELLED"
)

// PurchaseOrder is the part of a purchase order the receipt reconciler needs.
type PurchaseOrder struct {
	ID     id.ID  `db:"id" json:"id"`
	PONo   string `db:"po_no" json:"poNo"`
	Status Status `db:"status" json:"status"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one ordered item. ReceivedQty only ever grows.
type Line struct {
	ID              id.ID          `db:"id" json:"id"`
	PurchaseOrderID id.ID          `db:"purchase_order_id" json:"purchaseOrderId"`
	ItemID          id.ID          `db:"item_id" json:"itemId"`
	Qty             types.Quantity `db:"qty" json:"qty"`
	ReceivedQty     types.Quantity `db:"received_qty" json:"receivedQty"`
}

// FullyReceived reports whether every line has received at least its ordered quantity.
// An order without lines is never fully received.
func (o *PurchaseOrder) FullyReceived() bool {
	if len(o.Lines) == 0 {
		return false
	}
	for _, l := range o.Lines {
		if l.ReceivedQty.LessThan(l.Qty) {
			return false
		}
	}
	return true
}

// Repository is the purchase order store used during posting.
type Repository interface {
	// GetForUpdate returns the order with its lines, locking header and lines.
	GetForUpdate(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)
	// GetByID returns the order with its lines without locking.
	GetByID(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)
	UpdateReceivedQty(ctx context.Context, lineID id.ID, receivedQty types.Quantity) error
	UpdateStatus(ctx context.Context, orderID id.ID, status Status) error
}
