// Package sales holds the sales order data contract consumed by delivery
// posting and status synchronization.
package sales

import (
	"context"

	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
)

// Status of a sales order.
type Status string

const (
	StatusDraft        Status = "DRAFT"
	StatusConfirmed    Status = "CONFIRMED"
	StatusInProduction Status = "IN_PRODUCTION"
	StatusDone         Status = "DONE"
	StatusCancelled    Status = "CANCELLED"
)

// Order is a sales order with its items.
type Order struct {
	ID     id.ID  `db:"id" json:"id"`
	SONo   string `db:"so_no" json:"soNo"`
	Status Status `db:"status" json:"status"`

	Items []Item `db:"-" json:"items"`
}

// Item is one ordered product style with its per-variant split.
type Item struct {
	ID           id.ID          `db:"id" json:"id"`
	SalesOrderID id.ID          `db:"sales_order_id" json:"salesOrderId"`
	QtyTotal     types.Quantity `db:"qty_total" json:"qtyTotal"`

	Variants []VariantBreakdown `db:"-" json:"variants"`
}

// VariantBreakdown is the contract quantity ordered for one variant.
type VariantBreakdown struct {
	ID        id.ID          `db:"id" json:"id"`
	ItemID    id.ID          `db:"item_id" json:"itemId"`
	VariantID id.ID          `db:"variant_id" json:"variantId"`
	Qty       types.Quantity `db:"qty" json:"qty"`
}

// OrderedByVariant sums the contract quantity per variant across all items.
func (o *Order) OrderedByVariant() types.Totals {
	totals := types.Totals{}
	for _, item := range o.Items {
		for _, v := range item.Variants {
			totals.Add(v.VariantID, v.Qty)
		}
	}
	return totals
}

// Repository is the sales order store used during posting.
type Repository interface {
	// GetForUpdate returns the order with items and variant breakdowns,
	// locking the header row.
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)
	// GetByID returns the order with items and variant breakdowns without locking.
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)
	// GetItem returns one item (without variants).
	GetItem(ctx context.Context, itemID id.ID) (*Item, error)
	UpdateStatus(ctx context.Context, orderID id.ID, status Status) error
}
