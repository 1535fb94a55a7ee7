// Package production holds the production order data contract consumed by
// material issue and output receipt posting.
package production

import (
	"context"
	"slices"

	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
)

// Status of a production order.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusReleased  Status = "RELEASED"
	StatusRunning   Status = "RUNNING"
	StatusDone      Status = "DONE"
	StatusCancelled Status = "CANCELLED"
)

// SalesCountingStatuses lists the statuses whose progress is counted when
// synchronizing the sales order an order was generated for.
func SalesCountingStatuses() []Status {
	return []Status{StatusRunning, StatusDone}
}

// CountsTowardSales reports whether s is one of SalesCountingStatuses.
func (s Status) CountsTowardSales() bool {
	return slices.Contains(SalesCountingStatuses(), s)
}

// Order is a production (manufacturing) order.
type Order struct {
	ID               id.ID          `db:"id" json:"id"`
	MONo             string         `db:"mo_no" json:"moNo"`
	Status           Status         `db:"status" json:"status"`
	QtyPlan          types.Quantity `db:"qty_plan" json:"qtyPlan"`
	QtyDone          types.Quantity `db:"qty_done" json:"qtyDone"`
	SalesOrderItemID *id.ID         `db:"sales_order_item_id" json:"salesOrderItemId,omitempty"`
}

// Breakdown is the per-variant build quantity of an order.
type Breakdown struct {
	ID                id.ID          `db:"id" json:"id"`
	ProductionOrderID id.ID          `db:"production_order_id" json:"productionOrderId"`
	VariantID         id.ID          `db:"variant_id" json:"variantId"`
	QtyPlan           types.Quantity `db:"qty_plan" json:"qtyPlan"`
	QtyDone           types.Quantity `db:"qty_done" json:"qtyDone"`
}

// MaterialRequirement is the per-item material need of an order.
type MaterialRequirement struct {
	ID                id.ID          `db:"id" json:"id"`
	ProductionOrderID id.ID          `db:"production_order_id" json:"productionOrderId"`
	ItemID            id.ID          `db:"item_id" json:"itemId"`
	QtyRequired       types.Quantity `db:"qty_required" json:"qtyRequired"`
	QtyIssued         types.Quantity `db:"qty_issued" json:"qtyIssued"`
	WastagePercent    types.Quantity `db:"wastage_percent" json:"wastagePercent"`
}

// Repository is the production order store used during posting.
// The ForUpdate variants lock the returned row until the transaction ends;
// requirement and breakdown lookups return NotFound when the row is absent.
type Repository interface {
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)
	GetRequirementForUpdate(ctx context.Context, orderID, itemID id.ID) (*MaterialRequirement, error)
	GetBreakdownForUpdate(ctx context.Context, orderID, variantID id.ID) (*Breakdown, error)

	UpdateRequirementIssued(ctx context.Context, requirementID id.ID, qtyIssued types.Quantity) error
	UpdateBreakdownDone(ctx context.Context, breakdownID id.ID, qtyDone types.Quantity) error
	UpdateProgress(ctx context.Context, orderID id.ID, qtyDone types.Quantity, status Status) error

	// DoneBySalesItem sums qtyDone of RUNNING/DONE orders per sales order item
	// of the given sales order. Items without such orders are absent.
	DoneBySalesItem(ctx context.Context, salesOrderID id.ID) (types.Totals, error)
}
