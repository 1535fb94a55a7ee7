package posting

import (
	"context"
	"fmt"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain/events"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/domain/sales"
	"mfgerp/pkg/logger"
)

// SalesDeliveryReconciler checks OUT moves against the quantities ordered
// per variant and completes the sales order once everything is delivered.
//
// Delivered quantities are not stored on the order; they are summed from the
// POSTED OUT moves linked to it. The move being posted is still DRAFT at this
// point, so it is never counted twice.
type SalesDeliveryReconciler struct {
	orders     sales.Repository
	deliveries DeliveryHistory
	publisher  events.Publisher
}

// NewSalesDeliveryReconciler creates the reconciler.
func NewSalesDeliveryReconciler(orders sales.Repository, deliveries DeliveryHistory, publisher events.Publisher) *SalesDeliveryReconciler {
	return &SalesDeliveryReconciler{orders: orders, deliveries: deliveries, publisher: publisher}
}

// Reconcile applies an OUT move to the linked sales order.
func (r *SalesDeliveryReconciler) Reconcile(ctx context.Context, move *stockmove.StockMove) error {
	if err := move.RequireVariantLines("delivery lines must reference product variants"); err != nil {
		return err
	}

	order, err := r.orders.GetForUpdate(ctx, move.Link.OrderID)
	if err != nil {
		return err
	}
	switch order.Status {
	case sales.StatusDraft:
		return apperror.NewInvalidState("sales_order", order.ID, string(order.Status),
			"sales order must be confirmed before delivery")
	case sales.StatusCancelled:
		return apperror.NewInvalidState("sales_order", order.ID, string(order.Status),
			"cannot deliver against a cancelled sales order")
	}

	ordered := order.OrderedByVariant()
	delivered, err := r.deliveries.PostedVariantTotals(ctx, move.Link, stockmove.MoveTypeOut)
	if err != nil {
		return fmt.Errorf("sum delivered quantities: %w", err)
	}

	current := move.VariantTotals()
	for _, variantID := range current.Keys() {
		next, ok := types.Accumulate(delivered.Get(variantID), current[variantID], ordered.Get(variantID))
		if !ok {
			return apperror.NewValidation("delivered quantity exceeds ordered quantity").
				WithDetail("salesOrderId", order.ID).
				WithDetail("variantId", variantID).
				WithDetail("ordered", ordered.Get(variantID).String()).
				WithDetail("delivered", delivered.Get(variantID).String()).
				WithDetail("qty", current[variantID].String()).
				WithDetail("attempted", next.String())
		}
	}

	if order.Status == sales.StatusDone || !fullyDelivered(ordered, delivered, current) {
		return nil
	}

	if err := r.orders.UpdateStatus(ctx, order.ID, sales.StatusDone); err != nil {
		return fmt.Errorf("update sales order status: %w", err)
	}
	logger.Info(ctx, "sales order fully delivered", "sales_order_id", order.ID, "so_no", order.SONo)

	return publishStatusChange(ctx, r.publisher, events.AggregateSalesOrder, events.SalesOrderStatusChanged,
		order.ID, string(order.Status), string(sales.StatusDone), move.ID)
}

// fullyDelivered reports whether every ordered variant, touched by this move
// or not, reaches its ordered quantity. An order with nothing ordered is
// never complete.
func fullyDelivered(ordered, delivered, current types.Totals) bool {
	if len(ordered) == 0 {
		return false
	}
	for variantID, qty := range ordered {
		if delivered.Get(variantID).Add(current.Get(variantID)).LessThan(qty) {
			return false
		}
	}
	return true
}
