package posting

import (
	"context"
	"fmt"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/domain/events"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/domain/purchasing"
	"mfgerp/pkg/logger"
)

// PurchaseReceiptReconciler adds received quantities to purchase order lines.
//
// Receipts are not capped by the ordered quantity; an over-receipt is only
// logged.
type PurchaseReceiptReconciler struct {
	orders    purchasing.Repository
	publisher events.Publisher
}

// NewPurchaseReceiptReconciler creates the reconciler.
func NewPurchaseReceiptReconciler(orders purchasing.Repository, publisher events.Publisher) *PurchaseReceiptReconciler {
	return &PurchaseReceiptReconciler{orders: orders, publisher: publisher}
}

// Reconcile applies a RECEIPT move to the linked purchase order.
func (r *PurchaseReceiptReconciler) Reconcile(ctx context.Context, move *stockmove.StockMove) error {
	order, err := r.orders.GetForUpdate(ctx, move.Link.OrderID)
	if err != nil {
		return err
	}
	if order.Status == purchasing.StatusCancelled {
		return apperror.NewInvalidState("purchase_order", order.ID, string(order.Status),
			"cannot receive against a cancelled purchase order")
	}

	received := move.ItemTotals()
	for _, line := range order.Lines {
		add, ok := received[line.ItemID]
		if !ok {
			continue
		}

		next := line.ReceivedQty.Add(add)
		if next.GreaterThan(line.Qty) {
			logger.Warn(ctx, "purchase order line over-received",
				"purchase_order_id", order.ID,
				"line_id", line.ID,
				"item_id", line.ItemID,
				"ordered", line.Qty.String(),
				"received", next.String())
		}
		if err := r.orders.UpdateReceivedQty(ctx, line.ID, next); err != nil {
			return fmt.Errorf("update received qty: %w", err)
		}
	}

	order, err = r.orders.GetForUpdate(ctx, order.ID)
	if err != nil {
		return err
	}
	if order.Status == purchasing.StatusReceived || !order.FullyReceived() {
		return nil
	}

	if err := r.orders.UpdateStatus(ctx, order.ID, purchasing.StatusReceived); err != nil {
		return fmt.Errorf("update purchase order status: %w", err)
	}
	logger.Info(ctx, "purchase order fully received", "purchase_order_id", order.ID, "po_no", order.PONo)

	return publishStatusChange(ctx, r.publisher, events.AggregatePurchaseOrder, events.PurchaseOrderReceived,
		order.ID, string(order.Status), string(purchasing.StatusReceived), move.ID)
}
