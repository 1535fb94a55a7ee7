package posting

import (
	"context"
	"fmt"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain/events"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/domain/production"
	"mfgerp/internal/domain/sales"
	"mfgerp/pkg/logger"
)

// OutputReceiptReconciler records finished goods received from a production
// order, per variant breakdown and for the order as a whole.
type OutputReceiptReconciler struct {
	orders    production.Repository
	sales     sales.Repository
	sync      *SalesSynchronizer
	publisher events.Publisher
}

// NewOutputReceiptReconciler creates the reconciler.
func NewOutputReceiptReconciler(orders production.Repository, salesOrders sales.Repository, sync *SalesSynchronizer, publisher events.Publisher) *OutputReceiptReconciler {
	return &OutputReceiptReconciler{
		orders:    orders,
		sales:     salesOrders,
		sync:      sync,
		publisher: publisher,
	}
}

type breakdownUpdate struct {
	breakdown *production.Breakdown
	next      types.Quantity
}

// Reconcile applies a RECEIPT move to the linked production order.
func (r *OutputReceiptReconciler) Reconcile(ctx context.Context, move *stockmove.StockMove) error {
	order, err := r.orders.GetForUpdate(ctx, move.Link.OrderID)
	if err != nil {
		return err
	}
	if order.Status == production.StatusCancelled {
		return apperror.NewInvalidState("production_order", order.ID, string(order.Status),
			"cannot receive output from a cancelled production order")
	}
	if err := move.RequireVariantLines("output receipt lines must reference product variants"); err != nil {
		return err
	}

	received := move.VariantTotals()
	updates := make([]breakdownUpdate, 0, len(received))
	for _, variantID := range received.Keys() {
		bd, err := r.orders.GetBreakdownForUpdate(ctx, order.ID, variantID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewValidation("variant not in production order breakdown").
					WithDetail("productionOrderId", order.ID).
					WithDetail("variantId", variantID)
			}
			return err
		}

		next, ok := types.Accumulate(bd.QtyDone, received[variantID], bd.QtyPlan)
		if !ok {
			return apperror.NewValidation("completed quantity exceeds breakdown plan").
				WithDetail("productionOrderId", order.ID).
				WithDetail("variantId", variantID).
				WithDetail("plan", bd.QtyPlan.String()).
				WithDetail("done", bd.QtyDone.String()).
				WithDetail("attempted", next.String())
		}
		updates = append(updates, breakdownUpdate{breakdown: bd, next: next})
	}

	total := received.Sum()
	orderDone, ok := types.Accumulate(order.QtyDone, total, order.QtyPlan)
	if !ok {
		return apperror.NewValidation("completed quantity exceeds production order plan").
			WithDetail("productionOrderId", order.ID).
			WithDetail("plan", order.QtyPlan.String()).
			WithDetail("done", order.QtyDone.String()).
			WithDetail("attempted", orderDone.String())
	}

	for _, u := range updates {
		if err := r.orders.UpdateBreakdownDone(ctx, u.breakdown.ID, u.next); err != nil {
			return fmt.Errorf("update breakdown qty done: %w", err)
		}
	}

	status := order.Status
	if orderDone.GreaterThanOrEqual(order.QtyPlan) {
		status = production.StatusDone
	}
	if !total.IsZero() || status != order.Status {
		if err := r.orders.UpdateProgress(ctx, order.ID, orderDone, status); err != nil {
			return fmt.Errorf("update production order progress: %w", err)
		}
	}

	if status != order.Status {
		logger.Info(ctx, "production order completed", "production_order_id", order.ID, "mo_no", order.MONo)
		if err := publishStatusChange(ctx, r.publisher, events.AggregateProductionOrder, events.ProductionOrderCompleted,
			order.ID, string(order.Status), string(status), move.ID); err != nil {
			return err
		}
	}

	if order.SalesOrderItemID == nil {
		return nil
	}
	item, err := r.sales.GetItem(ctx, *order.SalesOrderItemID)
	if err != nil {
		return err
	}
	return r.sync.Sync(ctx, item.SalesOrderID)
}
