package posting

import (
	"context"
	"fmt"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/domain/production"
)

// MaterialIssueReconciler adds issued quantities to a production order's
// material requirements, never beyond qtyRequired.
type MaterialIssueReconciler struct {
	orders production.Repository
}

// NewMaterialIssueReconciler creates the reconciler.
func NewMaterialIssueReconciler(orders production.Repository) *MaterialIssueReconciler {
	return &MaterialIssueReconciler{orders: orders}
}

type requirementUpdate struct {
	req  *production.MaterialRequirement
	next types.Quantity
}

// Reconcile applies an ISSUE move to the linked production order.
// Every requirement is checked before the first write.
func (r *MaterialIssueReconciler) Reconcile(ctx context.Context, move *stockmove.StockMove) error {
	order, err := r.orders.GetForUpdate(ctx, move.Link.OrderID)
	if err != nil {
		return err
	}
	if order.Status == production.StatusCancelled {
		return apperror.NewInvalidState("production_order", order.ID, string(order.Status),
			"cannot issue materials to a cancelled production order")
	}
	if err := move.RequireItemLines("material issue lines must reference items"); err != nil {
		return err
	}

	issued := move.ItemTotals()
	updates := make([]requirementUpdate, 0, len(issued))
	for _, itemID := range issued.Keys() {
		req, err := r.orders.GetRequirementForUpdate(ctx, order.ID, itemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewValidation("item not in requirements").
					WithDetail("productionOrderId", order.ID).
					WithDetail("itemId", itemID)
			}
			return err
		}

		next, ok := types.Accumulate(req.QtyIssued, issued[itemID], req.QtyRequired)
		if !ok {
			return apperror.NewValidation("issued quantity exceeds requirement").
				WithDetail("productionOrderId", order.ID).
				WithDetail("itemId", itemID).
				WithDetail("required", req.QtyRequired.String()).
				WithDetail("issued", req.QtyIssued.String()).
				WithDetail("attempted", next.String())
		}
		updates = append(updates, requirementUpdate{req: req, next: next})
	}

	for _, u := range updates {
		if err := r.orders.UpdateRequirementIssued(ctx, u.req.ID, u.next); err != nil {
			return fmt.Errorf("update issued qty: %w", err)
		}
	}
	return nil
}
