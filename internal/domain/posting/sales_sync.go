package posting

import (
	"context"
	"fmt"

	"mfgerp/internal/core/id"
	"mfgerp/internal/core/tx"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain/events"
	"mfgerp/internal/domain/production"
	"mfgerp/internal/domain/sales"
	"mfgerp/pkg/logger"
)

// SalesSynchronizer derives a sales order's status from the production
// orders generated for its items.
type SalesSynchronizer struct {
	orders     sales.Repository
	production production.Repository
	publisher  events.Publisher
	txManager  tx.Manager
}

// NewSalesSynchronizer creates the synchronizer.
func NewSalesSynchronizer(orders sales.Repository, prod production.Repository, publisher events.Publisher, txManager tx.Manager) *SalesSynchronizer {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &SalesSynchronizer{
		orders:     orders,
		production: prod,
		publisher:  publisher,
		txManager:  txManager,
	}
}

// Sync recomputes the status of one sales order:
//   - DONE when every item has RUNNING/DONE production covering its qtyTotal;
//   - otherwise IN_PRODUCTION when the order is CONFIRMED and any item has
//     RUNNING/DONE production.
//
// A CANCELLED order is left alone. Inside a post the call joins the post
// transaction.
func (s *SalesSynchronizer) Sync(ctx context.Context, salesOrderID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.sync(ctx, salesOrderID)
	})
}

func (s *SalesSynchronizer) sync(ctx context.Context, salesOrderID id.ID) error {
	order, err := s.orders.GetForUpdate(ctx, salesOrderID)
	if err != nil {
		return err
	}
	if order.Status == sales.StatusCancelled {
		return nil
	}

	done, err := s.production.DoneBySalesItem(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("sum production progress: %w", err)
	}

	target := order.Status
	switch {
	case allItemsCovered(order, done):
		target = sales.StatusDone
	case len(done) > 0 && order.Status == sales.StatusConfirmed:
		target = sales.StatusInProduction
	}
	if target == order.Status {
		return nil
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, target); err != nil {
		return fmt.Errorf("update sales order status: %w", err)
	}
	logger.Info(ctx, "sales order status synchronized",
		"sales_order_id", order.ID,
		"from", order.Status,
		"to", target)

	return publishStatusChange(ctx, s.publisher, events.AggregateSalesOrder, events.SalesOrderStatusChanged,
		order.ID, string(order.Status), string(target), id.Nil())
}

func allItemsCovered(order *sales.Order, done types.Totals) bool {
	if len(order.Items) == 0 {
		return false
	}
	for _, item := range order.Items {
		qty, ok := done[item.ID]
		if !ok || qty.LessThan(item.QtyTotal) {
			return false
		}
	}
	return true
}
