// Package posting reconciles a stock move against the order it is linked to.
//
// The Engine is called by stockmove.Service.Post inside the post transaction,
// before the move is flipped to POSTED. It picks at most one reconciler from
// the move's link kind and move type; a mismatch between the two fails the
// whole post.
package posting

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/tx"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain/events"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/domain/production"
	"mfgerp/internal/domain/purchasing"
	"mfgerp/internal/domain/sales"
)

var tracer = otel.Tracer("mfgerp/posting")

// Reconciler kinds, used for metrics and logs.
const (
	KindNone            = "none"
	KindPurchaseReceipt = "purchase_receipt"
	KindMaterialIssue   = "material_issue"
	KindOutputReceipt   = "output_receipt"
	KindSalesDelivery   = "sales_delivery"
)

// DeliveryHistory reports what was already delivered against a sales order.
type DeliveryHistory interface {
	PostedVariantTotals(ctx context.Context, link stockmove.Link, moveType stockmove.MoveType) (types.Totals, error)
}

// Metrics observes reconciler runs.
type Metrics interface {
	ObserveReconcile(kind, outcome string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveReconcile(string, string, time.Duration) {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.Event) error { return nil }

// Config holds the Engine's collaborators.
type Config struct {
	Purchasing purchasing.Repository
	Production production.Repository
	Sales      sales.Repository
	Deliveries DeliveryHistory
	Publisher  events.Publisher
	Metrics    Metrics
	TxManager  tx.Manager
}

// Engine dispatches a move to its reconciler.
type Engine struct {
	purchaseReceipt *PurchaseReceiptReconciler
	materialIssue   *MaterialIssueReconciler
	outputReceipt   *OutputReceiptReconciler
	salesDelivery   *SalesDeliveryReconciler
	salesSync       *SalesSynchronizer
	metrics         Metrics
}

var _ stockmove.Reconciler = (*Engine)(nil)

// NewEngine wires the reconcilers.
func NewEngine(cfg Config) *Engine {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	sync := NewSalesSynchronizer(cfg.Sales, cfg.Production, cfg.Publisher, cfg.TxManager)
	return &Engine{
		purchaseReceipt: NewPurchaseReceiptReconciler(cfg.Purchasing, cfg.Publisher),
		materialIssue:   NewMaterialIssueReconciler(cfg.Production),
		outputReceipt:   NewOutputReceiptReconciler(cfg.Production, cfg.Sales, sync, cfg.Publisher),
		salesDelivery:   NewSalesDeliveryReconciler(cfg.Sales, cfg.Deliveries, cfg.Publisher),
		salesSync:       sync,
		metrics:         metrics,
	}
}

// SalesSynchronizer returns the synchronizer shared with the output receipt reconciler.
func (e *Engine) SalesSynchronizer() *SalesSynchronizer {
	return e.salesSync
}

// Reconcile implements stockmove.Reconciler.
func (e *Engine) Reconcile(ctx context.Context, move *stockmove.StockMove) error {
	kind, run, err := e.dispatch(move)
	if err != nil {
		e.metrics.ObserveReconcile(KindNone, outcomeOf(err), 0)
		return err
	}

	ctx, span := tracer.Start(ctx, "posting.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("reconciler", kind),
		attribute.String("move.type", string(move.MoveType)),
	)

	start := time.Now()
	if run != nil {
		err = run(ctx, move)
	}
	e.metrics.ObserveReconcile(kind, outcomeOf(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

type reconcileFunc func(ctx context.Context, move *stockmove.StockMove) error

// dispatch selects the reconciler for (link kind, move type). The switch is
// exhaustive over link kinds.
func (e *Engine) dispatch(move *stockmove.StockMove) (string, reconcileFunc, error) {
	switch move.Link.Kind {
	case stockmove.LinkNone:
		return KindNone, nil, nil

	case stockmove.LinkPurchaseOrder:
		if move.MoveType == stockmove.MoveTypeReceipt {
			return KindPurchaseReceipt, e.purchaseReceipt.Reconcile, nil
		}

	case stockmove.LinkProductionOrder:
		switch move.MoveType {
		case stockmove.MoveTypeIssue:
			return KindMaterialIssue, e.materialIssue.Reconcile, nil
		case stockmove.MoveTypeReceipt:
			return KindOutputReceipt, e.outputReceipt.Reconcile, nil
		}

	case stockmove.LinkSalesOrder:
		if move.MoveType == stockmove.MoveTypeOut {
			return KindSalesDelivery, e.salesDelivery.Reconcile, nil
		}

	default:
		return "", nil, apperror.NewValidation("unknown link kind").
			WithDetail("moveId", move.ID).
			WithDetail("linkKind", move.Link.Kind)
	}

	return "", nil, apperror.NewValidation("move type does not match linked document").
		WithDetail("moveId", move.ID).
		WithDetail("linkKind", move.Link.Kind).
		WithDetail("moveType", move.MoveType)
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code
	}
	return apperror.CodeInternal
}

// publishStatusChange appends an order status event caused by a move.
func publishStatusChange(ctx context.Context, p events.Publisher, aggregate, eventType string, orderID id.ID, from, to string, causedBy id.ID) error {
	return p.Publish(ctx, events.Event{
		AggregateType: aggregate,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload: events.StatusChange{
			OrderID:  orderID,
			From:     from,
			To:       to,
			CausedBy: causedBy,
		},
	})
}
