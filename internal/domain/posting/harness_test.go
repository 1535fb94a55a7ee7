package posting_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain/events"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/domain/posting"
	"mfgerp/internal/domain/production"
	"mfgerp/internal/domain/purchasing"
	"mfgerp/internal/domain/sales"
	"mfgerp/internal/infrastructure/storage/memory"
)

type reconcileCall struct {
	kind    string
	outcome string
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []reconcileCall
}

func (m *recordingMetrics) ObserveReconcile(kind, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, reconcileCall{kind: kind, outcome: outcome})
}

func (m *recordingMetrics) last() reconcileCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

type harness struct {
	store   *memory.Store
	engine  *posting.Engine
	moves   *stockmove.Service
	metrics *recordingMetrics

	warehouse id.ID
	stockLoc  id.ID
	floorLoc  id.ID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s := memory.New()
	metrics := &recordingMetrics{}
	engine := posting.NewEngine(posting.Config{
		Purchasing: s.PurchaseOrders(),
		Production: s.ProductionOrders(),
		Sales:      s.SalesOrders(),
		Deliveries: s.StockMoves(),
		Publisher:  s,
		Metrics:    metrics,
		TxManager:  s,
	})
	svc := stockmove.NewService(s.StockMoves(), engine, s, s)
	svc.Hooks().OnAfterPost(func(ctx context.Context, m *stockmove.StockMove) error {
		return s.Publish(ctx, events.Event{
			AggregateType: events.AggregateStockMove,
			AggregateID:   m.ID,
			EventType:     events.StockMovePosted,
		})
	})

	return &harness{
		store:     s,
		engine:    engine,
		moves:     svc,
		metrics:   metrics,
		warehouse: id.New(),
		stockLoc:  id.New(),
		floorLoc:  id.New(),
	}
}

func qty(s string) types.Quantity { return types.MustQuantity(s) }

func (h *harness) itemLine(itemID id.ID, q string) stockmove.LineInput {
	return stockmove.LineInput{ItemID: id.Ptr(itemID), UOM: "pcs", Qty: q, DestLocationID: id.Ptr(h.stockLoc)}
}

func (h *harness) issueLine(itemID id.ID, q string) stockmove.LineInput {
	return stockmove.LineInput{ItemID: id.Ptr(itemID), UOM: "pcs", Qty: q, SrcLocationID: id.Ptr(h.stockLoc), DestLocationID: id.Ptr(h.floorLoc)}
}

func (h *harness) variantIn(variantID id.ID, q string) stockmove.LineInput {
	return stockmove.LineInput{VariantID: id.Ptr(variantID), UOM: "pcs", Qty: q, DestLocationID: id.Ptr(h.stockLoc)}
}

func (h *harness) variantOut(variantID id.ID, q string) stockmove.LineInput {
	return stockmove.LineInput{VariantID: id.Ptr(variantID), UOM: "pcs", Qty: q, SrcLocationID: id.Ptr(h.stockLoc)}
}

// create stores a DRAFT move and fails the test on error.
func (h *harness) create(t *testing.T, moveType stockmove.MoveType, link stockmove.Link, lines ...stockmove.LineInput) *stockmove.StockMove {
	t.Helper()
	move, err := h.moves.Create(context.Background(), stockmove.CreateInput{
		MoveType:    moveType,
		WarehouseID: h.warehouse,
		Link:        link,
		Lines:       lines,
	})
	require.NoError(t, err)
	return move
}

// post creates and posts a move, returning the post error.
func (h *harness) post(t *testing.T, moveType stockmove.MoveType, link stockmove.Link, lines ...stockmove.LineInput) (*stockmove.StockMove, error) {
	t.Helper()
	move := h.create(t, moveType, link, lines...)
	return move, h.moves.Post(context.Background(), move.ID)
}

func (h *harness) status(t *testing.T, moveID id.ID) stockmove.Status {
	t.Helper()
	m, err := h.moves.Get(context.Background(), moveID)
	require.NoError(t, err)
	return m.Status
}

func (h *harness) eventTypes() []string {
	var out []string
	for _, e := range h.store.Events() {
		out = append(out, e.EventType)
	}
	return out
}

func (h *harness) purchaseOrder(status purchasing.Status, lines ...purchasing.Line) *purchasing.PurchaseOrder {
	po := &purchasing.PurchaseOrder{ID: id.New(), PONo: "PO-0001", Status: status}
	for _, l := range lines {
		l.ID = id.New()
		l.PurchaseOrderID = po.ID
		po.Lines = append(po.Lines, l)
	}
	h.store.PurchaseOrders().Put(po)
	return po
}

func (h *harness) productionOrder(status production.Status, plan string, salesItemID *id.ID) *production.Order {
	mo := &production.Order{
		ID:               id.New(),
		MONo:             "MO-0001",
		Status:           status,
		QtyPlan:          qty(plan),
		QtyDone:          types.Zero(),
		SalesOrderItemID: salesItemID,
	}
	h.store.ProductionOrders().Put(mo)
	return mo
}

func (h *harness) breakdown(orderID, variantID id.ID, plan string) *production.Breakdown {
	b := &production.Breakdown{
		ID:                id.New(),
		ProductionOrderID: orderID,
		VariantID:         variantID,
		QtyPlan:           qty(plan),
		QtyDone:           types.Zero(),
	}
	h.store.ProductionOrders().PutBreakdown(b)
	return b
}

func (h *harness) requirement(orderID, itemID id.ID, required string) *production.MaterialRequirement {
	r := &production.MaterialRequirement{
		ID:                id.New(),
		ProductionOrderID: orderID,
		ItemID:            itemID,
		QtyRequired:       qty(required),
		QtyIssued:         types.Zero(),
		WastagePercent:    types.Zero(),
	}
	h.store.ProductionOrders().PutRequirement(r)
	return r
}

// salesOrder creates an order with one item per variant/qty pair.
func (h *harness) salesOrder(status sales.Status, variants map[id.ID]string) *sales.Order {
	so := &sales.Order{ID: id.New(), SONo: "SO-0001", Status: status}
	for variantID, q := range variants {
		item := sales.Item{ID: id.New(), SalesOrderID: so.ID, QtyTotal: qty(q)}
		item.Variants = []sales.VariantBreakdown{{ID: id.New(), ItemID: item.ID, VariantID: variantID, Qty: qty(q)}}
		so.Items = append(so.Items, item)
	}
	h.store.SalesOrders().Put(so)
	return so
}

func (h *harness) salesStatus(t *testing.T, orderID id.ID) sales.Status {
	t.Helper()
	so, err := h.store.SalesOrders().GetByID(context.Background(), orderID)
	require.NoError(t, err)
	return so.Status
}

func requireAppError(t *testing.T, err error, code string) *apperror.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}
