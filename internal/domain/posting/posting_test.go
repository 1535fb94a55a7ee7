package posting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/domain/events"
	"mfgerp/internal/domain/inventory/ledger"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/domain/posting"
	"mfgerp/internal/domain/production"
	"mfgerp/internal/domain/purchasing"
	"mfgerp/internal/domain/sales"
)

func TestDispatch(t *testing.T) {
	tests := []struct {
		name     string
		moveType stockmove.MoveType
		kind     stockmove.LinkKind
		wantErr  bool
	}{
		{"purchase order with issue", stockmove.MoveTypeIssue, stockmove.LinkPurchaseOrder, true},
		{"purchase order with out", stockmove.MoveTypeOut, stockmove.LinkPurchaseOrder, true},
		{"production order with out", stockmove.MoveTypeOut, stockmove.LinkProductionOrder, true},
		{"production order with transfer", stockmove.MoveTypeTransfer, stockmove.LinkProductionOrder, true},
		{"sales order with receipt", stockmove.MoveTypeReceipt, stockmove.LinkSalesOrder, true},
		{"sales order with adjust", stockmove.MoveTypeAdjust, stockmove.LinkSalesOrder, true},
		{"unlinked adjust", stockmove.MoveTypeAdjust, stockmove.LinkNone, false},
		{"unlinked transfer", stockmove.MoveTypeTransfer, stockmove.LinkNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			link := stockmove.Link{Kind: tt.kind}
			if tt.kind != stockmove.LinkNone {
				link.OrderID = id.New()
			}

			move, err := h.post(t, tt.moveType, link, h.itemLine(id.New(), "1"))

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, stockmove.StatusPosted, h.status(t, move.ID))
				assert.Equal(t, posting.KindNone, h.metrics.last().kind)
				return
			}
			appErr := requireAppError(t, err, apperror.CodeValidation)
			assert.Equal(t, "move type does not match linked document", appErr.Message)
			assert.Equal(t, stockmove.StatusDraft, h.status(t, move.ID))
			assert.Equal(t, apperror.CodeValidation, h.metrics.last().outcome)
		})
	}
}

func TestPost_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown move", func(t *testing.T) {
		h := newHarness(t)
		requireAppError(t, h.moves.Post(ctx, id.New()), apperror.CodeNotFound)
	})

	t.Run("second post is rejected", func(t *testing.T) {
		h := newHarness(t)
		move, err := h.post(t, stockmove.MoveTypeAdjust, stockmove.Link{}, h.itemLine(id.New(), "5"))
		require.NoError(t, err)

		requireAppError(t, h.moves.Post(ctx, move.ID), apperror.CodeInvalidState)
		assert.Equal(t, []string{events.StockMovePosted}, h.eventTypes())
	})

	t.Run("posted move carries posted at", func(t *testing.T) {
		h := newHarness(t)
		move, err := h.post(t, stockmove.MoveTypeAdjust, stockmove.Link{})
		require.NoError(t, err)

		got, err := h.moves.Get(ctx, move.ID)
		require.NoError(t, err)
		assert.Equal(t, stockmove.StatusPosted, got.Status)
		assert.NotNil(t, got.PostedAt)
	})

	t.Run("linked order not found keeps move draft", func(t *testing.T) {
		h := newHarness(t)
		move, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.PurchaseOrderLink(id.New()), h.itemLine(id.New(), "1"))

		requireAppError(t, err, apperror.CodeNotFound)
		assert.Equal(t, stockmove.StatusDraft, h.status(t, move.ID))
		assert.Empty(t, h.eventTypes())
	})
}

func TestPurchaseReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("full receipt completes the order", func(t *testing.T) {
		h := newHarness(t)
		fabric := id.New()
		po := h.purchaseOrder(purchasing.StatusConfirmed, purchasing.Line{ItemID: fabric, Qty: qty("200"), ReceivedQty: qty("0")})

		_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.PurchaseOrderLink(po.ID), h.itemLine(fabric, "120"), h.itemLine(fabric, "80"))
		require.NoError(t, err)

		got, err := h.store.PurchaseOrders().GetByID(ctx, po.ID)
		require.NoError(t, err)
		assert.Equal(t, purchasing.StatusReceived, got.Status)
		assert.True(t, got.Lines[0].ReceivedQty.Equal(qty("200")))
		assert.Equal(t, []string{events.PurchaseOrderReceived, events.StockMovePosted}, h.eventTypes())
		assert.Equal(t, posting.KindPurchaseReceipt, h.metrics.last().kind)
	})

	t.Run("partial receipt keeps status", func(t *testing.T) {
		h := newHarness(t)
		fabric, thread := id.New(), id.New()
		po := h.purchaseOrder(purchasing.StatusConfirmed,
			purchasing.Line{ItemID: fabric, Qty: qty("200"), ReceivedQty: qty("0")},
			purchasing.Line{ItemID: thread, Qty: qty("10"), ReceivedQty: qty("0")},
		)

		_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.PurchaseOrderLink(po.ID),
			h.itemLine(fabric, "200"), h.itemLine(id.New(), "7"))
		require.NoError(t, err)

		got, err := h.store.PurchaseOrders().GetByID(ctx, po.ID)
		require.NoError(t, err)
		assert.Equal(t, purchasing.StatusConfirmed, got.Status)
		assert.True(t, got.Lines[1].ReceivedQty.IsZero())
	})

	t.Run("over receipt is accepted", func(t *testing.T) {
		h := newHarness(t)
		fabric := id.New()
		po := h.purchaseOrder(purchasing.StatusConfirmed, purchasing.Line{ItemID: fabric, Qty: qty("10"), ReceivedQty: qty("0")})

		_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.PurchaseOrderLink(po.ID), h.itemLine(fabric, "12"))
		require.NoError(t, err)

		got, err := h.store.PurchaseOrders().GetByID(ctx, po.ID)
		require.NoError(t, err)
		assert.True(t, got.Lines[0].ReceivedQty.Equal(qty("12")))
		assert.Equal(t, purchasing.StatusReceived, got.Status)
	})

	t.Run("cancelled order", func(t *testing.T) {
		h := newHarness(t)
		fabric := id.New()
		po := h.purchaseOrder(purchasing.StatusCancelled, purchasing.Line{ItemID: fabric, Qty: qty("10"), ReceivedQty: qty("0")})

		move, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.PurchaseOrderLink(po.ID), h.itemLine(fabric, "1"))
		requireAppError(t, err, apperror.CodeInvalidState)
		assert.Equal(t, stockmove.StatusDraft, h.status(t, move.ID))
	})

	t.Run("order without lines never completes", func(t *testing.T) {
		h := newHarness(t)
		po := h.purchaseOrder(purchasing.StatusConfirmed)

		_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.PurchaseOrderLink(po.ID), h.itemLine(id.New(), "1"))
		require.NoError(t, err)

		got, err := h.store.PurchaseOrders().GetByID(ctx, po.ID)
		require.NoError(t, err)
		assert.Equal(t, purchasing.StatusConfirmed, got.Status)
	})
}

func TestMaterialIssue(t *testing.T) {
	t.Run("issues within requirement", func(t *testing.T) {
		h := newHarness(t)
		fabric := id.New()
		mo := h.productionOrder(production.StatusRunning, "100", nil)
		req := h.requirement(mo.ID, fabric, "50")

		_, err := h.post(t, stockmove.MoveTypeIssue, stockmove.ProductionOrderLink(mo.ID), h.issueLine(fabric, "30"), h.issueLine(fabric, "20"))
		require.NoError(t, err)

		got, err := h.store.ProductionOrders().Requirement(req.ID)
		require.NoError(t, err)
		assert.True(t, got.QtyIssued.Equal(qty("50")))
	})

	t.Run("ceiling rejects without partial apply", func(t *testing.T) {
		h := newHarness(t)
		fabric, thread := id.New(), id.New()
		mo := h.productionOrder(production.StatusRunning, "100", nil)
		reqFabric := h.requirement(mo.ID, fabric, "10")
		reqThread := h.requirement(mo.ID, thread, "5")

		move, err := h.post(t, stockmove.MoveTypeIssue, stockmove.ProductionOrderLink(mo.ID), h.issueLine(fabric, "10"), h.issueLine(thread, "6"))
		appErr := requireAppError(t, err, apperror.CodeValidation)
		assert.Equal(t, "6", appErr.Details["attempted"])
		assert.Equal(t, "5", appErr.Details["required"])
		assert.Equal(t, stockmove.StatusDraft, h.status(t, move.ID))

		for _, reqID := range []id.ID{reqFabric.ID, reqThread.ID} {
			got, err := h.store.ProductionOrders().Requirement(reqID)
			require.NoError(t, err)
			assert.True(t, got.QtyIssued.IsZero())
		}
	})

	t.Run("item outside requirements", func(t *testing.T) {
		h := newHarness(t)
		mo := h.productionOrder(production.StatusRunning, "100", nil)

		_, err := h.post(t, stockmove.MoveTypeIssue, stockmove.ProductionOrderLink(mo.ID), h.issueLine(id.New(), "1"))
		appErr := requireAppError(t, err, apperror.CodeValidation)
		assert.Equal(t, "item not in requirements", appErr.Message)
	})

	t.Run("variant line rejected", func(t *testing.T) {
		h := newHarness(t)
		mo := h.productionOrder(production.StatusRunning, "100", nil)

		_, err := h.post(t, stockmove.MoveTypeIssue, stockmove.ProductionOrderLink(mo.ID), h.variantOut(id.New(), "1"))
		requireAppError(t, err, apperror.CodeValidation)
	})

	t.Run("cancelled order", func(t *testing.T) {
		h := newHarness(t)
		fabric := id.New()
		mo := h.productionOrder(production.StatusCancelled, "100", nil)
		h.requirement(mo.ID, fabric, "10")

		_, err := h.post(t, stockmove.MoveTypeIssue, stockmove.ProductionOrderLink(mo.ID), h.issueLine(fabric, "1"))
		requireAppError(t, err, apperror.CodeInvalidState)
	})
}

func TestOutputReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("two receipts complete the order", func(t *testing.T) {
		h := newHarness(t)
		shirt := id.New()
		mo := h.productionOrder(production.StatusRunning, "100", nil)
		bd := h.breakdown(mo.ID, shirt, "100")

		_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID), h.variantIn(shirt, "60"))
		require.NoError(t, err)

		got, err := h.store.ProductionOrders().GetForUpdate(ctx, mo.ID)
		require.NoError(t, err)
		assert.Equal(t, production.StatusRunning, got.Status)
		assert.True(t, got.QtyDone.Equal(qty("60")))

		_, err = h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID), h.variantIn(shirt, "40"))
		require.NoError(t, err)

		got, err = h.store.ProductionOrders().GetForUpdate(ctx, mo.ID)
		require.NoError(t, err)
		assert.Equal(t, production.StatusDone, got.Status)
		assert.True(t, got.QtyDone.Equal(qty("100")))

		gotBd, err := h.store.ProductionOrders().Breakdown(bd.ID)
		require.NoError(t, err)
		assert.True(t, gotBd.QtyDone.Equal(qty("100")))
		assert.Contains(t, h.eventTypes(), events.ProductionOrderCompleted)
	})

	t.Run("order plan ceiling", func(t *testing.T) {
		h := newHarness(t)
		small, large := id.New(), id.New()
		mo := h.productionOrder(production.StatusRunning, "100", nil)
		bdSmall := h.breakdown(mo.ID, small, "50")
		h.breakdown(mo.ID, large, "60")

		move, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID), h.variantIn(small, "50"), h.variantIn(large, "60"))
		appErr := requireAppError(t, err, apperror.CodeValidation)
		assert.Equal(t, "100", appErr.Details["plan"])
		assert.Equal(t, "110", appErr.Details["attempted"])
		assert.Equal(t, stockmove.StatusDraft, h.status(t, move.ID))

		got, err := h.store.ProductionOrders().GetForUpdate(ctx, mo.ID)
		require.NoError(t, err)
		assert.True(t, got.QtyDone.IsZero())
		gotBd, err := h.store.ProductionOrders().Breakdown(bdSmall.ID)
		require.NoError(t, err)
		assert.True(t, gotBd.QtyDone.IsZero())
	})

	t.Run("breakdown ceiling", func(t *testing.T) {
		h := newHarness(t)
		shirt := id.New()
		mo := h.productionOrder(production.StatusRunning, "100", nil)
		h.breakdown(mo.ID, shirt, "30")

		_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID), h.variantIn(shirt, "31"))
		appErr := requireAppError(t, err, apperror.CodeValidation)
		assert.Equal(t, "completed quantity exceeds breakdown plan", appErr.Message)
	})

	t.Run("variant outside breakdown", func(t *testing.T) {
		h := newHarness(t)
		mo := h.productionOrder(production.StatusRunning, "100", nil)

		_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID), h.variantIn(id.New(), "1"))
		requireAppError(t, err, apperror.CodeValidation)
	})

	t.Run("cancelled order", func(t *testing.T) {
		h := newHarness(t)
		shirt := id.New()
		mo := h.productionOrder(production.StatusCancelled, "100", nil)
		bd := h.breakdown(mo.ID, shirt, "100")

		move, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID), h.variantIn(shirt, "10"))
		appErr := requireAppError(t, err, apperror.CodeInvalidState)
		assert.Equal(t, string(production.StatusCancelled), appErr.Details["status"])
		assert.Equal(t, stockmove.StatusDraft, h.status(t, move.ID))

		gotBd, err := h.store.ProductionOrders().Breakdown(bd.ID)
		require.NoError(t, err)
		assert.True(t, gotBd.QtyDone.IsZero())
		assert.Empty(t, h.eventTypes())
	})

	t.Run("empty receipt against done order changes nothing", func(t *testing.T) {
		h := newHarness(t)
		shirt := id.New()
		mo := h.productionOrder(production.StatusRunning, "10", nil)
		h.breakdown(mo.ID, shirt, "10")
		_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID), h.variantIn(shirt, "10"))
		require.NoError(t, err)
		before := h.eventTypes()

		_, err = h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID))
		require.NoError(t, err)

		got, err := h.store.ProductionOrders().GetForUpdate(ctx, mo.ID)
		require.NoError(t, err)
		assert.Equal(t, production.StatusDone, got.Status)
		assert.True(t, got.QtyDone.Equal(qty("10")))
		assert.Equal(t, append(before, events.StockMovePosted), h.eventTypes())
	})
}

func TestSalesDelivery(t *testing.T) {
	t.Run("full delivery completes then rejects more", func(t *testing.T) {
		h := newHarness(t)
		shirt := id.New()
		so := h.salesOrder(sales.StatusConfirmed, map[id.ID]string{shirt: "100"})

		_, err := h.post(t, stockmove.MoveTypeOut, stockmove.SalesOrderLink(so.ID), h.variantOut(shirt, "100"))
		require.NoError(t, err)
		assert.Equal(t, sales.StatusDone, h.salesStatus(t, so.ID))

		move, err := h.post(t, stockmove.MoveTypeOut, stockmove.SalesOrderLink(so.ID), h.variantOut(shirt, "1"))
		appErr := requireAppError(t, err, apperror.CodeValidation)
		assert.Equal(t, "100", appErr.Details["ordered"])
		assert.Equal(t, "100", appErr.Details["delivered"])
		assert.Equal(t, "1", appErr.Details["qty"])
		assert.Equal(t, stockmove.StatusDraft, h.status(t, move.ID))
	})

	t.Run("partial deliveries accumulate", func(t *testing.T) {
		h := newHarness(t)
		shirt, pants := id.New(), id.New()
		so := h.salesOrder(sales.StatusConfirmed, map[id.ID]string{shirt: "10", pants: "5"})

		_, err := h.post(t, stockmove.MoveTypeOut, stockmove.SalesOrderLink(so.ID), h.variantOut(shirt, "10"))
		require.NoError(t, err)
		assert.Equal(t, sales.StatusConfirmed, h.salesStatus(t, so.ID))

		_, err = h.post(t, stockmove.MoveTypeOut, stockmove.SalesOrderLink(so.ID), h.variantOut(pants, "5"))
		require.NoError(t, err)
		assert.Equal(t, sales.StatusDone, h.salesStatus(t, so.ID))
	})

	t.Run("variant not ordered", func(t *testing.T) {
		h := newHarness(t)
		so := h.salesOrder(sales.StatusConfirmed, map[id.ID]string{id.New(): "10"})

		_, err := h.post(t, stockmove.MoveTypeOut, stockmove.SalesOrderLink(so.ID), h.variantOut(id.New(), "1"))
		appErr := requireAppError(t, err, apperror.CodeValidation)
		assert.Equal(t, "0", appErr.Details["ordered"])
	})

	for _, status := range []sales.Status{sales.StatusDraft, sales.StatusCancelled} {
		t.Run(string(status)+" order", func(t *testing.T) {
			h := newHarness(t)
			shirt := id.New()
			so := h.salesOrder(status, map[id.ID]string{shirt: "10"})

			move, err := h.post(t, stockmove.MoveTypeOut, stockmove.SalesOrderLink(so.ID), h.variantOut(shirt, "1"))
			appErr := requireAppError(t, err, apperror.CodeInvalidState)
			assert.Equal(t, string(status), appErr.Details["status"])
			assert.Equal(t, stockmove.StatusDraft, h.status(t, move.ID))
			assert.Equal(t, status, h.salesStatus(t, so.ID))
			assert.Empty(t, h.eventTypes())
		})
	}

	t.Run("item line rejected", func(t *testing.T) {
		h := newHarness(t)
		so := h.salesOrder(sales.StatusConfirmed, map[id.ID]string{id.New(): "10"})

		_, err := h.post(t, stockmove.MoveTypeOut, stockmove.SalesOrderLink(so.ID), h.itemLine(id.New(), "1"))
		requireAppError(t, err, apperror.CodeValidation)
	})
}

func TestSalesSync(t *testing.T) {
	ctx := context.Background()

	t.Run("production progress drives the sales order", func(t *testing.T) {
		h := newHarness(t)
		shirt := id.New()
		so := h.salesOrder(sales.StatusConfirmed, map[id.ID]string{shirt: "100"})
		mo := h.productionOrder(production.StatusRunning, "100", id.Ptr(so.Items[0].ID))
		h.breakdown(mo.ID, shirt, "100")

		_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID), h.variantIn(shirt, "60"))
		require.NoError(t, err)
		assert.Equal(t, sales.StatusInProduction, h.salesStatus(t, so.ID))

		_, err = h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID), h.variantIn(shirt, "40"))
		require.NoError(t, err)
		assert.Equal(t, sales.StatusDone, h.salesStatus(t, so.ID))
	})

	t.Run("cancelled sales order is untouched", func(t *testing.T) {
		h := newHarness(t)
		shirt := id.New()
		so := h.salesOrder(sales.StatusCancelled, map[id.ID]string{shirt: "10"})
		mo := h.productionOrder(production.StatusRunning, "10", id.Ptr(so.Items[0].ID))
		h.breakdown(mo.ID, shirt, "10")

		_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.ProductionOrderLink(mo.ID), h.variantIn(shirt, "10"))
		require.NoError(t, err)
		assert.Equal(t, sales.StatusCancelled, h.salesStatus(t, so.ID))
	})

	t.Run("standalone sync", func(t *testing.T) {
		h := newHarness(t)
		so := h.salesOrder(sales.StatusConfirmed, map[id.ID]string{id.New(): "10"})
		mo := h.productionOrder(production.StatusRunning, "10", id.Ptr(so.Items[0].ID))
		require.NoError(t, h.store.ProductionOrders().UpdateProgress(ctx, mo.ID, qty("4"), production.StatusRunning))

		require.NoError(t, h.engine.SalesSynchronizer().Sync(ctx, so.ID))
		assert.Equal(t, sales.StatusInProduction, h.salesStatus(t, so.ID))

		require.NoError(t, h.engine.SalesSynchronizer().Sync(ctx, so.ID))
		assert.Equal(t, []string{events.SalesOrderStatusChanged}, h.eventTypes())
	})

	t.Run("released production does not count", func(t *testing.T) {
		h := newHarness(t)
		so := h.salesOrder(sales.StatusConfirmed, map[id.ID]string{id.New(): "10"})
		h.productionOrder(production.StatusReleased, "10", id.Ptr(so.Items[0].ID))

		require.NoError(t, h.engine.SalesSynchronizer().Sync(ctx, so.ID))
		assert.Equal(t, sales.StatusConfirmed, h.salesStatus(t, so.ID))
	})

	t.Run("unknown sales order", func(t *testing.T) {
		h := newHarness(t)
		requireAppError(t, h.engine.SalesSynchronizer().Sync(ctx, id.New()), apperror.CodeNotFound)
	})
}

func TestLedgerReflectsPostedMovesOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fabric := id.New()
	mo := h.productionOrder(production.StatusRunning, "10", nil)
	h.requirement(mo.ID, fabric, "30")

	_, err := h.post(t, stockmove.MoveTypeReceipt, stockmove.Link{}, h.itemLine(fabric, "100"))
	require.NoError(t, err)
	_, err = h.post(t, stockmove.MoveTypeIssue, stockmove.ProductionOrderLink(mo.ID), h.issueLine(fabric, "30"))
	require.NoError(t, err)
	h.create(t, stockmove.MoveTypeReceipt, stockmove.Link{}, h.itemLine(fabric, "500"))
	_, err = h.post(t, stockmove.MoveTypeIssue, stockmove.ProductionOrderLink(mo.ID), h.issueLine(fabric, "1"))
	require.Error(t, err)

	svc := ledger.NewService(h.store.Ledger(), h.store.Catalog())
	res, err := svc.OnHand(ctx, ledger.OnHandFilter{})
	require.NoError(t, err)

	balances := map[id.ID]string{}
	for _, row := range res.Items {
		balances[row.LocationID] = row.Qty.String()
	}
	assert.Equal(t, map[id.ID]string{h.stockLoc: "70", h.floorLoc: "30"}, balances)

	page, err := svc.Ledger(ctx, ledger.LedgerFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
}
