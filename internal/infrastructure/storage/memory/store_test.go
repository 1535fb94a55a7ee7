package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/numerator"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain"
	"mfgerp/internal/domain/events"
	"mfgerp/internal/domain/inventory/ledger"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/domain/purchasing"
)

func TestStore_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	s := New()
	po := &purchasing.PurchaseOrder{
		ID:     id.New(),
		Status: purchasing.StatusConfirmed,
		Lines: []purchasing.Line{
			{ID: id.New(), ItemID: id.New(), Qty: types.MustQuantity("10"), ReceivedQty: types.Zero()},
		},
	}
	s.PurchaseOrders().Put(po)

	errBoom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.PurchaseOrders().UpdateReceivedQty(ctx, po.Lines[0].ID, types.MustQuantity("10")))
		require.NoError(t, s.PurchaseOrders().UpdateStatus(ctx, po.ID, purchasing.StatusReceived))
		require.NoError(t, s.Publish(ctx, events.Event{EventType: events.PurchaseOrderReceived}))
		_, err := s.GetNextNumber(ctx, numerator.DefaultConfig("MV"), nil, time.Now())
		require.NoError(t, err)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	got, err := s.PurchaseOrders().GetByID(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, purchasing.StatusConfirmed, got.Status)
	assert.True(t, got.Lines[0].ReceivedQty.IsZero())
	assert.Empty(t, s.Events())

	number, err := s.GetNextNumber(ctx, numerator.DefaultConfig("MV"), nil, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "MV-2026-00001", number)
}

func TestStore_NestedTransactionJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		assert.True(t, InTransaction(ctx))
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.Publish(ctx, events.Event{EventType: events.StockMovePosted})
		})
	})
	require.NoError(t, err)
	assert.Len(t, s.Events(), 1)
	assert.False(t, InTransaction(ctx))
}

func TestStore_UncommittedWritesStayPrivate(t *testing.T) {
	ctx := context.Background()
	wh := id.New()
	loc := id.New()

	tests := []struct {
		name        string
		fnErr       error
		wantVisible int
	}{
		{name: "commit publishes writes", wantVisible: 1},
		{name: "rollback discards writes", fnErr: errors.New("boom"), wantVisible: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			move := stockmove.New("MV-1", stockmove.MoveTypeReceipt, wh, stockmove.Link{})
			move.AddVariantLine(id.New(), types.MustQuantity("5"), nil, &loc)
			require.NoError(t, s.StockMoves().Create(ctx, move))

			err := s.RunInTransaction(ctx, func(txCtx context.Context) error {
				require.NoError(t, s.StockMoves().MarkPosted(txCtx, move.ID, time.Now()))
				require.NoError(t, s.Publish(txCtx, events.Event{EventType: events.StockMovePosted}))

				inside, err := s.Ledger().PostedLines(txCtx, ledger.Scope{})
				require.NoError(t, err)
				assert.Len(t, inside, 1)

				outside, err := s.Ledger().PostedLines(ctx, ledger.Scope{})
				require.NoError(t, err)
				assert.Empty(t, outside)

				got, err := s.StockMoves().GetByID(ctx, move.ID)
				require.NoError(t, err)
				assert.Equal(t, stockmove.StatusDraft, got.Status)
				assert.Empty(t, s.Events())
				return tt.fnErr
			})
			require.ErrorIs(t, err, tt.fnErr)

			lines, err := s.Ledger().PostedLines(ctx, ledger.Scope{})
			require.NoError(t, err)
			assert.Len(t, lines, tt.wantVisible)
			assert.Len(t, s.Events(), tt.wantVisible)
		})
	}
}

func TestStockMoveRepo(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := s.StockMoves()
	wh := id.New()
	loc := id.New()
	variant := id.New()
	soID := id.New()

	older := stockmove.New("MV-1", stockmove.MoveTypeOut, wh, stockmove.SalesOrderLink(soID))
	older.MoveDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older.AddVariantLine(variant, types.MustQuantity("3"), &loc, nil)
	newer := stockmove.New("MV-2", stockmove.MoveTypeOut, wh, stockmove.SalesOrderLink(soID))
	newer.MoveDate = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer.AddVariantLine(variant, types.MustQuantity("4"), &loc, nil)

	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	t.Run("duplicate move number", func(t *testing.T) {
		dup := stockmove.New("MV-1", stockmove.MoveTypeAdjust, wh, stockmove.Link{})
		err := repo.Create(ctx, dup)
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, id.New())
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("list newest first without lines", func(t *testing.T) {
		res, err := repo.List(ctx, stockmove.ListFilter{})
		require.NoError(t, err)
		require.Len(t, res.Items, 2)
		assert.Equal(t, "MV-2", res.Items[0].MoveNo)
		assert.Nil(t, res.Items[0].Lines)
		assert.EqualValues(t, 2, res.TotalCount)
	})

	t.Run("list filters by search and status", func(t *testing.T) {
		posted := stockmove.StatusPosted
		res, err := repo.List(ctx, stockmove.ListFilter{Status: &posted})
		require.NoError(t, err)
		assert.Empty(t, res.Items)

		res, err = repo.List(ctx, stockmove.ListFilter{Search: "mv-1"})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, older.ID, res.Items[0].ID)
	})

	t.Run("posted totals count only posted moves", func(t *testing.T) {
		totals, err := repo.PostedVariantTotals(ctx, stockmove.SalesOrderLink(soID), stockmove.MoveTypeOut)
		require.NoError(t, err)
		assert.Empty(t, totals)

		require.NoError(t, repo.MarkPosted(ctx, older.ID, time.Now()))
		totals, err = repo.PostedVariantTotals(ctx, stockmove.SalesOrderLink(soID), stockmove.MoveTypeOut)
		require.NoError(t, err)
		assert.True(t, totals.Get(variant).Equal(types.MustQuantity("3")))
	})

	t.Run("ledger sees posted lines only", func(t *testing.T) {
		lines, err := s.Ledger().PostedLines(ctx, ledger.Scope{LocationID: &loc})
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, "MV-1", lines[0].MoveNo)

		page, total, err := s.Ledger().LedgerPage(ctx, ledger.LedgerFilter{Pagination: domain.Pagination{Page: 1, PageSize: 10}})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Len(t, page, 1)
	})
}
