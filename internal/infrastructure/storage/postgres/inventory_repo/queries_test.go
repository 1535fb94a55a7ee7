package inventory_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfgerp/internal/core/id"
	"mfgerp/internal/domain/inventory/ledger"
	"mfgerp/internal/domain/inventory/stockmove"
)

func TestMoveColumns(t *testing.T) {
	assert.Contains(t, moveColumns, "move_no")
	assert.Contains(t, moveColumns, "purchase_order_id")
	assert.Contains(t, moveColumns, "production_order_id")
	assert.Contains(t, moveColumns, "sales_order_id")
	assert.NotContains(t, moveColumns, "lines")
	assert.NotContains(t, moveColumns, "link")

	assert.Equal(t, "id", lineColumns[0])
	assert.Contains(t, lineColumns, "src_location_id")
}

func TestMoveRow_LinkColumns(t *testing.T) {
	orderID := id.New()
	move := stockmove.New("MV-1", stockmove.MoveTypeOut, id.New(), stockmove.SalesOrderLink(orderID))

	row := toMoveRow(move)
	assert.Nil(t, row.PurchaseOrderID)
	assert.Nil(t, row.ProductionOrderID)
	require.NotNil(t, row.SalesOrderID)
	assert.Equal(t, orderID, *row.SalesOrderID)

	back, err := row.toMove()
	require.NoError(t, err)
	assert.Equal(t, move.Link, back.Link)

	row.PurchaseOrderID = &orderID
	_, err = row.toMove()
	assert.Error(t, err)
}

func TestApplyMoveFilter(t *testing.T) {
	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	base := func() squirrel.SelectBuilder { return builder.Select("id").From(stockMovesTable) }
	orderID := id.New()
	posted := stockmove.StatusPosted
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   stockmove.ListFilter
		contains []string
		args     int
	}{
		{
			name:     "no filter",
			filter:   stockmove.ListFilter{},
			contains: []string{"FROM stock_moves"},
			args:     0,
		},
		{
			name:     "status and date",
			filter:   stockmove.ListFilter{Status: &posted, DateFrom: &from},
			contains: []string{"status = $1", "move_date >= $2"},
			args:     2,
		},
		{
			name:     "link kind only",
			filter:   stockmove.ListFilter{LinkKind: stockmove.LinkProductionOrder},
			contains: []string{"production_order_id IS NOT NULL"},
			args:     0,
		},
		{
			name:     "link kind with order",
			filter:   stockmove.ListFilter{LinkKind: stockmove.LinkSalesOrder, OrderID: &orderID},
			contains: []string{"sales_order_id = $1"},
			args:     1,
		},
		{
			name:     "order without kind",
			filter:   stockmove.ListFilter{OrderID: &orderID},
			contains: []string{"purchase_order_id = $1", "production_order_id = $2", "sales_order_id = $3"},
			args:     3,
		},
		{
			name:     "search",
			filter:   stockmove.ListFilter{Search: "00042"},
			contains: []string{"move_no ILIKE $1"},
			args:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := applyMoveFilter(base(), tt.filter).ToSql()
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, sql, want)
			}
			assert.Len(t, args, tt.args)
		})
	}
}

func TestPostedVariantTotalsQuery(t *testing.T) {
	r := NewStockMoveRepo(nil)

	t.Run("linked", func(t *testing.T) {
		orderID := id.New()
		sql, args, err := r.postedVariantTotalsQuery(stockmove.SalesOrderLink(orderID), stockmove.MoveTypeOut).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "SUM(l.qty) AS qty")
		assert.Contains(t, sql, "m.status = ")
		assert.Contains(t, sql, "m.sales_order_id = ")
		assert.Contains(t, sql, "l.variant_id IS NOT NULL")
		assert.Contains(t, sql, "GROUP BY l.variant_id")
		// uuid values are passed through driver.Valuer.
		assert.Contains(t, args, orderID.String())
	})

	t.Run("unlinked", func(t *testing.T) {
		sql, _, err := r.postedVariantTotalsQuery(stockmove.Link{}, stockmove.MoveTypeOut).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "m.purchase_order_id IS NULL")
		assert.Contains(t, sql, "m.production_order_id IS NULL")
		assert.Contains(t, sql, "m.sales_order_id IS NULL")
	})
}

func TestLedgerQuery(t *testing.T) {
	r := NewLedgerRepo(nil)
	loc := id.New()
	out := stockmove.MoveTypeIssue

	sql, args, err := r.ledgerQuery(postedLineColumns, ledger.LedgerFilter{
		Scope:    ledger.Scope{LocationID: &loc},
		MoveType: &out,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "JOIN stock_moves m ON m.id = l.move_id")
	assert.Contains(t, sql, "m.status = $1")
	assert.Contains(t, sql, "(l.src_location_id = $2 OR l.dest_location_id = $3)")
	assert.Contains(t, sql, "m.move_type = $4")
	require.Len(t, args, 4)
	assert.Equal(t, stockmove.StatusPosted, args[0])
}

func TestStockMoveRepo_HeaderLock(t *testing.T) {
	r := NewStockMoveRepo(nil)
	moveID := id.New()

	plain, _, err := r.headerQuery(moveID).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, plain, "FOR UPDATE")

	sql, args, err := r.lockedHeaderQuery(moveID).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM stock_moves WHERE id = $1")
	assert.True(t, strings.HasSuffix(sql, " FOR UPDATE"), sql)
	assert.Equal(t, []any{moveID.String()}, args)
}
