package inventory_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mfgerp/internal/domain/inventory/ledger"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/infrastructure/storage/postgres"
)

var postedLineColumns = []string{
	"l.id AS line_id",
	"m.id AS move_id",
	"m.move_no",
	"m.move_type",
	"m.move_date",
	"m.warehouse_id",
	"l.item_id",
	"l.variant_id",
	"l.uom",
	"l.qty",
	"l.src_location_id",
	"l.dest_location_id",
	"l.note",
}

// LedgerRepo implements ledger.Repository. Every query joins the move
// header and keeps POSTED moves only.
type LedgerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LedgerRepo) postedSelect(columns []string, scope ledger.Scope) squirrel.SelectBuilder {
	q := r.builder.Select(columns...).
		From(stockMoveLinesTable + " l").
		Join(stockMovesTable + " m ON m.id = l.move_id").
		Where(squirrel.Eq{"m.status": stockmove.StatusPosted})

	if scope.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"m.warehouse_id": *scope.WarehouseID})
	}
	if scope.ItemID != nil {
		q = q.Where(squirrel.Eq{"l.item_id": *scope.ItemID})
	}
	if scope.VariantID != nil {
		q = q.Where(squirrel.Eq{"l.variant_id": *scope.VariantID})
	}
	if scope.LocationID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"l.src_location_id": *scope.LocationID},
			squirrel.Eq{"l.dest_location_id": *scope.LocationID},
		})
	}
	return q
}

// PostedLines returns every posted line in scope.
func (r *LedgerRepo) PostedLines(ctx context.Context, scope ledger.Scope) ([]ledger.PostedLine, error) {
	sql, args, err := r.postedSelect(postedLineColumns, scope).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []ledger.PostedLine
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("posted lines: %w", err)
	}
	return lines, nil
}

func (r *LedgerRepo) ledgerQuery(columns []string, filter ledger.LedgerFilter) squirrel.SelectBuilder {
	q := r.postedSelect(columns, filter.Scope)
	if filter.MoveType != nil {
		q = q.Where(squirrel.Eq{"m.move_type": *filter.MoveType})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"m.move_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"m.move_date": *filter.DateTo})
	}
	return q
}

// LedgerPage returns one page of posted lines, newest first.
func (r *LedgerRepo) LedgerPage(ctx context.Context, filter ledger.LedgerFilter) ([]ledger.PostedLine, int64, error) {
	page := filter.Pagination.Normalize()
	querier := r.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := r.ledgerQuery([]string{"COUNT(*)"}, filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	sql, args, err := r.ledgerQuery(postedLineColumns, filter).
		OrderBy("m.move_date DESC", "l.id DESC").
		Limit(uint64(page.PageSize)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	lines := make([]ledger.PostedLine, 0, page.PageSize)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("ledger page: %w", err)
	}
	return lines, total, nil
}
