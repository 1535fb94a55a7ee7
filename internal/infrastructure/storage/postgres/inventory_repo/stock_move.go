// Package inventory_repo provides PostgreSQL implementations of the stock
// move, ledger and catalog lookup repositories.
package inventory_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/infrastructure/storage/postgres"
)

const (
	stockMovesTable     = "stock_moves"
	stockMoveLinesTable = "stock_move_lines"

	uniqueViolation  = "23505"
	moveNoConstraint = "stock_moves_move_no_key"
)

// moveRow is the stored shape of a move header: the link is split into
// three nullable foreign keys.
type moveRow struct {
	stockmove.StockMove
	PurchaseOrderID   *id.ID `db:"purchase_order_id"`
	ProductionOrderID *id.ID `db:"production_order_id"`
	SalesOrderID      *id.ID `db:"sales_order_id"`
}

func toMoveRow(m *stockmove.StockMove) moveRow {
	row := moveRow{StockMove: *m}
	row.PurchaseOrderID, row.ProductionOrderID, row.SalesOrderID = m.Link.Columns()
	return row
}

func (r *moveRow) toMove() (*stockmove.StockMove, error) {
	link, err := stockmove.LinkFromColumns(r.PurchaseOrderID, r.ProductionOrderID, r.SalesOrderID)
	if err != nil {
		return nil, fmt.Errorf("stock move %s: %w", r.ID, err)
	}
	m := r.StockMove
	m.Link = link
	return &m, nil
}

var (
	moveColumns = postgres.Columns[moveRow]()
	lineColumns = postgres.Columns[stockmove.Line]()
)

// StockMoveRepo implements stockmove.Repository.
type StockMoveRepo struct {
	txManager *postgres.TxManager
	batch     *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

var _ stockmove.Repository = (*StockMoveRepo)(nil)

// NewStockMoveRepo creates a new stock move repository.
func NewStockMoveRepo(txManager *postgres.TxManager) *StockMoveRepo {
	return &StockMoveRepo{
		txManager: txManager,
		batch:     postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the header, then COPYs the lines. Must run in a transaction.
func (r *StockMoveRepo) Create(ctx context.Context, move *stockmove.StockMove) error {
	row := toMoveRow(move)
	sql, args, err := r.builder.Insert(stockMovesTable).
		Columns(moveColumns...).
		Values(postgres.RowValues(&row, moveColumns)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == moveNoConstraint {
			return apperror.NewValidation("move number already in use").
				WithDetail("field", "moveNo").
				WithDetail("moveNo", move.MoveNo)
		}
		return fmt.Errorf("insert %s: %w", stockMovesTable, err)
	}

	if len(move.Lines) == 0 {
		return nil
	}
	if _, err := postgres.CopyStructs(ctx, r.batch, stockMoveLinesTable, lineColumns, move.Lines); err != nil {
		return fmt.Errorf("copy %s: %w", stockMoveLinesTable, err)
	}
	return nil
}

// GetByID returns the move with its lines.
func (r *StockMoveRepo) GetByID(ctx context.Context, moveID id.ID) (*stockmove.StockMove, error) {
	return r.get(ctx, moveID, r.headerQuery(moveID))
}

// GetForUpdate returns the move with its lines and locks the header row.
func (r *StockMoveRepo) GetForUpdate(ctx context.Context, moveID id.ID) (*stockmove.StockMove, error) {
	return r.get(ctx, moveID, r.lockedHeaderQuery(moveID))
}

func (r *StockMoveRepo) headerQuery(moveID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(moveColumns...).
		From(stockMovesTable).
		Where(squirrel.Eq{"id": moveID})
}

func (r *StockMoveRepo) lockedHeaderQuery(moveID id.ID) squirrel.SelectBuilder {
	return r.headerQuery(moveID).Suffix("FOR UPDATE")
}

func (r *StockMoveRepo) get(ctx context.Context, moveID id.ID, q squirrel.SelectBuilder) (*stockmove.StockMove, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var row moveRow
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock_move", moveID)
		}
		return nil, fmt.Errorf("get stock move: %w", err)
	}

	move, err := row.toMove()
	if err != nil {
		return nil, err
	}

	lines, err := r.lines(ctx, move.ID)
	if err != nil {
		return nil, err
	}
	move.Lines = lines
	return move, nil
}

func (r *StockMoveRepo) lines(ctx context.Context, moveID id.ID) ([]stockmove.Line, error) {
	sql, args, err := r.builder.Select(lineColumns...).
		From(stockMoveLinesTable).
		Where(squirrel.Eq{"move_id": moveID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lines := make([]stockmove.Line, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

// MarkPosted persists the DRAFT -> POSTED flip. The status guard makes a
// second post of the same move a no-op at the row level.
func (r *StockMoveRepo) MarkPosted(ctx context.Context, moveID id.ID, postedAt time.Time) error {
	sql, args, err := r.builder.Update(stockMovesTable).
		Set("status", stockmove.StatusPosted).
		Set("posted_at", postedAt).
		Where(squirrel.Eq{"id": moveID, "status": stockmove.StatusDraft}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", stockMovesTable, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewInvalidState("stock_move", moveID, string(stockmove.StatusPosted),
			"only a DRAFT move can be posted")
	}
	return nil
}

// List returns move headers, newest first.
func (r *StockMoveRepo) List(ctx context.Context, filter stockmove.ListFilter) (domain.ListResult[stockmove.StockMove], error) {
	page := filter.Pagination.Normalize()
	result := domain.ListResult[stockmove.StockMove]{
		Items:    []stockmove.StockMove{},
		Page:     page.Page,
		PageSize: page.PageSize,
	}

	q := applyMoveFilter(r.builder.Select(moveColumns...).From(stockMovesTable), filter)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	sql, args, err := q.OrderBy("move_date DESC", "id DESC").
		Limit(uint64(page.PageSize)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	var rows []moveRow
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}
	for i := range rows {
		move, err := rows[i].toMove()
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, *move)
	}
	return result, nil
}

func applyMoveFilter(q squirrel.SelectBuilder, f stockmove.ListFilter) squirrel.SelectBuilder {
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.MoveType != nil {
		q = q.Where(squirrel.Eq{"move_type": *f.MoveType})
	}
	if column := linkColumn(f.LinkKind); column != "" {
		if f.OrderID != nil {
			q = q.Where(squirrel.Eq{column: *f.OrderID})
		} else {
			q = q.Where(squirrel.NotEq{column: nil})
		}
	} else if f.OrderID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"purchase_order_id": *f.OrderID},
			squirrel.Eq{"production_order_id": *f.OrderID},
			squirrel.Eq{"sales_order_id": *f.OrderID},
		})
	}
	if f.Search != "" {
		q = q.Where(squirrel.ILike{"move_no": "%" + f.Search + "%"})
	}
	if f.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"move_date": *f.DateFrom})
	}
	if f.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"move_date": *f.DateTo})
	}
	return q
}

func linkColumn(kind stockmove.LinkKind) string {
	switch kind {
	case stockmove.LinkPurchaseOrder:
		return "purchase_order_id"
	case stockmove.LinkProductionOrder:
		return "production_order_id"
	case stockmove.LinkSalesOrder:
		return "sales_order_id"
	default:
		return ""
	}
}

// PostedVariantTotals sums variant quantities of POSTED moves with the given link and type.
func (r *StockMoveRepo) PostedVariantTotals(ctx context.Context, link stockmove.Link, moveType stockmove.MoveType) (types.Totals, error) {
	sql, args, err := r.postedVariantTotalsQuery(link, moveType).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []struct {
		VariantID id.ID          `db:"variant_id"`
		Qty       types.Quantity `db:"qty"`
	}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("posted variant totals: %w", err)
	}

	totals := types.Totals{}
	for _, row := range rows {
		totals.Add(row.VariantID, row.Qty)
	}
	return totals, nil
}

func (r *StockMoveRepo) postedVariantTotalsQuery(link stockmove.Link, moveType stockmove.MoveType) squirrel.SelectBuilder {
	q := r.builder.Select("l.variant_id", "SUM(l.qty) AS qty").
		From(stockMoveLinesTable + " l").
		Join(stockMovesTable + " m ON m.id = l.move_id").
		Where(squirrel.Eq{"m.status": stockmove.StatusPosted, "m.move_type": moveType}).
		Where(squirrel.NotEq{"l.variant_id": nil}).
		GroupBy("l.variant_id")

	if column := linkColumn(link.Kind); column != "" {
		q = q.Where(squirrel.Eq{"m." + column: link.OrderID})
	} else {
		q = q.Where(squirrel.Eq{
			"m.purchase_order_id":   nil,
			"m.production_order_id": nil,
			"m.sales_order_id":      nil,
		})
	}
	return q
}
