// Package order_repo provides PostgreSQL implementations of the purchase,
// production and sales order repositories used during posting.
package order_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain/purchasing"
	"mfgerp/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrdersTable     = "purchase_orders"
	purchaseOrderLinesTable = "purchase_order_lines"
)

// PurchaseOrderRepo implements purchasing.Repository.
type PurchaseOrderRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ purchasing.Repository = (*PurchaseOrderRepo)(nil)

// NewPurchaseOrderRepo creates a new purchase order repository.
func NewPurchaseOrderRepo(txManager *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID returns the order with its lines.
func (r *PurchaseOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*purchasing.PurchaseOrder, error) {
	return r.get(ctx, orderID, false)
}

// GetForUpdate locks the header and every line.
func (r *PurchaseOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*purchasing.PurchaseOrder, error) {
	return r.get(ctx, orderID, true)
}

func (r *PurchaseOrderRepo) headerQuery(orderID id.ID, forUpdate bool) squirrel.SelectBuilder {
	q := r.builder.Select(postgres.Columns[purchasing.PurchaseOrder]()...).
		From(purchaseOrdersTable).
		Where(squirrel.Eq{"id": orderID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *PurchaseOrderRepo) linesQuery(orderID id.ID, forUpdate bool) squirrel.SelectBuilder {
	q := r.builder.Select(postgres.Columns[purchasing.Line]()...).
		From(purchaseOrderLinesTable).
		Where(squirrel.Eq{"purchase_order_id": orderID}).
		OrderBy("id")
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *PurchaseOrderRepo) get(ctx context.Context, orderID id.ID, forUpdate bool) (*purchasing.PurchaseOrder, error) {
	querier := r.txManager.GetQuerier(ctx)

	sql, args, err := r.headerQuery(orderID, forUpdate).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var order purchasing.PurchaseOrder
	if err := pgxscan.Get(ctx, querier, &order, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("purchase_order", orderID)
		}
		return nil, fmt.Errorf("get purchase order: %w", err)
	}

	sql, args, err = r.linesQuery(orderID, forUpdate).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	order.Lines = make([]purchasing.Line, 0)
	if err := pgxscan.Select(ctx, querier, &order.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get purchase order lines: %w", err)
	}
	return &order, nil
}

// UpdateReceivedQty sets the received quantity of one line.
func (r *PurchaseOrderRepo) UpdateReceivedQty(ctx context.Context, lineID id.ID, receivedQty types.Quantity) error {
	return exec(ctx, r.txManager, "purchase_order_line", lineID, r.builder.Update(purchaseOrderLinesTable).
		Set("received_qty", receivedQty).
		Where(squirrel.Eq{"id": lineID}))
}

// UpdateStatus sets the order status.
func (r *PurchaseOrderRepo) UpdateStatus(ctx context.Context, orderID id.ID, status purchasing.Status) error {
	return exec(ctx, r.txManager, "purchase_order", orderID, r.builder.Update(purchaseOrdersTable).
		Set("status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": orderID}))
}

// exec runs an update that must touch exactly one row.
func exec(ctx context.Context, txManager *postgres.TxManager, entity string, rowID id.ID, q squirrel.UpdateBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(entity, rowID)
	}
	return nil
}
