package order_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/domain/sales"
	"mfgerp/internal/infrastructure/storage/postgres"
)

const (
	salesOrdersTable       = "sales_orders"
	salesOrderItemsTable   = "sales_order_items"
	salesOrderVariantTable = "sales_order_item_variants"
)

// SalesOrderRepo implements sales.Repository.
type SalesOrderRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ sales.Repository = (*SalesOrderRepo)(nil)

// NewSalesOrderRepo creates a new sales order repository.
func NewSalesOrderRepo(txManager *postgres.TxManager) *SalesOrderRepo {
	return &SalesOrderRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID returns the order with items and variant breakdowns.
func (r *SalesOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*sales.Order, error) {
	return r.get(ctx, orderID, false)
}

// GetForUpdate is GetByID with the header row locked. Items are read
// unlocked; they do not change during posting.
func (r *SalesOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*sales.Order, error) {
	return r.get(ctx, orderID, true)
}

func (r *SalesOrderRepo) headerQuery(orderID id.ID, forUpdate bool) squirrel.SelectBuilder {
	q := r.builder.Select(postgres.Columns[sales.Order]()...).
		From(salesOrdersTable).
		Where(squirrel.Eq{"id": orderID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *SalesOrderRepo) get(ctx context.Context, orderID id.ID, forUpdate bool) (*sales.Order, error) {
	querier := r.txManager.GetQuerier(ctx)

	sql, args, err := r.headerQuery(orderID, forUpdate).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var order sales.Order
	if err := pgxscan.Get(ctx, querier, &order, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sales_order", orderID)
		}
		return nil, fmt.Errorf("get sales order: %w", err)
	}

	sql, args, err = r.builder.Select(postgres.Columns[sales.Item]()...).
		From(salesOrderItemsTable).
		Where(squirrel.Eq{"sales_order_id": orderID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}
	order.Items = make([]sales.Item, 0)
	if err := pgxscan.Select(ctx, querier, &order.Items, sql, args...); err != nil {
		return nil, fmt.Errorf("get sales order items: %w", err)
	}

	sql, args, err = r.builder.Select(prefixed("v", postgres.Columns[sales.VariantBreakdown]())...).
		From(salesOrderVariantTable + " v").
		Join(salesOrderItemsTable + " si ON si.id = v.item_id").
		Where(squirrel.Eq{"si.sales_order_id": orderID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build variants query: %w", err)
	}
	var variants []sales.VariantBreakdown
	if err := pgxscan.Select(ctx, querier, &variants, sql, args...); err != nil {
		return nil, fmt.Errorf("get sales order variants: %w", err)
	}

	byItem := make(map[id.ID][]sales.VariantBreakdown, len(order.Items))
	for _, v := range variants {
		byItem[v.ItemID] = append(byItem[v.ItemID], v)
	}
	for i := range order.Items {
		order.Items[i].Variants = byItem[order.Items[i].ID]
	}
	return &order, nil
}

// GetItem returns one item without its variants.
func (r *SalesOrderRepo) GetItem(ctx context.Context, itemID id.ID) (*sales.Item, error) {
	sql, args, err := r.builder.Select(postgres.Columns[sales.Item]()...).
		From(salesOrderItemsTable).
		Where(squirrel.Eq{"id": itemID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item sales.Item
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sales_order_item", itemID)
		}
		return nil, fmt.Errorf("get sales order item: %w", err)
	}
	return &item, nil
}

// UpdateStatus sets the order status.
func (r *SalesOrderRepo) UpdateStatus(ctx context.Context, orderID id.ID, status sales.Status) error {
	return exec(ctx, r.txManager, "sales_order", orderID, r.builder.Update(salesOrdersTable).
		Set("status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": orderID}))
}

func prefixed(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}
