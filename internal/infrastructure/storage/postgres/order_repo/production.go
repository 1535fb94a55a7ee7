package order_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain/production"
	"mfgerp/internal/infrastructure/storage/postgres"
)

const (
	productionOrdersTable = "production_orders"
	breakdownsTable       = "production_order_breakdowns"
	requirementsTable     = "material_requirements"
)

// ProductionOrderRepo implements production.Repository.
type ProductionOrderRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ production.Repository = (*ProductionOrderRepo)(nil)

// NewProductionOrderRepo creates a new production order repository.
func NewProductionOrderRepo(txManager *postgres.TxManager) *ProductionOrderRepo {
	return &ProductionOrderRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// getLocked scans one row locked FOR UPDATE, mapping no rows to NotFound.
func getLocked[T any](ctx context.Context, r *ProductionOrderRepo, table, entity string, where squirrel.Eq, entityID any) (*T, error) {
	sql, args, err := lockedQuery[T](r, table, where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out T
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entity, entityID)
		}
		return nil, fmt.Errorf("get %s: %w", entity, err)
	}
	return &out, nil
}

func lockedQuery[T any](r *ProductionOrderRepo, table string, where squirrel.Eq) squirrel.SelectBuilder {
	return r.builder.Select(postgres.Columns[T]()...).
		From(table).
		Where(where).
		Suffix("FOR UPDATE")
}

// GetForUpdate locks and returns the order header.
func (r *ProductionOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*production.Order, error) {
	return getLocked[production.Order](ctx, r, productionOrdersTable, "production_order",
		squirrel.Eq{"id": orderID}, orderID)
}

// GetRequirementForUpdate locks the order's requirement row for itemID.
func (r *ProductionOrderRepo) GetRequirementForUpdate(ctx context.Context, orderID, itemID id.ID) (*production.MaterialRequirement, error) {
	return getLocked[production.MaterialRequirement](ctx, r, requirementsTable, "material_requirement",
		squirrel.Eq{"production_order_id": orderID, "item_id": itemID}, itemID)
}

// GetBreakdownForUpdate locks the order's breakdown row for variantID.
func (r *ProductionOrderRepo) GetBreakdownForUpdate(ctx context.Context, orderID, variantID id.ID) (*production.Breakdown, error) {
	return getLocked[production.Breakdown](ctx, r, breakdownsTable, "production_order_breakdown",
		squirrel.Eq{"production_order_id": orderID, "variant_id": variantID}, variantID)
}

// UpdateRequirementIssued sets the issued quantity of one requirement.
func (r *ProductionOrderRepo) UpdateRequirementIssued(ctx context.Context, requirementID id.ID, qtyIssued types.Quantity) error {
	return exec(ctx, r.txManager, "material_requirement", requirementID, r.builder.Update(requirementsTable).
		Set("qty_issued", qtyIssued).
		Where(squirrel.Eq{"id": requirementID}))
}

// UpdateBreakdownDone sets the produced quantity of one breakdown row.
func (r *ProductionOrderRepo) UpdateBreakdownDone(ctx context.Context, breakdownID id.ID, qtyDone types.Quantity) error {
	return exec(ctx, r.txManager, "production_order_breakdown", breakdownID, r.builder.Update(breakdownsTable).
		Set("qty_done", qtyDone).
		Where(squirrel.Eq{"id": breakdownID}))
}

// UpdateProgress sets the order's produced quantity and status.
func (r *ProductionOrderRepo) UpdateProgress(ctx context.Context, orderID id.ID, qtyDone types.Quantity, status production.Status) error {
	return exec(ctx, r.txManager, "production_order", orderID, r.builder.Update(productionOrdersTable).
		Set("qty_done", qtyDone).
		Set("status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": orderID}))
}

// DoneBySalesItem sums qty_done per sales order item over orders whose
// status counts toward sales.
func (r *ProductionOrderRepo) DoneBySalesItem(ctx context.Context, salesOrderID id.ID) (types.Totals, error) {
	sql, args, err := r.doneBySalesItemQuery(salesOrderID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []struct {
		SalesOrderItemID id.ID          `db:"sales_order_item_id"`
		QtyDone          types.Quantity `db:"qty_done"`
	}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("done by sales item: %w", err)
	}

	totals := types.Totals{}
	for _, row := range rows {
		totals.Add(row.SalesOrderItemID, row.QtyDone)
	}
	return totals, nil
}

func (r *ProductionOrderRepo) doneBySalesItemQuery(salesOrderID id.ID) squirrel.SelectBuilder {
	return r.builder.Select("po.sales_order_item_id", "SUM(po.qty_done) AS qty_done").
		From(productionOrdersTable + " po").
		Join(salesOrderItemsTable + " si ON si.id = po.sales_order_item_id").
		Where(squirrel.Eq{"si.sales_order_id": salesOrderID}).
		Where(squirrel.Eq{"po.status": production.SalesCountingStatuses()}).
		GroupBy("po.sales_order_item_id")
}
