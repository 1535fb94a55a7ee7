package memory

import (
	"context"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain/production"
	"mfgerp/internal/domain/purchasing"
	"mfgerp/internal/domain/sales"
)

// PurchaseOrderRepo implements purchasing.Repository.
type PurchaseOrderRepo struct {
	store *Store
}

var _ purchasing.Repository = (*PurchaseOrderRepo)(nil)

// Put inserts or replaces an order.
func (r *PurchaseOrderRepo) Put(order *purchasing.PurchaseOrder) {
	_ = r.store.write(context.Background(), func(d *state) error {
		d.purchaseOrders[order.ID] = copyPurchaseOrder(order)
		return nil
	})
}

func (r *PurchaseOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*purchasing.PurchaseOrder, error) {
	var out *purchasing.PurchaseOrder
	err := r.store.read(ctx, func(d *state) error {
		o, ok := d.purchaseOrders[orderID]
		if !ok {
			return apperror.NewNotFound("purchase_order", orderID)
		}
		out = copyPurchaseOrder(o)
		return nil
	})
	return out, err
}

func (r *PurchaseOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*purchasing.PurchaseOrder, error) {
	return r.GetByID(ctx, orderID)
}

func (r *PurchaseOrderRepo) UpdateReceivedQty(ctx context.Context, lineID id.ID, receivedQty types.Quantity) error {
	return r.store.write(ctx, func(d *state) error {
		for _, o := range d.purchaseOrders {
			for i := range o.Lines {
				if o.Lines[i].ID == lineID {
					o.Lines[i].ReceivedQty = receivedQty
					return nil
				}
			}
		}
		return apperror.NewNotFound("purchase_order_line", lineID)
	})
}

func (r *PurchaseOrderRepo) UpdateStatus(ctx context.Context, orderID id.ID, status purchasing.Status) error {
	return r.store.write(ctx, func(d *state) error {
		o, ok := d.purchaseOrders[orderID]
		if !ok {
			return apperror.NewNotFound("purchase_order", orderID)
		}
		o.Status = status
		return nil
	})
}

// ProductionOrderRepo implements production.Repository.
type ProductionOrderRepo struct {
	store *Store
}

var _ production.Repository = (*ProductionOrderRepo)(nil)

// Put inserts or replaces an order.
func (r *ProductionOrderRepo) Put(order *production.Order) {
	_ = r.store.write(context.Background(), func(d *state) error {
		o := *order
		d.productionOrders[o.ID] = &o
		return nil
	})
}

// PutBreakdown inserts or replaces a variant breakdown row.
func (r *ProductionOrderRepo) PutBreakdown(b *production.Breakdown) {
	_ = r.store.write(context.Background(), func(d *state) error {
		c := *b
		d.breakdowns[c.ID] = &c
		return nil
	})
}

// PutRequirement inserts or replaces a material requirement row.
func (r *ProductionOrderRepo) PutRequirement(req *production.MaterialRequirement) {
	_ = r.store.write(context.Background(), func(d *state) error {
		c := *req
		d.requirements[c.ID] = &c
		return nil
	})
}

// Get returns a copy of the committed order.
func (r *ProductionOrderRepo) Get(orderID id.ID) (*production.Order, error) {
	return r.get(context.Background(), orderID)
}

func (r *ProductionOrderRepo) get(ctx context.Context, orderID id.ID) (*production.Order, error) {
	var out *production.Order
	err := r.store.read(ctx, func(d *state) error {
		o, ok := d.productionOrders[orderID]
		if !ok {
			return apperror.NewNotFound("production_order", orderID)
		}
		c := *o
		out = &c
		return nil
	})
	return out, err
}

func (r *ProductionOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*production.Order, error) {
	return r.get(ctx, orderID)
}

func (r *ProductionOrderRepo) GetRequirementForUpdate(ctx context.Context, orderID, itemID id.ID) (*production.MaterialRequirement, error) {
	var out *production.MaterialRequirement
	err := r.store.read(ctx, func(d *state) error {
		for _, req := range d.requirements {
			if req.ProductionOrderID == orderID && req.ItemID == itemID {
				c := *req
				out = &c
				return nil
			}
		}
		return apperror.NewNotFound("material_requirement", itemID)
	})
	return out, err
}

func (r *ProductionOrderRepo) GetBreakdownForUpdate(ctx context.Context, orderID, variantID id.ID) (*production.Breakdown, error) {
	var out *production.Breakdown
	err := r.store.read(ctx, func(d *state) error {
		for _, b := range d.breakdowns {
			if b.ProductionOrderID == orderID && b.VariantID == variantID {
				c := *b
				out = &c
				return nil
			}
		}
		return apperror.NewNotFound("production_order_breakdown", variantID)
	})
	return out, err
}

// Requirement returns a copy of a requirement row by id.
func (r *ProductionOrderRepo) Requirement(requirementID id.ID) (*production.MaterialRequirement, error) {
	ctx := context.Background()
	var out *production.MaterialRequirement
	err := r.store.read(ctx, func(d *state) error {
		req, ok := d.requirements[requirementID]
		if !ok {
			return apperror.NewNotFound("material_requirement", requirementID)
		}
		c := *req
		out = &c
		return nil
	})
	return out, err
}

// Breakdown returns a copy of a breakdown row by id.
func (r *ProductionOrderRepo) Breakdown(breakdownID id.ID) (*production.Breakdown, error) {
	ctx := context.Background()
	var out *production.Breakdown
	err := r.store.read(ctx, func(d *state) error {
		b, ok := d.breakdowns[breakdownID]
		if !ok {
			return apperror.NewNotFound("production_order_breakdown", breakdownID)
		}
		c := *b
		out = &c
		return nil
	})
	return out, err
}

func (r *ProductionOrderRepo) UpdateRequirementIssued(ctx context.Context, requirementID id.ID, qtyIssued types.Quantity) error {
	return r.store.write(ctx, func(d *state) error {
		req, ok := d.requirements[requirementID]
		if !ok {
			return apperror.NewNotFound("material_requirement", requirementID)
		}
		req.QtyIssued = qtyIssued
		return nil
	})
}

func (r *ProductionOrderRepo) UpdateBreakdownDone(ctx context.Context, breakdownID id.ID, qtyDone types.Quantity) error {
	return r.store.write(ctx, func(d *state) error {
		b, ok := d.breakdowns[breakdownID]
		if !ok {
			return apperror.NewNotFound("production_order_breakdown", breakdownID)
		}
		b.QtyDone = qtyDone
		return nil
	})
}

func (r *ProductionOrderRepo) UpdateProgress(ctx context.Context, orderID id.ID, qtyDone types.Quantity, status production.Status) error {
	return r.store.write(ctx, func(d *state) error {
		o, ok := d.productionOrders[orderID]
		if !ok {
			return apperror.NewNotFound("production_order", orderID)
		}
		o.QtyDone = qtyDone
		o.Status = status
		return nil
	})
}

func (r *ProductionOrderRepo) DoneBySalesItem(ctx context.Context, salesOrderID id.ID) (types.Totals, error) {
	totals := types.Totals{}
	err := r.store.read(ctx, func(d *state) error {
		so, ok := d.salesOrders[salesOrderID]
		if !ok {
			return nil
		}
		items := make(map[id.ID]struct{}, len(so.Items))
		for _, item := range so.Items {
			items[item.ID] = struct{}{}
		}
		for _, o := range d.productionOrders {
			if o.SalesOrderItemID == nil || !o.Status.CountsTowardSales() {
				continue
			}
			if _, ok := items[*o.SalesOrderItemID]; ok {
				totals.Add(*o.SalesOrderItemID, o.QtyDone)
			}
		}
		return nil
	})
	return totals, err
}

// SalesOrderRepo implements sales.Repository.
type SalesOrderRepo struct {
	store *Store
}

var _ sales.Repository = (*SalesOrderRepo)(nil)

// Put inserts or replaces an order with its items.
func (r *SalesOrderRepo) Put(order *sales.Order) {
	_ = r.store.write(context.Background(), func(d *state) error {
		d.salesOrders[order.ID] = copySalesOrder(order)
		return nil
	})
}

func (r *SalesOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*sales.Order, error) {
	var out *sales.Order
	err := r.store.read(ctx, func(d *state) error {
		o, ok := d.salesOrders[orderID]
		if !ok {
			return apperror.NewNotFound("sales_order", orderID)
		}
		out = copySalesOrder(o)
		return nil
	})
	return out, err
}

func (r *SalesOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*sales.Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *SalesOrderRepo) GetItem(ctx context.Context, itemID id.ID) (*sales.Item, error) {
	var out *sales.Item
	err := r.store.read(ctx, func(d *state) error {
		for _, o := range d.salesOrders {
			for _, item := range o.Items {
				if item.ID == itemID {
					item.Variants = nil
					out = &item
					return nil
				}
			}
		}
		return apperror.NewNotFound("sales_order_item", itemID)
	})
	return out, err
}

func (r *SalesOrderRepo) UpdateStatus(ctx context.Context, orderID id.ID, status sales.Status) error {
	return r.store.write(ctx, func(d *state) error {
		o, ok := d.salesOrders[orderID]
		if !ok {
			return apperror.NewNotFound("sales_order", orderID)
		}
		o.Status = status
		return nil
	})
}
