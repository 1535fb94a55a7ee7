package stockmove

import (
	"fmt"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
)

// LinkKind names the business document a move posts against.
type LinkKind string

const (
	LinkNone            LinkKind = ""
	LinkPurchaseOrder   LinkKind = "PURCHASE_ORDER"
	LinkProductionOrder LinkKind = "PRODUCTION_ORDER"
	LinkSalesOrder      LinkKind = "SALES_ORDER"
)

// Link is the move's optional reference to exactly one order.
// The zero value means "not linked".
type Link struct {
	Kind    LinkKind `json:"kind,omitempty"`
	OrderID id.ID    `json:"orderId,omitempty"`
}

// PurchaseOrderLink links a move to a purchase order.
func PurchaseOrderLink(orderID id.ID) Link {
	return Link{Kind: LinkPurchaseOrder, OrderID: orderID}
}

// ProductionOrderLink links a move to a production order.
func ProductionOrderLink(orderID id.ID) Link {
	return Link{Kind: LinkProductionOrder, OrderID: orderID}
}

// SalesOrderLink links a move to a sales order.
func SalesOrderLink(orderID id.ID) Link {
	return Link{Kind: LinkSalesOrder, OrderID: orderID}
}

// Validate checks that the kind is known and carries an order id.
func (l Link) Validate() error {
	switch l.Kind {
	case LinkNone:
		if !id.IsNil(l.OrderID) {
			return apperror.NewValidation("link order id given without a link kind").
				WithDetail("field", "link")
		}
		return nil
	case LinkPurchaseOrder, LinkProductionOrder, LinkSalesOrder:
		if id.IsNil(l.OrderID) {
			return apperror.NewValidation("linked order id is required").
				WithDetail("field", "link").
				WithDetail("kind", l.Kind)
		}
		return nil
	default:
		return apperror.NewValidation("unknown link kind").
			WithDetail("field", "link").
			WithDetail("kind", l.Kind)
	}
}

// Columns splits the link into the three nullable foreign keys used by storage.
func (l Link) Columns() (purchaseOrderID, productionOrderID, salesOrderID *id.ID) {
	switch l.Kind {
	case LinkPurchaseOrder:
		return id.Ptr(l.OrderID), nil, nil
	case LinkProductionOrder:
		return nil, id.Ptr(l.OrderID), nil
	case LinkSalesOrder:
		return nil, nil, id.Ptr(l.OrderID)
	default:
		return nil, nil, nil
	}
}

// LinkFromColumns rebuilds a Link from storage columns. More than one
// non-null key means the row is corrupt.
func LinkFromColumns(purchaseOrderID, productionOrderID, salesOrderID *id.ID) (Link, error) {
	var links []Link
	if purchaseOrderID != nil {
		links = append(links, PurchaseOrderLink(*purchaseOrderID))
	}
	if productionOrderID != nil {
		links = append(links, ProductionOrderLink(*productionOrderID))
	}
	if salesOrderID != nil {
		links = append(links, SalesOrderLink(*salesOrderID))
	}

	switch len(links) {
	case 0:
		return Link{}, nil
	case 1:
		return links[0], nil
	default:
		return Link{}, fmt.Errorf("stock move linked to %d orders", len(links))
	}
}
