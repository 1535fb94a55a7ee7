// Package events defines the domain events emitted while posting stock moves.
// Events are written to the transactional outbox in the same transaction as
// the state change they describe.
package events

import (
	"context"

	"mfgerp/internal/core/id"
)

// Aggregate types.
const (
	AggregateStockMove       = "StockMove"
	AggregatePurchaseOrder   = "PurchaseOrder"
	AggregateProductionOrder = "ProductionOrder"
	AggregateSalesOrder      = "SalesOrder"
)

// Event types.
const (
	StockMovePosted          = "StockMovePosted"
	PurchaseOrderReceived    = "PurchaseOrderReceived"
	ProductionOrderCompleted = "ProductionOrderCompleted"
	SalesOrderStatusChanged  = "SalesOrderStatusChanged"
)

// Event is one domain event.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher appends events to the outbox of the current transaction.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// StatusChange is the payload of the order status events.
type StatusChange struct {
	OrderID  id.ID  `json:"orderId"`
	From     string `json:"from"`
	To       string `json:"to"`
	CausedBy id.ID  `json:"causedBy,omitempty"`
}
