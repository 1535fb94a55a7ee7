// Package memory provides an in-process implementation of every repository
// the posting engine depends on. It backs the service tests and local runs
// without a database.
//
// Transactions are serialized by a single mutex, which is stricter than the
// row locks taken by the PostgreSQL store. A transaction works on a private
// copy of the whole state that replaces the committed state only when fn
// succeeds, so readers outside it never see uncommitted writes.
package memory

import (
	"context"
	"sync"
	"time"

	"mfgerp/internal/core/id"
	"mfgerp/internal/core/numerator"
	"mfgerp/internal/core/tx"
	"mfgerp/internal/domain/catalog"
	"mfgerp/internal/domain/events"
	"mfgerp/internal/domain/inventory/stockmove"
	"mfgerp/internal/domain/production"
	"mfgerp/internal/domain/purchasing"
	"mfgerp/internal/domain/sales"
)

type txKey struct{}

// Store holds all in-memory state.
type Store struct {
	// txMu is held for the whole of an outermost transaction and for
	// writes made outside one.
	txMu sync.Mutex
	// mu guards the committed state.
	mu   sync.RWMutex
	data *state
}

type state struct {
	moves            map[id.ID]*stockmove.StockMove
	purchaseOrders   map[id.ID]*purchasing.PurchaseOrder
	productionOrders map[id.ID]*production.Order
	breakdowns       map[id.ID]*production.Breakdown
	requirements     map[id.ID]*production.MaterialRequirement
	salesOrders      map[id.ID]*sales.Order
	items            map[id.ID]catalog.Item
	variants         map[id.ID]catalog.Variant
	locations        map[id.ID]catalog.Location
	sequences        map[string]int64
	outbox           []events.Event
}

var (
	_ tx.Manager          = (*Store)(nil)
	_ numerator.Generator = (*Store)(nil)
	_ events.Publisher    = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{data: &state{
		moves:            make(map[id.ID]*stockmove.StockMove),
		purchaseOrders:   make(map[id.ID]*purchasing.PurchaseOrder),
		productionOrders: make(map[id.ID]*production.Order),
		breakdowns:       make(map[id.ID]*production.Breakdown),
		requirements:     make(map[id.ID]*production.MaterialRequirement),
		salesOrders:      make(map[id.ID]*sales.Order),
		items:            make(map[id.ID]catalog.Item),
		variants:         make(map[id.ID]catalog.Variant),
		locations:        make(map[id.ID]catalog.Location),
		sequences:        make(map[string]int64),
	}}
}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction; an error from the outermost fn discards every write.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, work)); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// InTransaction reports whether ctx carries a store transaction.
func InTransaction(ctx context.Context) bool {
	return working(ctx) != nil
}

func working(ctx context.Context) *state {
	w, _ := ctx.Value(txKey{}).(*state)
	return w
}

// GetNextNumber implements numerator.Generator with per-key counters that
// roll back with the transaction.
func (s *Store) GetNextNumber(ctx context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	var number string
	err := s.write(ctx, func(d *state) error {
		key := cfg.SequenceKey(period)
		d.sequences[key]++
		number = cfg.Format(period, d.sequences[key])
		return nil
	})
	return number, err
}

// Publish implements events.Publisher by appending to an in-memory outbox.
func (s *Store) Publish(ctx context.Context, event events.Event) error {
	return s.write(ctx, func(d *state) error {
		d.outbox = append(d.outbox, event)
		return nil
	})
}

// Events returns a copy of the committed events in order.
func (s *Store) Events() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]events.Event, len(s.data.outbox))
	copy(out, s.data.outbox)
	return out
}

// StockMoves returns the stock move repository.
func (s *Store) StockMoves() *StockMoveRepo { return &StockMoveRepo{store: s} }

// Ledger returns the posted-line reader.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{store: s} }

// PurchaseOrders returns the purchase order repository.
func (s *Store) PurchaseOrders() *PurchaseOrderRepo { return &PurchaseOrderRepo{store: s} }

// ProductionOrders returns the production order repository.
func (s *Store) ProductionOrders() *ProductionOrderRepo { return &ProductionOrderRepo{store: s} }

// SalesOrders returns the sales order repository.
func (s *Store) SalesOrders() *SalesOrderRepo { return &SalesOrderRepo{store: s} }

// Catalog returns the display lookup.
func (s *Store) Catalog() *CatalogLookup { return &CatalogLookup{store: s} }

// read runs fn on the transaction's working copy, or on the committed state
// when ctx carries no transaction.
func (s *Store) read(ctx context.Context, fn func(d *state) error) error {
	if w := working(ctx); w != nil {
		return fn(w)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

// write outside a transaction waits for any running one, so its change is
// not lost when that transaction commits its working copy.
func (s *Store) write(ctx context.Context, fn func(d *state) error) error {
	if w := working(ctx); w != nil {
		return fn(w)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (d *state) clone() *state {
	c := &state{
		moves:            make(map[id.ID]*stockmove.StockMove, len(d.moves)),
		purchaseOrders:   make(map[id.ID]*purchasing.PurchaseOrder, len(d.purchaseOrders)),
		productionOrders: make(map[id.ID]*production.Order, len(d.productionOrders)),
		breakdowns:       make(map[id.ID]*production.Breakdown, len(d.breakdowns)),
		requirements:     make(map[id.ID]*production.MaterialRequirement, len(d.requirements)),
		salesOrders:      make(map[id.ID]*sales.Order, len(d.salesOrders)),
		items:            make(map[id.ID]catalog.Item, len(d.items)),
		variants:         make(map[id.ID]catalog.Variant, len(d.variants)),
		locations:        make(map[id.ID]catalog.Location, len(d.locations)),
		sequences:        make(map[string]int64, len(d.sequences)),
		outbox:           append([]events.Event(nil), d.outbox...),
	}
	for k, v := range d.moves {
		c.moves[k] = copyMove(v)
	}
	for k, v := range d.purchaseOrders {
		c.purchaseOrders[k] = copyPurchaseOrder(v)
	}
	for k, v := range d.productionOrders {
		o := *v
		c.productionOrders[k] = &o
	}
	for k, v := range d.breakdowns {
		b := *v
		c.breakdowns[k] = &b
	}
	for k, v := range d.requirements {
		r := *v
		c.requirements[k] = &r
	}
	for k, v := range d.salesOrders {
		c.salesOrders[k] = copySalesOrder(v)
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	for k, v := range d.variants {
		c.variants[k] = v
	}
	for k, v := range d.locations {
		c.locations[k] = v
	}
	for k, v := range d.sequences {
		c.sequences[k] = v
	}
	return c
}

func copyMove(m *stockmove.StockMove) *stockmove.StockMove {
	c := *m
	c.Lines = append([]stockmove.Line(nil), m.Lines...)
	if m.PostedAt != nil {
		at := *m.PostedAt
		c.PostedAt = &at
	}
	return &c
}

func copyPurchaseOrder(o *purchasing.PurchaseOrder) *purchasing.PurchaseOrder {
	c := *o
	c.Lines = append([]purchasing.Line(nil), o.Lines...)
	return &c
}

func copySalesOrder(o *sales.Order) *sales.Order {
	c := *o
	c.Items = make([]sales.Item, len(o.Items))
	for i, item := range o.Items {
		item.Variants = append([]sales.VariantBreakdown(nil), item.Variants...)
		c.Items[i] = item
	}
	return &c
}
