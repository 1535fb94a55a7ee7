// Package types provides the quantity primitives shared by the ledger and the reconcilers.
package types

import (
	"sort"

	"github.com/shopspring/decimal"

	"mfgerp/internal/core/id"
)

// Quantity is an arbitrary-precision stock quantity.
// Uses decimal.Decimal to avoid floating-point drift when folding the ledger.
type Quantity = decimal.Decimal

// Zero returns zero Quantity value.
func Zero() Quantity {
	return decimal.Zero
}

// ParseQuantity parses a decimal string such as "12.5".
func ParseQuantity(s string) (Quantity, error) {
	return decimal.NewFromString(s)
}

// MustQuantity parses s and panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	return decimal.RequireFromString(s)
}

// Signed returns +qty for an inbound movement and -qty for an outbound one.
func Signed(qty Quantity, inbound bool) Quantity {
	if inbound {
		return qty
	}
	return qty.Neg()
}

// Accumulate returns current+add and whether the result stays within ceiling.
func Accumulate(current, add, ceiling Quantity) (Quantity, bool) {
	next := current.Add(add)
	return next, next.LessThanOrEqual(ceiling)
}

// Totals sums quantities per id.
type Totals map[id.ID]Quantity

// Add adds qty to the running total for key.
func (t Totals) Add(key id.ID, qty Quantity) {
	if cur, ok := t[key]; ok {
		t[key] = cur.Add(qty)
		return
	}
	t[key] = qty
}

// Get returns the total for key or zero.
func (t Totals) Get(key id.ID) Quantity {
	if q, ok := t[key]; ok {
		return q
	}
	return decimal.Zero
}

// Sum returns the grand total.
func (t Totals) Sum() Quantity {
	sum := decimal.Zero
	for _, q := range t {
		sum = sum.Add(q)
	}
	return sum
}

// Keys returns the ids in a stable order so that row locks are always
// taken in the same sequence.
func (t Totals) Keys() []id.ID {
	keys := make([]id.ID, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
