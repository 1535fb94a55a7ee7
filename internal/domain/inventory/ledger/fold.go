package ledger

import (
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
)

// Key identifies one balance: a location and an item or variant.
type Key struct {
	LocationID id.ID
	SubjectID  id.ID
}

// Balances holds item and variant balances folded independently.
type Balances struct {
	Items    map[Key]types.Quantity
	Variants map[Key]types.Quantity
}

// Fold computes on-hand per (location, item) and (location, variant):
// a line adds its quantity at the destination and subtracts it at the
// source. With a location scope only balances at that location are kept.
func Fold(lines []PostedLine, scope Scope) Balances {
	b := Balances{
		Items:    make(map[Key]types.Quantity),
		Variants: make(map[Key]types.Quantity),
	}

	for _, line := range lines {
		var (
			target  map[Key]types.Quantity
			subject id.ID
		)
		switch {
		case line.ItemID != nil:
			target, subject = b.Items, *line.ItemID
		case line.VariantID != nil:
			target, subject = b.Variants, *line.VariantID
		default:
			continue
		}

		if line.DestLocationID != nil && inScope(*line.DestLocationID, scope) {
			add(target, Key{LocationID: *line.DestLocationID, SubjectID: subject}, line.Qty)
		}
		if line.SrcLocationID != nil && inScope(*line.SrcLocationID, scope) {
			add(target, Key{LocationID: *line.SrcLocationID, SubjectID: subject}, line.Qty.Neg())
		}
	}

	return b
}

// SignedQty is the line's effect relative to a location. Without a location,
// arriving at any destination counts positive and leaving any source
// negative, so a transfer between two locations nets to zero.
func SignedQty(line PostedLine, locationID *id.ID) types.Quantity {
	arrives := line.DestLocationID != nil
	leaves := line.SrcLocationID != nil
	if locationID != nil {
		arrives = id.Equal(line.DestLocationID, locationID)
		leaves = id.Equal(line.SrcLocationID, locationID)
	}

	signed := types.Zero()
	if arrives {
		signed = signed.Add(types.Signed(line.Qty, true))
	}
	if leaves {
		signed = signed.Add(types.Signed(line.Qty, false))
	}
	return signed
}

func inScope(location id.ID, scope Scope) bool {
	return scope.LocationID == nil || *scope.LocationID == location
}

func add(m map[Key]types.Quantity, k Key, qty types.Quantity) {
	if cur, ok := m[k]; ok {
		m[k] = cur.Add(qty)
		return
	}
	m[k] = qty
}
