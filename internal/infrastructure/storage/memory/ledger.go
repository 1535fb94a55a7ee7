package memory

import (
	"context"
	"sort"

	"mfgerp/internal/core/id"
	"mfgerp/internal/domain"
	"mfgerp/internal/domain/inventory/ledger"
	"mfgerp/internal/domain/inventory/stockmove"
)

// LedgerRepo implements ledger.Repository over the stored moves.
type LedgerRepo struct {
	store *Store
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// PostedLines returns every line of a POSTED move inside scope.
func (r *LedgerRepo) PostedLines(ctx context.Context, scope ledger.Scope) ([]ledger.PostedLine, error) {
	var out []ledger.PostedLine
	err := r.store.read(ctx, func(d *state) error {
		for _, m := range d.moves {
			if m.Status != stockmove.StatusPosted {
				continue
			}
			if scope.WarehouseID != nil && m.WarehouseID != *scope.WarehouseID {
				continue
			}
			for _, l := range m.Lines {
				if lineInScope(l, scope) {
					out = append(out, postedLine(m, l))
				}
			}
		}
		return nil
	})
	return out, err
}

// LedgerPage returns posted lines ordered by move date then line id, newest first.
func (r *LedgerRepo) LedgerPage(ctx context.Context, filter ledger.LedgerFilter) ([]ledger.PostedLine, int64, error) {
	lines, err := r.PostedLines(ctx, filter.Scope)
	if err != nil {
		return nil, 0, err
	}

	matched := lines[:0]
	for _, l := range lines {
		switch {
		case filter.MoveType != nil && l.MoveType != *filter.MoveType:
		case filter.DateFrom != nil && l.MoveDate.Before(*filter.DateFrom):
		case filter.DateTo != nil && l.MoveDate.After(*filter.DateTo):
		default:
			matched = append(matched, l)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].MoveDate.Equal(matched[j].MoveDate) {
			return matched[i].MoveDate.After(matched[j].MoveDate)
		}
		return matched[i].LineID.String() > matched[j].LineID.String()
	})

	return domain.Paginate(matched, filter.Pagination), int64(len(matched)), nil
}

func lineInScope(l stockmove.Line, scope ledger.Scope) bool {
	if scope.ItemID != nil && !id.Equal(l.ItemID, scope.ItemID) {
		return false
	}
	if scope.VariantID != nil && !id.Equal(l.VariantID, scope.VariantID) {
		return false
	}
	if scope.LocationID != nil &&
		!id.Equal(l.SrcLocationID, scope.LocationID) &&
		!id.Equal(l.DestLocationID, scope.LocationID) {
		return false
	}
	return true
}

func postedLine(m *stockmove.StockMove, l stockmove.Line) ledger.PostedLine {
	return ledger.PostedLine{
		LineID:         l.ID,
		MoveID:         m.ID,
		MoveNo:         m.MoveNo,
		MoveType:       m.MoveType,
		MoveDate:       m.MoveDate,
		WarehouseID:    m.WarehouseID,
		ItemID:         l.ItemID,
		VariantID:      l.VariantID,
		UOM:            l.UOM,
		Qty:            l.Qty,
		SrcLocationID:  l.SrcLocationID,
		DestLocationID: l.DestLocationID,
		Note:           l.Note,
	}
}
