package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain"
	"mfgerp/internal/domain/inventory/stockmove"
)

// StockMoveRepo implements stockmove.Repository.
type StockMoveRepo struct {
	store *Store
}

var _ stockmove.Repository = (*StockMoveRepo)(nil)

// Create stores a copy of the move and its lines.
func (r *StockMoveRepo) Create(ctx context.Context, move *stockmove.StockMove) error {
	return r.store.write(ctx, func(d *state) error {
		if _, exists := d.moves[move.ID]; exists {
			return fmt.Errorf("stock move %s already exists", move.ID)
		}
		for _, m := range d.moves {
			if m.MoveNo == move.MoveNo {
				return apperror.NewValidation("move number already in use").
					WithDetail("field", "moveNo").
					WithDetail("value", move.MoveNo)
			}
		}
		d.moves[move.ID] = copyMove(move)
		return nil
	})
}

// GetByID returns a copy of the move.
func (r *StockMoveRepo) GetByID(ctx context.Context, moveID id.ID) (*stockmove.StockMove, error) {
	var out *stockmove.StockMove
	err := r.store.read(ctx, func(d *state) error {
		m, ok := d.moves[moveID]
		if !ok {
			return apperror.NewNotFound("stock_move", moveID)
		}
		out = copyMove(m)
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID; the store transaction already excludes other writers.
func (r *StockMoveRepo) GetForUpdate(ctx context.Context, moveID id.ID) (*stockmove.StockMove, error) {
	return r.GetByID(ctx, moveID)
}

// MarkPosted flips the stored move to POSTED.
func (r *StockMoveRepo) MarkPosted(ctx context.Context, moveID id.ID, postedAt time.Time) error {
	return r.store.write(ctx, func(d *state) error {
		m, ok := d.moves[moveID]
		if !ok {
			return apperror.NewNotFound("stock_move", moveID)
		}
		m.Status = stockmove.StatusPosted
		m.PostedAt = &postedAt
		return nil
	})
}

// List filters, sorts by move date then id (both descending) and pages headers.
func (r *StockMoveRepo) List(ctx context.Context, filter stockmove.ListFilter) (domain.ListResult[stockmove.StockMove], error) {
	page := filter.Pagination.Normalize()
	var matched []stockmove.StockMove

	_ = r.store.read(ctx, func(d *state) error {
		for _, m := range d.moves {
			if matchesMove(m, filter) {
				header := *m
				header.Lines = nil
				matched = append(matched, header)
			}
		}
		return nil
	})

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].MoveDate.Equal(matched[j].MoveDate) {
			return matched[i].MoveDate.After(matched[j].MoveDate)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	return domain.ListResult[stockmove.StockMove]{
		Items:      domain.Paginate(matched, page),
		TotalCount: int64(len(matched)),
		Page:       page.Page,
		PageSize:   page.PageSize,
	}, nil
}

// PostedVariantTotals sums variant quantities of POSTED moves with link and moveType.
func (r *StockMoveRepo) PostedVariantTotals(ctx context.Context, link stockmove.Link, moveType stockmove.MoveType) (types.Totals, error) {
	totals := types.Totals{}
	err := r.store.read(ctx, func(d *state) error {
		for _, m := range d.moves {
			if m.Status != stockmove.StatusPosted || m.MoveType != moveType || m.Link != link {
				continue
			}
			for _, l := range m.Lines {
				if l.VariantID != nil {
					totals.Add(*l.VariantID, l.Qty)
				}
			}
		}
		return nil
	})
	return totals, err
}

func matchesMove(m *stockmove.StockMove, f stockmove.ListFilter) bool {
	switch {
	case f.WarehouseID != nil && m.WarehouseID != *f.WarehouseID:
		return false
	case f.Status != nil && m.Status != *f.Status:
		return false
	case f.MoveType != nil && m.MoveType != *f.MoveType:
		return false
	case f.LinkKind != stockmove.LinkNone && m.Link.Kind != f.LinkKind:
		return false
	case f.OrderID != nil && m.Link.OrderID != *f.OrderID:
		return false
	case f.Search != "" && !strings.Contains(strings.ToLower(m.MoveNo), strings.ToLower(f.Search)):
		return false
	case f.DateFrom != nil && m.MoveDate.Before(*f.DateFrom):
		return false
	case f.DateTo != nil && m.MoveDate.After(*f.DateTo):
		return false
	}
	return true
}
