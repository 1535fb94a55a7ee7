package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mfgerp/internal/core/id"
	"mfgerp/internal/core/types"
	"mfgerp/internal/domain"
	"mfgerp/internal/domain/catalog"
)

// OnHandItem is the balance of one item at one location.
type OnHandItem struct {
	LocationID   id.ID          `json:"locationId"`
	LocationCode string         `json:"locationCode,omitempty"`
	LocationName string         `json:"locationName,omitempty"`
	ItemID       id.ID          `json:"itemId"`
	ItemCode     string         `json:"itemCode,omitempty"`
	ItemName     string         `json:"itemName,omitempty"`
	ItemType     string         `json:"itemType,omitempty"`
	UOM          string         `json:"uom,omitempty"`
	Qty          types.Quantity `json:"qty"`
}

// OnHandVariant is the balance of one product variant at one location.
type OnHandVariant struct {
	LocationID   id.ID          `json:"locationId"`
	LocationCode string         `json:"locationCode,omitempty"`
	LocationName string         `json:"locationName,omitempty"`
	VariantID    id.ID          `json:"variantId"`
	SKU          string         `json:"sku,omitempty"`
	VariantName  string         `json:"variantName,omitempty"`
	Qty          types.Quantity `json:"qty"`
}

// OnHandResult carries the two independently paginated collections.
type OnHandResult struct {
	Items         []OnHandItem    `json:"items"`
	ItemsTotal    int             `json:"itemsTotal"`
	Variants      []OnHandVariant `json:"variants"`
	VariantsTotal int             `json:"variantsTotal"`
	Page          int             `json:"page"`
	PageSize      int             `json:"pageSize"`
}

// LedgerEntry is a posted line with its effect relative to the requested scope.
type LedgerEntry struct {
	PostedLine
	SignedQty types.Quantity `json:"signedQty"`
}

// LedgerResult is one page of the ledger.
type LedgerResult struct {
	Items    []LedgerEntry `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

// Service answers on-hand and ledger queries.
type Service struct {
	repo    Repository
	catalog catalog.Lookup
}

// NewService creates a ledger query service. lookup may be nil, in which
// case rows carry ids only and search matches nothing.
func NewService(repo Repository, lookup catalog.Lookup) *Service {
	return &Service{repo: repo, catalog: lookup}
}

// OnHand folds every posted line in scope and pages the result in memory.
//
// The full fold runs on every call; cost grows with the ledger, not with
// the page size.
func (s *Service) OnHand(ctx context.Context, filter OnHandFilter) (*OnHandResult, error) {
	page := filter.Pagination.Normalize()

	lines, err := s.repo.PostedLines(ctx, filter.Scope)
	if err != nil {
		return nil, fmt.Errorf("load posted lines: %w", err)
	}
	balances := Fold(lines, filter.Scope)

	display, err := s.loadDisplay(ctx, balances)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))

	items := make([]OnHandItem, 0, len(balances.Items))
	for key, qty := range balances.Items {
		if qty.IsZero() && !filter.IncludeZero {
			continue
		}
		row := OnHandItem{LocationID: key.LocationID, ItemID: key.SubjectID, Qty: qty}
		if loc, ok := display.locations[key.LocationID]; ok {
			row.LocationCode, row.LocationName = loc.Code, loc.Name
		}
		if it, ok := display.items[key.SubjectID]; ok {
			row.ItemCode, row.ItemName, row.ItemType, row.UOM = it.Code, it.Name, it.ItemType, it.UOM
		}
		if filter.ItemType != "" && !strings.EqualFold(row.ItemType, filter.ItemType) {
			continue
		}
		if search != "" && !containsAny(search, row.ItemCode, row.ItemName) {
			continue
		}
		items = append(items, row)
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.LocationCode != b.LocationCode {
			return a.LocationCode < b.LocationCode
		}
		if a.ItemCode != b.ItemCode {
			return a.ItemCode < b.ItemCode
		}
		if a.LocationID != b.LocationID {
			return a.LocationID.String() < b.LocationID.String()
		}
		return a.ItemID.String() < b.ItemID.String()
	})

	variants := make([]OnHandVariant, 0, len(balances.Variants))
	for key, qty := range balances.Variants {
		if qty.IsZero() && !filter.IncludeZero {
			continue
		}
		row := OnHandVariant{LocationID: key.LocationID, VariantID: key.SubjectID, Qty: qty}
		if loc, ok := display.locations[key.LocationID]; ok {
			row.LocationCode, row.LocationName = loc.Code, loc.Name
		}
		if v, ok := display.variants[key.SubjectID]; ok {
			row.SKU, row.VariantName = v.SKU, v.Name
		}
		if search != "" && !containsAny(search, row.SKU, row.VariantName) {
			continue
		}
		variants = append(variants, row)
	}
	sort.Slice(variants, func(i, j int) bool {
		a, b := variants[i], variants[j]
		if a.LocationCode != b.LocationCode {
			return a.LocationCode < b.LocationCode
		}
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		if a.LocationID != b.LocationID {
			return a.LocationID.String() < b.LocationID.String()
		}
		return a.VariantID.String() < b.VariantID.String()
	})

	return &OnHandResult{
		Items:         domain.Paginate(items, page),
		ItemsTotal:    len(items),
		Variants:      domain.Paginate(variants, page),
		VariantsTotal: len(variants),
		Page:          page.Page,
		PageSize:      page.PageSize,
	}, nil
}

// Ledger returns one page of posted lines annotated with signedQty.
func (s *Service) Ledger(ctx context.Context, filter LedgerFilter) (*LedgerResult, error) {
	filter.Pagination = filter.Pagination.Normalize()

	lines, total, err := s.repo.LedgerPage(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load ledger page: %w", err)
	}

	entries := make([]LedgerEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, LedgerEntry{
			PostedLine: line,
			SignedQty:  SignedQty(line, filter.LocationID),
		})
	}

	return &LedgerResult{
		Items:    entries,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

type displayData struct {
	items     map[id.ID]catalog.Item
	variants  map[id.ID]catalog.Variant
	locations map[id.ID]catalog.Location
}

func (s *Service) loadDisplay(ctx context.Context, b Balances) (displayData, error) {
	d := displayData{
		items:     map[id.ID]catalog.Item{},
		variants:  map[id.ID]catalog.Variant{},
		locations: map[id.ID]catalog.Location{},
	}
	if s.catalog == nil {
		return d, nil
	}

	itemIDs, variantIDs, locationIDs := distinctIDs(b)

	var err error
	if len(itemIDs) > 0 {
		if d.items, err = s.catalog.Items(ctx, itemIDs); err != nil {
			return d, fmt.Errorf("lookup items: %w", err)
		}
	}
	if len(variantIDs) > 0 {
		if d.variants, err = s.catalog.Variants(ctx, variantIDs); err != nil {
			return d, fmt.Errorf("lookup variants: %w", err)
		}
	}
	if len(locationIDs) > 0 {
		if d.locations, err = s.catalog.Locations(ctx, locationIDs); err != nil {
			return d, fmt.Errorf("lookup locations: %w", err)
		}
	}
	return d, nil
}

func distinctIDs(b Balances) (items, variants, locations []id.ID) {
	seenItem := map[id.ID]struct{}{}
	seenVariant := map[id.ID]struct{}{}
	seenLocation := map[id.ID]struct{}{}

	for key := range b.Items {
		if _, ok := seenItem[key.SubjectID]; !ok {
			seenItem[key.SubjectID] = struct{}{}
			items = append(items, key.SubjectID)
		}
		if _, ok := seenLocation[key.LocationID]; !ok {
			seenLocation[key.LocationID] = struct{}{}
			locations = append(locations, key.LocationID)
		}
	}
	for key := range b.Variants {
		if _, ok := seenVariant[key.SubjectID]; !ok {
			seenVariant[key.SubjectID] = struct{}{}
			variants = append(variants, key.SubjectID)
		}
		if _, ok := seenLocation[key.LocationID]; !ok {
			seenLocation[key.LocationID] = struct{}{}
			locations = append(locations, key.LocationID)
		}
	}
	return items, variants, locations
}

func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
