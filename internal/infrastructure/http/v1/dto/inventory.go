package dto

import (
	"mfgerp/internal/domain/inventory/ledger"
	"mfgerp/internal/domain/inventory/stockmove"
)

// ScopeRequest is the shared scope of the inventory queries.
type ScopeRequest struct {
	WarehouseID string `form:"warehouseId"`
	LocationID  string `form:"locationId"`
	ItemID      string `form:"itemId"`
	VariantID   string `form:"variantId"`
}

// ToScope parses the scope ids.
func (r ScopeRequest) ToScope() (ledger.Scope, error) {
	var (
		s   ledger.Scope
		err error
	)
	if s.WarehouseID, err = ParseOptionalID("warehouseId", r.WarehouseID); err != nil {
		return s, err
	}
	if s.LocationID, err = ParseOptionalID("locationId", r.LocationID); err != nil {
		return s, err
	}
	if s.ItemID, err = ParseOptionalID("itemId", r.ItemID); err != nil {
		return s, err
	}
	if s.VariantID, err = ParseOptionalID("variantId", r.VariantID); err != nil {
		return s, err
	}
	return s, nil
}

// OnHandRequest holds the query of GET /inventory/onhand.
type OnHandRequest struct {
	ScopeRequest
	PaginationRequest
	Search      string `form:"search"`
	ItemType    string `form:"itemType"`
	IncludeZero bool   `form:"includeZero"`
}

// ToFilter converts the query to an on-hand filter.
func (r OnHandRequest) ToFilter() (ledger.OnHandFilter, error) {
	scope, err := r.ToScope()
	if err != nil {
		return ledger.OnHandFilter{}, err
	}
	return ledger.OnHandFilter{
		Scope:       scope,
		Pagination:  r.PaginationRequest.ToDomain(),
		Search:      r.Search,
		ItemType:    r.ItemType,
		IncludeZero: r.IncludeZero,
	}, nil
}

// LedgerRequest holds the query of GET /inventory/ledger.
type LedgerRequest struct {
	ScopeRequest
	PaginationRequest
	DateRange
	MoveType string `form:"moveType"`
}

// ToFilter converts the query to a ledger filter.
func (r LedgerRequest) ToFilter() (ledger.LedgerFilter, error) {
	scope, err := r.ToScope()
	if err != nil {
		return ledger.LedgerFilter{}, err
	}
	f := ledger.LedgerFilter{
		Scope:      scope,
		Pagination: r.PaginationRequest.ToDomain(),
		DateFrom:   r.DateFrom,
		DateTo:     r.DateTo,
	}
	if r.MoveType != "" {
		t := stockmove.MoveType(r.MoveType)
		f.MoveType = &t
	}
	return f, nil
}
