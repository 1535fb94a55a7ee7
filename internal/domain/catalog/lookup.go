// Package catalog describes the master-data lookup used to enrich on-hand rows.
package catalog

import (
	"context"

	"mfgerp/internal/core/id"
)

// Item is an inventory SKU or raw material.
type Item struct {
	ID       id.ID  `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	ItemType string `db:"item_type" json:"itemType"`
	UOM      string `db:"uom" json:"uom"`
}

// Variant is a finished-good product variant (style + size + color).
type Variant struct {
	ID   id.ID  `db:"id" json:"id"`
	SKU  string `db:"sku" json:"sku"`
	Name string `db:"name" json:"name"`
}

// Location is a storage location inside a warehouse.
type Location struct {
	ID          id.ID  `db:"id" json:"id"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	Code        string `db:"code" json:"code"`
	Name        string `db:"name" json:"name"`
}

// Lookup resolves display data by id. Unknown ids are simply absent from
// the returned maps.
type Lookup interface {
	Items(ctx context.Context, ids []id.ID) (map[id.ID]Item, error)
	Variants(ctx context.Context, ids []id.ID) (map[id.ID]Variant, error)
	Locations(ctx context.Context, ids []id.ID) (map[id.ID]Location, error)
}
