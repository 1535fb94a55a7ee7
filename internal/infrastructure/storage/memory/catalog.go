package memory

import (
	"context"

	"mfgerp/internal/core/id"
	"mfgerp/internal/domain/catalog"
)

// CatalogLookup implements catalog.Lookup.
type CatalogLookup struct {
	store *Store
}

var _ catalog.Lookup = (*CatalogLookup)(nil)

func (c *CatalogLookup) PutItem(item catalog.Item) {
	_ = c.store.write(context.Background(), func(d *state) error { d.items[item.ID] = item; return nil })
}

func (c *CatalogLookup) PutVariant(v catalog.Variant) {
	_ = c.store.write(context.Background(), func(d *state) error { d.variants[v.ID] = v; return nil })
}

func (c *CatalogLookup) PutLocation(loc catalog.Location) {
	_ = c.store.write(context.Background(), func(d *state) error { d.locations[loc.ID] = loc; return nil })
}

func (c *CatalogLookup) Items(ctx context.Context, ids []id.ID) (map[id.ID]catalog.Item, error) {
	out := make(map[id.ID]catalog.Item, len(ids))
	err := c.store.read(ctx, func(d *state) error {
		for _, i := range ids {
			if v, ok := d.items[i]; ok {
				out[i] = v
			}
		}
		return nil
	})
	return out, err
}

func (c *CatalogLookup) Variants(ctx context.Context, ids []id.ID) (map[id.ID]catalog.Variant, error) {
	out := make(map[id.ID]catalog.Variant, len(ids))
	err := c.store.read(ctx, func(d *state) error {
		for _, i := range ids {
			if v, ok := d.variants[i]; ok {
				out[i] = v
			}
		}
		return nil
	})
	return out, err
}

func (c *CatalogLookup) Locations(ctx context.Context, ids []id.ID) (map[id.ID]catalog.Location, error) {
	out := make(map[id.ID]catalog.Location, len(ids))
	err := c.store.read(ctx, func(d *state) error {
		for _, i := range ids {
			if v, ok := d.locations[i]; ok {
				out[i] = v
			}
		}
		return nil
	})
	return out, err
}
