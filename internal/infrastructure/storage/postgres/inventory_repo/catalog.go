package inventory_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mfgerp/internal/core/id"
	"mfgerp/internal/domain/catalog"
	"mfgerp/internal/infrastructure/storage/postgres"
)

// CatalogLookup implements catalog.Lookup over the master-data tables.
type CatalogLookup struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ catalog.Lookup = (*CatalogLookup)(nil)

// NewCatalogLookup creates a new catalog lookup.
func NewCatalogLookup(txManager *postgres.TxManager) *CatalogLookup {
	return &CatalogLookup{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (c *CatalogLookup) Items(ctx context.Context, ids []id.ID) (map[id.ID]catalog.Item, error) {
	rows, err := lookup[catalog.Item](ctx, c, "items", ids)
	if err != nil {
		return nil, err
	}
	out := make(map[id.ID]catalog.Item, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (c *CatalogLookup) Variants(ctx context.Context, ids []id.ID) (map[id.ID]catalog.Variant, error) {
	rows, err := lookup[catalog.Variant](ctx, c, "product_variants", ids)
	if err != nil {
		return nil, err
	}
	out := make(map[id.ID]catalog.Variant, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (c *CatalogLookup) Locations(ctx context.Context, ids []id.ID) (map[id.ID]catalog.Location, error) {
	rows, err := lookup[catalog.Location](ctx, c, "locations", ids)
	if err != nil {
		return nil, err
	}
	out := make(map[id.ID]catalog.Location, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func lookup[T any](ctx context.Context, c *CatalogLookup, table string, ids []id.ID) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql, args, err := c.builder.Select(postgres.Columns[T]()...).
		From(table).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s lookup: %w", table, err)
	}

	var rows []T
	if err := pgxscan.Select(ctx, c.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}
	return rows, nil
}
