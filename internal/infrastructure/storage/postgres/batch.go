package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter bulk-loads rows with the COPY protocol.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice copies rows into table inside the transaction carried by ctx.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	t := b.txManager.GetTx(ctx)
	if t == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}
	return t.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// CopyStructs copies items into table, taking each column from the item's "db" tags.
func CopyStructs[T any](ctx context.Context, b *BatchInserter, table string, columns []string, items []T) (int64, error) {
	rows := make([][]any, 0, len(items))
	for i := range items {
		rows = append(rows, RowValues(&items[i], columns))
	}
	return b.CopyFromSlice(ctx, table, columns, rows)
}
