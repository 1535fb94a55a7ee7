package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "mfgerp/internal/core/context"
	"mfgerp/internal/core/id"
	"mfgerp/internal/domain/inventory/stockmove"
)

const auditTable = "sys_audit"

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionPost   AuditAction = "post"
)

// CompressionAlgo specifies how Changes are stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// defaultCompressThreshold is the payload size above which changes are zstd-compressed.
const defaultCompressThreshold = 10 * 1024

// AuditEntityStockMove is the entity type of stock move audit entries.
const AuditEntityStockMove = "stock_move"

// AuditEntry is one row of sys_audit.
type AuditEntry struct {
	ID                id.ID           `db:"id" json:"id"`
	EntityType        string          `db:"entity_type" json:"entityType"`
	EntityID          id.ID           `db:"entity_id" json:"entityId"`
	Action            AuditAction     `db:"action" json:"action"`
	UserID            string          `db:"user_id" json:"userId"`
	UserEmail         string          `db:"user_email" json:"userEmail,omitempty"`
	Changes           json.RawMessage `db:"changes" json:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// AuditLog appends audit entries in the caller's transaction.
type AuditLog struct {
	txManager         *TxManager
	builder           squirrel.StatementBuilderType
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditLog creates a new audit log.
func NewAuditLog(txManager *TxManager) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditLog{
		txManager:         txManager,
		builder:           squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// Log records an audit entry, filling the actor from the request context.
func (a *AuditLog) Log(ctx context.Context, entry AuditEntry) error {
	if user := appctx.GetUser(ctx); user != nil {
		if entry.UserID == "" {
			entry.UserID = user.UserID
		}
		if entry.UserEmail == "" {
			entry.UserEmail = user.Email
		}
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	a.compress(&entry)

	sql, args, err := a.builder.Insert(auditTable).
		Columns("id", "entity_type", "entity_id", "action", "user_id", "user_email",
			"changes", "changes_compressed", "compression_algo", "created_at").
		Values(entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID, entry.UserEmail,
			entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := a.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (a *AuditLog) compress(entry *AuditEntry) {
	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > a.compressThreshold {
		entry.ChangesCompressed = a.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
}

func (a *AuditLog) decompress(entry *AuditEntry) error {
	if entry.CompressionAlgo != CompressionZstd || len(entry.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := a.decoder.DecodeAll(entry.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	entry.Changes = raw
	entry.ChangesCompressed = nil
	return nil
}

// LogStockMove stores the full move, lines included, under action.
// It has the shape of a stock move lifecycle hook.
func (a *AuditLog) LogStockMove(action AuditAction) func(ctx context.Context, move *stockmove.StockMove) error {
	return func(ctx context.Context, move *stockmove.StockMove) error {
		changes, err := json.Marshal(move)
		if err != nil {
			return fmt.Errorf("marshal stock move: %w", err)
		}
		return a.Log(ctx, AuditEntry{
			EntityType: AuditEntityStockMove,
			EntityID:   move.ID,
			Action:     action,
			Changes:    changes,
		})
	}
}

// History returns the newest entries for one entity, decompressed.
// A non-positive limit means 50.
func (a *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	sql, args, err := a.builder.
		Select("id", "entity_type", "entity_id", "action", "user_id", "user_email",
			"changes", "changes_compressed", "compression_algo", "created_at").
		From(auditTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit history: %w", err)
	}

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, a.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	for i := range entries {
		if err := a.decompress(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
