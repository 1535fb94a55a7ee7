package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mfgerp/internal/core/apperror"
)

const idempotencyTable = "sys_idempotency"

// staleIdempotencyAfter is how long a pending key may sit before a retry
// is allowed to take it over.
const staleIdempotencyAfter = time.Minute

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// IdempotencyRecord is one row of sys_idempotency.
type IdempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	UserID      string            `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  *int              `db:"response_status"`
	ContentType *string           `db:"response_content_type"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
	ExpiresAt   time.Time         `db:"expires_at"`
	Inserted    bool              `db:"inserted"`
}

// IdempotencyReplay is the cached HTTP response for replay.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore manages idempotency keys. Statements run outside the
// business transaction so a key survives the rollback of a failed request.
type IdempotencyStore struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
	ttl       time.Duration
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		ttl:       ttl,
	}
}

// AcquireKey claims key for one request.
// Returns:
//   - (nil, nil) if the key was claimed by this call
//   - (replay, nil) if the operation already finished
//   - (nil, error) if the key is busy or belongs to a different request
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := time.Now().UTC()

	// An expired key the cleanup has not removed yet is treated as new.
	sql, args, err := s.expiredKeyQuery(key, now).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build idempotency expiry: %w", err)
	}
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return nil, fmt.Errorf("drop expired idempotency key: %w", err)
	}

	sql, args, err = s.builder.Insert(idempotencyTable).
		Columns("idempotency_key", "user_id", "operation", "status", "request_hash",
			"created_at", "updated_at", "expires_at").
		Values(key, userID, operation, IdempotencyStatusPending, requestHash, now, now, now.Add(s.ttl)).
		Suffix(`ON CONFLICT (idempotency_key) DO UPDATE SET expires_at = GREATEST(` + idempotencyTable + `.expires_at, EXCLUDED.expires_at)
			RETURNING idempotency_key, user_id, operation, status, request_hash, response,
				response_status, response_content_type, created_at, updated_at, expires_at,
				(xmax = 0) AS inserted`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build idempotency upsert: %w", err)
	}

	var record IdempotencyRecord
	if err := pgxscan.Get(ctx, s.txManager.GetQuerier(ctx), &record, sql, args...); err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if record.Inserted {
		return nil, nil
	}

	if record.UserID != userID || record.Operation != operation || record.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("storedOperation", record.Operation).
			WithDetail("requestOperation", operation)
	}

	switch record.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		return record.replay(), nil
	case IdempotencyStatusPending:
		if now.Sub(record.UpdatedAt) <= staleIdempotencyAfter {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		// The first request most likely crashed; take the key over unless a
		// concurrent retry already did.
		claimed, err := s.reclaim(ctx, key, record.UpdatedAt, now)
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		return nil, nil
	}
	return nil, nil
}

func (r *IdempotencyRecord) replay() *IdempotencyReplay {
	replay := &IdempotencyReplay{
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		Body:        r.Response,
	}
	if r.StatusCode != nil && *r.StatusCode != 0 {
		replay.StatusCode = *r.StatusCode
	}
	if r.ContentType != nil && *r.ContentType != "" {
		replay.ContentType = *r.ContentType
	}
	return replay
}

func (s *IdempotencyStore) expiredKeyQuery(key string, now time.Time) squirrel.DeleteBuilder {
	return s.builder.Delete(idempotencyTable).
		Where(squirrel.Eq{"idempotency_key": key}).
		Where(squirrel.Lt{"expires_at": now})
}

// reclaim moves a stale pending key to this request. It only succeeds while
// updated_at still holds the value observed by the caller.
func (s *IdempotencyStore) reclaim(ctx context.Context, key string, observed, now time.Time) (bool, error) {
	sql, args, err := s.reclaimQuery(key, observed, now).ToSql()
	if err != nil {
		return false, fmt.Errorf("build idempotency reclaim: %w", err)
	}
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("reclaim stale key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *IdempotencyStore) reclaimQuery(key string, observed, now time.Time) squirrel.UpdateBuilder {
	return s.builder.Update(idempotencyTable).
		Set("updated_at", now).
		Where(squirrel.Eq{
			"idempotency_key": key,
			"status":          IdempotencyStatusPending,
			"updated_at":      observed,
		})
}

// CompleteKey stores a successful response for replay.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, IdempotencyStatusSuccess, statusCode, contentType, response)
}

// FailKey stores an error response for replay.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, IdempotencyStatusFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status IdempotencyStatus, statusCode int, contentType string, response any) error {
	var body []byte
	if response != nil {
		b, err := json.Marshal(response)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		body = b
	}

	sql, args, err := s.builder.Update(idempotencyTable).
		Set("status", status).
		Set("response", body).
		Set("response_status", statusCode).
		Set("response_content_type", contentType).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"idempotency_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build idempotency update: %w", err)
	}
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	sql, args, err := s.builder.Delete(idempotencyTable).
		Where(squirrel.Lt{"expires_at": time.Now().UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build idempotency cleanup: %w", err)
	}
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
