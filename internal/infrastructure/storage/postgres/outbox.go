package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mfgerp/internal/core/id"
	"mfgerp/internal/domain/events"
	"mfgerp/pkg/logger"
)

const outboxTable = "sys_outbox"

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// MaxOutboxRetries is the number of failed deliveries after which a message
// is parked as failed.
const MaxOutboxRetries = 5

// OutboxMessage is one row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// OutboxPublisher writes domain events to sys_outbox in the caller's transaction.
type OutboxPublisher struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Publish implements events.Publisher. It must run inside a transaction so
// the event commits or rolls back with the state change it describes.
func (p *OutboxPublisher) Publish(ctx context.Context, event events.Event) error {
	t := p.txManager.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	sql, args, err := p.insert(event, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := t.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func (p *OutboxPublisher) insert(event events.Event, now time.Time) (string, []any, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal event payload: %w", err)
	}

	sql, args, err := p.builder.Insert(outboxTable).
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at").
		Values(id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, now).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build outbox insert: %w", err)
	}
	return sql, args, nil
}

// OutboxHandler delivers one message downstream.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle calls f.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay drains pending messages. Several relays may run at once;
// SKIP LOCKED hands each message to exactly one of them.
type OutboxRelay struct {
	txManager *TxManager
	batchSize int
	handler   OutboxHandler
	builder   squirrel.StatementBuilderType
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager: txManager,
		batchSize: batchSize,
		handler:   handler,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ProcessBatch locks up to batchSize due messages, hands each to the handler
// and records the outcome. It returns the number delivered.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := r.pendingQuery(time.Now().UTC()).ToSql()
		if err != nil {
			return fmt.Errorf("build outbox select: %w", err)
		}

		var messages []*OutboxMessage
		if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &messages, sql, args...); err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := r.deliver(ctx, msg); err != nil {
				return err
			}
			if msg.Status == OutboxStatusPublished {
				processed++
			}
		}
		return nil
	})
	return processed, err
}

func (r *OutboxRelay) pendingQuery(now time.Time) squirrel.SelectBuilder {
	return r.builder.
		Select("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status",
			"retry_count", "last_error", "next_retry_at", "created_at", "published_at").
		From(outboxTable).
		Where(squirrel.Eq{"status": OutboxStatusPending}).
		Where(squirrel.Or{
			squirrel.Eq{"next_retry_at": nil},
			squirrel.LtOrEq{"next_retry_at": now},
		}).
		OrderBy("created_at").
		Limit(uint64(r.batchSize)).
		Suffix("FOR UPDATE SKIP LOCKED")
}

// deliver runs the handler and stores the result on the message row.
// A handler failure is recorded, not returned.
func (r *OutboxRelay) deliver(ctx context.Context, msg *OutboxMessage) error {
	now := time.Now().UTC()
	q := r.builder.Update(outboxTable).Where(squirrel.Eq{"id": msg.ID})

	if err := r.handler.Handle(ctx, msg); err != nil {
		logger.Warn(ctx, "outbox delivery failed",
			"message_id", msg.ID,
			"event_type", msg.EventType,
			"retry_count", msg.RetryCount,
			"error", err)

		msg.RetryCount++
		status := OutboxStatusPending
		if msg.RetryCount >= MaxOutboxRetries {
			status = OutboxStatusFailed
		}
		// Linear backoff: one more minute per attempt.
		q = q.Set("retry_count", msg.RetryCount).
			Set("last_error", err.Error()).
			Set("next_retry_at", now.Add(time.Duration(msg.RetryCount)*time.Minute)).
			Set("status", status)
		msg.Status = status
	} else {
		q = q.Set("status", OutboxStatusPublished).Set("published_at", now)
		msg.Status = OutboxStatusPublished
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build outbox update: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update outbox message: %w", err)
	}
	return nil
}
