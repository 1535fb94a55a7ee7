package main

import (
	"context"
	"encoding/json"
	"fmt"

	"mfgerp/internal/infrastructure/metrics"
	"mfgerp/internal/infrastructure/storage/postgres"
	"mfgerp/pkg/logger"
)

// newLogHandler delivers outbox messages to the structured log. It is the
// sink until a broker is wired in.
func newLogHandler(log *logger.Logger, m *metrics.Metrics) postgres.OutboxHandler {
	log = log.WithComponent("outbox")
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		if !json.Valid(msg.Payload) {
			m.RecordOutboxDelivery(msg.EventType, false)
			return fmt.Errorf("message %s: payload is not valid JSON", msg.ID)
		}

		log.WithContext(ctx).Infow("domain event",
			"message_id", msg.ID,
			"event_type", msg.EventType,
			"aggregate_type", msg.AggregateType,
			"aggregate_id", msg.AggregateID,
			"payload", json.RawMessage(msg.Payload),
		)
		m.RecordOutboxDelivery(msg.EventType, true)
		return nil
	})
}
