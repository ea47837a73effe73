package eventpublisher

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/iho/fxledger/internal/domain"
)

// LogPublisher writes events to the log. It stands in for a broker in
// development and when no Kafka brokers are configured.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("scope_kind", event.AggregateType).
		Str("scope", event.AggregateID).
		RawJSON("payload", payload).
		Msg("ledger event")

	return nil
}
