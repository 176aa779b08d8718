package worker

import (
	"context"

	"warehouse-ledger/internal/core"

	"go.uber.org/zap"
)

// Publisher delivers one outbox event to whatever consumes stock events downstream.
type Publisher interface {
	Publish(ctx context.Context, event *core.OutboxEvent) error
}

// LogPublisher writes events to the structured log. It is the default when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event *core.OutboxEvent) error {
	p.logger.Info("stock event",
		zap.Int64("eventId", event.ID),
		zap.String("eventUuid", event.EventID.String()),
		zap.String("eventType", event.EventType),
		zap.String("aggregateType", event.AggregateType),
		zap.Int("aggregateId", event.AggregateID),
		zap.ByteString("payload", event.Payload))
	return nil
}
