package worker

import (
	"context"
	"time"

	"warehouse-ledger/internal/core"

	"go.uber.org/zap"
)

// EventStore is the part of the outbox repository the worker needs.
type EventStore interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*core.OutboxEvent, error)
	MarkAsSent(ctx context.Context, id int64) error
}

// OutboxWorker relays committed stock events from the outbox table to a Publisher.
type OutboxWorker struct {
	store     EventStore
	publisher Publisher
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxWorker creates an outbox worker.
func NewOutboxWorker(
	store EventStore,
	publisher Publisher,
	logger *zap.Logger,
	interval time.Duration,
	batchSize int,
) *OutboxWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxWorker{
		store:     store,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled. It always returns nil so it can sit in an errgroup
// next to the HTTP server without tearing it down on a transient database error.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("outbox worker started",
		zap.Duration("interval", w.interval),
		zap.Int("batchSize", w.batchSize))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker stopped")
			return nil
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				w.logger.Error("failed to process outbox events", zap.Error(err))
			}
		}
	}
}

// ProcessOnce publishes one batch of pending events and returns how many were marked sent.
// An event that fails to publish stays PENDING and is retried on the next tick.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) (int, error) {
	events, err := w.store.GetPendingEvents(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, event := range events {
		if err := w.publisher.Publish(ctx, event); err != nil {
			w.logger.Error("failed to publish event",
				zap.Int64("eventId", event.ID),
				zap.String("eventType", event.EventType),
				zap.Error(err))
			continue
		}

		if err := w.store.MarkAsSent(ctx, event.ID); err != nil {
			w.logger.Error("failed to mark event as sent",
				zap.Int64("eventId", event.ID),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}
