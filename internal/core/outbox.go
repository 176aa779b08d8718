package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types written to the outbox.
const (
	EventStockReceived = "stock.received"
	EventStockShipped  = "stock.shipped"
	EventStockLow      = "stock.low"
)

// OutboxEvent is one row of outbox_events.
type OutboxEvent struct {
	ID            int64           `json:"id"`
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   int             `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StockMovementLine is one product/location/quantity entry of a movement event.
type StockMovementLine struct {
	ProductID  int `json:"product_id"`
	LocationID int `json:"location_id"`
	Quantity   int `json:"quantity"`
}

// StockMovedEvent is the payload of stock.received and stock.shipped.
type StockMovedEvent struct {
	ReceiptID     int                 `json:"receipt_id"`
	ReceiptNumber string              `json:"receipt_number"`
	ParentType    ReceiptParentType   `json:"parent_type"`
	ParentID      int                 `json:"parent_id"`
	WarehouseID   int                 `json:"warehouse_id"`
	Lines         []StockMovementLine `json:"lines"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// LowStockEvent is the payload of stock.low.
type LowStockEvent struct {
	ProductID   int       `json:"product_id"`
	WarehouseID int       `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
	Threshold   int       `json:"threshold"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// CrossedLowStock reports whether a warehouse total went from above threshold to at-or-below it.
// A zero threshold disables the alert.
func CrossedLowStock(before, after, threshold int) bool {
	return threshold > 0 && before > threshold && after <= threshold
}

// OutboxRepository stores events in the same transaction as the state change that produced them.
type OutboxRepository interface {
	InsertEventTx(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID int, eventType string, payload any) error
	GetPendingEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsSent(ctx context.Context, id int64) error
}

type outboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &outboxRepository{pool: pool}
}

func (r *outboxRepository) InsertEventTx(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID int, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return Wrap(ErrCodeInvalidRequest, "marshal outbox event", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', NOW())`,
		uuid.New(), aggregateType, aggregateID, eventType, body,
	)
	if err != nil {
		return dbError("insert outbox event", err)
	}
	return nil
}

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, status, created_at
		FROM outbox_events
		WHERE status = 'PENDING'
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, dbError("query pending events", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		if err := rows.Scan(&e.ID, &e.EventID, &e.AggregateType, &e.AggregateID,
			&e.EventType, &e.Payload, &e.Status, &e.CreatedAt); err != nil {
			return nil, dbError("scan outbox event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate outbox events", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkAsSent(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE outbox_events SET status = 'SENT', sent_at = NOW() WHERE id = $1", id)
	if err != nil {
		return dbError("mark event as sent", err)
	}
	return nil
}
