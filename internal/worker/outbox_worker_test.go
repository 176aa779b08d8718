package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"warehouse-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeStore struct {
	mu      sync.Mutex
	pending []*core.OutboxEvent
	sent    []int64
	listErr error
}

func (s *fakeStore) GetPendingEvents(ctx context.Context, limit int) ([]*core.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	n := min(limit, len(s.pending))
	return append([]*core.OutboxEvent(nil), s.pending[:n]...), nil
}

func (s *fakeStore) MarkAsSent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, id)
	for i, e := range s.pending {
		if e.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return nil
}

type fakePublisher struct {
	fail map[int64]bool
	got  []int64
}

func (p *fakePublisher) Publish(ctx context.Context, event *core.OutboxEvent) error {
	if p.fail[event.ID] {
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, event.ID)
	return nil
}

func event(id int64, eventType string) *core.OutboxEvent {
	return &core.OutboxEvent{
		ID: id, EventID: uuid.New(), AggregateType: "PURCHASE_ORDER", AggregateID: 1,
		EventType: eventType, Payload: []byte(`{"receipt_id":1}`), Status: "PENDING",
	}
}

func TestProcessOnce_MarksPublishedEventsSent(t *testing.T) {
	store := &fakeStore{pending: []*core.OutboxEvent{
		event(1, core.EventStockReceived),
		event(2, core.EventStockShipped),
		event(3, core.EventStockLow),
	}}
	pub := &fakePublisher{fail: map[int64]bool{2: true}}
	w := NewOutboxWorker(store, pub, nil, time.Second, 10)

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 3}, store.sent)
	require.Len(t, store.pending, 1)
	assert.Equal(t, int64(2), store.pending[0].ID, "failed event stays pending for retry")

	// The broker recovers; the retry picks up the leftover.
	pub.fail = nil
	sent, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Empty(t, store.pending)
}

func TestProcessOnce_RespectsBatchSize(t *testing.T) {
	store := &fakeStore{}
	for i := int64(1); i <= 5; i++ {
		store.pending = append(store.pending, event(i, core.EventStockReceived))
	}
	w := NewOutboxWorker(store, &fakePublisher{}, nil, time.Second, 2)

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Len(t, store.pending, 3)
}

func TestProcessOnce_StoreError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("connection refused")}
	w := NewOutboxWorker(store, &fakePublisher{}, nil, time.Second, 10)
	_, err := w.ProcessOnce(context.Background())
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := &fakeStore{pending: []*core.OutboxEvent{event(1, core.EventStockReceived)}}
	w := NewOutboxWorker(store, &fakePublisher{}, nil, 5*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.sent) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestLogPublisher(t *testing.T) {
	obsCore, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(obsCore))

	require.NoError(t, p.Publish(context.Background(), event(7, "stock.low")))
	entries := logs.FilterMessage("stock event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "stock.low", entries[0].ContextMap()["eventType"])
	assert.Equal(t, int64(7), entries[0].ContextMap()["eventId"])
}
