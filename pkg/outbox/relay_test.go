package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Inventory-Reservation-System/pkg/logging"
)

type fakeStore struct {
	mu     sync.Mutex
	events []Event
	sent   []int64
	failed map[int64]string
}

func (s *fakeStore) LockBatch(_ context.Context, relayID string, batchSize int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for i := range s.events {
		if s.events[i].Status != StatusPending || len(out) == batchSize {
			continue
		}
		s.events[i].Status = StatusInProgress
		s.events[i].RelayID = relayID
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *fakeStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = map[int64]string{}
	}
	s.failed[id] = msg
	return nil
}

type fakeProducer struct {
	msgs   []kafka.Message
	failOn string
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if string(m.Key) == p.failOn {
			return errors.New("broker unavailable")
		}
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestRelay_FlushPublishesPendingEvents(t *testing.T) {
	store := &fakeStore{events: []Event{
		{ID: 1, AggregateType: "order", AggregateID: "o-1", Type: "OrderCreated", Payload: []byte(`{}`), Status: StatusPending, Traceparent: "00-abc-def-01"},
		{ID: 2, AggregateType: "order", AggregateID: "o-2", Type: "OrderStatusChanged", Payload: []byte(`{}`), Status: StatusPending},
	}}
	producer := &fakeProducer{}
	relay := NewRelay(logging.Nop(), store, NewDispatcher(logging.Nop(), producer, "order-events"), "relay-1")

	n, err := relay.Flush(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []int64{1, 2}, store.sent)
	require.Len(t, producer.msgs, 2)
	assert.Equal(t, "order-events", producer.msgs[0].Topic)
	assert.Equal(t, []byte("o-1"), producer.msgs[0].Key)

	headers := map[string]string{}
	for _, h := range producer.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "OrderCreated", headers["event_type"])
	assert.Equal(t, "order", headers["aggregate_type"])
	assert.Equal(t, "00-abc-def-01", headers["traceparent"])
}

func TestRelay_FlushMarksFailedDispatch(t *testing.T) {
	store := &fakeStore{events: []Event{
		{ID: 1, AggregateID: "o-1", Type: "OrderCreated", Status: StatusPending},
		{ID: 2, AggregateID: "o-2", Type: "OrderCreated", Status: StatusPending},
	}}
	producer := &fakeProducer{failOn: "o-2"}
	relay := NewRelay(logging.Nop(), store, NewDispatcher(logging.Nop(), producer, "t"), "relay-1")

	n, err := relay.Flush(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, store.sent)
	assert.Contains(t, store.failed[2], "broker unavailable")
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	store := &fakeStore{events: []Event{{ID: 7, AggregateID: "o-7", Type: "OrderCreated", Status: StatusPending}}}
	producer := &fakeProducer{}
	relay := NewRelay(logging.Nop(), store, NewDispatcher(logging.Nop(), producer, "t"), "relay-1").
		WithInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.sent) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelay_DrainEmptiesBacklogAcrossBatches(t *testing.T) {
	var events []Event
	for i := int64(1); i <= 5; i++ {
		events = append(events, Event{ID: i, AggregateID: "o", Type: "OrderCreated", Status: StatusPending})
	}
	store := &fakeStore{events: events}
	producer := &fakeProducer{}
	relay := NewRelay(logging.Nop(), store, NewDispatcher(logging.Nop(), producer, "t"), "relay-1").
		WithBatchSize(2)

	relay.drain(context.Background())

	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, store.sent)
	assert.Len(t, producer.msgs, 5)
}
