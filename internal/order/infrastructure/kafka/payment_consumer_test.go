package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/idempotency"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/logging"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{msgs: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	if len(r.msgs) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) ConfirmPayment(ctx context.Context, p application.PaymentConfirmation) (domain.Order, bool, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.Order), args.Bool(1), args.Error(2)
}

func message(offset int64, body string) kafka.Message {
	return kafka.Message{Topic: "payments", Partition: 0, Offset: offset, Value: []byte(body)}
}

func run(t *testing.T, c *PaymentConsumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	require.NoError(t, <-done)
}

func newIdem(t *testing.T) *idempotency.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return idempotency.NewStore(rdb, time.Hour)
}

func TestPaymentConsumer_ConfirmsAndCommits(t *testing.T) {
	svc := new(mockConfirmer)
	svc.On("ConfirmPayment", mock.Anything, application.PaymentConfirmation{
		Reference:     "ORDER-ABC",
		TransactionID: "tx-1",
		Amount:        decimal.RequireFromString("28.5"),
	}).Return(domain.Order{ID: "o-1"}, true, nil).Once()

	r := newFakeReader(message(1, `{"reference":"ORDER-ABC","transaction_id":"tx-1","amount":"28.5"}`))
	run(t, NewPaymentConsumer(logging.Nop(), r, svc, newIdem(t)), r)

	svc.AssertExpectations(t)
	assert.Equal(t, []int64{1}, r.committed)
}

func TestPaymentConsumer_SkipsRedeliveredTransactions(t *testing.T) {
	svc := new(mockConfirmer)
	svc.On("ConfirmPayment", mock.Anything, mock.Anything).Return(domain.Order{ID: "o-1"}, true, nil).Once()

	body := `{"reference":"ORDER-ABC","transaction_id":"tx-1","amount":10}`
	r := newFakeReader(message(5, body), message(9, body))
	run(t, NewPaymentConsumer(logging.Nop(), r, svc, newIdem(t)), r)

	svc.AssertNumberOfCalls(t, "ConfirmPayment", 1)
	assert.Equal(t, []int64{5, 9}, r.committed)
}

func TestPaymentConsumer_DedupesByOffsetWithoutTransactionID(t *testing.T) {
	svc := new(mockConfirmer)
	svc.On("ConfirmPayment", mock.Anything, mock.Anything).Return(domain.Order{ID: "o-1"}, true, nil).Twice()

	body := `{"reference":"ORDER-ABC","amount":10}`
	r := newFakeReader(message(5, body), message(5, body), message(6, body))
	run(t, NewPaymentConsumer(logging.Nop(), r, svc, newIdem(t)), r)

	svc.AssertNumberOfCalls(t, "ConfirmPayment", 2)
}

func TestPaymentConsumer_CommitsPoisonMessages(t *testing.T) {
	svc := new(mockConfirmer)
	svc.On("ConfirmPayment", mock.Anything, mock.Anything).
		Return(domain.Order{}, false, domain.ErrOrderNotFound).Once()

	r := newFakeReader(
		message(1, `not json`),
		message(2, `{"reference":"ORDER-ZZZ","transaction_id":"tx-9","amount":"1"}`),
	)
	run(t, NewPaymentConsumer(logging.Nop(), r, svc, nil), r)

	svc.AssertNumberOfCalls(t, "ConfirmPayment", 1)
	assert.Equal(t, []int64{1, 2}, r.committed)
}

func TestPaymentConsumer_RetriesTransientErrors(t *testing.T) {
	svc := new(mockConfirmer)
	svc.On("ConfirmPayment", mock.Anything, mock.Anything).
		Return(domain.Order{}, false, errors.New("connection reset")).Twice()
	svc.On("ConfirmPayment", mock.Anything, mock.Anything).
		Return(domain.Order{ID: "o-1"}, true, nil).Once()

	r := newFakeReader(message(3, `{"reference":"ORDER-ABC","transaction_id":"tx-1","amount":"5"}`))
	c := NewPaymentConsumer(logging.Nop(), r, svc, newIdem(t))
	c.backoff = time.Millisecond
	run(t, c, r)

	svc.AssertNumberOfCalls(t, "ConfirmPayment", 3)
}
