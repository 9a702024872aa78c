package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/idempotency"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, p application.PaymentConfirmation) (domain.Order, bool, error)
}

// PaymentConfirmed is the message published by the payment gateway bridge.
type PaymentConfirmed struct {
	Reference     string          `json:"reference"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type PaymentConsumer struct {
	log      *slog.Logger
	reader   Reader
	svc      PaymentConfirmer
	idem     *idempotency.Store
	tracer   trace.Tracer
	attempts int
	backoff  time.Duration
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

// NewPaymentConsumer wires a consumer. idem may be nil, in which case
// redelivered messages rely on ConfirmPayment ignoring settled orders.
func NewPaymentConsumer(log *slog.Logger, reader Reader, svc PaymentConfirmer, idem *idempotency.Store) *PaymentConsumer {
	return &PaymentConsumer{
		log:      log,
		reader:   reader,
		svc:      svc,
		idem:     idem,
		tracer:   otel.Tracer("payment-consumer"),
		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
}

func (c *PaymentConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("commit payment message", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *PaymentConsumer) handle(ctx context.Context, msg kafka.Message) {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumePaymentConfirmed")
	defer span.End()

	var event PaymentConfirmed
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.ErrorContext(msgCtx, "unmarshal payment message", "offset", msg.Offset, "err", err)
		return
	}

	var key string
	if c.idem != nil {
		key = c.dedupeKey(msg, event)
		seen, err := c.idem.Seen(msgCtx, key)
		if err != nil {
			c.log.ErrorContext(msgCtx, "idempotency check failed", "key", key, "err", err)
		} else if seen {
			c.log.InfoContext(msgCtx, "duplicate payment skipped", "key", key)
			return
		}
	}

	p := application.PaymentConfirmation{
		Reference:     event.Reference,
		TransactionID: event.TransactionID,
		Amount:        event.Amount,
	}
	for attempt := 1; ; attempt++ {
		o, applied, err := c.svc.ConfirmPayment(msgCtx, p)
		if err == nil {
			c.log.InfoContext(msgCtx, "payment message processed",
				"order_id", o.ID, "transaction_id", event.TransactionID, "applied", applied)
			return
		}
		if permanent(err) || attempt >= c.attempts {
			c.log.ErrorContext(msgCtx, "payment message rejected",
				"reference", event.Reference, "transaction_id", event.TransactionID, "attempts", attempt, "err", err)
			if !permanent(err) && key != "" {
				if ferr := c.idem.Forget(context.WithoutCancel(ctx), key); ferr != nil {
					c.log.Warn("forget idempotency key", "key", key, "err", ferr)
				}
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
}

// dedupeKey prefers the gateway transaction id so a payment republished
// under a new offset is still recognised.
func (c *PaymentConsumer) dedupeKey(msg kafka.Message, event PaymentConfirmed) string {
	if event.TransactionID != "" {
		return c.idem.Key("payment", event.TransactionID)
	}
	return c.idem.Key(msg.Topic, strconv.Itoa(msg.Partition), strconv.FormatInt(msg.Offset, 10))
}

func permanent(err error) bool {
	return errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrPaymentInsufficient) ||
		errors.Is(err, domain.ErrInvalidStatusTransition)
}
