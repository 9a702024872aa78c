package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Inventory-Reservation-System/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
	tracer   trace.Tracer
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic, tracer: otel.Tracer("outbox-dispatcher")}
}

// Dispatch publishes one event keyed by its aggregate id. The span continues
// the trace that was active when the event was enqueued.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	ctx = tracing.WithTraceparent(ctx, event.Traceparent)
	ctx, span := d.tracer.Start(ctx, "outbox.Dispatch",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("event.type", event.Type),
			attribute.String("aggregate.id", event.AggregateID),
		))
	defer span.End()

	headers := make([]kafka.Header, 0, len(event.Headers)+3)
	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers,
		kafka.Header{Key: "event_type", Value: []byte(event.Type)},
		kafka.Header{Key: "aggregate_type", Value: []byte(event.AggregateType)},
	)
	headers = tracing.InjectKafkaHeaders(ctx, headers)
	carrier := tracing.HeaderCarrier{Headers: &headers}
	if carrier.Get(tracing.TraceparentHeader) == "" && event.Traceparent != "" {
		carrier.Set(tracing.TraceparentHeader, event.Traceparent)
	}

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		d.log.ErrorContext(ctx, "outbox dispatch failed", "event_id", event.ID, "type", event.Type, "err", err)
		return err
	}
	d.log.DebugContext(ctx, "outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}
