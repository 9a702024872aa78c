package notification

import (
	"context"
	"log/slog"

	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
)

// LogSink stands in for the outbox when the service runs without Postgres.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Enqueue(ctx context.Context, ev outbox.Event) error {
	s.log.InfoContext(ctx, "notification", "type", ev.Type, "aggregate_id", ev.AggregateID, "payload", string(ev.Payload))
	return nil
}
