package notification

import (
	"context"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/tracing"
)

const source = "reservation-service"

type Enqueuer interface {
	Enqueue(ctx context.Context, ev outbox.Event) error
}

// Outbox writes order events through an Enqueuer that joins the caller's
// transaction, so an event is stored if and only if its order change commits.
type Outbox struct {
	out Enqueuer
}

func NewOutbox(out Enqueuer) *Outbox {
	return &Outbox{out: out}
}

func (o *Outbox) OrderCreated(ctx context.Context, ord domain.Order) error {
	ev, err := orderEvent(ord.ID, domain.EventOrderCreated, domain.NewOrderCreated(ord), tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	return o.out.Enqueue(ctx, ev)
}

func (o *Outbox) StatusChanged(ctx context.Context, ord domain.Order, old, next domain.Status) error {
	ev, err := orderEvent(ord.ID, domain.EventOrderStatusChanged, domain.NewOrderStatusChanged(ord, old, next), tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	return o.out.Enqueue(ctx, ev)
}

func orderEvent(orderID, eventType string, payload any, traceparent string) (outbox.Event, error) {
	ev, err := outbox.NewEvent("order", orderID, eventType, payload)
	if err != nil {
		return outbox.Event{}, err
	}
	ev.Headers["source"] = source
	ev.Traceparent = traceparent
	return ev, nil
}
