package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/tracing"
)

// Async hands order notifications to a sink on a background goroutine.
// Failures are logged and never reach the order flow. It backs the log sink
// when there is no outbox table to write to.
type Async struct {
	log     *slog.Logger
	out     Enqueuer
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(log *slog.Logger, out Enqueuer) *Async {
	return &Async{log: log, out: out, timeout: 5 * time.Second}
}

func (a *Async) OrderCreated(ctx context.Context, o domain.Order) error {
	a.publish(ctx, o.ID, domain.EventOrderCreated, domain.NewOrderCreated(o))
	return nil
}

func (a *Async) StatusChanged(ctx context.Context, o domain.Order, old, next domain.Status) error {
	a.publish(ctx, o.ID, domain.EventOrderStatusChanged, domain.NewOrderStatusChanged(o, old, next))
	return nil
}

// Wait blocks until in-flight notifications are handed off.
func (a *Async) Wait() {
	a.wg.Wait()
}

func (a *Async) publish(ctx context.Context, orderID, eventType string, payload any) {
	ctx = context.WithoutCancel(ctx)
	traceparent := tracing.Traceparent(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.log.ErrorContext(ctx, "notification panic", "order_id", orderID, "type", eventType, "panic", fmt.Sprint(r))
			}
		}()

		ev, err := orderEvent(orderID, eventType, payload, traceparent)
		if err != nil {
			a.log.ErrorContext(ctx, "encode notification", "order_id", orderID, "type", eventType, "err", err)
			return
		}

		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		if err := a.out.Enqueue(ctx, ev); err != nil {
			a.log.ErrorContext(ctx, "enqueue notification", "order_id", orderID, "type", eventType, "err", err)
			return
		}
		a.log.DebugContext(ctx, "notification queued", "order_id", orderID, "type", eventType)
	}()
}
