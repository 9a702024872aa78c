package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type Inventory struct {
	reserved metric.Int64Counter
	rejected metric.Int64Counter
	released metric.Int64Counter
	consumed metric.Int64Counter
}

func NewInventory() *Inventory {
	meter := otel.Meter("inventory")
	return &Inventory{
		reserved: counter(meter, "inventory.reservations.created", "Reservations placed against the stock ledger"),
		rejected: counter(meter, "inventory.reservations.rejected", "Reservations refused for insufficient stock"),
		released: counter(meter, "inventory.reservations.released", "Reservations expired and returned to stock"),
		consumed: counter(meter, "inventory.reservations.consumed", "Reservations converted into order lines"),
	}
}

func (m *Inventory) Reserved(ctx context.Context, skuID string, qty int) {
	m.reserved.Add(ctx, int64(qty), metric.WithAttributes(attribute.String("sku_id", skuID)))
}

func (m *Inventory) Rejected(ctx context.Context, skuID string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("sku_id", skuID)))
}

func (m *Inventory) Released(ctx context.Context, n int) {
	m.released.Add(ctx, int64(n))
}

func (m *Inventory) Consumed(ctx context.Context, n int) {
	m.consumed.Add(ctx, int64(n))
}

type Orders struct {
	placed      metric.Int64Counter
	transitions metric.Int64Counter
}

func NewOrders() *Orders {
	meter := otel.Meter("orders")
	return &Orders{
		placed:      counter(meter, "orders.placed", "Orders created from reservations"),
		transitions: counter(meter, "orders.status_transitions", "Order status changes"),
	}
}

func (m *Orders) Placed(ctx context.Context, method string) {
	m.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", method)))
}

func (m *Orders) Transitioned(ctx context.Context, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}
