package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/metrics"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/txn"
)

type Manager struct {
	log       *slog.Logger
	ledger    StockLedger
	store     ReservationStore
	tx        txn.Runner
	now       func() time.Time
	batchSize int
	metrics   *metrics.Inventory
	tracer    trace.Tracer
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithBatchSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

func NewManager(log *slog.Logger, ledger StockLedger, store ReservationStore, tx txn.Runner, opts ...Option) *Manager {
	m := &Manager{
		log:       log,
		ledger:    ledger,
		store:     store,
		tx:        tx,
		now:       time.Now,
		batchSize: 500,
		metrics:   metrics.NewInventory(),
		tracer:    otel.Tracer("inventory"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Reserve decrements the ledger and records an ACTIVE reservation expiring
// after ttl. Stock is never left decremented without a matching record.
func (m *Manager) Reserve(ctx context.Context, cartID, skuID string, qty int, ttl time.Duration) (domain.Reservation, error) {
	if qty <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}

	ctx, span := m.tracer.Start(ctx, "inventory.Reserve", trace.WithAttributes(
		attribute.String("cart_id", cartID),
		attribute.String("sku_id", skuID),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	var res domain.Reservation
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := m.ledger.Reserve(ctx, skuID, qty)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		if !ok {
			return &domain.InsufficientStockError{SkuID: skuID, Requested: qty}
		}

		res = domain.NewReservation(cartID, skuID, qty, m.now(), ttl)
		if err := m.store.Create(ctx, res); err != nil {
			if rerr := m.ledger.Restore(ctx, skuID, qty); rerr != nil {
				m.log.WarnContext(ctx, "restore after failed reservation insert", "sku_id", skuID, "qty", qty, "err", rerr)
			}
			return fmt.Errorf("persist reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			m.metrics.Rejected(ctx, skuID)
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return domain.Reservation{}, err
	}

	m.metrics.Reserved(ctx, skuID, qty)
	m.log.DebugContext(ctx, "stock reserved", "reservation_id", res.ID, "cart_id", cartID, "sku_id", skuID, "qty", qty)
	return res, nil
}

// Release expires an ACTIVE reservation and returns its quantity to stock.
// Only the caller that wins the ACTIVE -> EXPIRED change restores, so
// concurrent or repeated releases restore at most once. It reports whether
// this call released the reservation.
func (m *Manager) Release(ctx context.Context, r domain.Reservation) (bool, error) {
	var released bool
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := m.store.Transition(ctx, r.ID, domain.StatusActive, domain.StatusExpired)
		if err != nil {
			return fmt.Errorf("expire reservation %s: %w", r.ID, err)
		}
		if !ok {
			return nil
		}
		if err := m.ledger.Restore(ctx, r.SkuID, r.Quantity); err != nil {
			return fmt.Errorf("restore stock for reservation %s: %w", r.ID, err)
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if released {
		m.metrics.Released(ctx, 1)
	}
	return released, nil
}

// Consume converts the given ACTIVE reservations into order lines, all or
// nothing. Runs inside the caller's transaction when there is one.
func (m *Manager) Consume(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return domain.ErrNoActiveReservation
	}
	if err := m.store.ConsumeAll(ctx, ids, m.now()); err != nil {
		return fmt.Errorf("consume reservations: %w", err)
	}
	m.metrics.Consumed(ctx, len(ids))
	return nil
}

func (m *Manager) ActiveForCart(ctx context.Context, cartID string) ([]domain.Reservation, error) {
	rs, err := m.store.ListActiveByCart(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("list reservations for cart %s: %w", cartID, err)
	}
	return rs, nil
}

// Validate checks that cartID holds at least one ACTIVE reservation and
// none of them has lapsed.
func (m *Manager) Validate(ctx context.Context, cartID string) error {
	rs, err := m.ActiveForCart(ctx, cartID)
	if err != nil {
		return err
	}
	if len(rs) == 0 {
		return domain.ErrNoActiveReservation
	}
	now := m.now()
	for _, r := range rs {
		if r.Expired(now) {
			return domain.ErrReservationExpired
		}
	}
	return nil
}

func (m *Manager) Available(ctx context.Context, skuID string) (int, error) {
	return m.ledger.Available(ctx, skuID)
}

// ReleaseExpired sweeps lapsed ACTIVE reservations in batches and returns
// how many were released. Individual failures are logged and left for the
// next sweep.
func (m *Manager) ReleaseExpired(ctx context.Context) (int, error) {
	ctx, span := m.tracer.Start(ctx, "inventory.ReleaseExpired")
	defer span.End()

	total := 0
	for {
		batch, err := m.store.ListExpired(ctx, m.now(), m.batchSize)
		if err != nil {
			span.RecordError(err)
			return total, fmt.Errorf("list expired reservations: %w", err)
		}

		released := 0
		for _, r := range batch {
			if ctx.Err() != nil {
				return total + released, ctx.Err()
			}
			ok, err := m.Release(ctx, r)
			if err != nil {
				m.log.ErrorContext(ctx, "release expired reservation", "reservation_id", r.ID, "sku_id", r.SkuID, "err", err)
				continue
			}
			if ok {
				released++
			}
		}
		total += released

		if len(batch) < m.batchSize || released == 0 {
			break
		}
	}

	span.SetAttributes(attribute.Int("released", total))
	return total, nil
}
