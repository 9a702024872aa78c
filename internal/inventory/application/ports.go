package application

import (
	"context"
	"time"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
)

// StockLedger owns the available quantity per SKU. Reserve must be a single
// atomic conditional decrement: it succeeds only when enough stock remains.
type StockLedger interface {
	Reserve(ctx context.Context, skuID string, qty int) (bool, error)
	Restore(ctx context.Context, skuID string, qty int) error
	Available(ctx context.Context, skuID string) (int, error)
}

type ReservationStore interface {
	Create(ctx context.Context, r domain.Reservation) error
	ListActiveByCart(ctx context.Context, cartID string) ([]domain.Reservation, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
	// Transition moves one reservation from -> to and reports whether this
	// call performed the change.
	Transition(ctx context.Context, id string, from, to domain.ReservationStatus) (bool, error)
	// ConsumeAll marks every id CONSUMED if all of them are ACTIVE and
	// unexpired at now. Otherwise nothing changes and it returns
	// domain.ErrReservationNotActive.
	ConsumeAll(ctx context.Context, ids []string, now time.Time) error
}
