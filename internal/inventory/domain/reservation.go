package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	StatusActive   ReservationStatus = "ACTIVE"
	StatusConsumed ReservationStatus = "CONSUMED"
	StatusExpired  ReservationStatus = "EXPIRED"
)

func (s ReservationStatus) IsTerminal() bool {
	return s == StatusConsumed || s == StatusExpired
}

// CanTransitionTo reports whether s may move to next. Only ACTIVE moves,
// and only into a terminal state.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	return s == StatusActive && next.IsTerminal()
}

// Reservation is a time-bounded hold of Quantity units of one SKU for a cart.
type Reservation struct {
	ID        string
	CartID    string
	SkuID     string
	Quantity  int
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

func NewReservation(cartID, skuID string, qty int, now time.Time, ttl time.Duration) Reservation {
	return Reservation{
		ID:        uuid.NewString(),
		CartID:    cartID,
		SkuID:     skuID,
		Quantity:  qty,
		Status:    StatusActive,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Expired reports whether the hold has lapsed at now, regardless of status.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Live reports whether the hold still counts against stock at now.
func (r Reservation) Live(now time.Time) bool {
	return r.Status == StatusActive && !r.Expired(now)
}
