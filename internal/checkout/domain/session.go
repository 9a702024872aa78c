package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	inventory "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
)

var (
	ErrInvalidRequest     = errors.New("invalid checkout request")
	ErrCheckoutInProgress = errors.New("checkout already in progress for cart")
)

// Selection names which cart items, and how many of each, to check out.
type Selection struct {
	CartToken string
	Items     []SelectedItem
}

type SelectedItem struct {
	CartItemID string
	Quantity   int
}

type Line struct {
	ReservationID string
	SkuID         string
	Quantity      int
	UnitPrice     decimal.Decimal
	Status        inventory.ReservationStatus
	ExpiresAt     time.Time
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Session is the set of live reservations held for one cart.
type Session struct {
	CartID            string
	Lines             []Line
	ExpiresAt         time.Time
	ExpirationSeconds int
	TotalAmount       decimal.Decimal
}

func NewSession(cartID string, lines []Line, ttl time.Duration) Session {
	s := Session{
		CartID:            cartID,
		Lines:             lines,
		ExpirationSeconds: int(ttl / time.Second),
		TotalAmount:       decimal.Zero,
	}
	for _, l := range lines {
		s.TotalAmount = s.TotalAmount.Add(l.Subtotal())
		if l.ExpiresAt.After(s.ExpiresAt) {
			s.ExpiresAt = l.ExpiresAt
		}
	}
	return s
}
