package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidRequest          = errors.New("invalid order request")
	ErrPaymentInsufficient     = errors.New("payment amount is less than order total")
)

type Customer struct {
	Name            string
	Phone           string
	Email           string
	ShippingAddress string
	Note            string
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(c.Phone) == "" && strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("%w: customer phone or email is required", ErrInvalidRequest)
	}
	return nil
}

// Line is an order line with the unit price captured when the order was
// placed.
type Line struct {
	ReservationID string
	SkuID         string
	Quantity      int
	UnitPrice     decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID            string
	TrackingID    string
	CartID        string
	Status        Status
	PaymentMethod PaymentMethod
	Customer      Customer
	Lines         []Line
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewOrder(cartID string, customer Customer, method PaymentMethod, lines []Line, now time.Time) Order {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return Order{
		ID:            uuid.NewString(),
		TrackingID:    NewTrackingID(),
		CartID:        cartID,
		Status:        method.InitialStatus(),
		PaymentMethod: method,
		Customer:      customer,
		Lines:         lines,
		TotalAmount:   total,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewTrackingID returns 32 upper-case hex characters.
func NewTrackingID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Transition moves the order to next if the status machine allows it and
// returns the previous status.
func (o *Order) Transition(next Status, now time.Time) (Status, error) {
	prev := o.Status
	if !prev.CanTransitionTo(next) {
		return prev, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, prev, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return prev, nil
}

type HistoryEntry struct {
	OrderID   string
	OldStatus Status
	NewStatus Status
	Note      string
	At        time.Time
}
