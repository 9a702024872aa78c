package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrNoActiveReservation  = errors.New("no active reservation found")
	ErrReservationExpired   = errors.New("reservation has expired")
	ErrReservationNotActive = errors.New("reservation is not active")
)

type InsufficientStockError struct {
	SkuID     string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku %s: requested %d", e.SkuID, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
