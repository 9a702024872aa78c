package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_TransitionTable(t *testing.T) {
	all := []Status{StatusPendingPayment, StatusConfirmed, StatusShipping, StatusDelivered, StatusCancelled}
	allowed := map[Status]map[Status]bool{
		StatusPendingPayment: {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed:      {StatusShipping: true, StatusCancelled: true},
		StatusShipping:       {StatusDelivered: true},
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusShipping.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" shipping ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipping, s)

	_, err = ParseStatus("LOST")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPaymentMethod_InitialStatus(t *testing.T) {
	m, err := ParsePaymentMethod("cod")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, m.InitialStatus())
	assert.Equal(t, StatusPendingPayment, PaymentBankTransfer.InitialStatus())

	_, err = ParsePaymentMethod("crypto")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNewOrder(t *testing.T) {
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	o := NewOrder("cart-1", Customer{Name: "Ana", Email: "ana@example.com"}, PaymentBankTransfer, []Line{
		{SkuID: "a", Quantity: 2, UnitPrice: decimal.RequireFromString("10.50")},
		{SkuID: "b", Quantity: 1, UnitPrice: decimal.RequireFromString("0.99")},
	}, now)

	assert.True(t, decimal.RequireFromString("21.99").Equal(o.TotalAmount))
	assert.Equal(t, StatusPendingPayment, o.Status)
	assert.Regexp(t, `^[0-9A-F]{32}$`, o.TrackingID)
	assert.NotEqual(t, o.TrackingID, NewTrackingID())

	prev, err := o.Transition(StatusConfirmed, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, prev)
	assert.Equal(t, now.Add(time.Hour), o.UpdatedAt)

	_, err = o.Transition(StatusDelivered, now)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, StatusConfirmed, o.Status)
}

func TestCustomer_Validate(t *testing.T) {
	assert.NoError(t, Customer{Name: "Ana", Phone: "555"}.Validate())
	assert.ErrorIs(t, Customer{Phone: "555"}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, Customer{Name: "Ana"}.Validate(), ErrInvalidRequest)
}
