package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	catalogmem "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/infrastructure/memory"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/checkout/domain"
	invapp "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/application"
	inventory "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
	invmem "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/infrastructure/memory"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/idempotency"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/logging"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/txn"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	svc     *Service
	ledger  *invmem.Ledger
	store   *invmem.ReservationStore
	catalog *catalogmem.Catalog
	clock   *clock
}

const ttl = 15 * time.Minute

func newEnv(t *testing.T, compensate bool) env {
	t.Helper()
	c := &clock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	ledger := invmem.NewLedger()
	store := invmem.NewReservationStore()
	cat := catalogmem.NewCatalog()

	mgr := invapp.NewManager(logging.Nop(), ledger, store, txn.Nop{}, invapp.WithClock(c.Now))
	svc := NewService(logging.Nop(), cat, cat, mgr, idempotency.NewLocalLocker(time.Second),
		Config{TTL: ttl, CompensatePartial: compensate}).WithClock(c.Now)

	cat.PutSku(catalog.Sku{ID: "sku-a", Price: decimal.RequireFromString("19.99")})
	cat.PutSku(catalog.Sku{ID: "sku-b", Price: decimal.RequireFromString("5.00")})
	ledger.SetStock("sku-a", 10)
	ledger.SetStock("sku-b", 1)
	cat.PutCart(catalog.Cart{ID: "cart-1", Token: "tok-1", Items: []catalog.CartItem{
		{ID: "item-a", SkuID: "sku-a", Quantity: 3},
		{ID: "item-b", SkuID: "sku-b", Quantity: 2},
	}})

	return env{svc: svc, ledger: ledger, store: store, catalog: cat, clock: c}
}

func (e env) stock(t *testing.T, sku string) int {
	t.Helper()
	n, err := e.ledger.Available(context.Background(), sku)
	require.NoError(t, err)
	return n
}

func selection(items ...domain.SelectedItem) domain.Selection {
	return domain.Selection{CartToken: "tok-1", Items: items}
}

func TestStartCheckout_ReservesSelectedItems(t *testing.T) {
	e := newEnv(t, true)

	s, err := e.svc.StartCheckout(context.Background(), selection(
		domain.SelectedItem{CartItemID: "item-a", Quantity: 2},
		domain.SelectedItem{CartItemID: "item-b", Quantity: 1},
	))

	require.NoError(t, err)
	assert.Equal(t, "cart-1", s.CartID)
	require.Len(t, s.Lines, 2)
	assert.True(t, decimal.RequireFromString("44.98").Equal(s.TotalAmount), s.TotalAmount.String())
	assert.Equal(t, e.clock.Now().Add(ttl), s.ExpiresAt)
	assert.Equal(t, 900, s.ExpirationSeconds)
	for _, l := range s.Lines {
		assert.Equal(t, inventory.StatusActive, l.Status)
	}
	assert.Equal(t, 8, e.stock(t, "sku-a"))
	assert.Equal(t, 0, e.stock(t, "sku-b"))
}

func TestStartCheckout_IsIdempotentWhileReservationsLive(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	sel := selection(domain.SelectedItem{CartItemID: "item-a", Quantity: 2})

	first, err := e.svc.StartCheckout(ctx, sel)
	require.NoError(t, err)

	e.clock.Advance(5 * time.Minute)
	second, err := e.svc.StartCheckout(ctx, sel)
	require.NoError(t, err)

	require.Len(t, second.Lines, 1)
	assert.Equal(t, first.Lines[0].ReservationID, second.Lines[0].ReservationID)
	assert.Equal(t, 8, e.stock(t, "sku-a"))
}

func TestStartCheckout_ReplacesFullyExpiredSession(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	sel := selection(domain.SelectedItem{CartItemID: "item-a", Quantity: 2})

	first, err := e.svc.StartCheckout(ctx, sel)
	require.NoError(t, err)

	e.clock.Advance(ttl + time.Second)
	second, err := e.svc.StartCheckout(ctx, sel)
	require.NoError(t, err)

	assert.NotEqual(t, first.Lines[0].ReservationID, second.Lines[0].ReservationID)
	assert.Equal(t, 8, e.stock(t, "sku-a"))

	old, ok := e.store.Get(ctx, first.Lines[0].ReservationID)
	require.True(t, ok)
	assert.Equal(t, inventory.StatusExpired, old.Status)
}

func TestStartCheckout_RejectsInvalidSelection(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()

	cases := map[string]domain.Selection{
		"empty":          selection(),
		"unknown item":   selection(domain.SelectedItem{CartItemID: "item-z", Quantity: 1}),
		"over cart qty":  selection(domain.SelectedItem{CartItemID: "item-a", Quantity: 4}),
		"zero quantity":  selection(domain.SelectedItem{CartItemID: "item-a", Quantity: 0}),
		"duplicate item": selection(domain.SelectedItem{CartItemID: "item-a", Quantity: 1}, domain.SelectedItem{CartItemID: "item-a", Quantity: 1}),
	}
	for name, sel := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.StartCheckout(ctx, sel)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
	assert.Equal(t, 10, e.stock(t, "sku-a"))
}

func TestStartCheckout_UnknownCart(t *testing.T) {
	e := newEnv(t, true)

	_, err := e.svc.StartCheckout(context.Background(), domain.Selection{
		CartToken: "missing",
		Items:     []domain.SelectedItem{{CartItemID: "item-a", Quantity: 1}},
	})

	assert.ErrorIs(t, err, catalog.ErrCartNotFound)
}

func TestStartCheckout_UnknownSkuReservesNothing(t *testing.T) {
	e := newEnv(t, true)
	e.catalog.PutCart(catalog.Cart{ID: "cart-2", Token: "tok-2", Items: []catalog.CartItem{
		{ID: "item-a", SkuID: "sku-a", Quantity: 1},
		{ID: "item-x", SkuID: "sku-gone", Quantity: 1},
	}})

	_, err := e.svc.StartCheckout(context.Background(), domain.Selection{
		CartToken: "tok-2",
		Items: []domain.SelectedItem{
			{CartItemID: "item-a", Quantity: 1},
			{CartItemID: "item-x", Quantity: 1},
		},
	})

	assert.ErrorIs(t, err, catalog.ErrSkuNotFound)
	assert.Equal(t, 10, e.stock(t, "sku-a"))
}

func TestStartCheckout_PartialFailureCompensates(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()

	_, err := e.svc.StartCheckout(ctx, selection(
		domain.SelectedItem{CartItemID: "item-a", Quantity: 3},
		domain.SelectedItem{CartItemID: "item-b", Quantity: 2},
	))

	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	var typed *inventory.InsufficientStockError
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, "sku-b", typed.SkuID)

	assert.Equal(t, 10, e.stock(t, "sku-a"))
	assert.Equal(t, 1, e.stock(t, "sku-b"))
	active, err := e.store.ListActiveByCart(ctx, "cart-1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestStartCheckout_PartialFailureKeepsEarlierLinesWhenNotCompensating(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	_, err := e.svc.StartCheckout(ctx, selection(
		domain.SelectedItem{CartItemID: "item-a", Quantity: 3},
		domain.SelectedItem{CartItemID: "item-b", Quantity: 2},
	))

	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 7, e.stock(t, "sku-a"))
	active, err := e.store.ListActiveByCart(ctx, "cart-1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestStartCheckout_ConcurrentCallsReserveOnce(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	sel := selection(domain.SelectedItem{CartItemID: "item-a", Quantity: 2})

	ids := make(chan string, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := e.svc.StartCheckout(ctx, sel)
			if assert.NoError(t, err) {
				ids <- s.Lines[0].ReservationID
			}
		}()
	}
	wg.Wait()
	close(ids)

	distinct := map[string]bool{}
	for id := range ids {
		distinct[id] = true
	}
	assert.Len(t, distinct, 1)
	assert.Equal(t, 8, e.stock(t, "sku-a"))
}

func TestStartCheckout_TwoCartsRaceForLastUnit(t *testing.T) {
	e := newEnv(t, true)
	e.catalog.PutCart(catalog.Cart{ID: "cart-2", Token: "tok-2", Items: []catalog.CartItem{
		{ID: "item-b2", SkuID: "sku-b", Quantity: 1},
	}})
	selections := []domain.Selection{
		selection(domain.SelectedItem{CartItemID: "item-b", Quantity: 1}),
		{CartToken: "tok-2", Items: []domain.SelectedItem{{CartItemID: "item-b2", Quantity: 1}}},
	}

	errs := make(chan error, len(selections))
	var wg sync.WaitGroup
	for _, sel := range selections {
		wg.Add(1)
		go func(sel domain.Selection) {
			defer wg.Done()
			_, err := e.svc.StartCheckout(context.Background(), sel)
			errs <- err
		}(sel)
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, inventory.ErrInsufficientStock):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, e.stock(t, "sku-b"))
}

func TestGetSession(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()

	_, err := e.svc.GetSession(ctx, "cart-1")
	assert.ErrorIs(t, err, inventory.ErrNoActiveReservation)

	_, err = e.svc.StartCheckout(ctx, selection(domain.SelectedItem{CartItemID: "item-a", Quantity: 1}))
	require.NoError(t, err)

	s, err := e.svc.GetSession(ctx, "cart-1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("19.99").Equal(s.TotalAmount))
}
