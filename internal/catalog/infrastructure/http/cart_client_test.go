package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/logging"
)

func newCartServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var cleared []string
	r := chi.NewRouter()
	r.Get("/api/v1/carts/{token}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "token") {
		case "tok-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"cart-1","token":"tok-1","items":[{"id":"item-1","sku_id":"sku-1","quantity":2}]}`))
		case "broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	r.Delete("/api/v1/carts/id/{id}/items", func(w http.ResponseWriter, r *http.Request) {
		cleared = append(cleared, chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &cleared
}

func TestCartClient_GetCart(t *testing.T) {
	srv, _ := newCartServer(t)
	c := NewCartClient(logging.Nop(), srv.URL, time.Second)

	cart, err := c.GetCart(context.Background(), "tok-1")

	require.NoError(t, err)
	assert.Equal(t, "cart-1", cart.ID)
	require.Len(t, cart.Items, 1)
	item, ok := cart.Item("item-1")
	require.True(t, ok)
	assert.Equal(t, "sku-1", item.SkuID)
	assert.Equal(t, 2, item.Quantity)
}

func TestCartClient_GetCartNotFound(t *testing.T) {
	srv, _ := newCartServer(t)
	c := NewCartClient(logging.Nop(), srv.URL, time.Second)

	_, err := c.GetCart(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	_, err = c.GetCart(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCartNotFound)
}

func TestCartClient_ClearCart(t *testing.T) {
	srv, cleared := newCartServer(t)
	c := NewCartClient(logging.Nop(), srv.URL, time.Second)

	require.NoError(t, c.ClearCart(context.Background(), "cart-1"))
	assert.Equal(t, []string{"cart-1"}, *cleared)
}
