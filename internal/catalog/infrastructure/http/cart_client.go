package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
)

// CartClient talks to the external cart service.
type CartClient struct {
	log *slog.Logger
	rc  *resty.Client
}

func NewCartClient(log *slog.Logger, baseURL string, timeout time.Duration) *CartClient {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetHeader("Accept", "application/json")
	return &CartClient{log: log, rc: rc}
}

type cartItemDTO struct {
	ID       string `json:"id"`
	SkuID    string `json:"sku_id"`
	Quantity int    `json:"quantity"`
}

type cartDTO struct {
	ID    string        `json:"id"`
	Token string        `json:"token"`
	Items []cartItemDTO `json:"items"`
}

func (c *CartClient) GetCart(ctx context.Context, token string) (domain.Cart, error) {
	var body cartDTO
	resp, err := c.rc.R().
		SetContext(ctx).
		SetPathParam("token", token).
		SetResult(&body).
		Get("/api/v1/carts/{token}")
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if resp.IsError() {
		return domain.Cart{}, fmt.Errorf("get cart: unexpected status %d", resp.StatusCode())
	}

	cart := domain.Cart{ID: body.ID, Token: body.Token, Items: make([]domain.CartItem, 0, len(body.Items))}
	for _, it := range body.Items {
		cart.Items = append(cart.Items, domain.CartItem{ID: it.ID, SkuID: it.SkuID, Quantity: it.Quantity})
	}
	return cart, nil
}

func (c *CartClient) ClearCart(ctx context.Context, cartID string) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetPathParam("id", cartID).
		Delete("/api/v1/carts/id/{id}/items")
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return domain.ErrCartNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("clear cart: unexpected status %d", resp.StatusCode())
	}
	return nil
}
