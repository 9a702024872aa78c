package application

import (
	"context"
	"time"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	inventory "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
)

type CartLookup interface {
	GetCart(ctx context.Context, token string) (catalog.Cart, error)
}

type SkuCatalog interface {
	GetSku(ctx context.Context, id string) (catalog.Sku, error)
}

type Reservations interface {
	Reserve(ctx context.Context, cartID, skuID string, qty int, ttl time.Duration) (inventory.Reservation, error)
	ActiveForCart(ctx context.Context, cartID string) ([]inventory.Reservation, error)
	Release(ctx context.Context, r inventory.Reservation) (bool, error)
}
