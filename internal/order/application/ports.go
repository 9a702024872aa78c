package application

import (
	"context"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	inventory "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
)

type OrderRepository interface {
	// Create stores the order, its lines and the first history entry.
	Create(ctx context.Context, o domain.Order, h domain.HistoryEntry) error
	Get(ctx context.Context, id string) (domain.Order, error)
	GetByTrackingID(ctx context.Context, trackingID string) (domain.Order, error)
	// UpdateStatus moves the order from -> h.NewStatus only if it is still
	// in from, and appends h. A lost race returns ErrInvalidStatusTransition.
	UpdateStatus(ctx context.Context, id string, from domain.Status, h domain.HistoryEntry) error
	History(ctx context.Context, id string) ([]domain.HistoryEntry, error)
}

type Reservations interface {
	ActiveForCart(ctx context.Context, cartID string) ([]inventory.Reservation, error)
	Consume(ctx context.Context, ids []string) error
}

type StockRestorer interface {
	Restore(ctx context.Context, skuID string, qty int) error
}

type SkuCatalog interface {
	GetSku(ctx context.Context, id string) (catalog.Sku, error)
}

type CartCleaner interface {
	ClearCart(ctx context.Context, cartID string) error
}

// Events records order lifecycle changes. It is called inside the order's
// transaction, so an error rolls the change back.
type Events interface {
	OrderCreated(ctx context.Context, o domain.Order) error
	StatusChanged(ctx context.Context, o domain.Order, old, next domain.Status) error
}
