package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
)

// Catalog serves SKUs and carts from memory. It stands in for both the SKU
// table and the external cart service.
type Catalog struct {
	mu      sync.RWMutex
	skus    map[string]domain.Sku
	carts   map[string]domain.Cart
	cleared []string
}

func NewCatalog() *Catalog {
	return &Catalog{
		skus:  make(map[string]domain.Sku),
		carts: make(map[string]domain.Cart),
	}
}

func (c *Catalog) PutSku(s domain.Sku) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skus[s.ID] = s
}

func (c *Catalog) PutCart(cart domain.Cart) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[cart.Token] = cart
}

func (c *Catalog) GetSku(_ context.Context, id string) (domain.Sku, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.skus[id]
	if !ok {
		return domain.Sku{}, domain.ErrSkuNotFound
	}
	return s, nil
}

func (c *Catalog) GetCart(_ context.Context, token string) (domain.Cart, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cart, ok := c.carts[token]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart, nil
}

func (c *Catalog) ClearCart(_ context.Context, cartID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, cart := range c.carts {
		if cart.ID == cartID {
			cart.Items = nil
			c.carts[token] = cart
			c.cleared = append(c.cleared, cartID)
			return nil
		}
	}
	return domain.ErrCartNotFound
}

// Cleared lists cart ids emptied by ClearCart, in call order.
func (c *Catalog) Cleared() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.cleared...)
}
