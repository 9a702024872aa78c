package memory

import (
	"context"
	"fmt"
	"sync"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
)

// Ledger keeps stock per SKU in process. Each operation holds the mutex for
// its whole check-and-update.
type Ledger struct {
	mu    sync.Mutex
	stock map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{stock: make(map[string]int)}
}

func (l *Ledger) SetStock(skuID string, qty int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[skuID] = qty
}

func (l *Ledger) Reserve(_ context.Context, skuID string, qty int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.stock[skuID]
	if !ok || cur < qty {
		return false, nil
	}
	l.stock[skuID] = cur - qty
	return true, nil
}

func (l *Ledger) Restore(_ context.Context, skuID string, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.stock[skuID]
	if !ok {
		return fmt.Errorf("restore %s: %w", skuID, catalog.ErrSkuNotFound)
	}
	l.stock[skuID] = cur + qty
	return nil
}

func (l *Ledger) Available(_ context.Context, skuID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.stock[skuID]
	if !ok {
		return 0, catalog.ErrSkuNotFound
	}
	return cur, nil
}
