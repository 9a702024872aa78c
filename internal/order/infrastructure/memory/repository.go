package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
)

type Repository struct {
	mu         sync.RWMutex
	orders     map[string]domain.Order
	byTracking map[string]string
	history    map[string][]domain.HistoryEntry
}

func NewRepository() *Repository {
	return &Repository{
		orders:     make(map[string]domain.Order),
		byTracking: make(map[string]string),
		history:    make(map[string][]domain.HistoryEntry),
	}
}

func (r *Repository) Create(_ context.Context, o domain.Order, h domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	if _, ok := r.byTracking[o.TrackingID]; ok {
		return fmt.Errorf("tracking id %s already exists", o.TrackingID)
	}
	o.Lines = append([]domain.Line(nil), o.Lines...)
	r.orders[o.ID] = o
	r.byTracking[o.TrackingID] = o.ID
	r.history[o.ID] = []domain.HistoryEntry{h}
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (r *Repository) GetByTrackingID(ctx context.Context, trackingID string) (domain.Order, error) {
	r.mu.RLock()
	id, ok := r.byTracking[trackingID]
	r.mu.RUnlock()
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.Get(ctx, id)
}

func (r *Repository) UpdateStatus(_ context.Context, id string, from domain.Status, h domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return fmt.Errorf("%w: order is %s, expected %s", domain.ErrInvalidStatusTransition, o.Status, from)
	}
	o.Status = h.NewStatus
	o.UpdatedAt = h.At
	r.orders[id] = o
	r.history[id] = append(r.history[id], h)
	return nil
}

// History returns entries newest first.
func (r *Repository) History(_ context.Context, id string) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.history[id]
	out := make([]domain.HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}
