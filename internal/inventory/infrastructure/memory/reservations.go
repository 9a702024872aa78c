package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
)

type ReservationStore struct {
	mu   sync.Mutex
	byID map[string]domain.Reservation
}

func NewReservationStore() *ReservationStore {
	return &ReservationStore{byID: make(map[string]domain.Reservation)}
}

func (s *ReservationStore) Create(_ context.Context, r domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; ok {
		return fmt.Errorf("reservation %s already exists", r.ID)
	}
	s.byID[r.ID] = r
	return nil
}

func (s *ReservationStore) Get(_ context.Context, id string) (domain.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	return r, ok
}

func (s *ReservationStore) ListActiveByCart(_ context.Context, cartID string) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Reservation
	for _, r := range s.byID {
		if r.CartID == cartID && r.Status == domain.StatusActive {
			out = append(out, r)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *ReservationStore) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Reservation
	for _, r := range s.byID {
		if r.Status == domain.StatusActive && r.Expired(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ReservationStore) Transition(_ context.Context, id string, from, to domain.ReservationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	s.byID[id] = r
	return true, nil
}

func (s *ReservationStore) ConsumeAll(_ context.Context, ids []string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		r, ok := s.byID[id]
		if !ok || !r.Live(now) {
			return domain.ErrReservationNotActive
		}
	}
	for _, id := range ids {
		r := s.byID[id]
		r.Status = domain.StatusConsumed
		s.byID[id] = r
	}
	return nil
}

func sortByCreated(rs []domain.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
