package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/checkout/domain"
	inventory "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/idempotency"
)

type Config struct {
	TTL time.Duration
	// CompensatePartial releases the lines already reserved when a later
	// line of the same checkout fails.
	CompensatePartial bool
}

type Service struct {
	log          *slog.Logger
	carts        CartLookup
	skus         SkuCatalog
	reservations Reservations
	locker       idempotency.Locker
	cfg          Config
	now          func() time.Time
	tracer       trace.Tracer
}

func NewService(log *slog.Logger, carts CartLookup, skus SkuCatalog, reservations Reservations, locker idempotency.Locker, cfg Config) *Service {
	return &Service{
		log:          log,
		carts:        carts,
		skus:         skus,
		reservations: reservations,
		locker:       locker,
		cfg:          cfg,
		now:          time.Now,
		tracer:       otel.Tracer("checkout"),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type plannedLine struct {
	item catalog.CartItem
	qty  int
	sku  catalog.Sku
}

// StartCheckout reserves stock for the selected cart items. A cart that
// already holds live reservations gets its existing session back, so
// repeated calls do not reserve twice.
func (s *Service) StartCheckout(ctx context.Context, sel domain.Selection) (domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Start")
	defer span.End()

	if sel.CartToken == "" || len(sel.Items) == 0 {
		return domain.Session{}, fmt.Errorf("%w: cart token and at least one item are required", domain.ErrInvalidRequest)
	}

	cart, err := s.carts.GetCart(ctx, sel.CartToken)
	if err != nil {
		return domain.Session{}, err
	}
	span.SetAttributes(attribute.String("cart_id", cart.ID))

	plan, err := planLines(cart, sel)
	if err != nil {
		return domain.Session{}, err
	}

	unlock, err := s.locker.Lock(ctx, "checkout:"+cart.ID)
	if errors.Is(err, idempotency.ErrLockNotAcquired) {
		return domain.Session{}, domain.ErrCheckoutInProgress
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("lock cart %s: %w", cart.ID, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.log.WarnContext(ctx, "release checkout lock", "cart_id", cart.ID, "err", err)
		}
	}()

	existing, err := s.reservations.ActiveForCart(ctx, cart.ID)
	if err != nil {
		return domain.Session{}, err
	}
	if len(existing) > 0 {
		now := s.now()
		if anyLive(existing, now) {
			s.log.InfoContext(ctx, "returning existing checkout session", "cart_id", cart.ID, "reservations", len(existing))
			return s.sessionFrom(ctx, cart.ID, existing)
		}
		for _, r := range existing {
			if _, err := s.reservations.Release(ctx, r); err != nil {
				return domain.Session{}, fmt.Errorf("release stale reservation %s: %w", r.ID, err)
			}
		}
	}

	for i := range plan {
		sku, err := s.skus.GetSku(ctx, plan[i].item.SkuID)
		if err != nil {
			return domain.Session{}, fmt.Errorf("sku %s: %w", plan[i].item.SkuID, err)
		}
		plan[i].sku = sku
	}

	lines := make([]domain.Line, 0, len(plan))
	held := make([]inventory.Reservation, 0, len(plan))
	for _, p := range plan {
		r, err := s.reservations.Reserve(ctx, cart.ID, p.sku.ID, p.qty, s.cfg.TTL)
		if err != nil {
			if s.cfg.CompensatePartial {
				s.compensate(ctx, held)
			}
			return domain.Session{}, err
		}
		held = append(held, r)
		lines = append(lines, domain.Line{
			ReservationID: r.ID,
			SkuID:         r.SkuID,
			Quantity:      r.Quantity,
			UnitPrice:     p.sku.Price,
			Status:        r.Status,
			ExpiresAt:     r.ExpiresAt,
		})
	}

	session := domain.NewSession(cart.ID, lines, s.cfg.TTL)
	s.log.InfoContext(ctx, "checkout started", "cart_id", cart.ID, "lines", len(lines), "total", session.TotalAmount.String())
	return session, nil
}

// GetSession rebuilds the current session of a cart from its ACTIVE
// reservations.
func (s *Service) GetSession(ctx context.Context, cartID string) (domain.Session, error) {
	rs, err := s.reservations.ActiveForCart(ctx, cartID)
	if err != nil {
		return domain.Session{}, err
	}
	if len(rs) == 0 {
		return domain.Session{}, inventory.ErrNoActiveReservation
	}
	return s.sessionFrom(ctx, cartID, rs)
}

func (s *Service) sessionFrom(ctx context.Context, cartID string, rs []inventory.Reservation) (domain.Session, error) {
	lines := make([]domain.Line, 0, len(rs))
	for _, r := range rs {
		sku, err := s.skus.GetSku(ctx, r.SkuID)
		if err != nil {
			return domain.Session{}, fmt.Errorf("sku %s: %w", r.SkuID, err)
		}
		lines = append(lines, domain.Line{
			ReservationID: r.ID,
			SkuID:         r.SkuID,
			Quantity:      r.Quantity,
			UnitPrice:     sku.Price,
			Status:        r.Status,
			ExpiresAt:     r.ExpiresAt,
		})
	}
	return domain.NewSession(cartID, lines, s.cfg.TTL), nil
}

func (s *Service) compensate(ctx context.Context, held []inventory.Reservation) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range held {
		if _, err := s.reservations.Release(ctx, r); err != nil {
			s.log.ErrorContext(ctx, "compensating release failed, reaper will retry", "reservation_id", r.ID, "err", err)
		}
	}
}

func planLines(cart catalog.Cart, sel domain.Selection) ([]plannedLine, error) {
	seen := make(map[string]bool, len(sel.Items))
	plan := make([]plannedLine, 0, len(sel.Items))
	for _, it := range sel.Items {
		if seen[it.CartItemID] {
			return nil, fmt.Errorf("%w: cart item %s selected twice", domain.ErrInvalidRequest, it.CartItemID)
		}
		seen[it.CartItemID] = true

		item, ok := cart.Item(it.CartItemID)
		if !ok {
			return nil, fmt.Errorf("%w: cart item %s not in cart", domain.ErrInvalidRequest, it.CartItemID)
		}
		if it.Quantity <= 0 || it.Quantity > item.Quantity {
			return nil, fmt.Errorf("%w: quantity %d for cart item %s must be between 1 and %d",
				domain.ErrInvalidRequest, it.Quantity, it.CartItemID, item.Quantity)
		}
		plan = append(plan, plannedLine{item: item, qty: it.Quantity})
	}
	return plan, nil
}

func anyLive(rs []inventory.Reservation, now time.Time) bool {
	for _, r := range rs {
		if r.Live(now) {
			return true
		}
	}
	return false
}
