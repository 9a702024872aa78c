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
	inventory "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/metrics"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/txn"
)

type Service struct {
	log          *slog.Logger
	tx           txn.Runner
	repo         OrderRepository
	reservations Reservations
	stock        StockRestorer
	skus         SkuCatalog
	carts        CartCleaner
	events       Events
	metrics      *metrics.Orders
	now          func() time.Time
	tracer       trace.Tracer
}

type Deps struct {
	Tx           txn.Runner
	Repo         OrderRepository
	Reservations Reservations
	Stock        StockRestorer
	Skus         SkuCatalog
	Carts        CartCleaner
	Events       Events
}

func NewService(log *slog.Logger, d Deps) *Service {
	return &Service{
		log:          log,
		tx:           d.Tx,
		repo:         d.Repo,
		reservations: d.Reservations,
		stock:        d.Stock,
		skus:         d.Skus,
		carts:        d.Carts,
		events:       d.Events,
		metrics:      metrics.NewOrders(),
		now:          time.Now,
		tracer:       otel.Tracer("order"),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type PlaceOrderRequest struct {
	CartID        string
	Customer      domain.Customer
	PaymentMethod domain.PaymentMethod
}

// PlaceOrder turns the cart's ACTIVE reservations into an order. Consuming
// the reservations and writing the order commit together.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Place", trace.WithAttributes(attribute.String("cart_id", req.CartID)))
	defer span.End()

	if req.CartID == "" {
		return domain.Order{}, fmt.Errorf("%w: cart id is required", domain.ErrInvalidRequest)
	}
	if err := req.Customer.Validate(); err != nil {
		return domain.Order{}, err
	}
	if _, err := domain.ParsePaymentMethod(string(req.PaymentMethod)); err != nil {
		return domain.Order{}, err
	}

	rs, err := s.reservations.ActiveForCart(ctx, req.CartID)
	if err != nil {
		return domain.Order{}, err
	}
	if len(rs) == 0 {
		return domain.Order{}, inventory.ErrNoActiveReservation
	}

	now := s.now()
	lines := make([]domain.Line, 0, len(rs))
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.Expired(now) {
			return domain.Order{}, inventory.ErrReservationExpired
		}
		sku, err := s.skus.GetSku(ctx, r.SkuID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("sku %s: %w", r.SkuID, err)
		}
		lines = append(lines, domain.Line{
			ReservationID: r.ID,
			SkuID:         r.SkuID,
			Quantity:      r.Quantity,
			UnitPrice:     sku.Price,
		})
		ids = append(ids, r.ID)
	}

	o := domain.NewOrder(req.CartID, req.Customer, req.PaymentMethod, lines, now)
	created := domain.HistoryEntry{
		OrderID:   o.ID,
		NewStatus: o.Status,
		Note:      "Order created",
		At:        now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.reservations.Consume(ctx, ids); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, o, created); err != nil {
			return err
		}
		return s.events.OrderCreated(ctx, o)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}

	if err := s.carts.ClearCart(ctx, req.CartID); err != nil {
		s.log.WarnContext(ctx, "clear cart after order", "cart_id", req.CartID, "order_id", o.ID, "err", err)
	}

	s.metrics.Placed(ctx, string(o.PaymentMethod))
	s.log.InfoContext(ctx, "order placed",
		"order_id", o.ID, "tracking_id", o.TrackingID, "status", o.Status, "total", o.TotalAmount.String())
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByTrackingID(ctx context.Context, trackingID string) (domain.Order, error) {
	return s.repo.GetByTrackingID(ctx, trackingID)
}

func (s *Service) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// CancelOrder cancels the order and returns every line's quantity to stock.
// Only the caller that wins the status change restores stock.
func (s *Service) CancelOrder(ctx context.Context, id, reason string) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel", trace.WithAttributes(attribute.String("order_id", id)))
	defer span.End()

	note := "Order cancelled"
	if reason != "" {
		note += ": " + reason
	}

	var (
		o   domain.Order
		old domain.Status
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.repo.Get(ctx, id); err != nil {
			return err
		}
		now := s.now()
		if old, err = o.Transition(domain.StatusCancelled, now); err != nil {
			return err
		}
		h := domain.HistoryEntry{OrderID: id, OldStatus: old, NewStatus: domain.StatusCancelled, Note: note, At: now}
		if err := s.repo.UpdateStatus(ctx, id, old, h); err != nil {
			return err
		}
		for _, l := range o.Lines {
			if err := s.stock.Restore(ctx, l.SkuID, l.Quantity); err != nil {
				if errors.Is(err, catalog.ErrSkuNotFound) {
					s.log.WarnContext(ctx, "skip restore for removed sku", "order_id", id, "sku_id", l.SkuID)
					continue
				}
				return fmt.Errorf("restore stock for %s: %w", l.SkuID, err)
			}
		}
		return s.events.StatusChanged(ctx, o, old, o.Status)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}

	s.afterTransition(ctx, o, old)
	return o, nil
}

// UpdateStatus applies an administrative status change. Cancellation goes
// through CancelOrder so stock is restored.
func (s *Service) UpdateStatus(ctx context.Context, id string, next domain.Status, note string) (domain.Order, error) {
	if !next.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, next)
	}
	if next == domain.StatusCancelled {
		return s.CancelOrder(ctx, id, note)
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return s.transitionOrder(ctx, o, next, note)
}

func (s *Service) transitionOrder(ctx context.Context, o domain.Order, next domain.Status, note string) (domain.Order, error) {
	now := s.now()
	old, err := o.Transition(next, now)
	if err != nil {
		return domain.Order{}, err
	}
	if note == "" {
		note = fmt.Sprintf("Status changed from %s to %s", old, next)
	}
	h := domain.HistoryEntry{OrderID: o.ID, OldStatus: old, NewStatus: next, Note: note, At: now}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, o.ID, old, h); err != nil {
			return err
		}
		return s.events.StatusChanged(ctx, o, old, next)
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.afterTransition(ctx, o, old)
	return o, nil
}

func (s *Service) afterTransition(ctx context.Context, o domain.Order, old domain.Status) {
	s.metrics.Transitioned(ctx, string(old), string(o.Status))
	s.log.InfoContext(ctx, "order status changed", "order_id", o.ID, "from", old, "to", o.Status)
}
