package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/checkout/domain"
	inventory "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/httpx"
)

type Checkout interface {
	StartCheckout(ctx context.Context, sel domain.Selection) (domain.Session, error)
	GetSession(ctx context.Context, cartID string) (domain.Session, error)
}

type Handler struct {
	log    *slog.Logger
	svc    Checkout
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, svc Checkout) *Handler {
	return &Handler{
		log:    log,
		svc:    svc,
		tracer: otel.Tracer("checkout-http"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/checkout", h.start)
	r.Get("/checkout/{cartID}", h.get)
}

type startReq struct {
	CartToken string `json:"cart_token"`
	Items     []struct {
		CartItemID string `json:"cart_item_id"`
		Quantity   int    `json:"quantity"`
	} `json:"items"`
}

type lineResp struct {
	ReservationID string    `json:"reservation_id"`
	SkuID         string    `json:"sku_id"`
	Quantity      int       `json:"quantity"`
	UnitPrice     string    `json:"unit_price"`
	Subtotal      string    `json:"subtotal"`
	Status        string    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type sessionResp struct {
	CartID            string     `json:"cart_id"`
	Reservations      []lineResp `json:"reservations"`
	ExpiresAt         time.Time  `json:"expires_at"`
	ExpirationSeconds int        `json:"expiration_seconds"`
	TotalAmount       string     `json:"total_amount"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "StartCheckout")
	defer span.End()

	var req startReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sel := domain.Selection{CartToken: req.CartToken}
	for _, it := range req.Items {
		sel.Items = append(sel.Items, domain.SelectedItem{CartItemID: it.CartItemID, Quantity: it.Quantity})
	}

	s, err := h.svc.StartCheckout(ctx, sel)
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(s))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetCheckoutSession")
	defer span.End()

	s, err := h.svc.GetSession(ctx, chi.URLParam(r, "cartID"))
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(s))
}

type insufficientResp struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	SkuID     string `json:"sku_id"`
	Requested int    `json:"requested"`
}

func (h *Handler) writeErr(ctx context.Context, w http.ResponseWriter, err error) {
	var short *inventory.InsufficientStockError
	switch {
	case errors.As(err, &short):
		httpx.WriteJSON(w, http.StatusConflict, insufficientResp{
			Error:     "insufficient_stock",
			Message:   err.Error(),
			SkuID:     short.SkuID,
			Requested: short.Requested,
		})
	case errors.Is(err, domain.ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, catalog.ErrCartNotFound):
		httpx.WriteError(w, http.StatusNotFound, "cart_not_found", err.Error())
	case errors.Is(err, catalog.ErrSkuNotFound):
		httpx.WriteError(w, http.StatusNotFound, "sku_not_found", err.Error())
	case errors.Is(err, inventory.ErrNoActiveReservation):
		httpx.WriteError(w, http.StatusNotFound, "no_active_reservation", err.Error())
	case errors.Is(err, domain.ErrCheckoutInProgress):
		httpx.WriteError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	default:
		h.log.ErrorContext(ctx, "checkout failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "checkout failed")
	}
}

func toResp(s domain.Session) sessionResp {
	out := sessionResp{
		CartID:            s.CartID,
		Reservations:      make([]lineResp, 0, len(s.Lines)),
		ExpiresAt:         s.ExpiresAt,
		ExpirationSeconds: s.ExpirationSeconds,
		TotalAmount:       s.TotalAmount.StringFixed(2),
	}
	for _, l := range s.Lines {
		out.Reservations = append(out.Reservations, lineResp{
			ReservationID: l.ReservationID,
			SkuID:         l.SkuID,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice.StringFixed(2),
			Subtotal:      l.Subtotal().StringFixed(2),
			Status:        string(l.Status),
			ExpiresAt:     l.ExpiresAt,
		})
	}
	return out
}
