package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	inventory "github.com/dmehra2102/Inventory-Reservation-System/internal/inventory/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/httpx"
)

const SignatureHeader = "X-Signature"

type Orders interface {
	PlaceOrder(ctx context.Context, req application.PlaceOrderRequest) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	GetByTrackingID(ctx context.Context, trackingID string) (domain.Order, error)
	History(ctx context.Context, id string) ([]domain.HistoryEntry, error)
	CancelOrder(ctx context.Context, id, reason string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, next domain.Status, note string) (domain.Order, error)
	ConfirmPayment(ctx context.Context, p application.PaymentConfirmation) (domain.Order, bool, error)
}

type Handler struct {
	log           *slog.Logger
	service       Orders
	webhookSecret []byte
	tracer        trace.Tracer
}

// NewHandler builds the order API. A non-empty webhookSecret makes the
// payment webhook require an HMAC-SHA256 signature of the raw body.
func NewHandler(log *slog.Logger, service Orders, webhookSecret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: []byte(webhookSecret),
		tracer:        otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/track/{trackingID}", h.track)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/history", h.history)
	r.Post("/orders/{id}/cancel", h.cancel)
	r.Put("/orders/{id}/status", h.updateStatus)
	r.Post("/webhook/payment", h.paymentWebhook)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	var req placeOrderReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	o, err := h.service.PlaceOrder(ctx, application.PlaceOrderRequest{
		CartID: req.CartID,
		Customer: domain.Customer{
			Name:            req.Customer.Name,
			Phone:           req.Customer.Phone,
			Email:           req.Customer.Email,
			ShippingAddress: req.Customer.ShippingAddress,
			Note:            req.Customer.Note,
		},
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toOrderResp(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "TrackOrder")
	defer span.End()

	o, err := h.service.GetByTrackingID(ctx, chi.URLParam(r, "trackingID"))
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "OrderHistory")
	defer span.End()

	hs, err := h.service.History(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toHistoryResp(hs))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	var req cancelReq
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}

	o, err := h.service.CancelOrder(ctx, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	var req updateStatusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}

	o, err := h.service.UpdateStatus(ctx, chi.URLParam(r, "id"), next, req.Note)
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentWebhook")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "could not read body")
		return
	}
	if len(h.webhookSecret) > 0 && !h.validSignature(body, r.Header.Get(SignatureHeader)) {
		h.log.WarnContext(ctx, "payment webhook with bad signature", "remote", r.RemoteAddr)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_signature", "signature mismatch")
		return
	}

	var req paymentWebhookReq
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "amount must be a decimal string")
		return
	}

	o, applied, err := h.service.ConfirmPayment(ctx, application.PaymentConfirmation{
		Reference:     req.Reference,
		TransactionID: req.TransactionID,
		Amount:        amount,
	})
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, paymentResp{OrderID: o.ID, Status: string(o.Status), Applied: applied})
}

func (h *Handler) validSignature(body []byte, sig string) bool {
	got, err := hex.DecodeString(sig)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, h.webhookSecret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (h *Handler) writeErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		httpx.WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, catalog.ErrSkuNotFound):
		httpx.WriteError(w, http.StatusNotFound, "sku_not_found", err.Error())
	case errors.Is(err, inventory.ErrNoActiveReservation):
		httpx.WriteError(w, http.StatusConflict, "no_active_reservation", err.Error())
	case errors.Is(err, inventory.ErrReservationExpired):
		httpx.WriteError(w, http.StatusConflict, "reservation_expired", err.Error())
	case errors.Is(err, inventory.ErrReservationNotActive):
		httpx.WriteError(w, http.StatusConflict, "reservation_not_active", err.Error())
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		httpx.WriteError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, domain.ErrPaymentInsufficient):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "payment_insufficient", err.Error())
	default:
		h.log.ErrorContext(ctx, "order request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
