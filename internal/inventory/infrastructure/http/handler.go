package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	catalog "github.com/dmehra2102/Inventory-Reservation-System/internal/catalog/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/httpx"
)

type Inventory interface {
	Available(ctx context.Context, skuID string) (int, error)
	ReleaseExpired(ctx context.Context) (int, error)
}

type Handler struct {
	log    *slog.Logger
	inv    Inventory
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, inv Inventory) *Handler {
	return &Handler{
		log:    log,
		inv:    inv,
		tracer: otel.Tracer("inventory-http"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/skus/{id}/stock", h.stock)
	r.Post("/admin/reservations/release-expired", h.releaseExpired)
}

type stockResp struct {
	SkuID     string `json:"sku_id"`
	Available int    `json:"available"`
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetStock")
	defer span.End()

	id := chi.URLParam(r, "id")
	n, err := h.inv.Available(ctx, id)
	if errors.Is(err, catalog.ErrSkuNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "sku_not_found", err.Error())
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "read stock", "sku_id", id, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "could not read stock")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stockResp{SkuID: id, Available: n})
}

type releaseResp struct {
	Released int `json:"released"`
}

func (h *Handler) releaseExpired(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReleaseExpired")
	defer span.End()

	n, err := h.inv.ReleaseExpired(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "manual release of expired reservations", "released", n, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "release failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, releaseResp{Released: n})
}
