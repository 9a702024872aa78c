package application

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
)

// PaymentConfirmation is a bank transfer notice. Reference is either the
// bare tracking id or free text containing "ORDER-<tracking id>".
type PaymentConfirmation struct {
	Reference     string
	TransactionID string
	Amount        decimal.Decimal
}

var (
	bareTracking     = regexp.MustCompile(`^[0-9A-Fa-f]{32}$`)
	embeddedTracking = regexp.MustCompile(`(?i)ORDER[-_ ]?([0-9A-F]{32})`)
)

func ResolveTrackingID(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if bareTracking.MatchString(ref) {
		return strings.ToUpper(ref), true
	}
	if m := embeddedTracking.FindStringSubmatch(ref); m != nil {
		return strings.ToUpper(m[1]), true
	}
	return "", false
}

// ConfirmPayment moves a PENDING_PAYMENT order to CONFIRMED. Notices for
// orders in any other status are ignored, so redelivery is harmless. It
// reports whether the order changed.
func (s *Service) ConfirmPayment(ctx context.Context, p PaymentConfirmation) (domain.Order, bool, error) {
	ctx, span := s.tracer.Start(ctx, "order.ConfirmPayment", trace.WithAttributes(
		attribute.String("transaction_id", p.TransactionID),
	))
	defer span.End()

	tracking, ok := ResolveTrackingID(p.Reference)
	if !ok {
		return domain.Order{}, false, fmt.Errorf("%w: no order reference in %q", domain.ErrInvalidRequest, p.Reference)
	}

	o, err := s.repo.GetByTrackingID(ctx, tracking)
	if err != nil {
		return domain.Order{}, false, err
	}
	if o.Status != domain.StatusPendingPayment {
		s.log.InfoContext(ctx, "payment for order not awaiting payment ignored",
			"order_id", o.ID, "status", o.Status, "transaction_id", p.TransactionID)
		return o, false, nil
	}
	if p.Amount.LessThan(o.TotalAmount) {
		s.log.WarnContext(ctx, "underpayment",
			"order_id", o.ID, "paid", p.Amount.String(), "total", o.TotalAmount.String())
		return o, false, fmt.Errorf("%w: paid %s of %s", domain.ErrPaymentInsufficient, p.Amount.StringFixed(2), o.TotalAmount.StringFixed(2))
	}

	note := fmt.Sprintf("Payment confirmed: transaction %s, amount %s", p.TransactionID, p.Amount.StringFixed(2))
	o, err = s.transitionOrder(ctx, o, domain.StatusConfirmed, note)
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, true, nil
}
