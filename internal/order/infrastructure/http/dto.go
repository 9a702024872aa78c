package http

import (
	"time"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/order/domain"
)

type customerReq struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	ShippingAddress string `json:"shipping_address"`
	Note            string `json:"note"`
}

type placeOrderReq struct {
	CartID        string      `json:"cart_id"`
	Customer      customerReq `json:"customer"`
	PaymentMethod string      `json:"payment_method"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

type updateStatusReq struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type paymentWebhookReq struct {
	Reference     string `json:"reference"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
}

type lineResp struct {
	SkuID     string `json:"sku_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type orderResp struct {
	ID            string      `json:"id"`
	TrackingID    string      `json:"tracking_id"`
	CartID        string      `json:"cart_id"`
	Status        string      `json:"status"`
	PaymentMethod string      `json:"payment_method"`
	Customer      customerReq `json:"customer"`
	Lines         []lineResp  `json:"lines"`
	TotalAmount   string      `json:"total_amount"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type historyResp struct {
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status"`
	Note      string    `json:"note"`
	At        time.Time `json:"at"`
}

type paymentResp struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Applied bool   `json:"applied"`
}

func toOrderResp(o domain.Order) orderResp {
	out := orderResp{
		ID:            o.ID,
		TrackingID:    o.TrackingID,
		CartID:        o.CartID,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		Customer: customerReq{
			Name:            o.Customer.Name,
			Phone:           o.Customer.Phone,
			Email:           o.Customer.Email,
			ShippingAddress: o.Customer.ShippingAddress,
			Note:            o.Customer.Note,
		},
		Lines:       make([]lineResp, 0, len(o.Lines)),
		TotalAmount: o.TotalAmount.StringFixed(2),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	for _, l := range o.Lines {
		out.Lines = append(out.Lines, lineResp{
			SkuID:     l.SkuID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return out
}

func toHistoryResp(hs []domain.HistoryEntry) []historyResp {
	out := make([]historyResp, 0, len(hs))
	for _, h := range hs {
		out = append(out, historyResp{
			OldStatus: string(h.OldStatus),
			NewStatus: string(h.NewStatus),
			Note:      h.Note,
			At:        h.At,
		})
	}
	return out
}
