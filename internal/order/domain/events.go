package domain

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type LineEvent struct {
	SkuID     string `json:"sku_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type OrderCreated struct {
	OrderID       string      `json:"order_id"`
	TrackingID    string      `json:"tracking_id"`
	Status        string      `json:"status"`
	PaymentMethod string      `json:"payment_method"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	CustomerPhone string      `json:"customer_phone,omitempty"`
	TotalAmount   string      `json:"total_amount"`
	Lines         []LineEvent `json:"lines"`
}

type OrderStatusChanged struct {
	OrderID       string `json:"order_id"`
	TrackingID    string `json:"tracking_id"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

func NewOrderCreated(o Order) OrderCreated {
	ev := OrderCreated{
		OrderID:       o.ID,
		TrackingID:    o.TrackingID,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		CustomerName:  o.Customer.Name,
		CustomerEmail: o.Customer.Email,
		CustomerPhone: o.Customer.Phone,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		Lines:         make([]LineEvent, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		ev.Lines = append(ev.Lines, LineEvent{SkuID: l.SkuID, Quantity: l.Quantity, UnitPrice: l.UnitPrice.StringFixed(2)})
	}
	return ev
}

func NewOrderStatusChanged(o Order, old, next Status) OrderStatusChanged {
	return OrderStatusChanged{
		OrderID:       o.ID,
		TrackingID:    o.TrackingID,
		OldStatus:     string(old),
		NewStatus:     string(next),
		CustomerEmail: o.Customer.Email,
		CustomerPhone: o.Customer.Phone,
	}
}
