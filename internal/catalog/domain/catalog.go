package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrSkuNotFound  = errors.New("sku not found")
	ErrCartNotFound = errors.New("cart not found")
)

type Sku struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	StockQty int
}

type Cart struct {
	ID    string
	Token string
	Items []CartItem
}

type CartItem struct {
	ID       string
	SkuID    string
	Quantity int
}

func (c Cart) Item(id string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return CartItem{}, false
}
