package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is one line of a cart, unique by product id within its cart. For a
// weight item Qty is a physical weight, not a count.
type Item struct {
	ID       int64           `json:"id" db:"item_id"`
	CartID   uuid.UUID       `json:"-" db:"cart_id"`
	Name     string          `json:"name" db:"name"`
	Qty      decimal.Decimal `json:"qty" db:"qty"`
	Price    decimal.Decimal `json:"price" db:"price"`
	IsWeight bool            `json:"isWeight" db:"is_weight"`
}

// NewItem validates the value parts of an item up front, so an invalid qty
// or price never enters a cart.
func NewItem(id int64, cartID uuid.UUID, name string, qty, price decimal.Decimal, isWeight bool) (Item, error) {
	if !qty.IsPositive() {
		return Item{}, ErrInvalidItemQty
	}
	if price.IsNegative() {
		return Item{}, ErrInvalidItemPrice
	}

	return Item{
		ID:       id,
		CartID:   cartID,
		Name:     name,
		Qty:      qty,
		Price:    price,
		IsWeight: isWeight,
	}, nil
}

func (i Item) Cost() decimal.Decimal {
	return i.Price.Mul(i.Qty)
}
