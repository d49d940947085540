package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Coupon is the single optional discount of a cart. It never mutates the
// cart; its derived values are computed against the current cart cost.
type Coupon struct {
	ID          string          `json:"couponId" db:"coupon_id"`
	CartID      uuid.UUID       `json:"-" db:"cart_id"`
	MinCartCost decimal.Decimal `json:"minCartCost" db:"min_cart_cost"`
	DiscountAbs decimal.Decimal `json:"discountAbs" db:"discount_abs"`
}

func NewCoupon(id string, cartID uuid.UUID, minCartCost, discountAbs decimal.Decimal) (Coupon, error) {
	if minCartCost.IsNegative() {
		return Coupon{}, ErrInvalidMinCartCost
	}
	if !discountAbs.IsPositive() {
		return Coupon{}, ErrInvalidDiscount
	}

	return Coupon{
		ID:          id,
		CartID:      cartID,
		MinCartCost: minCartCost,
		DiscountAbs: discountAbs,
	}, nil
}

// AppliedTo reports whether the discount is in effect for the given cart
// cost.
func (c Coupon) AppliedTo(cartCost decimal.Decimal) bool {
	return cartCost.GreaterThanOrEqual(c.MinCartCost)
}

// DiscountedCost is the cart cost after the absolute discount.
func (c Coupon) DiscountedCost(cartCost decimal.Decimal) decimal.Decimal {
	return cartCost.Sub(c.DiscountAbs)
}
