package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gocart/gocart/core/cart"
	"github.com/shopspring/decimal"
)

// Coupons looks coupon data up in the coupons service.
type Coupons struct {
	url string
	hc  *http.Client
}

func NewCoupons(cfg Config) *Coupons {
	return &Coupons{url: cfg.URL, hc: httpClient(cfg)}
}

func (c *Coupons) Coupon(ctx context.Context, name string) (cart.CouponInfo, error) {
	var body struct {
		MinCartCost decimal.Decimal `json:"min_cart_cost"`
		DiscountAbs decimal.Decimal `json:"discount_abs"`
	}

	url := fmt.Sprintf("%s/coupons/%s", c.url, name)
	if err := getJSON(ctx, c.hc, "coupons", url, &body); err != nil {
		if errors.Is(err, errNotFound) {
			return cart.CouponInfo{}, cart.ErrCouponDoesNotExist
		}
		return cart.CouponInfo{}, err
	}

	return cart.CouponInfo{
		MinCartCost: body.MinCartCost,
		DiscountAbs: body.DiscountAbs,
	}, nil
}
