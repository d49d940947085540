package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Config is the cart-wide restriction set. A single row, loaded fresh per
// transaction and updated only through the admin path; brief staleness
// between an update and in-flight transactions is acceptable.
type Config struct {
	MaxItemsQty                    int                       `json:"maxItemsQty"`
	MinCostForCheckout             decimal.Decimal           `json:"minCostForCheckout"`
	LimitItemsByID                 map[int64]decimal.Decimal `json:"limitItemsById"`
	HoursSinceUpdateUntilAbandoned int                       `json:"hoursSinceUpdateUntilAbandoned"`
	MaxAbandonedNotificationsQty   int                       `json:"maxAbandonedNotificationsQty"`
	AbandonedCartText              string                    `json:"abandonedCartText"`
}

func (c Config) Validate() error {
	if c.MaxItemsQty < 0 {
		return errors.New("max items qty must not be negative")
	}
	if c.MinCostForCheckout.IsNegative() {
		return errors.New("min cost for checkout must not be negative")
	}
	if c.HoursSinceUpdateUntilAbandoned < 0 {
		return errors.New("abandonment hours must not be negative")
	}
	if c.MaxAbandonedNotificationsQty < 0 {
		return errors.New("max abandoned notifications must not be negative")
	}
	for id, limit := range c.LimitItemsByID {
		if !limit.IsPositive() {
			return errors.New("per-item qty limits must be positive")
		}
		if id <= 0 {
			return errors.New("per-item qty limit keys must be product ids")
		}
	}
	return nil
}
