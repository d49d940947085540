package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrCartNotFound is returned when no visible cart matches the id.
	// Deactivated carts are invisible to retrieval.
	ErrCartNotFound = errors.New("cart not found")

	// ErrActiveCartAlreadyExists is returned when creating a cart for a
	// user who already has an OPENED or LOCKED one.
	ErrActiveCartAlreadyExists = errors.New("user already has an active cart")

	// ErrOperationForbidden is returned by content mutators when the cart
	// is not OPENED. Distinct from InvalidTransitionError: this guards
	// item/coupon edits, not status changes.
	ErrOperationForbidden = errors.New("cart cannot be modified in its current status")

	ErrNotOwnedByUser = errors.New("cart is not owned by this user")

	// ErrCantBeLocked is the business side of Lock: the OPENED->LOCKED
	// transition itself is legal but the cart cost is below the checkout
	// minimum.
	ErrCantBeLocked = errors.New("cart cost is below the checkout minimum")

	ErrItemAlreadyExists        = errors.New("item already exists in cart")
	ErrItemDoesNotExist         = errors.New("item does not exist")
	ErrMaxItemsQtyLimitExceeded = errors.New("cart items quantity limit exceeded")

	ErrCouponAlreadyApplied = errors.New("cart already has a coupon")
	ErrCouponDoesNotExist   = errors.New("coupon does not exist")

	ErrInvalidItemQty     = errors.New("item qty must be positive")
	ErrInvalidItemPrice   = errors.New("item price must not be negative")
	ErrInvalidMinCartCost = errors.New("coupon min cart cost must not be negative")
	ErrInvalidDiscount    = errors.New("coupon discount must be positive")
)

// InvalidTransitionError reports a status change outside the lifecycle
// table, carrying both ends for diagnostics.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cart cannot transit from %s to %s", e.From, e.To)
}

// SpecificItemQtyLimitError reports a per-item qty cap violation. Limit is
// the configured cap and Actual the qty that was attempted, so callers can
// render both.
type SpecificItemQtyLimitError struct {
	ItemID int64
	Limit  decimal.Decimal
	Actual decimal.Decimal
}

func (e *SpecificItemQtyLimitError) Error() string {
	return fmt.Sprintf("item %d qty %s exceeds the configured limit %s", e.ItemID, e.Actual, e.Limit)
}
