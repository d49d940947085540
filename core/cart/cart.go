package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// weightItemQty is the fixed contribution of a weight item to the items
// quantity total: one unit, regardless of the weight stored in Qty.
var weightItemQty = decimal.NewFromInt(1)

// Cart is the aggregate root: the cart row plus its items and optional
// coupon, validated against the Config that was current when it was
// loaded. All mutators leave the cart untouched when they fail.
type Cart struct {
	ID        uuid.UUID `json:"id" db:"cart_id"`
	UserID    int       `json:"userId" db:"user_id"`
	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	Items     []Item    `json:"items" db:"-"`
	Coupon    *Coupon   `json:"coupon" db:"-"`
	Config    Config    `json:"-" db:"-"`
}

// New creates an OPENED cart owned by userID.
func New(userID int, cfg Config) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    Opened,
		CreatedAt: now,
		UpdatedAt: now,
		Config:    cfg,
	}
}

// ItemsQty is the aggregate quantity: weight items count as exactly one
// unit, everything else by its qty.
func (c *Cart) ItemsQty() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		if it.IsWeight {
			total = total.Add(weightItemQty)
		} else {
			total = total.Add(it.Qty)
		}
	}
	return total
}

func (c *Cart) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Cost())
	}
	return total
}

// CheckoutEnabled reports whether the cart cost meets the configured
// minimum to proceed to LOCKED.
func (c *Cart) CheckoutEnabled() bool {
	return c.Cost().GreaterThanOrEqual(c.Config.MinCostForCheckout)
}

func (c *Cart) Item(itemID int64) (Item, error) {
	for _, it := range c.Items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return Item{}, ErrItemDoesNotExist
}

// CheckUserOwnership fails unless userID owns the cart. Admin bypass is an
// orchestration concern, not a domain one.
func (c *Cart) CheckUserOwnership(userID int) error {
	if c.UserID != userID {
		return ErrNotOwnedByUser
	}
	return nil
}

// AddNewItem inserts a not-yet-present item, enforcing the per-item cap
// and the aggregate quantity cap before touching the item set.
func (c *Cart) AddNewItem(item Item) error {
	if err := c.checkCanBeModified(); err != nil {
		return err
	}
	if _, err := c.Item(item.ID); err == nil {
		return ErrItemAlreadyExists
	}
	if err := c.checkItemQtyLimit(item.ID, item.Qty); err != nil {
		return err
	}
	if err := c.checkItemsQtyLimit(c.ItemsQty().Add(unitQty(item))); err != nil {
		return err
	}

	c.Items = append(c.Items, item)
	return nil
}

// IncreaseItemQty adds qty to an existing item, re-checking both caps
// against the increased value.
func (c *Cart) IncreaseItemQty(itemID int64, qty decimal.Decimal) error {
	if err := c.checkCanBeModified(); err != nil {
		return err
	}
	if !qty.IsPositive() {
		return ErrInvalidItemQty
	}

	it, err := c.Item(itemID)
	if err != nil {
		return err
	}
	return c.setItemQty(it, it.Qty.Add(qty))
}

// UpdateItemQty replaces the qty of an existing item outright.
func (c *Cart) UpdateItemQty(itemID int64, qty decimal.Decimal) error {
	if err := c.checkCanBeModified(); err != nil {
		return err
	}
	if !qty.IsPositive() {
		return ErrInvalidItemQty
	}

	it, err := c.Item(itemID)
	if err != nil {
		return err
	}
	return c.setItemQty(it, qty)
}

// DeleteItem removes an item. No limit checks: removal only lowers totals.
func (c *Cart) DeleteItem(itemID int64) error {
	if err := c.checkCanBeModified(); err != nil {
		return err
	}

	for i, it := range c.Items {
		if it.ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return ErrItemDoesNotExist
}

// Clear empties the item set.
func (c *Cart) Clear() error {
	if err := c.checkCanBeModified(); err != nil {
		return err
	}

	c.Items = nil
	return nil
}

// CheckCanCouponBeApplied is the precondition of SetCoupon, exposed so
// the apply-coupon flow can verify before reaching out to the coupon
// service.
func (c *Cart) CheckCanCouponBeApplied() error {
	if err := c.checkCanBeModified(); err != nil {
		return err
	}
	if c.Coupon != nil {
		return ErrCouponAlreadyApplied
	}
	return nil
}

func (c *Cart) SetCoupon(coupon Coupon) error {
	if err := c.CheckCanCouponBeApplied(); err != nil {
		return err
	}

	c.Coupon = &coupon
	return nil
}

func (c *Cart) RemoveCoupon() error {
	if err := c.checkCanBeModified(); err != nil {
		return err
	}
	if c.Coupon == nil {
		return ErrCouponDoesNotExist
	}

	c.Coupon = nil
	return nil
}

// Lock moves the cart to LOCKED for checkout. A legal transition with an
// insufficient cost fails with ErrCantBeLocked so callers can distinguish
// "wrong state" from "not eligible yet".
func (c *Cart) Lock() error {
	if err := c.checkTransition(Locked); err != nil {
		return err
	}
	if !c.CheckoutEnabled() {
		return ErrCantBeLocked
	}

	c.Status = Locked
	return nil
}

// Unlock returns a LOCKED cart to OPENED with items and coupon untouched.
func (c *Cart) Unlock() error {
	if err := c.checkTransition(Opened); err != nil {
		return err
	}

	c.Status = Opened
	return nil
}

// Complete finishes checkout; the cart becomes immutable.
func (c *Cart) Complete() error {
	if err := c.checkTransition(Completed); err != nil {
		return err
	}

	c.Status = Completed
	return nil
}

// Deactivate soft-deletes an OPENED cart. A LOCKED cart must be unlocked
// first.
func (c *Cart) Deactivate() error {
	if err := c.checkTransition(Deactivated); err != nil {
		return err
	}

	c.Status = Deactivated
	return nil
}

func (c *Cart) checkTransition(target Status) error {
	if !c.Status.canTransitTo(target) {
		return &InvalidTransitionError{From: c.Status, To: target}
	}
	return nil
}

func (c *Cart) checkCanBeModified() error {
	if c.Status != Opened {
		return ErrOperationForbidden
	}
	return nil
}

func (c *Cart) setItemQty(it Item, qty decimal.Decimal) error {
	if err := c.checkItemQtyLimit(it.ID, qty); err != nil {
		return err
	}

	updated := it
	updated.Qty = qty
	if err := c.checkItemsQtyLimit(c.ItemsQty().Sub(unitQty(it)).Add(unitQty(updated))); err != nil {
		return err
	}

	for i := range c.Items {
		if c.Items[i].ID == it.ID {
			c.Items[i].Qty = qty
			break
		}
	}
	return nil
}

func (c *Cart) checkItemQtyLimit(itemID int64, qty decimal.Decimal) error {
	limit, ok := c.Config.LimitItemsByID[itemID]
	if !ok {
		return nil
	}
	if qty.GreaterThan(limit) {
		return &SpecificItemQtyLimitError{ItemID: itemID, Limit: limit, Actual: qty}
	}
	return nil
}

func (c *Cart) checkItemsQtyLimit(total decimal.Decimal) error {
	if total.GreaterThan(decimal.NewFromInt(int64(c.Config.MaxItemsQty))) {
		return ErrMaxItemsQtyLimitExceeded
	}
	return nil
}

func unitQty(it Item) decimal.Decimal {
	if it.IsWeight {
		return weightItemQty
	}
	return it.Qty
}
