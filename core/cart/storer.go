package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Storer is the persistence contract of the aggregate. Implementations
// map uniqueness violations on the one-active-cart-per-user rule to
// ErrActiveCartAlreadyExists and missing/deactivated carts to
// ErrCartNotFound.
type Storer interface {
	Create(ctx context.Context, c *Cart) error
	// Retrieve loads the cart with its items, coupon and the current
	// config. Deactivated carts are not visible.
	Retrieve(ctx context.Context, cartID uuid.UUID) (*Cart, error)
	// Update persists the cart's status and refreshes its updated-at.
	Update(ctx context.Context, c *Cart) error
	// List returns carts created before the cursor, newest first.
	List(ctx context.Context, pageSize int, createdBefore time.Time) ([]Cart, error)

	UpsertItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, cartID uuid.UUID, itemID int64) error
	Clear(ctx context.Context, cartID uuid.UUID) error

	CreateCoupon(ctx context.Context, coupon Coupon) error
	DeleteCoupon(ctx context.Context, cartID uuid.UUID) error

	GetConfig(ctx context.Context) (Config, error)
	UpdateConfig(ctx context.Context, cfg Config) error

	// FindAbandoned returns (cart, user) pairs for OPENED carts idle
	// longer than olderThan with fewer than maxNotifications abandoned
	// notifications sent.
	FindAbandoned(ctx context.Context, olderThan time.Duration, maxNotifications int) ([]AbandonedCart, error)
	// CreateNotification records n under its natural dedup key and
	// reports false, without error, when an equivalent notification is
	// already recorded.
	CreateNotification(ctx context.Context, n Notification) (bool, error)
}

// UnitOfWork runs a function against a Storer inside a transaction (Tx)
// or a plain read scope (View). Tx commits when fn returns nil and rolls
// back otherwise; partial writes never reach storage.
type UnitOfWork interface {
	Tx(ctx context.Context, fn func(ctx context.Context, s Storer) error) error
	View(ctx context.Context, fn func(ctx context.Context, s Storer) error) error
}

// Locker is the per-key distributed mutex. Acquire fails fast (bounded
// wait) with lock.ErrAlreadyLocked when the key is held elsewhere, and
// returns a token scoped to this acquisition. Release frees the key only
// when it still carries that token, so releasing an expired lock that
// someone else re-acquired is a no-op.
type Locker interface {
	Acquire(ctx context.Context, key string) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

// ProductInfo is what the products service knows about an item.
type ProductInfo struct {
	Title    string
	Price    decimal.Decimal
	IsWeight bool
}

type ProductsClient interface {
	Product(ctx context.Context, itemID int64) (ProductInfo, error)
}

// CouponInfo is the terms of a coupon as the coupons service defines them.
type CouponInfo struct {
	MinCartCost decimal.Decimal
	DiscountAbs decimal.Decimal
}

type CouponsClient interface {
	Coupon(ctx context.Context, name string) (CouponInfo, error)
}

type NotificationsClient interface {
	Send(ctx context.Context, userID int, text string) error
}

// TaskProducer enqueues background work; payload must be JSON-marshalable.
type TaskProducer interface {
	Enqueue(ctx context.Context, task string, payload any) error
}

// AbandonedCart is one fan-out target of the abandoned-cart job.
type AbandonedCart struct {
	CartID uuid.UUID `db:"cart_id"`
	UserID int       `db:"user_id"`
}
