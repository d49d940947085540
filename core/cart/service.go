package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocart/gocart/core/auth"
	"github.com/gocart/gocart/core/claims"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Service carries every cart use case. Each mutating operation follows
// the same protocol: acquire the cart's distributed lock, resolve the
// caller's credential, open a transaction, load the aggregate, authorize,
// mutate, persist, commit, and release the lock on every exit path. The
// lock serializes cooperating writers per cart id; the transaction makes
// each read-modify-write atomic against the storage layer. Neither alone
// is enough.
type Service struct {
	log      logrus.FieldLogger
	uow      UnitOfWork
	locker   Locker
	auth     auth.System
	products ProductsClient
	coupons  CouponsClient
}

func NewService(
	log logrus.FieldLogger,
	uow UnitOfWork,
	locker Locker,
	authSys auth.System,
	products ProductsClient,
	coupons CouponsClient,
) *Service {
	return &Service{
		log:      log,
		uow:      uow,
		locker:   locker,
		auth:     authSys,
		products: products,
		coupons:  coupons,
	}
}

// LockKey is the distributed-lock key of a cart.
func LockKey(cartID uuid.UUID) string {
	return "cart-lock-" + cartID.String()
}

// Create opens a new cart owned by the caller.
func (s *Service) Create(ctx context.Context, credential string) (*Cart, error) {
	clm, err := s.auth.Resolve(ctx, credential)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, clm.UserID)
}

// CreateByUserID opens a cart on behalf of another user; admin only.
func (s *Service) CreateByUserID(ctx context.Context, credential string, userID int) (*Cart, error) {
	if err := s.auth.CheckForAdmin(ctx, credential); err != nil {
		return nil, err
	}
	return s.create(ctx, userID)
}

func (s *Service) create(ctx context.Context, userID int) (*Cart, error) {
	var created *Cart
	err := s.uow.Tx(ctx, func(ctx context.Context, store Storer) error {
		cfg, err := store.GetConfig(ctx)
		if err != nil {
			return fmt.Errorf("loading cart config: %w", err)
		}

		created = New(userID, cfg)
		return store.Create(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"cart_id": created.ID, "user_id": userID}).Info("cart created")
	return created, nil
}

// Retrieve loads a cart for its owner or an admin. Reads take no lock.
func (s *Service) Retrieve(ctx context.Context, credential string, cartID uuid.UUID) (*Cart, error) {
	clm, err := s.auth.Resolve(ctx, credential)
	if err != nil {
		return nil, err
	}

	var out *Cart
	err = s.uow.View(ctx, func(ctx context.Context, store Storer) error {
		c, err := store.Retrieve(ctx, cartID)
		if err != nil {
			return err
		}
		if err := authorize(c, clm); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// List pages through all carts, newest first; admin only.
func (s *Service) List(ctx context.Context, credential string, pageSize int, createdBefore time.Time) ([]Cart, error) {
	if err := s.auth.CheckForAdmin(ctx, credential); err != nil {
		return nil, err
	}
	if createdBefore.IsZero() {
		createdBefore = time.Now().UTC()
	}

	var out []Cart
	err := s.uow.View(ctx, func(ctx context.Context, store Storer) error {
		carts, err := store.List(ctx, pageSize, createdBefore)
		if err != nil {
			return err
		}
		out = carts
		return nil
	})
	return out, err
}

// AddItem puts qty of an item into the cart: an already-present item has
// its qty increased, otherwise the products service is asked for the item
// data and a new line is inserted. Both quantity limits are enforced
// against the post-change state.
func (s *Service) AddItem(ctx context.Context, credential string, cartID uuid.UUID, itemID int64, qty decimal.Decimal) (*Cart, error) {
	return s.mutate(ctx, credential, cartID, func(ctx context.Context, store Storer, c *Cart) error {
		err := c.IncreaseItemQty(itemID, qty)
		switch {
		case err == nil:
		case errors.Is(err, ErrItemDoesNotExist):
			if err := s.addNewItem(ctx, c, itemID, qty); err != nil {
				return err
			}
		default:
			return err
		}

		it, err := c.Item(itemID)
		if err != nil {
			return err
		}
		return store.UpsertItem(ctx, it)
	})
}

func (s *Service) addNewItem(ctx context.Context, c *Cart, itemID int64, qty decimal.Decimal) error {
	product, err := s.products.Product(ctx, itemID)
	if err != nil {
		s.log.WithFields(logrus.Fields{"cart_id": c.ID, "item_id": itemID}).
			Errorf("failed to get product data: %v", err)
		return err
	}

	item, err := NewItem(itemID, c.ID, product.Title, qty, product.Price, product.IsWeight)
	if err != nil {
		return err
	}
	return c.AddNewItem(item)
}

// UpdateItem replaces the qty of an existing item.
func (s *Service) UpdateItem(ctx context.Context, credential string, cartID uuid.UUID, itemID int64, qty decimal.Decimal) (*Cart, error) {
	return s.mutate(ctx, credential, cartID, func(ctx context.Context, store Storer, c *Cart) error {
		if err := c.UpdateItemQty(itemID, qty); err != nil {
			return err
		}

		it, err := c.Item(itemID)
		if err != nil {
			return err
		}
		return store.UpsertItem(ctx, it)
	})
}

// DeleteItem removes one item from the cart.
func (s *Service) DeleteItem(ctx context.Context, credential string, cartID uuid.UUID, itemID int64) (*Cart, error) {
	return s.mutate(ctx, credential, cartID, func(ctx context.Context, store Storer, c *Cart) error {
		if err := c.DeleteItem(itemID); err != nil {
			return err
		}
		return store.DeleteItem(ctx, cartID, itemID)
	})
}

// ClearCart removes every item.
func (s *Service) ClearCart(ctx context.Context, credential string, cartID uuid.UUID) (*Cart, error) {
	return s.mutate(ctx, credential, cartID, func(ctx context.Context, store Storer, c *Cart) error {
		if err := c.Clear(); err != nil {
			return err
		}
		return store.Clear(ctx, cartID)
	})
}

// ApplyCoupon attaches a coupon. The coupons service is consulted only
// after the cart is known to accept one, and a client failure aborts the
// transaction so partial coupon state is never persisted.
func (s *Service) ApplyCoupon(ctx context.Context, credential string, cartID uuid.UUID, couponName string) (*Cart, error) {
	return s.mutate(ctx, credential, cartID, func(ctx context.Context, store Storer, c *Cart) error {
		if err := c.CheckCanCouponBeApplied(); err != nil {
			return err
		}

		info, err := s.coupons.Coupon(ctx, couponName)
		if err != nil {
			s.log.WithFields(logrus.Fields{"cart_id": c.ID, "coupon": couponName}).
				Errorf("failed to get coupon data: %v", err)
			return err
		}

		coupon, err := NewCoupon(couponName, c.ID, info.MinCartCost, info.DiscountAbs)
		if err != nil {
			return err
		}
		if err := c.SetCoupon(coupon); err != nil {
			return err
		}
		return store.CreateCoupon(ctx, coupon)
	})
}

// RemoveCoupon detaches the cart's coupon.
func (s *Service) RemoveCoupon(ctx context.Context, credential string, cartID uuid.UUID) (*Cart, error) {
	return s.mutate(ctx, credential, cartID, func(ctx context.Context, store Storer, c *Cart) error {
		if err := c.RemoveCoupon(); err != nil {
			return err
		}
		return store.DeleteCoupon(ctx, cartID)
	})
}

// Lock moves the cart to LOCKED ahead of checkout.
func (s *Service) Lock(ctx context.Context, credential string, cartID uuid.UUID) (*Cart, error) {
	return s.transit(ctx, credential, cartID, (*Cart).Lock, "cart locked")
}

// Unlock returns a LOCKED cart to OPENED.
func (s *Service) Unlock(ctx context.Context, credential string, cartID uuid.UUID) (*Cart, error) {
	return s.transit(ctx, credential, cartID, (*Cart).Unlock, "cart unlocked")
}

// Complete finishes checkout.
func (s *Service) Complete(ctx context.Context, credential string, cartID uuid.UUID) (*Cart, error) {
	return s.transit(ctx, credential, cartID, (*Cart).Complete, "cart completed")
}

// Deactivate soft-deletes an OPENED cart.
func (s *Service) Deactivate(ctx context.Context, credential string, cartID uuid.UUID) (*Cart, error) {
	return s.transit(ctx, credential, cartID, (*Cart).Deactivate, "cart deactivated")
}

// GetConfig returns the cart-wide restrictions; admin only.
func (s *Service) GetConfig(ctx context.Context, credential string) (Config, error) {
	if err := s.auth.CheckForAdmin(ctx, credential); err != nil {
		return Config{}, err
	}

	var cfg Config
	err := s.uow.View(ctx, func(ctx context.Context, store Storer) error {
		var err error
		cfg, err = store.GetConfig(ctx)
		return err
	})
	return cfg, err
}

// UpdateConfig replaces the cart-wide restrictions; admin only.
func (s *Service) UpdateConfig(ctx context.Context, credential string, cfg Config) (Config, error) {
	if err := s.auth.CheckForAdmin(ctx, credential); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	err := s.uow.Tx(ctx, func(ctx context.Context, store Storer) error {
		return store.UpdateConfig(ctx, cfg)
	})
	if err != nil {
		return Config{}, err
	}

	s.log.Info("cart config updated")
	return cfg, nil
}

func (s *Service) transit(ctx context.Context, credential string, cartID uuid.UUID, change func(*Cart) error, logMsg string) (*Cart, error) {
	c, err := s.mutate(ctx, credential, cartID, func(ctx context.Context, store Storer, c *Cart) error {
		if err := change(c); err != nil {
			return err
		}
		return store.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("cart_id", cartID).Info(logMsg)
	return c, nil
}

// mutate is the shared write protocol. The credential is resolved after
// the lock on purpose: a contended cart answers "try again" even to a
// caller whose token turns out to be bad.
func (s *Service) mutate(ctx context.Context, credential string, cartID uuid.UUID, fn func(ctx context.Context, store Storer, c *Cart) error) (*Cart, error) {
	key := LockKey(cartID)
	token, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.WithField("cart_id", cartID).Warnf("releasing cart lock: %v", err)
		}
	}()

	clm, err := s.auth.Resolve(ctx, credential)
	if err != nil {
		return nil, err
	}

	var out *Cart
	err = s.uow.Tx(ctx, func(ctx context.Context, store Storer) error {
		c, err := store.Retrieve(ctx, cartID)
		if err != nil {
			return err
		}
		if err := authorize(c, clm); err != nil {
			return err
		}
		if err := fn(ctx, store, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// authorize applies the ownership rule: admins bypass it on every
// operation.
func authorize(c *Cart, clm claims.Claims) error {
	if clm.Admin() {
		return nil
	}
	return c.CheckUserOwnership(clm.UserID)
}
