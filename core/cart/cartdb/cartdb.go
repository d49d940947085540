// Package cartdb implements the cart storage contracts on postgres.
package cartdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gocart/gocart/core/cart"
	"github.com/gocart/gocart/database"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// DB implements cart.UnitOfWork over a sqlx pool.
type DB struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *DB {
	return &DB{db: db}
}

func (d *DB) Tx(ctx context.Context, fn func(ctx context.Context, s cart.Storer) error) error {
	return database.Transaction(d.db, func(tx sqlx.ExtContext) error {
		return fn(ctx, &Store{ext: tx})
	})
}

func (d *DB) View(ctx context.Context, fn func(ctx context.Context, s cart.Storer) error) error {
	return fn(ctx, &Store{ext: d.db})
}

// Store runs the cart queries against one executor: the pool for reads,
// a transaction inside DB.Tx.
type Store struct {
	ext sqlx.ExtContext
}

func (s *Store) Create(ctx context.Context, c *cart.Cart) error {
	const q = `
	INSERT INTO carts (cart_id, user_id, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.ext.ExecContext(ctx, q, c.ID, c.UserID, c.Status, c.CreatedAt, c.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return cart.ErrActiveCartAlreadyExists
		}
		return fmt.Errorf("inserting cart: %w", err)
	}
	return nil
}

func (s *Store) Retrieve(ctx context.Context, cartID uuid.UUID) (*cart.Cart, error) {
	const q = `
	SELECT cart_id, user_id, status, created_at, updated_at
	FROM carts
	WHERE cart_id = $1 AND status <> 'DEACTIVATED'`

	var c cart.Cart
	if err := sqlx.GetContext(ctx, s.ext, &c, q, cartID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("fetching cart: %w", err)
	}

	const itemsQ = `
	SELECT item_id, cart_id, name, qty, price, is_weight
	FROM cart_items
	WHERE cart_id = $1
	ORDER BY item_id`

	if err := sqlx.SelectContext(ctx, s.ext, &c.Items, itemsQ, cartID); err != nil {
		return nil, fmt.Errorf("fetching cart items: %w", err)
	}

	coupon, err := s.coupon(ctx, cartID)
	if err != nil {
		return nil, err
	}
	c.Coupon = coupon

	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	c.Config = cfg

	return &c, nil
}

func (s *Store) Update(ctx context.Context, c *cart.Cart) error {
	const q = `
	UPDATE carts
	SET status = $2, updated_at = now()
	WHERE cart_id = $1`

	if _, err := s.ext.ExecContext(ctx, q, c.ID, c.Status); err != nil {
		return fmt.Errorf("updating cart: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, pageSize int, createdBefore time.Time) ([]cart.Cart, error) {
	const q = `
	SELECT cart_id, user_id, status, created_at, updated_at
	FROM carts
	WHERE created_at < $1
	ORDER BY created_at DESC
	LIMIT $2`

	carts := []cart.Cart{}
	if err := sqlx.SelectContext(ctx, s.ext, &carts, q, createdBefore, pageSize); err != nil {
		return nil, fmt.Errorf("listing carts: %w", err)
	}
	if len(carts) == 0 {
		return carts, nil
	}

	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(carts))
	byID := make(map[uuid.UUID]*cart.Cart, len(carts))
	for i := range carts {
		carts[i].Config = cfg
		ids = append(ids, carts[i].ID)
		byID[carts[i].ID] = &carts[i]
	}

	itemsQ, args, err := sqlx.In(`
	SELECT item_id, cart_id, name, qty, price, is_weight
	FROM cart_items
	WHERE cart_id IN (?)
	ORDER BY item_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("building items query: %w", err)
	}

	var items []cart.Item
	if err := sqlx.SelectContext(ctx, s.ext, &items, s.ext.Rebind(itemsQ), args...); err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	for _, it := range items {
		c := byID[it.CartID]
		c.Items = append(c.Items, it)
	}

	couponsQ, args, err := sqlx.In(`
	SELECT cart_id, coupon_id, min_cart_cost, discount_abs
	FROM cart_coupons
	WHERE cart_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("building coupons query: %w", err)
	}

	var coupons []cart.Coupon
	if err := sqlx.SelectContext(ctx, s.ext, &coupons, s.ext.Rebind(couponsQ), args...); err != nil {
		return nil, fmt.Errorf("listing cart coupons: %w", err)
	}
	for _, cp := range coupons {
		cp := cp
		byID[cp.CartID].Coupon = &cp
	}

	return carts, nil
}

func (s *Store) UpsertItem(ctx context.Context, item cart.Item) error {
	const q = `
	INSERT INTO cart_items (cart_id, item_id, name, qty, price, is_weight)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (cart_id, item_id)
	DO UPDATE SET name = $3, qty = $4, price = $5, is_weight = $6`

	if _, err := s.ext.ExecContext(ctx, q, item.CartID, item.ID, item.Name, item.Qty, item.Price, item.IsWeight); err != nil {
		return fmt.Errorf("upserting cart item: %w", err)
	}
	return s.touch(ctx, item.CartID)
}

func (s *Store) DeleteItem(ctx context.Context, cartID uuid.UUID, itemID int64) error {
	const q = `DELETE FROM cart_items WHERE cart_id = $1 AND item_id = $2`

	if _, err := s.ext.ExecContext(ctx, q, cartID, itemID); err != nil {
		return fmt.Errorf("deleting cart item: %w", err)
	}
	return s.touch(ctx, cartID)
}

func (s *Store) Clear(ctx context.Context, cartID uuid.UUID) error {
	const q = `DELETE FROM cart_items WHERE cart_id = $1`

	if _, err := s.ext.ExecContext(ctx, q, cartID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return s.touch(ctx, cartID)
}

func (s *Store) CreateCoupon(ctx context.Context, coupon cart.Coupon) error {
	const q = `
	INSERT INTO cart_coupons (cart_id, coupon_id, min_cart_cost, discount_abs)
	VALUES ($1, $2, $3, $4)`

	if _, err := s.ext.ExecContext(ctx, q, coupon.CartID, coupon.ID, coupon.MinCartCost, coupon.DiscountAbs); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return cart.ErrCouponAlreadyApplied
		}
		return fmt.Errorf("inserting cart coupon: %w", err)
	}
	return s.touch(ctx, coupon.CartID)
}

func (s *Store) DeleteCoupon(ctx context.Context, cartID uuid.UUID) error {
	const q = `DELETE FROM cart_coupons WHERE cart_id = $1`

	if _, err := s.ext.ExecContext(ctx, q, cartID); err != nil {
		return fmt.Errorf("deleting cart coupon: %w", err)
	}
	return s.touch(ctx, cartID)
}

func (s *Store) GetConfig(ctx context.Context) (cart.Config, error) {
	const q = `
	SELECT max_items_qty, min_cost_for_checkout, limit_items_by_id,
	       hours_since_update_until_abandoned, max_abandoned_notifications_qty,
	       abandoned_cart_text
	FROM cart_config`

	var row struct {
		MaxItemsQty                    int             `db:"max_items_qty"`
		MinCostForCheckout             decimal.Decimal `db:"min_cost_for_checkout"`
		LimitItemsByID                 []byte          `db:"limit_items_by_id"`
		HoursSinceUpdateUntilAbandoned int             `db:"hours_since_update_until_abandoned"`
		MaxAbandonedNotificationsQty   int             `db:"max_abandoned_notifications_qty"`
		AbandonedCartText              string          `db:"abandoned_cart_text"`
	}
	if err := sqlx.GetContext(ctx, s.ext, &row, q); err != nil {
		return cart.Config{}, fmt.Errorf("fetching cart config: %w", err)
	}

	limits, err := decodeLimits(row.LimitItemsByID)
	if err != nil {
		return cart.Config{}, err
	}

	return cart.Config{
		MaxItemsQty:                    row.MaxItemsQty,
		MinCostForCheckout:             row.MinCostForCheckout,
		LimitItemsByID:                 limits,
		HoursSinceUpdateUntilAbandoned: row.HoursSinceUpdateUntilAbandoned,
		MaxAbandonedNotificationsQty:   row.MaxAbandonedNotificationsQty,
		AbandonedCartText:              row.AbandonedCartText,
	}, nil
}

func (s *Store) UpdateConfig(ctx context.Context, cfg cart.Config) error {
	limits, err := encodeLimits(cfg.LimitItemsByID)
	if err != nil {
		return err
	}

	const q = `
	UPDATE cart_config
	SET max_items_qty = $1, min_cost_for_checkout = $2, limit_items_by_id = $3,
	    hours_since_update_until_abandoned = $4, max_abandoned_notifications_qty = $5,
	    abandoned_cart_text = $6`

	if _, err := s.ext.ExecContext(ctx, q,
		cfg.MaxItemsQty, cfg.MinCostForCheckout, limits,
		cfg.HoursSinceUpdateUntilAbandoned, cfg.MaxAbandonedNotificationsQty,
		cfg.AbandonedCartText,
	); err != nil {
		return fmt.Errorf("updating cart config: %w", err)
	}
	return nil
}

func (s *Store) FindAbandoned(ctx context.Context, olderThan time.Duration, maxNotifications int) ([]cart.AbandonedCart, error) {
	const q = `
	SELECT c.cart_id, c.user_id
	FROM carts c
	WHERE c.status = 'OPENED'
	  AND c.updated_at < now() - ($1 * interval '1 second')
	  AND (
	    SELECT count(*) FROM cart_notifications n
	    WHERE n.cart_id = c.cart_id AND n.type = $2
	  ) < $3
	ORDER BY c.updated_at`

	found := []cart.AbandonedCart{}
	err := sqlx.SelectContext(ctx, s.ext, &found, q,
		int64(olderThan.Seconds()), cart.NotificationAbandonedCart, maxNotifications)
	if err != nil {
		return nil, fmt.Errorf("finding abandoned carts: %w", err)
	}
	return found, nil
}

// CreateNotification inserts the row under a (cart, type, sequence) dedup
// key, where the sequence is the number of notifications already sent.
// Two racing inserts compute the same sequence and the second one is
// dropped by the unique index.
func (s *Store) CreateNotification(ctx context.Context, n cart.Notification) (bool, error) {
	const q = `
	INSERT INTO cart_notifications (notification_id, cart_id, type, body, sent_at, dedup_key)
	VALUES ($1, $2, $3, $4, $5,
		$2 || ':' || $3 || ':' || (SELECT count(*) FROM cart_notifications WHERE cart_id = $2 AND type = $3))
	ON CONFLICT (dedup_key) DO NOTHING`

	res, err := s.ext.ExecContext(ctx, q, n.ID, n.CartID, n.Type, n.Text, n.SentAt)
	if err != nil {
		return false, fmt.Errorf("inserting cart notification: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking notification insert: %w", err)
	}
	return inserted > 0, nil
}

func (s *Store) coupon(ctx context.Context, cartID uuid.UUID) (*cart.Coupon, error) {
	const q = `
	SELECT cart_id, coupon_id, min_cart_cost, discount_abs
	FROM cart_coupons
	WHERE cart_id = $1`

	var coupon cart.Coupon
	if err := sqlx.GetContext(ctx, s.ext, &coupon, q, cartID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching cart coupon: %w", err)
	}
	return &coupon, nil
}

// touch refreshes the cart's updated-at, the clock the abandonment check
// reads.
func (s *Store) touch(ctx context.Context, cartID uuid.UUID) error {
	const q = `UPDATE carts SET updated_at = now() WHERE cart_id = $1`

	if _, err := s.ext.ExecContext(ctx, q, cartID); err != nil {
		return fmt.Errorf("touching cart: %w", err)
	}
	return nil
}

func decodeLimits(raw []byte) (map[int64]decimal.Decimal, error) {
	if len(raw) == 0 {
		return map[int64]decimal.Decimal{}, nil
	}

	var byKey map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("decoding per-item limits: %w", err)
	}

	limits := make(map[int64]decimal.Decimal, len(byKey))
	for key, limit := range byKey {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decoding per-item limit key %q: %w", key, err)
		}
		limits[id] = limit
	}
	return limits, nil
}

func encodeLimits(limits map[int64]decimal.Decimal) ([]byte, error) {
	byKey := make(map[string]decimal.Decimal, len(limits))
	for id, limit := range limits {
		byKey[strconv.FormatInt(id, 10)] = limit
	}

	raw, err := json.Marshal(byKey)
	if err != nil {
		return nil, fmt.Errorf("encoding per-item limits: %w", err)
	}
	return raw, nil
}
