package cart

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testConfig() Config {
	return Config{
		MaxItemsQty:        30,
		MinCostForCheckout: dec("500"),
		LimitItemsByID:     map[int64]decimal.Decimal{},
	}
}

func mustItem(t *testing.T, c *Cart, id int64, qty, price string, isWeight bool) Item {
	t.Helper()
	it, err := NewItem(id, c.ID, "item", dec(qty), dec(price), isWeight)
	require.NoError(t, err)
	return it
}

func TestNewCartIsOpened(t *testing.T) {
	c := New(7, testConfig())

	assert.Equal(t, 7, c.UserID)
	assert.Equal(t, Opened, c.Status)
	assert.Empty(t, c.Items)
	assert.Nil(t, c.Coupon)
	assert.True(t, decimal.Zero.Equal(c.Cost()))
}

func TestItemsQtyCountsWeightItemsAsOneUnit(t *testing.T) {
	c := New(1, testConfig())

	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "3", "10", false)))
	require.NoError(t, c.AddNewItem(mustItem(t, c, 2, "1.657", "8", true)))

	// 3 pieces plus one unit for the weight item, whatever it weighs.
	assert.True(t, dec("4").Equal(c.ItemsQty()), "got %s", c.ItemsQty())
}

func TestCostMultipliesPriceByQty(t *testing.T) {
	c := New(1, testConfig())

	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "3", "10.50", false)))
	require.NoError(t, c.AddNewItem(mustItem(t, c, 2, "0.5", "100", true)))

	assert.True(t, dec("81.50").Equal(c.Cost()), "got %s", c.Cost())
}

func TestAddNewItemRejectsDuplicate(t *testing.T) {
	c := New(1, testConfig())

	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "1", "10", false)))
	err := c.AddNewItem(mustItem(t, c, 1, "2", "10", false))
	assert.ErrorIs(t, err, ErrItemAlreadyExists)
	assert.Len(t, c.Items, 1)
}

func TestDeleteMissingItemFails(t *testing.T) {
	c := New(1, testConfig())
	assert.ErrorIs(t, c.DeleteItem(404), ErrItemDoesNotExist)
}

func TestMaxItemsQtyLimitLeavesCartUntouched(t *testing.T) {
	cfg := testConfig()
	cfg.MaxItemsQty = 1
	c := New(1, cfg)

	err := c.AddNewItem(mustItem(t, c, 1, "2", "10", false))
	assert.ErrorIs(t, err, ErrMaxItemsQtyLimitExceeded)
	assert.Empty(t, c.Items)
}

func TestSpecificItemQtyLimitCarriesLimitAndActual(t *testing.T) {
	cfg := testConfig()
	cfg.LimitItemsByID[1] = dec("5")
	c := New(1, cfg)

	err := c.AddNewItem(mustItem(t, c, 1, "7", "10", false))

	var lerr *SpecificItemQtyLimitError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, int64(1), lerr.ItemID)
	assert.True(t, dec("5").Equal(lerr.Limit))
	assert.True(t, dec("7").Equal(lerr.Actual))
	assert.Empty(t, c.Items)
}

func TestIncreaseItemQtyChecksLimitAgainstTotal(t *testing.T) {
	cfg := testConfig()
	cfg.LimitItemsByID[1] = dec("5")
	c := New(1, cfg)

	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "4", "10", false)))
	err := c.IncreaseItemQty(1, dec("2"))

	var lerr *SpecificItemQtyLimitError
	require.ErrorAs(t, err, &lerr)
	assert.True(t, dec("6").Equal(lerr.Actual))

	// the failed change must not stick
	it, err := c.Item(1)
	require.NoError(t, err)
	assert.True(t, dec("4").Equal(it.Qty))
}

func TestUpdateItemQtyReplacesOutright(t *testing.T) {
	c := New(1, testConfig())
	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "4", "10", false)))

	require.NoError(t, c.UpdateItemQty(1, dec("2")))

	it, err := c.Item(1)
	require.NoError(t, err)
	assert.True(t, dec("2").Equal(it.Qty))
}

func TestContentEditsForbiddenOutsideOpened(t *testing.T) {
	cfg := testConfig()
	cfg.MinCostForCheckout = decimal.Zero
	c := New(1, cfg)
	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "1", "10", false)))
	require.NoError(t, c.Lock())

	assert.ErrorIs(t, c.AddNewItem(mustItem(t, c, 2, "1", "10", false)), ErrOperationForbidden)
	assert.ErrorIs(t, c.IncreaseItemQty(1, dec("1")), ErrOperationForbidden)
	assert.ErrorIs(t, c.DeleteItem(1), ErrOperationForbidden)
	assert.ErrorIs(t, c.Clear(), ErrOperationForbidden)
	assert.ErrorIs(t, c.RemoveCoupon(), ErrOperationForbidden)
	assert.ErrorIs(t, c.CheckCanCouponBeApplied(), ErrOperationForbidden)
}

func TestStateMachineTable(t *testing.T) {
	all := []Status{Opened, Locked, Completed, Deactivated}
	allowed := map[Status]map[Status]bool{
		Opened: {Locked: true, Deactivated: true},
		Locked: {Opened: true, Completed: true},
	}

	for _, from := range all {
		for _, to := range all {
			cfg := testConfig()
			cfg.MinCostForCheckout = decimal.Zero
			c := New(1, cfg)
			c.Status = from

			var err error
			switch to {
			case Opened:
				err = c.Unlock()
			case Locked:
				err = c.Lock()
			case Completed:
				err = c.Complete()
			case Deactivated:
				err = c.Deactivate()
			}

			if allowed[from][to] {
				assert.NoError(t, err, "%s -> %s should be legal", from, to)
				assert.Equal(t, to, c.Status)
				continue
			}

			var terr *InvalidTransitionError
			require.ErrorAs(t, err, &terr, "%s -> %s should be rejected", from, to)
			assert.Equal(t, from, terr.From)
			assert.Equal(t, to, terr.To)
			assert.Equal(t, from, c.Status, "a rejected transition must not move the cart")
		}
	}
}

func TestLockRequiresCheckoutMinimum(t *testing.T) {
	c := New(1, testConfig()) // min cost 500
	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "1", "499.99", false)))

	err := c.Lock()
	assert.ErrorIs(t, err, ErrCantBeLocked)
	assert.Equal(t, Opened, c.Status)

	require.NoError(t, c.IncreaseItemQty(1, dec("1")))
	assert.NoError(t, c.Lock())
	assert.Equal(t, Locked, c.Status)
}

func TestLockUnlockRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.MinCostForCheckout = decimal.Zero
	c := New(1, cfg)
	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "2", "10", false)))

	coupon, err := NewCoupon("SAVE10", c.ID, dec("0"), dec("5"))
	require.NoError(t, err)
	require.NoError(t, c.SetCoupon(coupon))

	require.NoError(t, c.Lock())
	require.NoError(t, c.Unlock())

	assert.Equal(t, Opened, c.Status)
	assert.Len(t, c.Items, 1)
	require.NotNil(t, c.Coupon)
	assert.Equal(t, "SAVE10", c.Coupon.ID)

	// a second lock after the round trip is still legal
	assert.NoError(t, c.Lock())
	var terr *InvalidTransitionError
	assert.ErrorAs(t, c.Lock(), &terr)
}

func TestCouponScenario(t *testing.T) {
	cfg := testConfig()
	c := New(1, cfg)
	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "2", "300", false)))

	coupon, err := NewCoupon("SAVE10", c.ID, dec("500"), dec("300"))
	require.NoError(t, err)
	require.NoError(t, c.SetCoupon(coupon))

	cost := c.Cost()
	assert.True(t, dec("600").Equal(cost))
	assert.True(t, c.Coupon.AppliedTo(cost))
	assert.True(t, dec("300").Equal(c.Coupon.DiscountedCost(cost)))
}

func TestCouponBelowMinimumIsNotApplied(t *testing.T) {
	c := New(1, testConfig())
	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "1", "100", false)))

	coupon, err := NewCoupon("SAVE10", c.ID, dec("500"), dec("300"))
	require.NoError(t, err)
	require.NoError(t, c.SetCoupon(coupon))

	assert.False(t, c.Coupon.AppliedTo(c.Cost()))
}

func TestSecondCouponRejected(t *testing.T) {
	c := New(1, testConfig())

	first, err := NewCoupon("A", c.ID, dec("0"), dec("1"))
	require.NoError(t, err)
	require.NoError(t, c.SetCoupon(first))

	second, err := NewCoupon("B", c.ID, dec("0"), dec("1"))
	require.NoError(t, err)
	assert.ErrorIs(t, c.SetCoupon(second), ErrCouponAlreadyApplied)
	assert.Equal(t, "A", c.Coupon.ID)
}

func TestRemoveCouponWithoutOneFails(t *testing.T) {
	c := New(1, testConfig())
	assert.ErrorIs(t, c.RemoveCoupon(), ErrCouponDoesNotExist)
}

func TestOwnership(t *testing.T) {
	c := New(1, testConfig())
	assert.NoError(t, c.CheckUserOwnership(1))
	assert.ErrorIs(t, c.CheckUserOwnership(2), ErrNotOwnedByUser)
}

func TestNewItemValidation(t *testing.T) {
	c := New(1, testConfig())

	_, err := NewItem(1, c.ID, "x", dec("0"), dec("10"), false)
	assert.ErrorIs(t, err, ErrInvalidItemQty)

	_, err = NewItem(1, c.ID, "x", dec("1"), dec("-1"), false)
	assert.ErrorIs(t, err, ErrInvalidItemPrice)
}

func TestNewCouponValidation(t *testing.T) {
	c := New(1, testConfig())

	_, err := NewCoupon("X", c.ID, dec("-1"), dec("10"))
	assert.ErrorIs(t, err, ErrInvalidMinCartCost)

	_, err = NewCoupon("X", c.ID, dec("0"), dec("0"))
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.MaxItemsQty = -1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MinCostForCheckout = dec("-1")
	assert.Error(t, bad.Validate())

	bad = testConfig()
	bad.LimitItemsByID[3] = dec("0")
	assert.Error(t, bad.Validate())
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, Opened.Terminal())
	assert.False(t, Locked.Terminal())
	assert.True(t, Completed.Terminal())
	assert.True(t, Deactivated.Terminal())
}

func TestItemQtyMustStayPositive(t *testing.T) {
	c := New(1, testConfig())
	require.NoError(t, c.AddNewItem(mustItem(t, c, 1, "1", "10", false)))

	assert.True(t, errors.Is(c.UpdateItemQty(1, dec("0")), ErrInvalidItemQty))
	assert.True(t, errors.Is(c.IncreaseItemQty(1, dec("-1")), ErrInvalidItemQty))
}
