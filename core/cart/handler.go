package cart

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gocart/gocart/api/web"
	"github.com/gocart/gocart/api/weberr"
	"github.com/gocart/gocart/core/auth"
	"github.com/gocart/gocart/lock"
	"github.com/gocart/gocart/validate"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemResponse is one cart line as rendered to clients.
type ItemResponse struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Qty      decimal.Decimal `json:"qty"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	IsWeight bool            `json:"isWeight"`
}

// CouponResponse renders a coupon with its derived values against the
// current cart cost.
type CouponResponse struct {
	ID          string          `json:"couponId"`
	MinCartCost decimal.Decimal `json:"minCartCost"`
	DiscountAbs decimal.Decimal `json:"discountAbs"`
	Applied     bool            `json:"applied"`
	CartCost    decimal.Decimal `json:"cartCost"`
}

// CartResponse is the snapshot every cart operation answers with.
type CartResponse struct {
	ID              uuid.UUID       `json:"id"`
	UserID          int             `json:"userId"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Items           []ItemResponse  `json:"items"`
	Coupon          *CouponResponse `json:"coupon"`
	ItemsQty        decimal.Decimal `json:"itemsQty"`
	Cost            decimal.Decimal `json:"cost"`
	CheckoutEnabled bool            `json:"checkoutEnabled"`
}

func toResponse(c *Cart) CartResponse {
	items := make([]ItemResponse, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, ItemResponse{
			ID:       it.ID,
			Name:     it.Name,
			Qty:      it.Qty,
			Price:    it.Price,
			Cost:     it.Cost(),
			IsWeight: it.IsWeight,
		})
	}

	resp := CartResponse{
		ID:              c.ID,
		UserID:          c.UserID,
		Status:          c.Status,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		Items:           items,
		ItemsQty:        c.ItemsQty(),
		Cost:            c.Cost(),
		CheckoutEnabled: c.CheckoutEnabled(),
	}

	if c.Coupon != nil {
		cost := c.Cost()
		resp.Coupon = &CouponResponse{
			ID:          c.Coupon.ID,
			MinCartCost: c.Coupon.MinCartCost,
			DiscountAbs: c.Coupon.DiscountAbs,
			Applied:     c.Coupon.AppliedTo(cost),
		}
		if resp.Coupon.Applied {
			resp.Coupon.CartCost = c.Coupon.DiscountedCost(cost)
		} else {
			resp.Coupon.CartCost = cost
		}
	}

	return resp
}

func HandleCreate(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := carts.Create(ctx, credential(r))
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, toResponse(c), http.StatusCreated)
	}
}

func HandleCreateByUser(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var body struct {
			UserID int `json:"userId" validate:"required,gt=0"`
		}
		if err := web.Decode(w, r, &body); err != nil {
			return weberr.BadRequest(err)
		}
		if err := validate.Check(body); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := carts.CreateByUserID(ctx, credential(r), body.UserID)
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, toResponse(c), http.StatusCreated)
	}
}

func HandleShow(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cartID, err := pathCartID(r)
		if err != nil {
			return err
		}

		c, err := carts.Retrieve(ctx, credential(r), cartID)
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, toResponse(c), http.StatusOK)
	}
}

func HandleList(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		pageSize := 20
		if raw := web.QueryParam(r, "page_size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 100 {
				return weberr.BadRequest(errors.New("page_size must be between 1 and 100"))
			}
			pageSize = n
		}

		var createdBefore time.Time
		if raw := web.QueryParam(r, "created_before"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return weberr.BadRequest(errors.New("created_before must be an RFC3339 timestamp"))
			}
			createdBefore = t
		}

		found, err := carts.List(ctx, credential(r), pageSize, createdBefore)
		if err != nil {
			return toWebErr(err)
		}

		out := make([]CartResponse, 0, len(found))
		for i := range found {
			out = append(out, toResponse(&found[i]))
		}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

func HandleAddItem(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cartID, err := pathCartID(r)
		if err != nil {
			return err
		}

		var body struct {
			ID  int64           `json:"id" validate:"required,gt=0"`
			Qty decimal.Decimal `json:"qty"`
		}
		if err := web.Decode(w, r, &body); err != nil {
			return weberr.BadRequest(err)
		}
		if err := validate.Check(body); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := carts.AddItem(ctx, credential(r), cartID, body.ID, body.Qty)
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, toResponse(c), http.StatusOK)
	}
}

func HandleUpdateItem(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cartID, err := pathCartID(r)
		if err != nil {
			return err
		}
		itemID, err := pathItemID(r)
		if err != nil {
			return err
		}

		var body struct {
			Qty decimal.Decimal `json:"qty"`
		}
		if err := web.Decode(w, r, &body); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := carts.UpdateItem(ctx, credential(r), cartID, itemID, body.Qty)
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, toResponse(c), http.StatusOK)
	}
}

func HandleDeleteItem(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cartID, err := pathCartID(r)
		if err != nil {
			return err
		}
		itemID, err := pathItemID(r)
		if err != nil {
			return err
		}

		c, err := carts.DeleteItem(ctx, credential(r), cartID, itemID)
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, toResponse(c), http.StatusOK)
	}
}

func HandleClear(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cartID, err := pathCartID(r)
		if err != nil {
			return err
		}

		c, err := carts.ClearCart(ctx, credential(r), cartID)
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, toResponse(c), http.StatusOK)
	}
}

func HandleApplyCoupon(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cartID, err := pathCartID(r)
		if err != nil {
			return err
		}

		var body struct {
			Name string `json:"name" validate:"required"`
		}
		if err := web.Decode(w, r, &body); err != nil {
			return weberr.BadRequest(err)
		}
		if err := validate.Check(body); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := carts.ApplyCoupon(ctx, credential(r), cartID, body.Name)
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, toResponse(c), http.StatusOK)
	}
}

func HandleRemoveCoupon(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cartID, err := pathCartID(r)
		if err != nil {
			return err
		}

		c, err := carts.RemoveCoupon(ctx, credential(r), cartID)
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, toResponse(c), http.StatusOK)
	}
}

func HandleLock(carts *Service) web.Handler {
	return transitionHandler(carts.Lock)
}

func HandleUnlock(carts *Service) web.Handler {
	return transitionHandler(carts.Unlock)
}

func HandleComplete(carts *Service) web.Handler {
	return transitionHandler(carts.Complete)
}

func HandleDeactivate(carts *Service) web.Handler {
	return transitionHandler(carts.Deactivate)
}

func transitionHandler(op func(ctx context.Context, credential string, cartID uuid.UUID) (*Cart, error)) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cartID, err := pathCartID(r)
		if err != nil {
			return err
		}

		c, err := op(ctx, credential(r), cartID)
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, toResponse(c), http.StatusOK)
	}
}

func HandleGetConfig(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cfg, err := carts.GetConfig(ctx, credential(r))
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, cfg, http.StatusOK)
	}
}

func HandleUpdateConfig(carts *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cfg Config
		if err := web.Decode(w, r, &cfg); err != nil {
			return weberr.BadRequest(err)
		}

		out, err := carts.UpdateConfig(ctx, credential(r), cfg)
		if err != nil {
			return toWebErr(err)
		}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

func credential(r *http.Request) string {
	return r.Header.Get("Authorization")
}

func pathCartID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(web.Param(r, "cart_id"))
	if err != nil {
		return uuid.Nil, weberr.BadRequest(errors.New("cart id is not in its proper form"))
	}
	return id, nil
}

func pathItemID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(web.Param(r, "item_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, weberr.BadRequest(errors.New("item id is not in its proper form"))
	}
	return id, nil
}

// collaborator is implemented by outbound-dependency errors; they map to
// a bad-gateway response rather than a domain rejection.
type collaborator interface {
	error
	Collaborator() string
}

// toWebErr translates service errors into HTTP responses. Anything not
// translated falls through to the 500 handler unexposed.
func toWebErr(err error) error {
	var (
		transition *InvalidTransitionError
		itemLimit  *SpecificItemQtyLimitError
		dep        collaborator
	)

	switch {
	case errors.Is(err, auth.ErrInvalidAuthData):
		return weberr.NotAuthorized(err)

	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, ErrNotOwnedByUser),
		errors.Is(err, ErrOperationForbidden):
		return weberr.Forbidden(err)

	case errors.Is(err, ErrCartNotFound),
		errors.Is(err, ErrItemDoesNotExist),
		errors.Is(err, ErrCouponDoesNotExist):
		return weberr.NewError(err, err.Error(), http.StatusNotFound)

	case errors.Is(err, lock.ErrAlreadyLocked):
		return weberr.Conflict(err, "cart is busy, try again shortly")

	case errors.Is(err, ErrActiveCartAlreadyExists):
		return weberr.Conflict(err, err.Error())

	case errors.As(err, &transition):
		return weberr.Conflict(err, transition.Error())

	case errors.As(err, &itemLimit):
		body := struct {
			Error  string          `json:"error"`
			ItemID int64           `json:"itemId"`
			Limit  decimal.Decimal `json:"limit"`
			Actual decimal.Decimal `json:"actual"`
		}{
			Error:  itemLimit.Error(),
			ItemID: itemLimit.ItemID,
			Limit:  itemLimit.Limit,
			Actual: itemLimit.Actual,
		}
		return weberr.Wrap(
			&weberr.RequestError{Err: err},
			weberr.WithResponse(body, http.StatusUnprocessableEntity),
		)

	case errors.Is(err, ErrCantBeLocked),
		errors.Is(err, ErrMaxItemsQtyLimitExceeded),
		errors.Is(err, ErrItemAlreadyExists),
		errors.Is(err, ErrCouponAlreadyApplied),
		errors.Is(err, ErrInvalidItemQty),
		errors.Is(err, ErrInvalidItemPrice),
		errors.Is(err, ErrInvalidMinCartCost),
		errors.Is(err, ErrInvalidDiscount):
		return weberr.Unprocessable(err, err.Error())

	case errors.As(err, &dep):
		return weberr.BadGateway(err)

	default:
		return err
	}
}
