package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gocart/gocart/api/middleware"
	"github.com/gocart/gocart/api/web"
	"github.com/gocart/gocart/api/weberr"
	"github.com/gocart/gocart/core/auth"
	"github.com/gocart/gocart/lock"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handlerEnv serves the cart routes the way the api mux wires them, on
// top of the in-memory fakes.
func handlerEnv(t *testing.T) (*serviceEnv, *mux.Router) {
	t.Helper()

	env := newServiceEnv(t)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	r := mux.NewRouter()
	handle := func(method, path string, h web.Handler) {
		h = web.WrapMiddleware([]web.Middleware{middleware.Errors(log)}, h)
		r.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			_ = h(req.Context(), w, req)
		})).Methods(method)
	}

	handle(http.MethodPost, "/carts", HandleCreate(env.svc))
	handle(http.MethodGet, "/carts/{cart_id}", HandleShow(env.svc))
	handle(http.MethodDelete, "/carts/{cart_id}", HandleDeactivate(env.svc))
	handle(http.MethodPost, "/carts/{cart_id}/items", HandleAddItem(env.svc))
	handle(http.MethodPut, "/carts/{cart_id}/items/{item_id}", HandleUpdateItem(env.svc))
	handle(http.MethodDelete, "/carts/{cart_id}/items/{item_id}", HandleDeleteItem(env.svc))
	handle(http.MethodPost, "/carts/{cart_id}/lock", HandleLock(env.svc))
	handle(http.MethodPost, "/carts/{cart_id}/apply-coupon", HandleApplyCoupon(env.svc))
	handle(http.MethodGet, "/admin/cart-config", HandleGetConfig(env.svc))

	return env, r
}

func doJSON(t *testing.T, r *mux.Router, method, path, credential string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if credential != "" {
		req.Header.Set("Authorization", credential)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleCreateAndShow(t *testing.T) {
	_, r := handlerEnv(t)

	w := doJSON(t, r, http.MethodPost, "/carts", "user-1", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 1, created.UserID)
	assert.Equal(t, Opened, created.Status)
	assert.False(t, created.CheckoutEnabled)

	w = doJSON(t, r, http.MethodGet, "/carts/"+created.ID.String(), "user-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/carts/"+created.ID.String(), "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/carts/"+created.ID.String(), "user-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodGet, "/carts/not-a-uuid", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAddItemRendersTotals(t *testing.T) {
	_, r := handlerEnv(t)

	w := doJSON(t, r, http.MethodPost, "/carts", "user-1", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	body := map[string]any{"id": 1, "qty": "3"}
	w = doJSON(t, r, http.MethodPost, "/carts/"+created.ID.String()+"/items", "user-1", body)
	require.Equal(t, http.StatusOK, w.Code)

	var got CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Items, 1)
	// fake products: apples at 10 apiece
	assert.True(t, dec("3").Equal(got.ItemsQty))
	assert.True(t, dec("30").Equal(got.Cost))
	assert.True(t, dec("30").Equal(got.Items[0].Cost))
}

func TestHandleAddItemLimitCarriesDetail(t *testing.T) {
	env, r := handlerEnv(t)
	env.store.config.LimitItemsByID = map[int64]decimal.Decimal{1: dec("5")}

	w := doJSON(t, r, http.MethodPost, "/carts", "user-1", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	body := map[string]any{"id": 1, "qty": "7"}
	w = doJSON(t, r, http.MethodPost, "/carts/"+created.ID.String()+"/items", "user-1", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var detail struct {
		ItemID int64           `json:"itemId"`
		Limit  decimal.Decimal `json:"limit"`
		Actual decimal.Decimal `json:"actual"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, int64(1), detail.ItemID)
	assert.True(t, dec("5").Equal(detail.Limit))
	assert.True(t, dec("7").Equal(detail.Actual))
}

func TestHandleLockStatuses(t *testing.T) {
	env, r := handlerEnv(t)
	env.store.config.MinCostForCheckout = dec("100")

	w := doJSON(t, r, http.MethodPost, "/carts", "user-1", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// below the checkout minimum
	w = doJSON(t, r, http.MethodPost, "/carts/"+created.ID.String()+"/lock", "user-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := map[string]any{"id": 1, "qty": "10"}
	w = doJSON(t, r, http.MethodPost, "/carts/"+created.ID.String()+"/items", "user-1", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/carts/"+created.ID.String()+"/lock", "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// locking twice is a state conflict
	w = doJSON(t, r, http.MethodPost, "/carts/"+created.ID.String()+"/lock", "user-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleApplyCouponRendersDerivedValues(t *testing.T) {
	_, r := handlerEnv(t)

	w := doJSON(t, r, http.MethodPost, "/carts", "user-1", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	body := map[string]any{"id": 1, "qty": "2"}
	w = doJSON(t, r, http.MethodPost, "/carts/"+created.ID.String()+"/items", "user-1", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/carts/"+created.ID.String()+"/apply-coupon", "user-1", map[string]any{"name": "SAVE5"})
	require.Equal(t, http.StatusOK, w.Code)

	var got CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.Coupon)
	// fake coupons: no minimum, 5 off a 20 cart
	assert.True(t, got.Coupon.Applied)
	assert.True(t, dec("15").Equal(got.Coupon.CartCost))
}

func TestHandleAdminConfigForbiddenForCustomers(t *testing.T) {
	_, r := handlerEnv(t)

	w := doJSON(t, r, http.MethodGet, "/admin/cart-config", "user-1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodGet, "/admin/cart-config", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleDeactivateHidesCart(t *testing.T) {
	_, r := handlerEnv(t)

	w := doJSON(t, r, http.MethodPost, "/carts", "user-1", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created CartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, r, http.MethodDelete, "/carts/"+created.ID.String(), "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/carts/"+created.ID.String(), "user-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToWebErrMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid auth", auth.ErrInvalidAuthData, http.StatusUnauthorized},
		{"not admin", auth.ErrForbidden, http.StatusForbidden},
		{"not owned", ErrNotOwnedByUser, http.StatusForbidden},
		{"edit non-open", ErrOperationForbidden, http.StatusForbidden},
		{"cart missing", ErrCartNotFound, http.StatusNotFound},
		{"item missing", ErrItemDoesNotExist, http.StatusNotFound},
		{"coupon missing", ErrCouponDoesNotExist, http.StatusNotFound},
		{"contended", lock.ErrAlreadyLocked, http.StatusConflict},
		{"second active cart", ErrActiveCartAlreadyExists, http.StatusConflict},
		{"bad transition", &InvalidTransitionError{From: Opened, To: Completed}, http.StatusConflict},
		{"below minimum", ErrCantBeLocked, http.StatusUnprocessableEntity},
		{"too many items", ErrMaxItemsQtyLimitExceeded, http.StatusUnprocessableEntity},
		{"duplicate item", ErrItemAlreadyExists, http.StatusUnprocessableEntity},
		{"second coupon", ErrCouponAlreadyApplied, http.StatusUnprocessableEntity},
		{"item limit", &SpecificItemQtyLimitError{ItemID: 1, Limit: dec("5"), Actual: dec("7")}, http.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, status, ok := weberr.Response(toWebErr(tc.err))
			require.True(t, ok, "error must carry a response")
			assert.Equal(t, tc.status, status)
		})
	}
}

func TestToWebErrPassesUnknownThrough(t *testing.T) {
	boom := errors.New("boom")
	err := toWebErr(boom)
	assert.ErrorIs(t, err, boom)

	_, _, ok := weberr.Response(err)
	assert.False(t, ok, "unknown errors must fall through to the 500 handler")
}

func TestToWebErrDependencyFailure(t *testing.T) {
	err := toWebErr(&depError{})
	_, status, ok := weberr.Response(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, status)
}

type depError struct{}

func (e *depError) Error() string        { return "products service responded 500" }
func (e *depError) Collaborator() string { return "products" }
