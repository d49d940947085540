package api

import (
	"context"
	"net/http"

	"github.com/gocart/gocart/api/middleware"
	"github.com/gocart/gocart/api/web"
	"github.com/gocart/gocart/core/cart"
	"github.com/gocart/gocart/rate"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Redis      *redis.Client
	Carts      *cart.Service
	Limiter    *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.Limiter != nil {
		a.mw = append(a.mw, middleware.RateLimit(cfg.Limiter))
	}

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	a.Handle(http.MethodGet, "/health", HandleHealth(cfg.DB, cfg.Redis))

	a.Handle(http.MethodPost, "/carts", cart.HandleCreate(cfg.Carts))
	a.Handle(http.MethodGet, "/carts/{cart_id}", cart.HandleShow(cfg.Carts))
	a.Handle(http.MethodDelete, "/carts/{cart_id}", cart.HandleDeactivate(cfg.Carts))

	a.Handle(http.MethodPost, "/carts/{cart_id}/items", cart.HandleAddItem(cfg.Carts))
	a.Handle(http.MethodPut, "/carts/{cart_id}/items/{item_id}", cart.HandleUpdateItem(cfg.Carts))
	a.Handle(http.MethodDelete, "/carts/{cart_id}/items/{item_id}", cart.HandleDeleteItem(cfg.Carts))
	a.Handle(http.MethodDelete, "/carts/{cart_id}/items", cart.HandleClear(cfg.Carts))

	a.Handle(http.MethodPost, "/carts/{cart_id}/apply-coupon", cart.HandleApplyCoupon(cfg.Carts))
	a.Handle(http.MethodDelete, "/carts/{cart_id}/coupon", cart.HandleRemoveCoupon(cfg.Carts))

	a.Handle(http.MethodPost, "/carts/{cart_id}/lock", cart.HandleLock(cfg.Carts))
	a.Handle(http.MethodPost, "/carts/{cart_id}/unlock", cart.HandleUnlock(cfg.Carts))
	a.Handle(http.MethodPost, "/carts/{cart_id}/complete", cart.HandleComplete(cfg.Carts))

	a.Handle(http.MethodGet, "/admin/carts", cart.HandleList(cfg.Carts))
	a.Handle(http.MethodPost, "/admin/carts", cart.HandleCreateByUser(cfg.Carts))
	a.Handle(http.MethodGet, "/admin/cart-config", cart.HandleGetConfig(cfg.Carts))
	a.Handle(http.MethodPut, "/admin/cart-config", cart.HandleUpdateConfig(cfg.Carts))

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
