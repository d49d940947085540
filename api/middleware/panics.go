package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gocart/gocart/api/web"
	"github.com/gocart/gocart/api/weberr"
)

// Panics converts a panic in a handler into an error flowing through the
// Errors middleware, so the server never dies on one request.
func Panics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {

			defer func() {
				if rec := recover(); rec != nil {
					trace := debug.Stack()
					err = weberr.InternalError(
						fmt.Errorf("panic: %v, trace: %s", rec, trace),
					)
				}
			}()

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
