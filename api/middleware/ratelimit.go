package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gocart/gocart/api/web"
	"github.com/gocart/gocart/api/weberr"
	"github.com/gocart/gocart/rate"
)

// RateLimit throttles by client address.
func RateLimit(limiter *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !limiter.Allow(host) {
				return weberr.NewError(
					errors.New("rate limit exceeded"),
					"too many requests, slow down",
					http.StatusTooManyRequests,
				)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
