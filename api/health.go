package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gocart/gocart/api/web"
	"github.com/gocart/gocart/database"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// HandleHealth answers 200 only when both backing stores answer a round
// trip.
func HandleHealth(db *sqlx.DB, rdb *redis.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		status := struct {
			Status   string `json:"status"`
			Database string `json:"database"`
			Redis    string `json:"redis"`
		}{Status: "ok", Database: "ok", Redis: "ok"}

		code := http.StatusOK
		if err := database.StatusCheck(ctx, db); err != nil {
			status.Status, status.Database = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			status.Status, status.Redis = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}

		return web.Respond(ctx, w, status, code)
	}
}
