// cartctl is the ops companion of the cart service: schema migrations,
// cart-config inspection and the abandoned-cart sweep, runnable from
// cron or by hand.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ardanlabs/conf/v3"
	"github.com/gocart/gocart/config"
	"github.com/gocart/gocart/core/cart"
	"github.com/gocart/gocart/core/cart/cartdb"
	"github.com/gocart/gocart/database"
	"github.com/gocart/gocart/task"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	app := &cli.App{
		Name:  "cartctl",
		Usage: "operate the cart service",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply pending schema migrations",
				Action: func(c *cli.Context) error {
					db, err := openDB()
					if err != nil {
						return err
					}
					defer db.Close()

					if err := database.Migrate(db); err != nil {
						return err
					}
					log.Info("schema is up to date")
					return nil
				},
			},
			{
				Name:  "config",
				Usage: "inspect or change the cart configuration",
				Subcommands: []*cli.Command{
					{
						Name:  "show",
						Usage: "print the current cart configuration",
						Action: func(c *cli.Context) error {
							db, err := openDB()
							if err != nil {
								return err
							}
							defer db.Close()

							var cfg cart.Config
							err = cartdb.New(db).View(c.Context, func(ctx context.Context, s cart.Storer) error {
								cfg, err = s.GetConfig(ctx)
								return err
							})
							if err != nil {
								return err
							}

							out, err := json.MarshalIndent(cfg, "", "  ")
							if err != nil {
								return err
							}
							fmt.Fprintln(c.App.Writer, string(out))
							return nil
						},
					},
					{
						Name:  "set",
						Usage: "change cart configuration values",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "max-items-qty", Value: -1},
							&cli.StringFlag{Name: "min-cost-for-checkout"},
							&cli.StringSliceFlag{Name: "item-limit", Usage: "per-item qty cap as id=limit, repeatable"},
							&cli.IntFlag{Name: "abandoned-hours", Value: -1},
							&cli.IntFlag{Name: "max-abandoned-notifications", Value: -1},
							&cli.StringFlag{Name: "abandoned-text"},
						},
						Action: func(c *cli.Context) error {
							db, err := openDB()
							if err != nil {
								return err
							}
							defer db.Close()

							return cartdb.New(db).Tx(c.Context, func(ctx context.Context, s cart.Storer) error {
								cfg, err := s.GetConfig(ctx)
								if err != nil {
									return err
								}
								if err := applyFlags(c, &cfg); err != nil {
									return err
								}
								if err := cfg.Validate(); err != nil {
									return err
								}
								return s.UpdateConfig(ctx, cfg)
							})
						},
					},
				},
			},
			{
				Name:  "abandoned",
				Usage: "abandoned-cart jobs",
				Subcommands: []*cli.Command{
					{
						Name:  "process",
						Usage: "enqueue notifications for currently abandoned carts",
						Action: func(c *cli.Context) error {
							db, err := openDB()
							if err != nil {
								return err
							}
							defer db.Close()

							cfg, err := parse()
							if err != nil {
								return err
							}

							rdb := redis.NewClient(&redis.Options{
								Addr:     cfg.Redis.Address,
								Password: cfg.Redis.Password,
								DB:       cfg.Redis.DB,
							})
							defer rdb.Close()

							svc := cart.NewAbandonedService(log, cartdb.New(db), task.NewProducer(rdb), nil)
							return svc.Process(c.Context)
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func parse() (config.Config, error) {
	var cfg config.Config
	if _, err := conf.Parse("GOCART", &cfg); err != nil {
		return config.Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func openDB() (*sqlx.DB, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Config{
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Host:         cfg.DB.Host,
		Name:         cfg.DB.Name,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		DisableTLS:   cfg.DB.DisableTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}
	return db, nil
}

func applyFlags(c *cli.Context, cfg *cart.Config) error {
	if v := c.Int("max-items-qty"); v >= 0 {
		cfg.MaxItemsQty = v
	}
	if raw := c.String("min-cost-for-checkout"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("parsing min-cost-for-checkout: %w", err)
		}
		cfg.MinCostForCheckout = v
	}
	if v := c.Int("abandoned-hours"); v >= 0 {
		cfg.HoursSinceUpdateUntilAbandoned = v
	}
	if v := c.Int("max-abandoned-notifications"); v >= 0 {
		cfg.MaxAbandonedNotificationsQty = v
	}
	if v := c.String("abandoned-text"); v != "" {
		cfg.AbandonedCartText = v
	}

	for _, pair := range c.StringSlice("item-limit") {
		id, limit, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("item-limit %q is not id=limit", pair)
		}
		itemID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing item-limit id %q: %w", id, err)
		}
		val, err := decimal.NewFromString(limit)
		if err != nil {
			return fmt.Errorf("parsing item-limit value %q: %w", limit, err)
		}
		if cfg.LimitItemsByID == nil {
			cfg.LimitItemsByID = make(map[int64]decimal.Decimal)
		}
		cfg.LimitItemsByID[itemID] = val
	}
	return nil
}
