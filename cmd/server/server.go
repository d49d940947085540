package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/gocart/gocart/api"
	"github.com/gocart/gocart/api/background"
	"github.com/gocart/gocart/client"
	"github.com/gocart/gocart/config"
	"github.com/gocart/gocart/core/auth"
	"github.com/gocart/gocart/core/cart"
	"github.com/gocart/gocart/core/cart/cartdb"
	"github.com/gocart/gocart/database"
	"github.com/gocart/gocart/lock"
	"github.com/gocart/gocart/notify"
	"github.com/gocart/gocart/rate"
	"github.com/gocart/gocart/task"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "GOCART"
	var cfg config.Config
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := stdlog.New(lw, "", 0)

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
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	locker := lock.New(rdb, lock.Config{
		TTL:           cfg.Lock.TTL,
		Wait:          cfg.Lock.Wait,
		RetryInterval: cfg.Lock.RetryInterval,
	}, logger)

	var authSys auth.System
	switch cfg.Auth.Mode {
	case "oidc":
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Auth.DiscoveryTimeout)
		defer cancel()
		authSys, err = auth.NewOIDC(ctx, cfg.Auth.Issuer, cfg.Auth.ClientID)
		if err != nil {
			return fmt.Errorf("failed to discover the oidc provider: %w", err)
		}
	default:
		authSys = auth.NewTokens(db)
	}

	products := client.NewProducts(client.Config(cfg.Products))
	coupons := client.NewCoupons(client.Config(cfg.Coupons))

	notifier := notify.NewSendgrid(notify.Config{
		APIKey:      cfg.Sendgrid.APIKey,
		FromName:    cfg.Sendgrid.FromName,
		FromAddress: cfg.Sendgrid.FromAddress,
		Subject:     cfg.Sendgrid.Subject,
	}, db)

	store := cartdb.New(db)
	producer := task.NewProducer(rdb)

	carts := cart.NewService(logger, store, locker, authSys, products, coupons)
	abandoned := cart.NewAbandonedService(logger, store, producer, notifier)

	worker := task.NewWorker(logger, rdb)
	worker.Register(cart.TaskAbandonedCartNotification, func(ctx context.Context, payload json.RawMessage) error {
		var p cart.AbandonedCartPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decoding abandoned cart payload: %w", err)
		}
		return abandoned.SendNotification(ctx, p.UserID, p.CartID)
	})

	mux := api.APIMux(api.APIConfig{
		CorsOrigin: cfg.Cors.Origin,
		Log:        logger,
		DB:         db,
		Redis:      rdb,
		Carts:      carts,
		Limiter:    rate.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute),
	})

	srv := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	bg := background.New(logger)

	bg.Go(func() {
		logger.Info("starting task worker")
		if err := worker.Run(jobsCtx); err != nil {
			logger.Errorf("task worker stopped: %v", err)
		}
	})

	bg.Go(func() {
		ticker := time.NewTicker(cfg.Abandoned.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-jobsCtx.Done():
				return
			case <-ticker.C:
				if err := abandoned.Process(jobsCtx); err != nil {
					logger.Errorf("abandoned carts sweep: %v", err)
				}
			}
		}
	})

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		stopJobs()
		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("background jobs did not drain in time: %w", err)
		}
	}
	return nil
}
