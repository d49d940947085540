package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TaskAbandonedCartNotification is the queue task name for one abandoned
// cart notification.
const TaskAbandonedCartNotification = "abandoned-cart-notification"

// AbandonedCartPayload is the task payload of the fan-out.
type AbandonedCartPayload struct {
	UserID int       `json:"userId"`
	CartID uuid.UUID `json:"cartId"`
}

// AbandonedService detects idle carts and sends their owners a nudge.
// Detection only reads and enqueues, so it takes no per-cart lock.
type AbandonedService struct {
	log      logrus.FieldLogger
	uow      UnitOfWork
	producer TaskProducer
	notifier NotificationsClient
}

func NewAbandonedService(log logrus.FieldLogger, uow UnitOfWork, producer TaskProducer, notifier NotificationsClient) *AbandonedService {
	return &AbandonedService{
		log:      log,
		uow:      uow,
		producer: producer,
		notifier: notifier,
	}
}

// Process finds abandoned carts and enqueues one notification task per
// (user, cart) pair. An enqueue failure is logged and skipped; the next
// periodic run picks the cart up again.
func (s *AbandonedService) Process(ctx context.Context) error {
	var found []AbandonedCart
	err := s.uow.View(ctx, func(ctx context.Context, store Storer) error {
		cfg, err := store.GetConfig(ctx)
		if err != nil {
			return fmt.Errorf("loading cart config: %w", err)
		}

		found, err = store.FindAbandoned(
			ctx,
			time.Duration(cfg.HoursSinceUpdateUntilAbandoned)*time.Hour,
			cfg.MaxAbandonedNotificationsQty,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("finding abandoned carts: %w", err)
	}

	s.log.Debugf("got %d abandoned carts, enqueueing notification tasks", len(found))

	for _, ac := range found {
		payload := AbandonedCartPayload{UserID: ac.UserID, CartID: ac.CartID}
		if err := s.producer.Enqueue(ctx, TaskAbandonedCartNotification, payload); err != nil {
			// will be picked up on the next run
			s.log.WithField("cart_id", ac.CartID).Warnf("enqueueing notification task: %v", err)
			continue
		}
	}
	return nil
}

// SendNotification delivers the abandoned-cart message for one cart. The
// notification row is inserted under its dedup key in the same
// transaction as the send, so a duplicate task delivery is a no-op and a
// failed send leaves nothing recorded.
func (s *AbandonedService) SendNotification(ctx context.Context, userID int, cartID uuid.UUID) error {
	var cfg Config
	if err := s.uow.View(ctx, func(ctx context.Context, store Storer) error {
		var err error
		cfg, err = store.GetConfig(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("loading cart config: %w", err)
	}

	n := NewAbandonedCartNotification(cartID, cfg.AbandonedCartText)

	err := s.uow.Tx(ctx, func(ctx context.Context, store Storer) error {
		inserted, err := store.CreateNotification(ctx, n)
		if err != nil {
			return err
		}
		if !inserted {
			s.log.WithField("cart_id", cartID).Info("abandoned cart notification already sent, skipping")
			return nil
		}
		return s.notifier.Send(ctx, userID, n.Text)
	})
	if err != nil {
		return err
	}

	s.log.WithField("cart_id", cartID).Info("abandoned cart notification sent")
	return nil
}
