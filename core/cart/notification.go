package cart

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationAbandonedCart NotificationType = "ABANDONED_CART"
)

// Notification records one message sent about a cart.
type Notification struct {
	ID     uuid.UUID        `json:"id" db:"notification_id"`
	CartID uuid.UUID        `json:"cartId" db:"cart_id"`
	Type   NotificationType `json:"type" db:"type"`
	Text   string           `json:"text" db:"body"`
	SentAt time.Time        `json:"sentAt" db:"sent_at"`
}

func NewAbandonedCartNotification(cartID uuid.UUID, text string) Notification {
	return Notification{
		ID:     uuid.New(),
		CartID: cartID,
		Type:   NotificationAbandonedCart,
		Text:   text,
		SentAt: time.Now().UTC(),
	}
}
