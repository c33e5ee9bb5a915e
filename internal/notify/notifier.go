package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mana170183uk/homeal-orders/internal/models"
	"github.com/mana170183uk/homeal-orders/internal/util"

	"go.uber.org/zap"
)

// Push event names carried on the realtime channel.
const (
	PushOrderNew        = "order:new"
	PushOrderUpdate     = "order:update"
	PushNotificationNew = "notification:new"
)

// PushEvent is the small JSON payload published to a recipient's channel.
type PushEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// OrderPushData is the payload for order pushes.
type OrderPushData struct {
	OrderID int64         `json:"order_id"`
	Status  models.Status `json:"status"`
	Reason  string        `json:"reason,omitempty"`
}

// NotificationPushData is the payload for notification pushes.
type NotificationPushData struct {
	NotificationID int64  `json:"notification_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
}

// RowStore persists notification rows.
type RowStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Pusher publishes a payload to a recipient's realtime channel.
type Pusher interface {
	Push(ctx context.Context, recipientID int64, payload []byte) error
}

// Notifier fans a state-change event out to its recipients. The notification
// row is written first and is the system of record; the push is attempted
// once per event and its failure is logged, never propagated.
type Notifier struct {
	store  RowStore
	pusher Pusher
	logger *zap.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(store RowStore, pusher Pusher) *Notifier {
	return &Notifier{
		store:  store,
		pusher: pusher,
		logger: util.GetLogger(),
	}
}

// OrderPlaced tells the seller about a freshly created order.
func (n *Notifier) OrderPlaced(ctx context.Context, order *models.Order) error {
	row := &models.Notification{
		RecipientID: order.SellerID,
		Type:        models.NotificationTypeOrder,
		Title:       "New order",
		Body:        fmt.Sprintf("Order #%d has been placed", order.ID),
	}
	if err := n.store.CreateNotification(ctx, row); err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}
	util.NotificationsPersistedTotal.Inc()

	n.push(ctx, order.SellerID, PushEvent{
		Event: PushOrderNew,
		Data:  OrderPushData{OrderID: order.ID, Status: order.Status},
	})
	return nil
}

// OrderStatusChanged notifies the counterpart party of a transition: the
// buyer for seller or system transitions, the seller for a buyer cancel.
func (n *Notifier) OrderStatusChanged(ctx context.Context, order *models.Order, to models.Status, reason, actorRole string) error {
	recipient := order.BuyerID
	if actorRole == models.RoleBuyer {
		recipient = order.SellerID
	}

	body := fmt.Sprintf("Order #%d is now %s", order.ID, to)
	if reason != "" {
		body = fmt.Sprintf("%s (%s)", body, reason)
	}
	row := &models.Notification{
		RecipientID: recipient,
		Type:        models.NotificationTypeOrder,
		Title:       "Order update",
		Body:        body,
	}
	if err := n.store.CreateNotification(ctx, row); err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}
	util.NotificationsPersistedTotal.Inc()

	if recipient == order.BuyerID {
		n.push(ctx, recipient, PushEvent{
			Event: PushOrderUpdate,
			Data:  OrderPushData{OrderID: order.ID, Status: to, Reason: reason},
		})
	} else {
		n.push(ctx, recipient, PushEvent{
			Event: PushNotificationNew,
			Data:  NotificationPushData{NotificationID: row.ID, Title: row.Title, Body: row.Body},
		})
	}
	return nil
}

// Broadcast writes one row per recipient and pushes to each. Cost is
// O(recipients); a recipient whose row fails is skipped, the rest proceed.
func (n *Notifier) Broadcast(ctx context.Context, recipientIDs []int64, typ, title, body string) error {
	var lastErr error
	for _, id := range recipientIDs {
		row := &models.Notification{
			RecipientID: id,
			Type:        typ,
			Title:       title,
			Body:        body,
		}
		if err := n.store.CreateNotification(ctx, row); err != nil {
			n.logger.Error("Failed to persist broadcast notification",
				zap.Int64("recipient_id", id),
				zap.Error(err))
			lastErr = err
			continue
		}
		util.NotificationsPersistedTotal.Inc()

		n.push(ctx, id, PushEvent{
			Event: PushNotificationNew,
			Data:  NotificationPushData{NotificationID: row.ID, Title: title, Body: body},
		})
	}
	return lastErr
}

// push attempts one best-effort delivery. Never retried, never fails the
// triggering state change.
func (n *Notifier) push(ctx context.Context, recipientID int64, event PushEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Failed to marshal push payload", zap.Error(err))
		return
	}
	if err := n.pusher.Push(ctx, recipientID, payload); err != nil {
		util.NotificationPushesFailedTotal.Inc()
		n.logger.Warn("Realtime push failed",
			zap.Int64("recipient_id", recipientID),
			zap.String("event", event.Event),
			zap.Error(err))
	}
}
