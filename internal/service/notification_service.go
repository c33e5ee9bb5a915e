package service

import (
	"context"
	"fmt"

	"github.com/mana170183uk/homeal-orders/internal/models"
	"github.com/mana170183uk/homeal-orders/internal/notify"
	"github.com/mana170183uk/homeal-orders/internal/store"
	"github.com/mana170183uk/homeal-orders/internal/util"

	"go.uber.org/zap"
)

// NotificationService serves a user's notification feed and seller
// broadcasts.
type NotificationService struct {
	store    *store.Store
	notifier *notify.Notifier
	logger   *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(store *store.Store, notifier *notify.Notifier) *NotificationService {
	return &NotificationService{
		store:    store,
		notifier: notifier,
		logger:   util.GetLogger(),
	}
}

// List returns the actor's notifications, newest first.
func (ns *NotificationService) List(ctx context.Context, actor models.Actor, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return ns.store.GetNotificationsByRecipient(ctx, actor.UserID, limit)
}

// MarkRead marks one of the actor's notifications read.
func (ns *NotificationService) MarkRead(ctx context.Context, actor models.Actor, notificationID int64) error {
	ok, err := ns.store.MarkNotificationRead(ctx, notificationID, actor.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return &models.NotFoundError{Kind: "notification", ID: notificationID}
	}
	return nil
}

// Announce broadcasts a seller announcement to every follower. Sellers may
// only announce as themselves; operators may announce for any seller.
func (ns *NotificationService) Announce(ctx context.Context, actor models.Actor, sellerID int64, title, body string) (int, error) {
	switch actor.Role {
	case models.RoleOperator:
	case models.RoleSeller:
		if actor.UserID != sellerID {
			return 0, &models.AuthorizationError{}
		}
	default:
		return 0, &models.AuthorizationError{}
	}
	if title == "" {
		return 0, &models.ValidationError{Field: "title", Msg: "required"}
	}

	seller, err := ns.store.GetSellerByID(ctx, sellerID)
	if err != nil {
		return 0, fmt.Errorf("failed to load seller: %w", err)
	}
	if seller == nil {
		return 0, &models.NotFoundError{Kind: "seller", ID: sellerID}
	}

	followers, err := ns.store.GetFollowerIDs(ctx, sellerID)
	if err != nil {
		return 0, fmt.Errorf("failed to load followers: %w", err)
	}

	if err := ns.notifier.Broadcast(ctx, followers, models.NotificationTypeAnnouncement, title, body); err != nil {
		ns.logger.Error("Broadcast partially failed",
			zap.Int64("seller_id", sellerID),
			zap.Error(err))
	}
	return len(followers), nil
}
