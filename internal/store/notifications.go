package store

import (
	"context"

	"github.com/mana170183uk/homeal-orders/internal/models"
)

// CreateNotification appends a notification row. Rows are never deleted.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.db.GetContext(ctx, n, `
		INSERT INTO notifications (recipient_id, type, title, body)
		VALUES ($1, $2, $3, $4)
		RETURNING *`,
		n.RecipientID, n.Type, n.Title, n.Body)
}

// GetNotificationsByRecipient retrieves a recipient's notifications, newest
// first.
func (s *Store) GetNotificationsByRecipient(ctx context.Context, recipientID int64, limit int) ([]models.Notification, error) {
	var list []models.Notification
	err := s.db.SelectContext(ctx, &list, `
		SELECT * FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		recipientID, limit)
	return list, err
}

// MarkNotificationRead marks one notification read, owner only. Returns false
// when the row does not exist or belongs to someone else.
func (s *Store) MarkNotificationRead(ctx context.Context, id, recipientID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND recipient_id = $2`,
		id, recipientID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// GetFollowerIDs retrieves the buyer IDs following a seller.
func (s *Store) GetFollowerIDs(ctx context.Context, sellerID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		"SELECT buyer_id FROM seller_followers WHERE seller_id = $1", sellerID)
	return ids, err
}
