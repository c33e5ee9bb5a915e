package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mana170183uk/homeal-orders/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetSellerByID retrieves a seller by ID
func (s *Store) GetSellerByID(ctx context.Context, id int64) (*models.Seller, error) {
	var seller models.Seller
	err := s.db.GetContext(ctx, &seller, "SELECT * FROM sellers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &seller, nil
}

// GetMenuItemByID retrieves a menu item by ID
func (s *Store) GetMenuItemByID(ctx context.Context, id int64) (*models.MenuItem, error) {
	var item models.MenuItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM menu_items WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetMenuItemsByIDs retrieves multiple menu items by IDs
func (s *Store) GetMenuItemsByIDs(ctx context.Context, ids []int64) ([]models.MenuItem, error) {
	if len(ids) == 0 {
		return []models.MenuItem{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM menu_items WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.MenuItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// CountSellerOrdersBetween counts a seller's orders created within [from, to)
// that still count against the daily cap. Cancelled and rejected orders do
// not consume cap.
func (s *Store) CountSellerOrdersBetween(ctx context.Context, sellerID int64, from, to time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM orders
		WHERE seller_id = $1
		  AND created_at >= $2 AND created_at < $3
		  AND status NOT IN ($4, $5)`,
		sellerID, from, to, models.StatusCancelled, models.StatusRejected)
	return count, err
}

// reserveStockTx performs the atomic conditional decrement for one line item
// inside the order-creation transaction. A tracked item that hits zero is
// flipped unavailable in the same statement. Returns false when the item is
// missing, unavailable, or short on stock.
func reserveStockTx(ctx context.Context, tx *sqlx.Tx, itemID int64, quantity int) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE menu_items
		SET stock_count = CASE WHEN stock_count IS NULL THEN NULL ELSE stock_count - $1 END,
		    is_available = (stock_count IS NULL OR stock_count - $1 > 0)
		WHERE id = $2
		  AND is_available
		  AND (stock_count IS NULL OR stock_count >= $1)`,
		quantity, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to reserve stock for item %d: %w", itemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// restockTx returns a cancelled or rejected order's quantities to tracked
// items. Untracked items are untouched. Availability flips back on only for
// items that were sold out; an item the seller turned off stays off no matter
// its stock.
func restockTx(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE menu_items m
		SET stock_count = m.stock_count + oi.quantity,
		    is_available = (m.is_available OR m.stock_count = 0)
		FROM order_items oi
		WHERE oi.order_id = $1
		  AND oi.item_id = m.id
		  AND m.stock_count IS NOT NULL`,
		orderID)
	if err != nil {
		return fmt.Errorf("failed to restock order %d: %w", orderID, err)
	}
	return nil
}
