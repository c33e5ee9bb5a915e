package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mana170183uk/homeal-orders/internal/models"
)

// CreateOrder durably creates an order as one atomic unit: per-line
// conditional stock decrements, then the order row, its items, its settlement
// and the auto-reject job. Any line that cannot be covered rolls the whole
// transaction back and returns an InsufficientStockError naming the line.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem, settlement *models.Settlement, autoRejectAt time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		ok, err := reserveStockTx(ctx, tx, item.ItemID, item.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return s.stockConflict(ctx, item.ItemID)
		}
	}

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (buyer_id, seller_id, address_id, status, subtotal_pence,
			delivery_fee_pence, total_pence, special_instructions, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *`,
		order.BuyerID, order.SellerID, order.AddressID, order.Status,
		order.SubtotalPence, order.DeliveryFeePence, order.TotalPence,
		order.SpecialInstructions, order.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err := tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO order_items (order_id, item_id, quantity, unit_price_pence, notes)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			items[i].OrderID, items[i].ItemID, items[i].Quantity,
			items[i].UnitPricePence, items[i].Notes)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	settlement.OrderID = order.ID
	err = tx.GetContext(ctx, settlement, `
		INSERT INTO settlements (order_id, amount_pence, platform_fee_pence, seller_payout_pence, method, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *`,
		settlement.OrderID, settlement.AmountPence, settlement.PlatformFeePence,
		settlement.SellerPayoutPence, settlement.Method, settlement.Status)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (order_id, kind, run_at, status)
		VALUES ($1, $2, $3, $4)`,
		order.ID, models.JobKindAutoReject, autoRejectAt, models.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to schedule auto-reject: %w", err)
	}

	return tx.Commit()
}

// stockConflict builds the per-item failure detail after a reserve miss. An
// item the seller has turned off is reported as unavailable, not as short
// stock: it may still have plenty remaining.
func (s *Store) stockConflict(ctx context.Context, itemID int64) error {
	var row struct {
		Name        string `db:"name"`
		StockCount  *int   `db:"stock_count"`
		IsAvailable bool   `db:"is_available"`
	}
	err := s.db.GetContext(ctx, &row,
		"SELECT name, stock_count, is_available FROM menu_items WHERE id = $1", itemID)
	if err == sql.ErrNoRows {
		return &models.NotFoundError{Kind: "menu item", ID: itemID}
	}
	if err != nil {
		return err
	}
	if !row.IsAvailable && (row.StockCount == nil || *row.StockCount > 0) {
		return &models.ItemUnavailableError{ItemID: itemID, Name: row.Name}
	}
	remaining := 0
	if row.StockCount != nil {
		remaining = *row.StockCount
	}
	return &models.InsufficientStockError{ItemID: itemID, Name: row.Name, Remaining: remaining}
}

// TransitionOrder applies from -> to as a single conditional update so a
// concurrent transition on the same order loses cleanly instead of clobbering.
// Entering DELIVERED stamps delivered_at and completes a pending cash
// settlement; entering CANCELLED or REJECTED returns stock, all in the same
// transaction. Returns false when the order was no longer in the from status.
func (s *Store) TransitionOrder(ctx context.Context, orderID int64, from, to models.Status) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var res sql.Result
	if to == models.StatusDelivered {
		res, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = $1, delivered_at = NOW(), updated_at = NOW()
			WHERE id = $2 AND status = $3`,
			to, orderID, from)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3`,
			to, orderID, from)
	}
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	switch to {
	case models.StatusDelivered:
		_, err = tx.ExecContext(ctx, `
			UPDATE settlements SET status = $1, updated_at = NOW()
			WHERE order_id = $2 AND method = $3 AND status = $4`,
			models.SettlementStatusCompleted, orderID,
			models.PaymentMethodCash, models.SettlementStatusPending)
		if err != nil {
			return false, fmt.Errorf("failed to complete settlement: %w", err)
		}
	case models.StatusCancelled, models.StatusRejected:
		if err := restockTx(ctx, tx, orderID); err != nil {
			return false, err
		}
	}

	return true, tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// GetOrdersByBuyerID retrieves orders for a buyer
func (s *Store) GetOrdersByBuyerID(ctx context.Context, buyerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC", buyerID)
	return orders, err
}

// GetSettlementByOrderID retrieves the settlement for an order
func (s *Store) GetSettlementByOrderID(ctx context.Context, orderID int64) (*models.Settlement, error) {
	var settlement models.Settlement
	err := s.db.GetContext(ctx, &settlement,
		"SELECT * FROM settlements WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

// CompleteCardSettlement marks a pending card settlement completed. Returns
// false when there was nothing to complete, which makes redelivered payment
// confirmations harmless.
func (s *Store) CompleteCardSettlement(ctx context.Context, orderID int64, providerTxID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE settlements SET status = $1, provider_tx_id = $2, updated_at = NOW()
		WHERE order_id = $3 AND method = $4 AND status = $5`,
		models.SettlementStatusCompleted, providerTxID, orderID,
		models.PaymentMethodCard, models.SettlementStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
