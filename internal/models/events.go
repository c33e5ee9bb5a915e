package models

import "time"

// Event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypePaymentConfirmed   = "PAYMENT_CONFIRMED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when an order is admitted and created
type OrderPlacedEvent struct {
	BaseEvent
	OrderID    int64           `json:"order_id"`
	BuyerID    int64           `json:"buyer_id"`
	SellerID   int64           `json:"seller_id"`
	TotalPence int64           `json:"total_pence"`
	Items      []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published on every successful transition. Email and
// analytics collaborators key off this stream.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	BuyerID   int64  `json:"buyer_id"`
	SellerID  int64  `json:"seller_id"`
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`
	Reason    string `json:"reason,omitempty"`
	ActorRole string `json:"actor_role"`
}

// PaymentConfirmedEvent consumed from the external card payment processor.
// Drives card settlements from PENDING to COMPLETED.
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderID      int64  `json:"order_id"`
	ProviderTxID string `json:"provider_tx_id"`
	AmountPence  int64  `json:"amount_pence"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ItemID         int64 `json:"item_id"`
	Quantity       int   `json:"quantity"`
	UnitPricePence int64 `json:"unit_price_pence"`
}
