package models

import "time"

// Seller represents a home kitchen taking orders. Availability fields are
// optional: nil means the constraint is not set for this seller.
type Seller struct {
	ID             int64      `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	VacationStart  *time.Time `db:"vacation_start" json:"vacation_start,omitempty"`
	VacationEnd    *time.Time `db:"vacation_end" json:"vacation_end,omitempty"`
	OrderCutoff    *string    `db:"order_cutoff" json:"order_cutoff,omitempty"` // "HH:MM"
	DailyOrderCap  *int       `db:"daily_order_cap" json:"daily_order_cap,omitempty"`
	CommissionRate *float64   `db:"commission_rate" json:"commission_rate,omitempty"` // percent
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// MenuItem represents a dish on a seller's menu.
// StockCount nil means stock is not tracked (unlimited).
type MenuItem struct {
	ID          int64     `db:"id" json:"id"`
	SellerID    int64     `db:"seller_id" json:"seller_id"`
	Name        string    `db:"name" json:"name"`
	PricePence  int64     `db:"price_pence" json:"price_pence"`
	StockCount  *int      `db:"stock_count" json:"stock_count,omitempty"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Order represents a buyer's order against a single seller.
// All amounts are integer pence.
type Order struct {
	ID                  int64      `db:"id" json:"id"`
	BuyerID             int64      `db:"buyer_id" json:"buyer_id"`
	SellerID            int64      `db:"seller_id" json:"seller_id"`
	AddressID           int64      `db:"address_id" json:"address_id"`
	Status              Status     `db:"status" json:"status"`
	SubtotalPence       int64      `db:"subtotal_pence" json:"subtotal_pence"`
	DeliveryFeePence    int64      `db:"delivery_fee_pence" json:"delivery_fee_pence"`
	TotalPence          int64      `db:"total_pence" json:"total_pence"`
	SpecialInstructions string     `db:"special_instructions" json:"special_instructions,omitempty"`
	IdempotencyKey      string     `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
	DeliveredAt         *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}

// OrderItem is one order line. UnitPricePence is captured at order time and
// never changes afterwards, whatever happens to the menu price.
type OrderItem struct {
	ID             int64  `db:"id" json:"id"`
	OrderID        int64  `db:"order_id" json:"order_id"`
	ItemID         int64  `db:"item_id" json:"item_id"`
	Quantity       int    `db:"quantity" json:"quantity"`
	UnitPricePence int64  `db:"unit_price_pence" json:"unit_price_pence"`
	Notes          string `db:"notes" json:"notes,omitempty"`
}

// Settlement is the 1:1 payment split record for an order.
type Settlement struct {
	ID                int64     `db:"id" json:"id"`
	OrderID           int64     `db:"order_id" json:"order_id"`
	AmountPence       int64     `db:"amount_pence" json:"amount_pence"`
	PlatformFeePence  int64     `db:"platform_fee_pence" json:"platform_fee_pence"`
	SellerPayoutPence int64     `db:"seller_payout_pence" json:"seller_payout_pence"`
	Method            string    `db:"method" json:"method"`
	Status            string    `db:"status" json:"status"`
	ProviderTxID      string    `db:"provider_tx_id" json:"provider_tx_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Payment methods
const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
)

// Settlement statuses
const (
	SettlementStatusPending   = "PENDING"
	SettlementStatusCompleted = "COMPLETED"
)

// Notification is an append-only message to a user. Rows are the system of
// record; the realtime push is best-effort on top.
type Notification struct {
	ID          int64     `db:"id" json:"id"`
	RecipientID int64     `db:"recipient_id" json:"recipient_id"`
	Type        string    `db:"type" json:"type"`
	Title       string    `db:"title" json:"title"`
	Body        string    `db:"body" json:"body"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Notification types
const (
	NotificationTypeOrder        = "order"
	NotificationTypeAnnouncement = "announcement"
)

// ScheduledJob is a durable one-shot job row. Auto-reject deadlines are
// persisted here so any instance can claim and run them after a restart.
type ScheduledJob struct {
	ID         int64      `db:"id" json:"id"`
	OrderID    int64      `db:"order_id" json:"order_id"`
	Kind       string     `db:"kind" json:"kind"`
	RunAt      time.Time  `db:"run_at" json:"run_at"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ClaimedAt  *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
	ExecutedAt *time.Time `db:"executed_at" json:"executed_at,omitempty"`
}

// Scheduled job kinds and statuses. A CLAIMED job whose lease expires becomes
// claimable again; only DONE is final.
const (
	JobKindAutoReject = "auto_reject"

	JobStatusPending = "PENDING"
	JobStatusClaimed = "CLAIMED"
	JobStatusDone    = "DONE"
)

// Actor identifies who is asking for an operation. Identity is verified
// upstream; this core only enforces authority.
type Actor struct {
	UserID int64
	Role   string
}

// Actor roles
const (
	RoleBuyer    = "buyer"
	RoleSeller   = "seller"
	RoleOperator = "operator"
	RoleSystem   = "system"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
