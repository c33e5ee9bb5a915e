package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mana170183uk/homeal-orders/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Schema the tests provision themselves so a plain `createdb` is enough to
// run them.
const testSchema = `
CREATE TABLE IF NOT EXISTS sellers (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	vacation_start  TIMESTAMPTZ,
	vacation_end    TIMESTAMPTZ,
	order_cutoff    TEXT,
	daily_order_cap INT,
	commission_rate DOUBLE PRECISION,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS menu_items (
	id           BIGSERIAL PRIMARY KEY,
	seller_id    BIGINT NOT NULL,
	name         TEXT NOT NULL,
	price_pence  BIGINT NOT NULL,
	stock_count  INT,
	is_available BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS orders (
	id                   BIGSERIAL PRIMARY KEY,
	buyer_id             BIGINT NOT NULL,
	seller_id            BIGINT NOT NULL,
	address_id           BIGINT NOT NULL,
	status               TEXT NOT NULL,
	subtotal_pence       BIGINT NOT NULL,
	delivery_fee_pence   BIGINT NOT NULL,
	total_pence          BIGINT NOT NULL,
	special_instructions TEXT NOT NULL DEFAULT '',
	idempotency_key      TEXT NOT NULL UNIQUE,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	delivered_at         TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS order_items (
	id               BIGSERIAL PRIMARY KEY,
	order_id         BIGINT NOT NULL,
	item_id          BIGINT NOT NULL,
	quantity         INT NOT NULL,
	unit_price_pence BIGINT NOT NULL,
	notes            TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS settlements (
	id                  BIGSERIAL PRIMARY KEY,
	order_id            BIGINT NOT NULL UNIQUE,
	amount_pence        BIGINT NOT NULL,
	platform_fee_pence  BIGINT NOT NULL,
	seller_payout_pence BIGINT NOT NULL,
	method              TEXT NOT NULL,
	status              TEXT NOT NULL,
	provider_tx_id      TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS scheduled_jobs (
	id          BIGSERIAL PRIMARY KEY,
	order_id    BIGINT NOT NULL,
	kind        TEXT NOT NULL,
	run_at      TIMESTAMPTZ NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	claimed_at  TIMESTAMPTZ,
	executed_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS notifications (
	id           BIGSERIAL PRIMARY KEY,
	recipient_id BIGINT NOT NULL,
	type         TEXT NOT NULL,
	title        TEXT NOT NULL,
	body         TEXT NOT NULL DEFAULT '',
	is_read      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS seller_followers (
	seller_id BIGINT NOT NULL,
	buyer_id  BIGINT NOT NULL,
	PRIMARY KEY (seller_id, buyer_id)
);
CREATE TABLE IF NOT EXISTS processed_events (
	event_id     TEXT PRIMARY KEY,
	event_type   TEXT NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("set TEST_DATABASE_URL to run store integration tests")
	}

	s, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	s.db.MustExec(testSchema)
	s.db.MustExec(`TRUNCATE sellers, menu_items, orders, order_items,
		settlements, scheduled_jobs, notifications, seller_followers,
		processed_events RESTART IDENTITY`)
	return s
}

func seedSeller(t *testing.T, s *Store) int64 {
	t.Helper()
	var id int64
	err := s.db.Get(&id,
		"INSERT INTO sellers (name) VALUES ('Amara''s Kitchen') RETURNING id")
	require.NoError(t, err)
	return id
}

// seedItem inserts a menu item; stock nil means untracked.
func seedItem(t *testing.T, s *Store, sellerID int64, stock *int, available bool) int64 {
	t.Helper()
	var id int64
	err := s.db.Get(&id, `
		INSERT INTO menu_items (seller_id, name, price_pence, stock_count, is_available)
		VALUES ($1, 'Jollof Rice', 1000, $2, $3)
		RETURNING id`, sellerID, stock, available)
	require.NoError(t, err)
	return id
}

func intp(n int) *int { return &n }

var orderSeq int

func placedOrder(buyerID, sellerID int64, total int64) (*models.Order, *models.Settlement) {
	orderSeq++
	order := &models.Order{
		BuyerID:          buyerID,
		SellerID:         sellerID,
		AddressID:        1,
		Status:           models.StatusPlaced,
		SubtotalPence:    total - 30,
		DeliveryFeePence: 30,
		TotalPence:       total,
		IdempotencyKey:   fmt.Sprintf("test-key-%d-%d", buyerID, orderSeq),
	}
	settlement := &models.Settlement{
		AmountPence:       total,
		PlatformFeePence:  total / 10,
		SellerPayoutPence: total - total/10,
		Method:            models.PaymentMethodCash,
		Status:            models.SettlementStatusPending,
	}
	return order, settlement
}

func TestCreateOrderAtomicUnit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sellerID := seedSeller(t, s)
	itemID := seedItem(t, s, sellerID, nil, true)

	order, settlement := placedOrder(10, sellerID, 1030)
	items := []models.OrderItem{{ItemID: itemID, Quantity: 1, UnitPricePence: 1000}}

	err := s.CreateOrder(ctx, order, items, settlement, time.Now().Add(30*time.Minute))
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.NotZero(t, settlement.ID)
	assert.Equal(t, order.ID, settlement.OrderID)

	// The auto-reject job was written in the same transaction.
	job, err := s.GetJobByOrderID(ctx, order.ID, models.JobKindAutoReject)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
}

func TestConcurrentPlacementNeverOversells(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sellerID := seedSeller(t, s)
	itemID := seedItem(t, s, sellerID, intp(1), true)

	// Two simultaneous placements each want the last unit: exactly one
	// must win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		order, settlement := placedOrder(int64(10+i), sellerID, 1030)
		wg.Add(1)
		go func(i int, order *models.Order, settlement *models.Settlement) {
			defer wg.Done()
			items := []models.OrderItem{{ItemID: itemID, Quantity: 1, UnitPricePence: 1000}}
			errs[i] = s.CreateOrder(ctx, order, items, settlement, time.Now().Add(30*time.Minute))
		}(i, order, settlement)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			assert.IsType(t, &models.InsufficientStockError{}, err)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	item, err := s.GetMenuItemByID(ctx, itemID)
	require.NoError(t, err)
	require.NotNil(t, item.StockCount)
	assert.Equal(t, 0, *item.StockCount)
	assert.False(t, item.IsAvailable)
}

func TestDisabledItemReportedAsUnavailable(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sellerID := seedSeller(t, s)
	itemID := seedItem(t, s, sellerID, intp(8), false)

	order, settlement := placedOrder(10, sellerID, 1030)
	items := []models.OrderItem{{ItemID: itemID, Quantity: 1, UnitPricePence: 1000}}

	// The item has stock; turning it off must not read as "8 remaining".
	err := s.CreateOrder(ctx, order, items, settlement, time.Now().Add(30*time.Minute))
	require.Error(t, err)
	unavailable, ok := err.(*models.ItemUnavailableError)
	require.True(t, ok, "got %T: %v", err, err)
	assert.Equal(t, itemID, unavailable.ItemID)
}

func TestTransitionIsConditional(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sellerID := seedSeller(t, s)
	itemID := seedItem(t, s, sellerID, nil, true)

	order, settlement := placedOrder(10, sellerID, 1030)
	items := []models.OrderItem{{ItemID: itemID, Quantity: 1, UnitPricePence: 1000}}
	require.NoError(t, s.CreateOrder(ctx, order, items, settlement, time.Now().Add(30*time.Minute)))

	ok, err := s.TransitionOrder(ctx, order.ID, models.StatusPlaced, models.StatusAccepted)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second actor still holding the PLACED observation loses cleanly.
	ok, err = s.TransitionOrder(ctx, order.ID, models.StatusPlaced, models.StatusRejected)
	require.NoError(t, err)
	assert.False(t, ok)

	current, err := s.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, current.Status)
}

func TestDeliveredStampsAndSettles(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sellerID := seedSeller(t, s)
	itemID := seedItem(t, s, sellerID, nil, true)

	order, settlement := placedOrder(10, sellerID, 1030)
	items := []models.OrderItem{{ItemID: itemID, Quantity: 1, UnitPricePence: 1000}}
	require.NoError(t, s.CreateOrder(ctx, order, items, settlement, time.Now().Add(30*time.Minute)))

	for _, step := range []struct{ from, to models.Status }{
		{models.StatusPlaced, models.StatusAccepted},
		{models.StatusAccepted, models.StatusPreparing},
		{models.StatusPreparing, models.StatusReady},
		{models.StatusReady, models.StatusOutForDelivery},
		{models.StatusOutForDelivery, models.StatusDelivered},
	} {
		ok, err := s.TransitionOrder(ctx, order.ID, step.from, step.to)
		require.NoError(t, err)
		require.True(t, ok, "%s -> %s", step.from, step.to)
	}

	current, err := s.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, current.Status)
	assert.NotNil(t, current.DeliveredAt)

	settled, err := s.GetSettlementByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusCompleted, settled.Status)
}

func TestCancelRestocksTrackedItems(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sellerID := seedSeller(t, s)
	itemID := seedItem(t, s, sellerID, intp(5), true)

	order, settlement := placedOrder(10, sellerID, 1030)
	items := []models.OrderItem{{ItemID: itemID, Quantity: 2, UnitPricePence: 500}}
	require.NoError(t, s.CreateOrder(ctx, order, items, settlement, time.Now().Add(30*time.Minute)))

	item, err := s.GetMenuItemByID(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 3, *item.StockCount)

	ok, err := s.TransitionOrder(ctx, order.ID, models.StatusPlaced, models.StatusCancelled)
	require.NoError(t, err)
	require.True(t, ok)

	item, err = s.GetMenuItemByID(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 5, *item.StockCount)
	assert.True(t, item.IsAvailable)
}

func TestCancelRestockRevivesSoldOutItem(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sellerID := seedSeller(t, s)
	itemID := seedItem(t, s, sellerID, intp(2), true)

	// Buying the last units flips the item unavailable.
	order, settlement := placedOrder(10, sellerID, 1030)
	items := []models.OrderItem{{ItemID: itemID, Quantity: 2, UnitPricePence: 500}}
	require.NoError(t, s.CreateOrder(ctx, order, items, settlement, time.Now().Add(30*time.Minute)))

	item, err := s.GetMenuItemByID(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 0, *item.StockCount)
	assert.False(t, item.IsAvailable)

	ok, err := s.TransitionOrder(ctx, order.ID, models.StatusPlaced, models.StatusCancelled)
	require.NoError(t, err)
	require.True(t, ok)

	item, err = s.GetMenuItemByID(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 2, *item.StockCount)
	assert.True(t, item.IsAvailable)
}

func TestCancelRestockKeepsDisabledItemDisabled(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sellerID := seedSeller(t, s)
	itemID := seedItem(t, s, sellerID, intp(5), true)

	order, settlement := placedOrder(10, sellerID, 1030)
	items := []models.OrderItem{{ItemID: itemID, Quantity: 2, UnitPricePence: 500}}
	require.NoError(t, s.CreateOrder(ctx, order, items, settlement, time.Now().Add(30*time.Minute)))

	// Seller turns the item off while the order is in flight.
	s.db.MustExec("UPDATE menu_items SET is_available = FALSE WHERE id = $1", itemID)

	ok, err := s.TransitionOrder(ctx, order.ID, models.StatusPlaced, models.StatusCancelled)
	require.NoError(t, err)
	require.True(t, ok)

	item, err := s.GetMenuItemByID(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 5, *item.StockCount)
	assert.False(t, item.IsAvailable)
}

func TestClaimDueJobsClaimsWithoutRetiring(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sellerID := seedSeller(t, s)
	itemID := seedItem(t, s, sellerID, nil, true)

	order, settlement := placedOrder(10, sellerID, 1030)
	items := []models.OrderItem{{ItemID: itemID, Quantity: 1, UnitPricePence: 1000}}
	require.NoError(t, s.CreateOrder(ctx, order, items, settlement, time.Now().Add(-time.Minute)))

	jobs, err := s.ClaimDueJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, order.ID, jobs[0].OrderID)
	assert.Equal(t, models.JobStatusClaimed, jobs[0].Status)

	// The claim holds for the lease: a second poll finds nothing.
	again, err := s.ClaimDueJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, s.MarkJobDone(ctx, jobs[0].ID))

	job, err := s.GetJobByOrderID(ctx, order.ID, models.JobKindAutoReject)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, job.Status)
	assert.NotNil(t, job.ExecutedAt)
}

func TestExpiredClaimIsHandedOutAgain(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sellerID := seedSeller(t, s)
	itemID := seedItem(t, s, sellerID, nil, true)

	order, settlement := placedOrder(10, sellerID, 1030)
	items := []models.OrderItem{{ItemID: itemID, Quantity: 1, UnitPricePence: 1000}}
	require.NoError(t, s.CreateOrder(ctx, order, items, settlement, time.Now().Add(-time.Minute)))

	jobs, err := s.ClaimDueJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	// The claimant died without marking the job done. Once the lease is
	// stale the job must come back.
	s.db.MustExec("UPDATE scheduled_jobs SET claimed_at = NOW() - INTERVAL '10 minutes' WHERE id = $1",
		jobs[0].ID)

	again, err := s.ClaimDueJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, jobs[0].ID, again[0].ID)
	assert.Equal(t, models.JobStatusClaimed, again[0].Status)

	// A done job never comes back, stale claim or not.
	require.NoError(t, s.MarkJobDone(ctx, again[0].ID))
	s.db.MustExec("UPDATE scheduled_jobs SET claimed_at = NOW() - INTERVAL '10 minutes' WHERE id = $1",
		again[0].ID)
	final, err := s.ClaimDueJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, final)
}
