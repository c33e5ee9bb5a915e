package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mana170183uk/homeal-orders/internal/broker"
	"github.com/mana170183uk/homeal-orders/internal/models"
	"github.com/mana170183uk/homeal-orders/internal/notify"
	"github.com/mana170183uk/homeal-orders/internal/redisclient"
	"github.com/mana170183uk/homeal-orders/internal/store"
	"github.com/mana170183uk/homeal-orders/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService drives order admission and the lifecycle state machine.
type OrderService struct {
	store            *store.Store
	redis            *redisclient.Client
	notifier         *notify.Notifier
	eventPublisher   *broker.EventPublisher
	gate             *AvailabilityGate
	pricing          *PricingCalculator
	autoRejectWindow time.Duration
	logger           *zap.Logger

	now func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	store *store.Store,
	redis *redisclient.Client,
	notifier *notify.Notifier,
	eventPublisher *broker.EventPublisher,
	gate *AvailabilityGate,
	pricing *PricingCalculator,
	autoRejectWindow time.Duration,
) *OrderService {
	return &OrderService{
		store:            store,
		redis:            redis,
		notifier:         notifier,
		eventPublisher:   eventPublisher,
		gate:             gate,
		pricing:          pricing,
		autoRejectWindow: autoRejectWindow,
		logger:           util.GetLogger(),
		now:              time.Now,
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	SellerID            int64              `json:"seller_id" binding:"required"`
	AddressID           int64              `json:"address_id" binding:"required"`
	Items               []OrderLineRequest `json:"items" binding:"required,min=1"`
	SpecialInstructions string             `json:"special_instructions,omitempty"`
	PaymentMethod       string             `json:"payment_method" binding:"required"`
	IdempotencyKey      string             `json:"idempotency_key,omitempty"`
}

// OrderLineRequest represents one requested line item
type OrderLineRequest struct {
	ItemID   int64  `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Notes    string `json:"notes,omitempty"`
}

// CreateOrder admits and creates an order as one atomic unit: availability
// gate, stock reservation, pricing, then Order+Items+Settlement+deadline job
// in a single transaction. Nothing is persisted on any failure.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	}()

	if actor.Role != models.RoleBuyer {
		return nil, &models.AuthorizationError{}
	}
	if err := validateCreateOrder(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}
	existing, err := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", existing.ID))
		return existing, nil
	}

	seller, err := s.store.GetSellerByID(ctx, req.SellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seller: %w", err)
	}
	if seller == nil {
		return nil, &models.NotFoundError{Kind: "seller", ID: req.SellerID}
	}

	requestedAt := s.now()
	dayStart, dayEnd := DayBounds(requestedAt)
	todayCount, err := s.store.CountSellerOrdersBetween(ctx, seller.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's orders: %w", err)
	}
	if err := s.gate.Check(seller, requestedAt, todayCount); err != nil {
		if denied, ok := err.(*models.AdmissionDeniedError); ok {
			util.OrdersDeniedTotal.WithLabelValues(denied.Reason).Inc()
		}
		return nil, err
	}

	items, err := s.buildOrderItems(ctx, seller.ID, req.Items)
	if err != nil {
		return nil, err
	}

	quote := s.pricing.Price(items, seller)

	order := &models.Order{
		BuyerID:             actor.UserID,
		SellerID:            seller.ID,
		AddressID:           req.AddressID,
		Status:              models.StatusPlaced,
		SubtotalPence:       quote.SubtotalPence,
		DeliveryFeePence:    quote.DeliveryFeePence,
		TotalPence:          quote.TotalPence,
		SpecialInstructions: req.SpecialInstructions,
		IdempotencyKey:      req.IdempotencyKey,
	}
	settlement := &models.Settlement{
		AmountPence:       quote.TotalPence,
		PlatformFeePence:  quote.PlatformFeePence,
		SellerPayoutPence: quote.SellerPayoutPence,
		Method:            req.PaymentMethod,
		Status:            models.SettlementStatusPending,
	}

	err = s.store.CreateOrder(ctx, order, items, settlement, requestedAt.Add(s.autoRejectWindow))
	if err != nil {
		switch err.(type) {
		case *models.InsufficientStockError, *models.ItemUnavailableError:
			util.StockReservationsFailed.Inc()
			return nil, err
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("buyer_id", order.BuyerID),
		zap.Int64("seller_id", order.SellerID),
		zap.Int64("total_pence", order.TotalPence))

	s.cacheStatus(ctx, order)

	if err := s.notifier.OrderPlaced(ctx, order); err != nil {
		s.logger.Error("Failed to notify seller of new order", zap.Error(err))
	}

	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ItemID:         item.ItemID,
			Quantity:       item.Quantity,
			UnitPricePence: item.UnitPricePence,
		})
	}
	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: s.now(),
		},
		OrderID:    order.ID,
		BuyerID:    order.BuyerID,
		SellerID:   order.SellerID,
		TotalPence: order.TotalPence,
		Items:      eventItems,
	}
	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return order, nil
}

// buildOrderItems validates every requested line against the seller's menu
// and captures current unit prices. Validation is all-or-nothing; the first
// problem aborts with the offending item named. The authoritative stock check
// happens again as a conditional decrement inside the creation transaction.
func (s *OrderService) buildOrderItems(ctx context.Context, sellerID int64, lines []OrderLineRequest) ([]models.OrderItem, error) {
	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ItemID
	}

	menuItems, err := s.store.GetMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu items: %w", err)
	}
	byID := make(map[int64]*models.MenuItem, len(menuItems))
	for i := range menuItems {
		byID[menuItems[i].ID] = &menuItems[i]
	}

	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		menuItem, ok := byID[line.ItemID]
		if !ok {
			return nil, &models.NotFoundError{Kind: "menu item", ID: line.ItemID}
		}
		if menuItem.SellerID != sellerID {
			return nil, &models.ValidationError{Field: "items", Msg: fmt.Sprintf("item %d does not belong to seller %d", line.ItemID, sellerID)}
		}
		if !menuItem.IsAvailable {
			return nil, &models.ItemUnavailableError{ItemID: menuItem.ID, Name: menuItem.Name}
		}
		if menuItem.StockCount != nil && *menuItem.StockCount < line.Quantity {
			return nil, &models.InsufficientStockError{ItemID: menuItem.ID, Name: menuItem.Name, Remaining: *menuItem.StockCount}
		}
		items = append(items, models.OrderItem{
			ItemID:         line.ItemID,
			Quantity:       line.Quantity,
			UnitPricePence: menuItem.PricePence,
			Notes:          line.Notes,
		})
	}
	return items, nil
}

func validateCreateOrder(req *CreateOrderRequest) error {
	if req.SellerID <= 0 {
		return &models.ValidationError{Field: "seller_id", Msg: "required"}
	}
	if req.AddressID <= 0 {
		return &models.ValidationError{Field: "address_id", Msg: "required"}
	}
	if len(req.Items) == 0 {
		return &models.ValidationError{Field: "items", Msg: "at least one item required"}
	}
	for _, line := range req.Items {
		if line.ItemID <= 0 {
			return &models.ValidationError{Field: "items", Msg: "item_id required"}
		}
		if line.Quantity < 1 {
			return &models.ValidationError{Field: "items", Msg: "quantity must be at least 1"}
		}
	}
	if req.PaymentMethod != models.PaymentMethodCash && req.PaymentMethod != models.PaymentMethodCard {
		return &models.ValidationError{Field: "payment_method", Msg: "must be cash or card"}
	}
	return nil
}

// GetOrder retrieves an order with its items. Only the order's buyer, its
// seller or an operator may read it.
func (s *OrderService) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, &models.NotFoundError{Kind: "order", ID: orderID}
	}

	if err := authorizeParty(actor, order.BuyerID, order.SellerID); err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// GetOrderStatus is the lightweight poll path. It answers from the Redis
// status cache when it can, including the access check, and falls back to the
// database on a miss or a cache error.
func (s *OrderService) GetOrderStatus(ctx context.Context, actor models.Actor, orderID int64) (models.Status, error) {
	entry, err := s.redis.GetCachedOrderStatus(ctx, orderID)
	if err != nil {
		s.logger.Warn("Status cache read failed",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}
	if entry != nil {
		if err := authorizeParty(actor, entry.BuyerID, entry.SellerID); err != nil {
			return "", err
		}
		return models.Status(entry.Status), nil
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", &models.NotFoundError{Kind: "order", ID: orderID}
	}
	if err := authorizeParty(actor, order.BuyerID, order.SellerID); err != nil {
		return "", err
	}
	s.cacheStatus(ctx, order)
	return order.Status, nil
}

// authorizeParty admits the order's buyer, its seller, or an operator.
func authorizeParty(actor models.Actor, buyerID, sellerID int64) error {
	switch actor.Role {
	case models.RoleOperator:
		return nil
	case models.RoleBuyer:
		if actor.UserID == buyerID {
			return nil
		}
	case models.RoleSeller:
		if actor.UserID == sellerID {
			return nil
		}
	}
	return &models.AuthorizationError{}
}

// cacheStatus refreshes the Redis status entry. Failures are logged and
// swallowed; the cache is an optimization, never authority.
func (s *OrderService) cacheStatus(ctx context.Context, order *models.Order) {
	entry := redisclient.OrderStatusEntry{
		Status:   string(order.Status),
		BuyerID:  order.BuyerID,
		SellerID: order.SellerID,
	}
	if err := s.redis.CacheOrderStatus(ctx, order.ID, entry); err != nil {
		s.logger.Warn("Failed to cache order status",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

// ListBuyerOrders returns the calling buyer's orders, newest first.
func (s *OrderService) ListBuyerOrders(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	if actor.Role != models.RoleBuyer {
		return nil, &models.AuthorizationError{}
	}
	return s.store.GetOrdersByBuyerID(ctx, actor.UserID)
}

// UpdateStatus progresses an order along the lifecycle graph on behalf of the
// seller or an operator. CANCELLED is buyer territory and never accepted here.
func (s *OrderService) UpdateStatus(ctx context.Context, actor models.Actor, orderID int64, to models.Status) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !to.IsValid() {
		return nil, &models.ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", to)}
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &models.NotFoundError{Kind: "order", ID: orderID}
	}

	if err := authorizeUpdate(actor, order, to); err != nil {
		return nil, err
	}

	return s.applyTransition(ctx, order, to, "", actor.Role)
}

// authorizeUpdate enforces who may request which edge. Returns a generic
// denial without internal detail.
func authorizeUpdate(actor models.Actor, order *models.Order, to models.Status) error {
	switch actor.Role {
	case models.RoleOperator:
	case models.RoleSeller:
		if actor.UserID != order.SellerID {
			return &models.AuthorizationError{}
		}
	default:
		return &models.AuthorizationError{}
	}
	if to == models.StatusCancelled || to == models.StatusPlaced {
		return &models.AuthorizationError{}
	}
	return nil
}

// CancelOrder lets a buyer cancel their own order while it is still PLACED.
func (s *OrderService) CancelOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &models.NotFoundError{Kind: "order", ID: orderID}
	}
	if actor.Role != models.RoleBuyer || actor.UserID != order.BuyerID {
		return nil, &models.AuthorizationError{}
	}

	return s.applyTransition(ctx, order, models.StatusCancelled, "", actor.Role)
}

// AutoReject is the deadline scheduler's check-then-act: reject the order iff
// it is still PLACED when the deadline fires. Running it twice, or racing a
// concurrent seller action, is a no-op for the loser.
func (s *OrderService) AutoReject(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.AutoReject")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil || order.Status != models.StatusPlaced {
		return nil
	}

	_, err = s.applyTransition(ctx, order, models.StatusRejected, models.ReasonNoSellerResponse, models.RoleSystem)
	if err != nil {
		// A concurrent transition won; the deadline check is then moot.
		if _, ok := err.(*models.InvalidTransitionError); ok {
			return nil
		}
		return err
	}

	util.OrdersAutoRejectedTotal.Inc()
	s.logger.Info("Order auto-rejected",
		zap.Int64("order_id", orderID),
		zap.String("reason", models.ReasonNoSellerResponse))
	return nil
}

// applyTransition executes one edge of the state machine: graph check,
// conditional update, then exactly one notification fan-out and one domain
// event. The order argument carries the observed from-status.
func (s *OrderService) applyTransition(ctx context.Context, order *models.Order, to models.Status, reason, actorRole string) (*models.Order, error) {
	from := order.Status
	if !models.CanTransition(from, to) {
		return nil, &models.InvalidTransitionError{OrderID: order.ID, From: from, To: to}
	}

	ok, err := s.store.TransitionOrder(ctx, order.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to transition order: %w", err)
	}
	if !ok {
		// Lost to a concurrent transition; report against the live status.
		current, err := s.store.GetOrderByID(ctx, order.ID)
		if err == nil && current != nil {
			from = current.Status
		}
		return nil, &models.InvalidTransitionError{OrderID: order.ID, From: from, To: to}
	}

	util.OrderTransitionsTotal.WithLabelValues(string(to)).Inc()
	if to == models.StatusDelivered {
		util.SettlementsCompletedTotal.WithLabelValues(models.PaymentMethodCash).Inc()
	}

	order.Status = to
	s.cacheStatus(ctx, order)

	if err := s.notifier.OrderStatusChanged(ctx, order, to, reason, actorRole); err != nil {
		s.logger.Error("Failed to fan out status change",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}

	event := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: s.now(),
		},
		OrderID:   order.ID,
		BuyerID:   order.BuyerID,
		SellerID:  order.SellerID,
		OldStatus: from,
		NewStatus: to,
		Reason:    reason,
		ActorRole: actorRole,
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	s.logger.Info("Order transitioned",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_role", actorRole))

	return order, nil
}
