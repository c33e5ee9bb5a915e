package service

import (
	"context"
	"fmt"

	"github.com/mana170183uk/homeal-orders/internal/models"
	"github.com/mana170183uk/homeal-orders/internal/store"
	"github.com/mana170183uk/homeal-orders/internal/util"

	"go.uber.org/zap"
)

// SettlementService completes card settlements when the external payment
// processor confirms a charge. Cash settlements are completed by the state
// machine on delivery and never pass through here.
type SettlementService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(store *store.Store) *SettlementService {
	return &SettlementService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// HandlePaymentConfirmed flips a pending card settlement to COMPLETED.
// Redelivered events are dropped via the processed-events table, and a
// settlement already completed is a logged no-op.
func (ss *SettlementService) HandlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	ctx, span := util.StartSpan(ctx, "SettlementService.HandlePaymentConfirmed")
	defer span.End()

	processed, err := ss.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		ss.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	ok, err := ss.store.CompleteCardSettlement(ctx, event.OrderID, event.ProviderTxID)
	if err != nil {
		return fmt.Errorf("failed to complete settlement: %w", err)
	}
	if !ok {
		ss.logger.Warn("No pending card settlement to complete",
			zap.Int64("order_id", event.OrderID),
			zap.String("tx_id", event.ProviderTxID))
	} else {
		util.SettlementsCompletedTotal.WithLabelValues(models.PaymentMethodCard).Inc()
		ss.logger.Info("Card settlement completed",
			zap.Int64("order_id", event.OrderID),
			zap.String("tx_id", event.ProviderTxID))
	}

	if err := ss.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		ss.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// GetSettlement retrieves the settlement for an order
func (ss *SettlementService) GetSettlement(ctx context.Context, orderID int64) (*models.Settlement, error) {
	settlement, err := ss.store.GetSettlementByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, &models.NotFoundError{Kind: "settlement", ID: orderID}
	}
	return settlement, nil
}
