package worker

import (
	"context"
	"log"

	"github.com/mana170183uk/homeal-orders/internal/broker"
	"github.com/mana170183uk/homeal-orders/internal/service"
)

// SettlementWorker consumes payment-confirmation events from the external
// card processor and completes the matching settlements.
type SettlementWorker struct {
	consumer          *broker.Consumer
	eventHandler      *broker.EventHandler
	settlementService *service.SettlementService
}

// NewSettlementWorker creates a new settlement worker
func NewSettlementWorker(
	consumer *broker.Consumer,
	settlementService *service.SettlementService,
) *SettlementWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentConfirmed(settlementService.HandlePaymentConfirmed)

	return &SettlementWorker{
		consumer:          consumer,
		eventHandler:      eventHandler,
		settlementService: settlementService,
	}
}

// Start starts the worker
func (w *SettlementWorker) Start(ctx context.Context) error {
	log.Println("Starting settlement worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SettlementWorker) Stop() error {
	log.Println("Stopping settlement worker...")
	return w.consumer.Close()
}
