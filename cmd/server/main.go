package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mana170183uk/homeal-orders/config"
	"github.com/mana170183uk/homeal-orders/internal/api"
	"github.com/mana170183uk/homeal-orders/internal/broker"
	"github.com/mana170183uk/homeal-orders/internal/notify"
	"github.com/mana170183uk/homeal-orders/internal/redisclient"
	"github.com/mana170183uk/homeal-orders/internal/scheduler"
	"github.com/mana170183uk/homeal-orders/internal/service"
	"github.com/mana170183uk/homeal-orders/internal/store"
	"github.com/mana170183uk/homeal-orders/internal/util"
	"github.com/mana170183uk/homeal-orders/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting homeal orders service")

	tp, err := util.InitTracer("homeal-orders", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)
	notifier := notify.NewNotifier(db, redisClient)

	gate := service.NewAvailabilityGate()
	pricing := service.NewPricingCalculator(cfg.Business.DeliveryFeePence, cfg.Business.DefaultCommission)
	autoRejectWindow := time.Duration(cfg.Business.AutoRejectMinutes) * time.Minute

	orderService := service.NewOrderService(db, redisClient, notifier, eventPublisher, gate, pricing, autoRejectWindow)
	settlementService := service.NewSettlementService(db)
	notificationService := service.NewNotificationService(db, notifier)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	deadlines := scheduler.New(db, orderService, time.Duration(cfg.Business.SchedulerPollSeconds)*time.Second)
	go deadlines.Run(workerCtx)

	paymentConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayment, cfg.Kafka.ConsumerGroup)
	settlementWorker := worker.NewSettlementWorker(paymentConsumer, settlementService)
	go func() {
		if err := settlementWorker.Start(workerCtx); err != nil {
			log.Printf("Settlement worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(orderService, settlementService, notificationService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	settlementWorker.Stop()

	log.Println("Server exited")
}
