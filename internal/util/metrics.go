package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders admitted and created",
	})

	OrdersDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_denied_total",
		Help: "Total number of order placements denied by the availability gate",
	}, []string{"reason"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of successful order status transitions",
	}, []string{"to"})

	OrdersAutoRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_auto_rejected_total",
		Help: "Total number of orders auto-rejected on deadline",
	})

	StockReservationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of order placements aborted on insufficient stock",
	})

	OrderCreateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_create_latency_seconds",
		Help:    "Latency of full order admission and creation",
		Buckets: prometheus.DefBuckets,
	})

	NotificationsPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_persisted_total",
		Help: "Total number of notification rows written",
	})

	NotificationPushesFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_pushes_failed_total",
		Help: "Total number of best-effort realtime pushes that failed",
	})

	SettlementsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_completed_total",
		Help: "Total number of settlements completed",
	}, []string{"method"})

	ScheduledJobsExecutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduled_jobs_executed_total",
		Help: "Total number of scheduled jobs claimed and executed",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
