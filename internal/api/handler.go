package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mana170183uk/homeal-orders/internal/models"
	"github.com/mana170183uk/homeal-orders/internal/service"
	"github.com/mana170183uk/homeal-orders/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService        *service.OrderService
	settlementService   *service.SettlementService
	notificationService *service.NotificationService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orderService *service.OrderService,
	settlementService *service.SettlementService,
	notificationService *service.NotificationService,
) *Handler {
	return &Handler{
		orderService:        orderService,
		settlementService:   settlementService,
		notificationService: notificationService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/orders/:id/status", h.getOrderStatus)
		v1.GET("/orders/:id/settlement", h.getSettlement)
		v1.PATCH("/orders/:id/status", h.updateStatus)
		v1.POST("/orders/:id/cancel", h.cancelOrder)

		v1.GET("/notifications", h.listNotifications)
		v1.POST("/notifications/:id/read", h.markNotificationRead)

		v1.POST("/sellers/:id/announcements", h.announce)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// identity reads the verified identity forwarded by the auth layer.
func identity(c *gin.Context) (models.Actor, bool) {
	userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	role := c.GetHeader("X-User-Role")
	if err != nil || userID <= 0 || role == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return models.Actor{}, false
	}
	return models.Actor{UserID: userID, Role: role}, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors onto HTTP statuses. Admission and stock
// failures carry their specific, buyer-actionable reason; authorization and
// transition failures stay generic.
func respondError(c *gin.Context, err error) {
	var (
		validation  *models.ValidationError
		denied      *models.AdmissionDeniedError
		stock       *models.InsufficientStockError
		unavailable *models.ItemUnavailableError
		transition  *models.InvalidTransitionError
		notFound    *models.NotFoundError
		authz       *models.AuthorizationError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &denied):
		c.JSON(http.StatusConflict, gin.H{"error": "admission denied", "reason": denied.Reason})
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient stock",
			"item_id":   stock.ItemID,
			"item":      stock.Name,
			"remaining": stock.Remaining,
		})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "item unavailable",
			"item_id": unavailable.ItemID,
			"item":    unavailable.Name,
		})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &authz):
		c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// listOrders lists the calling buyer's orders
func (h *Handler) listOrders(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListBuyerOrders(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, items, err := h.orderService.GetOrder(c.Request.Context(), actor, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

// getOrderStatus is the polling endpoint, served from the Redis cache when
// possible
func (h *Handler) getOrderStatus(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	status, err := h.orderService.GetOrderStatus(c.Request.Context(), actor, orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": status})
}

// getSettlement returns the payment split for an order visible to the actor
func (h *Handler) getSettlement(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	// Party check rides on the order read.
	if _, _, err := h.orderService.GetOrder(c.Request.Context(), actor, orderID); err != nil {
		respondError(c, err)
		return
	}

	settlement, err := h.settlementService.GetSettlement(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement)
}

// updateStatus progresses an order, seller/operator only
func (h *Handler) updateStatus(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		NewStatus string `json:"new_status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), actor, orderID, models.Status(req.NewStatus))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// cancelOrder cancels a PLACED order, buyer owner only
func (h *Handler) cancelOrder(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), actor, orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// listNotifications returns the actor's notification feed
func (h *Handler) listNotifications(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.notificationService.List(c.Request.Context(), actor, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// markNotificationRead marks one of the actor's notifications read
func (h *Handler) markNotificationRead(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// announce broadcasts a seller announcement to all followers
func (h *Handler) announce(c *gin.Context) {
	actor, ok := identity(c)
	if !ok {
		return
	}
	sellerID, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title" binding:"required"`
		Body  string `json:"body,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	count, err := h.notificationService.Announce(c.Request.Context(), actor, sellerID, req.Title, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"recipients": count})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
