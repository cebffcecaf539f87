package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/apperr"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/service"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService      *service.OrderService
	dispatchService   *service.DispatchService
	ledgerService     *service.LedgerService
	settlementService *service.SettlementService
}

// NewHandler creates a new HTTP handler
func NewHandler(orders *service.OrderService, dispatch *service.DispatchService, ledger *service.LedgerService, settlement *service.SettlementService) *Handler {
	return &Handler{
		orderService:      orders,
		dispatchService:   dispatch,
		ledgerService:     ledger,
		settlementService: settlement,
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
		v1.POST("/products/:id/stock", h.adjustStock)

		v1.POST("/couriers/location", h.updateCourierLocation)
		v1.GET("/couriers/nearby", h.findNearbyCouriers)
		v1.GET("/couriers/:id", h.getCourier)
		v1.POST("/dispatch/assign", h.assignJob)
		v1.POST("/dispatch/status", h.updateJobStatus)

		v1.GET("/wallets/:party_id", h.getBalance)
		v1.GET("/wallets/:party_id/history", h.getHistory)
		v1.POST("/ledger/transactions", h.createTransaction)
		v1.POST("/payouts", h.requestPayout)
		v1.POST("/payouts/:id/resolve", h.resolvePayout)
		v1.POST("/settlement/run", h.runSettlement)
	}
}

// respondError translates service errors into HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindInvalidArgument:
		status = http.StatusBadRequest
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindAborted:
		// Contention or a declined authorization: safe to retry.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
		return
	case apperr.KindFailedPrecondition:
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// callerID reads the authenticated party from the gateway headers.
// Authentication itself happens upstream; the headers are trusted.
func callerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid X-User-ID header"})
		return 0, false
	}
	return id, true
}

// requireRole gates an endpoint on the gateway-asserted role header.
func requireRole(c *gin.Context, roles ...string) bool {
	got := c.GetHeader("X-User-Role")
	for _, role := range roles {
		if got == role {
			return true
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "role not allowed"})
	return false
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
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

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	customerID, ok := callerID(c)
	if !ok {
		return
	}

	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.CustomerID = customerID

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, items, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// listOrders returns the caller's orders, newest first.
func (h *Handler) listOrders(c *gin.Context) {
	customerID, ok := callerID(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListOrders(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// adjustStock handles vendor restock and correction.
func (h *Handler) adjustStock(c *gin.Context) {
	if !requireRole(c, "vendor", "admin") {
		return
	}
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Delta int `json:"delta" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orderService.AdjustStock(c.Request.Context(), productID, req.Delta); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// updateCourierLocation handles the courier position heartbeat.
func (h *Handler) updateCourierLocation(c *gin.Context) {
	courierID, ok := callerID(c)
	if !ok {
		return
	}

	// Pointers so the valid coordinate 0 passes the required check.
	var req struct {
		Lat    *float64 `json:"lat" binding:"required"`
		Lng    *float64 `json:"lng" binding:"required"`
		Status string   `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.dispatchService.UpdateCourierLocation(c.Request.Context(), courierID, *req.Lat, *req.Lng, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// findNearbyCouriers handles the geospatial availability query.
func (h *Handler) findNearbyCouriers(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lat"})
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lng"})
		return
	}
	radiusKm, _ := strconv.ParseFloat(c.Query("radius_km"), 64)

	couriers, err := h.dispatchService.FindNearbyCouriers(c.Request.Context(), lat, lng, radiusKm)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"couriers": couriers})
}

// getCourier returns a courier profile.
func (h *Handler) getCourier(c *gin.Context) {
	courierID, ok := pathID(c, "id")
	if !ok {
		return
	}

	courier, err := h.dispatchService.GetCourier(c.Request.Context(), courierID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, courier)
}

// assignJob binds a pending order to a courier.
func (h *Handler) assignJob(c *gin.Context) {
	var req struct {
		OrderID   int64 `json:"order_id" binding:"required"`
		CourierID int64 `json:"courier_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.dispatchService.AssignJob(c.Request.Context(), req.OrderID, req.CourierID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "assigned"})
}

// updateJobStatus advances an order through the delivery lifecycle.
// The acting courier comes from the auth header, not the body.
func (h *Handler) updateJobStatus(c *gin.Context) {
	courierID, ok := callerID(c)
	if !ok {
		return
	}

	var req struct {
		OrderID int64  `json:"order_id" binding:"required"`
		Status  string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.dispatchService.UpdateJobStatus(c.Request.Context(), req.OrderID, courierID, models.Status(req.Status)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getBalance returns a party's wallet.
func (h *Handler) getBalance(c *gin.Context) {
	wallet, err := h.ledgerService.GetBalance(c.Request.Context(), c.Param("party_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

// getHistory returns a party's ledger entries, newest first.
func (h *Handler) getHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.ledgerService.GetHistory(c.Request.Context(), c.Param("party_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

// createTransaction records a manual ledger entry.
func (h *Handler) createTransaction(c *gin.Context) {
	if !requireRole(c, "admin") {
		return
	}
	var req struct {
		PartyID   string `json:"party_id" binding:"required"`
		Amount    int64  `json:"amount" binding:"required"`
		Type      string `json:"type" binding:"required"`
		Reference string `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	entry, err := h.ledgerService.CreateTransaction(c.Request.Context(), req.PartyID, req.Amount, req.Type, req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// requestPayout locks funds and opens a payout request.
func (h *Handler) requestPayout(c *gin.Context) {
	var req struct {
		PartyID     string `json:"party_id" binding:"required"`
		Amount      int64  `json:"amount" binding:"required"`
		Destination string `json:"destination" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	payout, err := h.ledgerService.RequestPayout(c.Request.Context(), req.PartyID, req.Amount, req.Destination)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payout)
}

// resolvePayout closes a payout request as completed or failed.
func (h *Handler) resolvePayout(c *gin.Context) {
	if !requireRole(c, "admin") {
		return
	}
	payoutID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Succeeded *bool `json:"succeeded" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.ledgerService.ResolvePayout(c.Request.Context(), payoutID, *req.Succeeded); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

// runSettlement triggers a shift settlement batch on demand.
func (h *Handler) runSettlement(c *gin.Context) {
	if !requireRole(c, "admin") {
		return
	}
	var req struct {
		Shift string `json:"shift" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.settlementService.RunShiftSettlement(c.Request.Context(), req.Shift)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
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
