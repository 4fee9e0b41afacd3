package http

import (
	"net/http"
	"strconv"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	headerWebhookTimestamp = "x-webhook-timestamp"
	headerWebhookSignature = "x-webhook-signature"
)

type Handler struct {
	orders    services.OrderServiceInterface
	lifecycle services.LifecycleServiceInterface
	payments  services.PaymentServiceInterface
	rules     services.DeliveryRuleServiceInterface
	jwtSecret string
}

func NewHandler(
	orders services.OrderServiceInterface,
	lifecycle services.LifecycleServiceInterface,
	payments services.PaymentServiceInterface,
	rules services.DeliveryRuleServiceInterface,
	jwtSecret string,
) *Handler {
	return &Handler{orders: orders, lifecycle: lifecycle, payments: payments, rules: rules, jwtSecret: jwtSecret}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	orders := r.Group("/orders", AuthMiddleware(h.jwtSecret, RoleUser))
	orders.POST("/quote", h.Quote)
	orders.POST("/create", h.CreateOrder)
	orders.POST("/cancel", h.CancelOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/:id", h.GetOrder)

	delivery := r.Group("/delivery", AuthMiddleware(h.jwtSecret, RoleDelivery))
	delivery.POST("/orders/delivered", h.MarkDelivered)

	admin := r.Group("/admin", AuthMiddleware(h.jwtSecret, RoleAdmin))
	admin.POST("/orders/:id/status", h.AdvanceStatus)
	admin.POST("/orders/:id/assign", h.AssignDeliveryPartner)
	admin.POST("/orders/:id/cancel", h.AdminCancelOrder)
	admin.DELETE("/orders/:id", h.PurgeOrder)
	admin.GET("/restaurants/:id/delivery-rules", h.ListDeliveryRules)
	admin.POST("/restaurants/:id/delivery-rules", h.CreateDeliveryRule)
	admin.DELETE("/restaurants/:id/delivery-rules/:ruleId", h.DeactivateDeliveryRule)

	payment := r.Group("/payment")
	payment.POST("/create-session", AuthMiddleware(h.jwtSecret, RoleUser), h.CreatePaymentSession)
	payment.POST("/verify", AuthMiddleware(h.jwtSecret, RoleUser), h.VerifyPayment)
	payment.POST("/webhook", h.PaymentWebhook)
}

func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) Quote(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	q, err := h.orders.Quote(c.Request.Context(), userID(c), req.toInput())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": q})
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	order, err := h.orders.CreateOrder(c.Request.Context(), userID(c), req.toInput())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), userID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), userID(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func cancelResponse(out *services.CancelOutcome) CancelResponse {
	msg := "Order cancelled successfully"
	if out.RefundPending {
		msg = "Refund is being processed, the order will be cancelled once it completes"
	} else if out.Order != nil && out.Order.RefundStatus == domain.RefundRefunded {
		msg = "Order cancelled and refunded successfully"
	}
	return CancelResponse{Message: msg, Order: out.Order, RefundPending: out.RefundPending}
}

func (h *Handler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	out, err := h.lifecycle.CancelOrder(c.Request.Context(), req.OrderID, userID(c), req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelResponse(out))
}

func (h *Handler) MarkDelivered(c *gin.Context) {
	var req OrderIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if _, err := h.lifecycle.MarkDelivered(c.Request.Context(), req.OrderID, userID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Order marked as delivered"})
}

func (h *Handler) AdvanceStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	to, valid := domain.ParseOrderStatus(req.Status)
	if !valid {
		respondErr(c, domain.ErrInvalidStatus)
		return
	}
	order, err := h.lifecycle.AdvanceStatus(c.Request.Context(), id, to, domain.RoleAdmin)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) AssignDeliveryPartner(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req AssignPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	order, err := h.lifecycle.AssignDeliveryPartner(c.Request.Context(), id, req.DeliveryPartnerID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) AdminCancelOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req AdminCancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	out, err := h.lifecycle.AdminCancelOrder(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelResponse(out))
}

func (h *Handler) PurgeOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.lifecycle.PurgeOrder(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Order deleted"})
}

func (h *Handler) ListDeliveryRules(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rules, err := h.rules.ListRules(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *Handler) CreateDeliveryRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req DeliveryRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rule, err := h.rules.CreateRule(c.Request.Context(), id, req.toRule())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

func (h *Handler) DeactivateDeliveryRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ruleID, ok := paramID(c, "ruleId")
	if !ok {
		return
	}
	if err := h.rules.DeactivateRule(c.Request.Context(), id, ruleID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Delivery rule deactivated"})
}

func (h *Handler) CreatePaymentSession(c *gin.Context) {
	var req OrderIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.payments.CreatePaymentSession(c.Request.Context(), userID(c), req.OrderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, PaymentSessionResponse{
		PaymentID:        p.ID,
		GatewayOrderID:   p.GatewayOrderID,
		PaymentSessionID: p.PaymentSessionID,
		Amount:           p.Amount,
		Currency:         p.Currency,
	})
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	var req OrderIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.payments.VerifyPayment(c.Request.Context(), userID(c), req.OrderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p})
}

// PaymentWebhook is unauthenticated; the gateway signature stands in for a token.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	err = h.payments.HandleWebhook(c.Request.Context(), c.GetHeader(headerWebhookTimestamp), c.GetHeader(headerWebhookSignature), body)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "ok"})
}
