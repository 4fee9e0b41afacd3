package http

import (
	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/pricing"
	"fulfillment-service/internal/services"

	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	AddressID     uint64             `json:"addressId"`
	CartItems     []pricing.CartLine `json:"cartItems"`
	PaymentMethod string             `json:"paymentMethod"`
	CouponCode    string             `json:"couponCode"`
	UserLat       *float64           `json:"userLat"`
	UserLng       *float64           `json:"userLng"`
}

func (r CreateOrderRequest) toInput() services.CreateOrderInput {
	return services.CreateOrderInput{
		AddressID:     r.AddressID,
		Items:         r.CartItems,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		CouponCode:    r.CouponCode,
		UserLat:       r.UserLat,
		UserLng:       r.UserLng,
	}
}

type OrderIDRequest struct {
	OrderID uint64 `json:"orderId" binding:"required"`
}

type CancelOrderRequest struct {
	OrderID uint64 `json:"orderId" binding:"required"`
	Reason  string `json:"reason" binding:"max=255"`
}

type AdminCancelRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

type AdvanceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type AssignPartnerRequest struct {
	DeliveryPartnerID uint64 `json:"deliveryPartnerId" binding:"required"`
}

type DeliveryRuleRequest struct {
	Title        string            `json:"title" binding:"max=120"`
	MinOrder     decimal.Decimal   `json:"minOrder"`
	MaxOrder     *decimal.Decimal  `json:"maxOrder"`
	MinDistance  float64           `json:"minDistance"`
	MaxDistance  *float64          `json:"maxDistance"`
	ChargeType   domain.ChargeType `json:"chargeType" binding:"required,oneof=FREE FLAT"`
	ChargeAmount decimal.Decimal   `json:"chargeAmount"`
	BaseDistance float64           `json:"baseDistance"`
	PerKmCharge  decimal.Decimal   `json:"perKmCharge"`
}

func (r DeliveryRuleRequest) toRule() *domain.DeliveryRule {
	rule := &domain.DeliveryRule{
		Title:        r.Title,
		MinOrder:     r.MinOrder,
		MinDistance:  r.MinDistance,
		MaxDistance:  r.MaxDistance,
		ChargeType:   r.ChargeType,
		ChargeAmount: r.ChargeAmount,
		BaseDistance: r.BaseDistance,
		PerKmCharge:  r.PerKmCharge,
	}
	if r.MaxOrder != nil {
		rule.MaxOrder = decimal.NewNullDecimal(*r.MaxOrder)
	}
	return rule
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CancelResponse struct {
	Message       string        `json:"message"`
	Order         *domain.Order `json:"order"`
	RefundPending bool          `json:"refundPending"`
}

type PaymentSessionResponse struct {
	PaymentID        uint64 `json:"paymentId"`
	GatewayOrderID   string `json:"gatewayOrderId"`
	PaymentSessionID string `json:"paymentSessionId"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}
