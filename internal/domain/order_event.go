package domain

import "time"

const (
	EventOrderCreated   = "order.created"
	EventOrderCancelled = "order.cancelled"
	EventOrderDelivered = "order.delivered"
	EventPaymentPaid    = "payment.paid"
)

type OrderCreatedEvent struct {
	OrderID       uint64        `json:"orderId"`
	OrderNumber   string        `json:"orderNumber"`
	UserID        uint64        `json:"userId"`
	RestaurantID  uint64        `json:"restaurantId"`
	FinalAmount   int64         `json:"finalAmount"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type OrderCancelledEvent struct {
	OrderID      uint64    `json:"orderId"`
	CancelledBy  Role      `json:"cancelledBy"`
	Reason       string    `json:"reason,omitempty"`
	RefundAmount int64     `json:"refundAmount"`
	CancelledAt  time.Time `json:"cancelledAt"`
}

type OrderDeliveredEvent struct {
	OrderID           uint64    `json:"orderId"`
	DeliveryPartnerID uint64    `json:"deliveryPartnerId"`
	EarningAmount     int64     `json:"earningAmount"`
	DeliveredAt       time.Time `json:"deliveredAt"`
}

type PaymentPaidEvent struct {
	PaymentID uint64    `json:"paymentId"`
	OrderID   uint64    `json:"orderId"`
	Amount    int64     `json:"amount"`
	PaidAt    time.Time `json:"paidAt"`
}
