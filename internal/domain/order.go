package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusConfirmed      OrderStatus = "CONFIRMED"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusCancelled      OrderStatus = "CANCELLED"
)

var happyPath = []OrderStatus{StatusPending, StatusConfirmed, StatusPreparing, StatusOutForDelivery, StatusDelivered}

// ParseOrderStatus accepts the wire spelling of a status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	if st == StatusCancelled {
		return st, true
	}
	for _, h := range happyPath {
		if h == st {
			return st, true
		}
	}
	return "", false
}

// Next is the only status an order may advance to, "" for terminal states.
func (s OrderStatus) Next() OrderStatus {
	for i, h := range happyPath {
		if h == s && i+1 < len(happyPath) {
			return happyPath[i+1]
		}
	}
	return ""
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CancellableStatuses are the statuses from which CANCELLED is reachable at all.
var CancellableStatuses = []OrderStatus{StatusPending, StatusConfirmed, StatusPreparing}

// UserCancellableStatuses is the narrower set a customer may cancel from.
var UserCancellableStatuses = []OrderStatus{StatusPending, StatusConfirmed}

func StatusIn(s OrderStatus, set []OrderStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "ONLINE"
)

func (m PaymentMethod) Valid() bool { return m == PaymentCOD || m == PaymentOnline }

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// RefundStatus is empty until a refund is attempted. PENDING marks a refund
// that was requested from the gateway but not yet recorded locally.
type RefundStatus string

const (
	RefundNone     RefundStatus = ""
	RefundPending  RefundStatus = "PENDING"
	RefundRefunded RefundStatus = "REFUNDED"
)

type Role string

const (
	RoleUser     Role = "USER"
	RoleAdmin    Role = "ADMIN"
	RoleDelivery Role = "DELIVERY"
	RoleSystem   Role = "SYSTEM"
)

type Order struct {
	ID                uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber       string        `json:"orderNumber" gorm:"size:40;not null;uniqueIndex"`
	UserID            uint64        `json:"userId" gorm:"not null;index"`
	RestaurantID      uint64        `json:"restaurantId" gorm:"not null;index"`
	AddressID         uint64        `json:"addressId" gorm:"not null"`
	DeliveryPartnerID *uint64       `json:"deliveryPartnerId,omitempty" gorm:"index"`
	TotalAmount       int64         `json:"totalAmount" gorm:"not null"`
	DeliveryCharge    int64         `json:"deliveryCharge" gorm:"not null"`
	Discount          int64         `json:"discount" gorm:"not null"`
	FinalAmount       int64         `json:"finalAmount" gorm:"not null"`
	DistanceKm        float64       `json:"distanceKm"`
	DeliveryRuleID    *uint64       `json:"deliveryRuleId,omitempty"`
	CouponID          *uint64       `json:"couponId,omitempty" gorm:"index"`
	CouponCode        string        `json:"couponCode,omitempty" gorm:"size:64"`
	PaymentMethod     PaymentMethod `json:"paymentMethod" gorm:"size:16;not null"`
	PaymentStatus     PaymentStatus `json:"paymentStatus" gorm:"size:16;not null"`
	Status            OrderStatus   `json:"status" gorm:"size:24;not null;index"`
	RefundStatus      RefundStatus  `json:"refundStatus,omitempty" gorm:"size:16;not null;index"`
	RefundAmount      int64         `json:"refundAmount"`
	CancelReason      string        `json:"cancelReason,omitempty" gorm:"size:255"`
	CancelledByRole   Role          `json:"cancelledByRole,omitempty" gorm:"size:16"`
	CancelledAt       *time.Time    `json:"cancelledAt,omitempty"`
	CreatedAt         time.Time     `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt         time.Time     `json:"updatedAt" gorm:"autoUpdateTime"`

	Items   []OrderItem          `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History []OrderStatusHistory `json:"history,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// ExtraSnapshot freezes an extra as it was priced when the order was placed.
type ExtraSnapshot struct {
	ID    uint64          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// OrderItem is an immutable price snapshot. Price is the per-unit price
// including extras.
type OrderItem struct {
	ID             uint64                             `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID        uint64                             `json:"orderId" gorm:"not null;index"`
	ProductID      uint64                             `json:"productId" gorm:"not null"`
	VariantID      *uint64                            `json:"variantId,omitempty"`
	Name           string                             `json:"name" gorm:"size:160"`
	VariantName    string                             `json:"variantName,omitempty" gorm:"size:120"`
	Quantity       int                                `json:"quantity" gorm:"not null"`
	Price          decimal.Decimal                    `json:"price" gorm:"type:decimal(12,2);not null"`
	LineTotal      decimal.Decimal                    `json:"lineTotal" gorm:"type:decimal(12,2);not null"`
	SelectedExtras datatypes.JSONSlice[ExtraSnapshot] `json:"selectedExtras"`
}

type OrderStatusHistory struct {
	ID        uint64      `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID   uint64      `json:"orderId" gorm:"not null;index"`
	Status    OrderStatus `json:"status" gorm:"size:24;not null"`
	Role      Role        `json:"role" gorm:"size:16;not null"`
	Note      string      `json:"note,omitempty" gorm:"size:255"`
	CreatedAt time.Time   `json:"createdAt" gorm:"autoCreateTime"`
}

func (OrderStatusHistory) TableName() string { return "order_status_history" }

func NewHistory(orderID uint64, status OrderStatus, role Role, note string) *OrderStatusHistory {
	return &OrderStatusHistory{OrderID: orderID, Status: status, Role: role, Note: note}
}
