package domain

import "time"

type ReferenceType string

const (
	ReferenceOrder   ReferenceType = "ORDER"
	ReferenceBooking ReferenceType = "BOOKING"
)

// Payment is created with the amount of record before the gateway is called
// and receives the gateway identifiers afterwards.
type Payment struct {
	ID               uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID           uint64        `json:"userId" gorm:"not null;index"`
	ReferenceType    ReferenceType `json:"referenceType" gorm:"size:16;not null"`
	ReferenceID      uint64        `json:"referenceId" gorm:"not null"`
	OrderID          *uint64       `json:"orderId,omitempty" gorm:"index"`
	Amount           int64         `json:"amount" gorm:"not null"`
	Currency         string        `json:"currency" gorm:"size:8;not null"`
	Status           PaymentStatus `json:"status" gorm:"size:16;not null;index"`
	GatewayOrderID   string        `json:"gatewayOrderId,omitempty" gorm:"size:64;index"`
	PaymentSessionID string        `json:"paymentSessionId,omitempty" gorm:"size:255"`
	PaidAt           *time.Time    `json:"paidAt,omitempty"`
	CreatedAt        time.Time     `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt        time.Time     `json:"updatedAt" gorm:"autoUpdateTime"`
}

// RefundKey is the idempotency key for a full refund of this payment.
func (p *Payment) RefundKey() string {
	return "refund-" + uitoa(p.ID)
}

// GatewayReference is the order id this payment is registered under at the gateway.
func (p *Payment) GatewayReference() string {
	return "pay-" + uitoa(p.ID)
}
