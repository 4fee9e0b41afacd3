package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type DeliveryPartner struct {
	ID              uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Name            string          `json:"name" gorm:"size:120;not null"`
	CommissionType  DiscountType    `json:"commissionType" gorm:"size:16;not null"`
	CommissionValue decimal.Decimal `json:"commissionValue" gorm:"type:decimal(12,2);not null"`
	ActiveOrders    int             `json:"activeOrders" gorm:"not null"`
}

// Earning is the partner's cut of an order of finalAmount, in whole units.
func (p *DeliveryPartner) Earning(finalAmount int64) int64 {
	var e decimal.Decimal
	switch p.CommissionType {
	case DiscountPercentage:
		e = decimal.NewFromInt(finalAmount).Mul(p.CommissionValue).Div(decimal.NewFromInt(100))
	case DiscountFlat:
		e = p.CommissionValue
	}
	if e.IsNegative() {
		return 0
	}
	return e.Round(0).IntPart()
}

// DeliveryEarning is written once per delivered order; OrderID is unique.
type DeliveryEarning struct {
	ID                uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID           uint64    `json:"orderId" gorm:"not null;uniqueIndex"`
	DeliveryPartnerID uint64    `json:"deliveryPartnerId" gorm:"not null;index"`
	OrderAmount       int64     `json:"orderAmount" gorm:"not null"`
	EarningAmount     int64     `json:"earningAmount" gorm:"not null"`
	CreatedAt         time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func uitoa(v uint64) string { return strconv.FormatUint(v, 10) }
