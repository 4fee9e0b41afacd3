package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Coupon struct {
	ID             uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Code           string          `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Type           DiscountType    `json:"type" gorm:"size:16;not null"`
	Value          decimal.Decimal `json:"value" gorm:"type:decimal(12,2);not null"`
	IsActive       bool            `json:"isActive" gorm:"not null"`
	ExpiresAt      *time.Time      `json:"expiresAt,omitempty"`
	UsageLimit     *int            `json:"usageLimit,omitempty"`
	UsedCount      int             `json:"usedCount" gorm:"not null"`
	OneTimePerUser bool            `json:"oneTimePerUser" gorm:"not null"`
	CreatedAt      time.Time       `json:"createdAt" gorm:"autoCreateTime"`
}

func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// CouponRedemption links a coupon use to the order that consumed it.
// UniqueKey is only set for one-time coupons, so the unique index rejects a
// second redemption by the same user.
type CouponRedemption struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	CouponID  uint64    `json:"couponId" gorm:"not null;index"`
	UserID    uint64    `json:"userId" gorm:"not null;index"`
	OrderID   uint64    `json:"orderId" gorm:"not null;index"`
	UniqueKey *string   `json:"-" gorm:"size:64;uniqueIndex"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}
