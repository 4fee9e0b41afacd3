package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ChargeType string

const (
	ChargeFree ChargeType = "FREE"
	ChargeFlat ChargeType = "FLAT"
)

// DeliveryRule maps an (order value, distance) bucket of one restaurant to a
// delivery charge formula. Nil upper bounds are unbounded.
type DeliveryRule struct {
	ID           uint64              `json:"id" gorm:"primaryKey;autoIncrement"`
	RestaurantID uint64              `json:"restaurantId" gorm:"not null;index:idx_rules_restaurant_active"`
	Title        string              `json:"title" gorm:"size:120"`
	MinOrder     decimal.Decimal     `json:"minOrder" gorm:"type:decimal(12,2);not null"`
	MaxOrder     decimal.NullDecimal `json:"maxOrder" gorm:"type:decimal(12,2)"`
	MinDistance  float64             `json:"minDistance" gorm:"not null"`
	MaxDistance  *float64            `json:"maxDistance"`
	ChargeType   ChargeType          `json:"chargeType" gorm:"size:8;not null"`
	ChargeAmount decimal.Decimal     `json:"chargeAmount" gorm:"type:decimal(12,2)"`
	BaseDistance float64             `json:"baseDistance"`
	PerKmCharge  decimal.Decimal     `json:"perKmCharge" gorm:"type:decimal(12,2)"`
	IsActive     bool                `json:"isActive" gorm:"not null;index:idx_rules_restaurant_active"`
	CreatedAt    time.Time           `json:"createdAt" gorm:"autoCreateTime"`
}

// Matches reports whether the rule covers subtotal and distance, bounds inclusive.
func (r *DeliveryRule) Matches(subtotal decimal.Decimal, distanceKm float64) bool {
	if subtotal.LessThan(r.MinOrder) {
		return false
	}
	if r.MaxOrder.Valid && subtotal.GreaterThan(r.MaxOrder.Decimal) {
		return false
	}
	if distanceKm < r.MinDistance {
		return false
	}
	if r.MaxDistance != nil && distanceKm > *r.MaxDistance {
		return false
	}
	return true
}

// Overlaps reports whether both rules could match the same (subtotal, distance).
func (r *DeliveryRule) Overlaps(o *DeliveryRule) bool {
	orderOverlap := (!o.MaxOrder.Valid || r.MinOrder.LessThanOrEqual(o.MaxOrder.Decimal)) &&
		(!r.MaxOrder.Valid || o.MinOrder.LessThanOrEqual(r.MaxOrder.Decimal))
	distOverlap := (o.MaxDistance == nil || r.MinDistance <= *o.MaxDistance) &&
		(r.MaxDistance == nil || o.MinDistance <= *r.MaxDistance)
	return orderOverlap && distOverlap
}
