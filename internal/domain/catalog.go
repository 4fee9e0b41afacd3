package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Restaurant struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"size:160;not null"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	IsOpen    bool      `json:"isOpen" gorm:"not null"`
	IsActive  bool      `json:"isActive" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// AcceptsOrders reports whether checkout is allowed right now.
func (r *Restaurant) AcceptsOrders() bool { return r.IsActive && r.IsOpen }

type Address struct {
	ID     uint64   `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID uint64   `json:"userId" gorm:"not null;index"`
	Line   string   `json:"line" gorm:"size:255"`
	Lat    *float64 `json:"lat,omitempty"`
	Lng    *float64 `json:"lng,omitempty"`
}

// DiscountType is shared by product offers, coupons and commissions.
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFlat       DiscountType = "FLAT"
)

// Apply reduces price by the discount, never below zero. An empty type is a no-op.
func (t DiscountType) Apply(price, value decimal.Decimal) decimal.Decimal {
	var out decimal.Decimal
	switch t {
	case DiscountPercentage:
		out = price.Sub(price.Mul(value).Div(decimal.NewFromInt(100)))
	case DiscountFlat:
		out = price.Sub(value)
	default:
		return price
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

type Product struct {
	ID           uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	RestaurantID uint64          `json:"restaurantId" gorm:"not null;index"`
	Name         string          `json:"name" gorm:"size:160;not null"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	OfferType    DiscountType    `json:"offerType,omitempty" gorm:"size:16"`
	OfferValue   decimal.Decimal `json:"offerValue" gorm:"type:decimal(12,2)"`
	ExtraType    DiscountType    `json:"extraDiscountType,omitempty" gorm:"size:16"`
	ExtraValue   decimal.Decimal `json:"extraDiscountValue" gorm:"type:decimal(12,2)"`
	FinalPrice   decimal.Decimal `json:"finalPrice" gorm:"type:decimal(12,2);not null"`
	IsAvailable  bool            `json:"isAvailable" gorm:"not null"`
	IsActive     bool            `json:"isActive" gorm:"not null"`

	Variants []Variant `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Extras   []Extra   `json:"extras,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// DiscountedPrice applies the offer discount and then the extra discount.
func (p *Product) DiscountedPrice(base decimal.Decimal) decimal.Decimal {
	return p.ExtraType.Apply(p.OfferType.Apply(base, p.OfferValue), p.ExtraValue)
}

// BeforeSave stores the final price so reads never derive it.
func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.FinalPrice = p.DiscountedPrice(p.Price).Round(2)
	return nil
}

func (p *Product) Orderable() bool { return p.IsActive && p.IsAvailable }

func (p *Product) Variant(id uint64) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

func (p *Product) Extra(id uint64) (*Extra, bool) {
	for i := range p.Extras {
		if p.Extras[i].ID == id {
			return &p.Extras[i], true
		}
	}
	return nil, false
}

type Variant struct {
	ID         uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID  uint64          `json:"productId" gorm:"not null;index"`
	Name       string          `json:"name" gorm:"size:120;not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	FinalPrice decimal.Decimal `json:"finalPrice" gorm:"type:decimal(12,2)"`
}

// UnitPrice is the final price, falling back to the list price when unset.
func (v *Variant) UnitPrice() decimal.Decimal {
	if v.FinalPrice.IsPositive() {
		return v.FinalPrice
	}
	return v.Price
}

type Extra struct {
	ID        uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID uint64          `json:"productId" gorm:"not null;index"`
	Name      string          `json:"name" gorm:"size:120;not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
}
