// Package pricing computes order totals from authoritative catalog data.
// Nothing in here accepts a price from the client.
package pricing

import (
	"time"

	"fulfillment-service/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CartLine is what a client may say about a line: which product, how many,
// which variant (0 for none) and which extras by id.
type CartLine struct {
	ProductID uint64   `json:"productId" binding:"required"`
	Quantity  int      `json:"quantity" binding:"required"`
	VariantID uint64   `json:"variantId,omitempty"`
	ExtraIDs  []uint64 `json:"extras,omitempty"`
}

// PricedLine is the server-side snapshot of a cart line.
type PricedLine struct {
	ProductID   uint64                 `json:"productId"`
	VariantID   *uint64                `json:"variantId,omitempty"`
	Name        string                 `json:"name"`
	VariantName string                 `json:"variantName,omitempty"`
	Quantity    int                    `json:"quantity"`
	UnitPrice   decimal.Decimal        `json:"unitPrice"`
	LineTotal   decimal.Decimal        `json:"lineTotal"`
	Extras      []domain.ExtraSnapshot `json:"extras"`
}

type LinesResult struct {
	RestaurantID uint64       `json:"restaurantId"`
	Lines        []PricedLine `json:"lines"`
	Subtotal     int64        `json:"subtotal"`
}

// Quote is the full price breakdown of an order.
type Quote struct {
	RestaurantID   uint64       `json:"restaurantId"`
	Lines          []PricedLine `json:"lines"`
	Subtotal       int64        `json:"subtotal"`
	Discount       int64        `json:"discount"`
	DeliveryCharge int64        `json:"deliveryCharge"`
	DeliveryRuleID *uint64      `json:"deliveryRuleId,omitempty"`
	DistanceKm     float64      `json:"distanceKm"`
	FinalAmount    int64        `json:"finalAmount"`
}

// PriceLines resolves every line against products, which must be the
// server-fetched catalog rows for the requested ids.
func PriceLines(lines []CartLine, products []domain.Product) (LinesResult, error) {
	if len(lines) == 0 {
		return LinesResult{}, domain.ErrEmptyCart
	}
	byID := make(map[uint64]*domain.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	var (
		res   LinesResult
		total decimal.Decimal
	)
	for _, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok || !p.Orderable() {
			return LinesResult{}, domain.ErrProductUnavailable.WithMessage("product %d is not available", line.ProductID)
		}
		if res.RestaurantID == 0 {
			res.RestaurantID = p.RestaurantID
		} else if p.RestaurantID != res.RestaurantID {
			return LinesResult{}, domain.ErrCrossRestaurantCart
		}

		priced, err := priceLine(line, p)
		if err != nil {
			return LinesResult{}, err
		}
		total = total.Add(priced.LineTotal)
		res.Lines = append(res.Lines, priced)
	}
	res.Subtotal = total.Round(0).IntPart()
	return res, nil
}

func priceLine(line CartLine, p *domain.Product) (PricedLine, error) {
	if line.Quantity < 1 {
		return PricedLine{}, domain.ErrInvalidQuantity
	}
	out := PricedLine{ProductID: p.ID, Name: p.Name, Quantity: line.Quantity, Extras: []domain.ExtraSnapshot{}}

	unit := p.FinalPrice
	switch {
	case line.VariantID != 0:
		v, ok := p.Variant(line.VariantID)
		if !ok {
			return PricedLine{}, domain.ErrInvalidVariant.WithMessage("variant %d does not belong to product %d", line.VariantID, p.ID)
		}
		unit = v.UnitPrice()
		id := v.ID
		out.VariantID = &id
		out.VariantName = v.Name
	case len(p.Variants) > 0:
		return PricedLine{}, domain.ErrVariantRequired.WithMessage("product %d requires a variant", p.ID)
	}

	seen := make(map[uint64]bool, len(line.ExtraIDs))
	for _, id := range line.ExtraIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		e, ok := p.Extra(id)
		if !ok {
			return PricedLine{}, domain.ErrInvalidExtra.WithMessage("extra %d does not belong to product %d", id, p.ID)
		}
		unit = unit.Add(e.Price)
		out.Extras = append(out.Extras, domain.ExtraSnapshot{ID: e.ID, Name: e.Name, Price: e.Price})
	}

	out.UnitPrice = unit
	out.LineTotal = unit.Mul(decimal.NewFromInt(int64(line.Quantity)))
	return out, nil
}

// CouponCheck is what Discount needs to know beyond the coupon row itself.
type CouponCheck struct {
	Now             time.Time
	UserRedemptions int64
}

// Discount validates coupon and returns its discount on subtotal, rounded
// and capped at subtotal.
func Discount(c *domain.Coupon, subtotal int64, chk CouponCheck) (int64, error) {
	if c == nil || !c.IsActive || c.Expired(chk.Now) {
		return 0, domain.ErrInvalidCoupon
	}
	if c.Exhausted() {
		return 0, domain.ErrCouponExhausted
	}
	if c.OneTimePerUser && chk.UserRedemptions > 0 {
		return 0, domain.ErrCouponAlreadyUsed
	}

	var d decimal.Decimal
	switch c.Type {
	case domain.DiscountPercentage:
		d = decimal.NewFromInt(subtotal).Mul(c.Value).Div(hundred)
	case domain.DiscountFlat:
		d = c.Value
	default:
		return 0, domain.ErrInvalidCoupon
	}

	discount := d.Round(0).IntPart()
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	return discount, nil
}

// FinalAmount is subtotal + delivery - discount; a negative result is rejected.
func FinalAmount(subtotal, delivery, discount int64) (int64, error) {
	final := subtotal + delivery - discount
	if final < 0 {
		return 0, domain.ErrNegativeAmount
	}
	return final, nil
}
