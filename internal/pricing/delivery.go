package pricing

import (
	"context"
	"fmt"
	"sort"

	"fulfillment-service/internal/domain"

	"github.com/shopspring/decimal"
)

// RuleSource yields the active delivery rules of a restaurant.
type RuleSource interface {
	ActiveRules(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error)
}

// Charge is a resolved delivery charge. RuleID is nil when no rule matched
// and delivery is free by default.
type Charge struct {
	Amount int64   `json:"amount"`
	RuleID *uint64 `json:"ruleId,omitempty"`
}

type Resolver struct {
	rules RuleSource
}

func NewResolver(rules RuleSource) *Resolver {
	return &Resolver{rules: rules}
}

func (r *Resolver) Resolve(ctx context.Context, restaurantID uint64, subtotal int64, distanceKm float64) (Charge, error) {
	rules, err := r.rules.ActiveRules(ctx, restaurantID)
	if err != nil {
		return Charge{}, fmt.Errorf("load delivery rules for restaurant %d: %w", restaurantID, err)
	}

	rule := SelectRule(rules, subtotal, distanceKm)
	if rule == nil {
		return Charge{}, nil
	}
	id := rule.ID
	return Charge{Amount: ChargeFor(rule, distanceKm), RuleID: &id}, nil
}

// SelectRule picks the applicable active rule. When several match, the one
// with the lowest MinOrder wins, then the lowest MinDistance, then the lowest id.
func SelectRule(rules []domain.DeliveryRule, subtotal int64, distanceKm float64) *domain.DeliveryRule {
	s := decimal.NewFromInt(subtotal)
	var matched []*domain.DeliveryRule
	for i := range rules {
		if rules[i].IsActive && rules[i].Matches(s, distanceKm) {
			matched = append(matched, &rules[i])
		}
	}
	if len(matched) == 0 {
		return nil
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if c := a.MinOrder.Cmp(b.MinOrder); c != 0 {
			return c < 0
		}
		if a.MinDistance != b.MinDistance {
			return a.MinDistance < b.MinDistance
		}
		return a.ID < b.ID
	})
	return matched[0]
}

// ChargeFor evaluates rule at distanceKm, rounded to whole currency units.
func ChargeFor(rule *domain.DeliveryRule, distanceKm float64) int64 {
	if rule.ChargeType != domain.ChargeFlat {
		return 0
	}
	charge := rule.ChargeAmount
	if extra := distanceKm - rule.BaseDistance; extra > 0 && rule.PerKmCharge.IsPositive() {
		charge = charge.Add(rule.PerKmCharge.Mul(decimal.NewFromFloat(extra)))
	}
	if charge.IsNegative() {
		return 0
	}
	return charge.Round(0).IntPart()
}

// ValidateRule checks the bounds and amounts of a rule before it is stored.
func ValidateRule(r *domain.DeliveryRule) error {
	switch {
	case r.ChargeType != domain.ChargeFree && r.ChargeType != domain.ChargeFlat:
		return domain.ErrInvalidRule.WithMessage("chargeType must be FREE or FLAT")
	case r.MinOrder.IsNegative() || r.MinDistance < 0 || r.BaseDistance < 0:
		return domain.ErrInvalidRule.WithMessage("minimums cannot be negative")
	case r.ChargeAmount.IsNegative() || r.PerKmCharge.IsNegative():
		return domain.ErrInvalidRule.WithMessage("charges cannot be negative")
	case r.MaxOrder.Valid && r.MaxOrder.Decimal.LessThan(r.MinOrder):
		return domain.ErrInvalidRule.WithMessage("maxOrder must not be below minOrder")
	case r.MaxDistance != nil && *r.MaxDistance < r.MinDistance:
		return domain.ErrInvalidRule.WithMessage("maxDistance must not be below minDistance")
	}
	return nil
}
