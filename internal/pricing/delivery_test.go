package pricing

import (
	"context"
	"errors"
	"testing"

	"fulfillment-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRules struct {
	rules []domain.DeliveryRule
	err   error
	calls int
}

func (s *staticRules) ActiveRules(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error) {
	s.calls++
	return s.rules, s.err
}

func f(v float64) *float64 { return &v }

func flatRule(id uint64, minOrder int64, minDist float64, maxDist *float64, amount, base, perKm int64) domain.DeliveryRule {
	return domain.DeliveryRule{
		ID:           id,
		RestaurantID: 1,
		MinOrder:     decimal.NewFromInt(minOrder),
		MinDistance:  minDist,
		MaxDistance:  maxDist,
		ChargeType:   domain.ChargeFlat,
		ChargeAmount: decimal.NewFromInt(amount),
		BaseDistance: float64(base),
		PerKmCharge:  decimal.NewFromInt(perKm),
		IsActive:     true,
	}
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		rules      []domain.DeliveryRule
		subtotal   int64
		distance   float64
		wantAmount int64
		wantRule   uint64
	}{
		{
			name:       "no rules means free delivery",
			subtotal:   500,
			distance:   3,
			wantAmount: 0,
		},
		{
			name:       "flat with per km beyond base",
			rules:      []domain.DeliveryRule{flatRule(1, 0, 0, f(10), 20, 3, 5)},
			subtotal:   200,
			distance:   7,
			wantAmount: 40,
			wantRule:   1,
		},
		{
			name:       "within base distance pays flat only",
			rules:      []domain.DeliveryRule{flatRule(1, 0, 0, f(10), 20, 3, 5)},
			subtotal:   200,
			distance:   2,
			wantAmount: 20,
			wantRule:   1,
		},
		{
			name:       "distance outside every rule is free",
			rules:      []domain.DeliveryRule{flatRule(1, 0, 0, f(10), 20, 3, 5)},
			subtotal:   200,
			distance:   12,
			wantAmount: 0,
		},
		{
			name: "free rule above order threshold",
			rules: []domain.DeliveryRule{
				flatRule(1, 0, 0, nil, 30, 0, 0),
				{ID: 2, MinOrder: decimal.NewFromInt(500), ChargeType: domain.ChargeFree, IsActive: true},
			},
			subtotal:   499,
			distance:   4,
			wantAmount: 30,
			wantRule:   1,
		},
		{
			name: "inactive rules are ignored",
			rules: func() []domain.DeliveryRule {
				r := flatRule(1, 0, 0, nil, 99, 0, 0)
				r.IsActive = false
				return []domain.DeliveryRule{r}
			}(),
			subtotal:   100,
			distance:   1,
			wantAmount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&staticRules{rules: tt.rules})
			charge, err := r.Resolve(context.Background(), 1, tt.subtotal, tt.distance)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAmount, charge.Amount)
			if tt.wantRule == 0 {
				assert.Nil(t, charge.RuleID)
			} else {
				require.NotNil(t, charge.RuleID)
				assert.Equal(t, tt.wantRule, *charge.RuleID)
			}
		})
	}
}

func TestResolver_SourceError(t *testing.T) {
	r := NewResolver(&staticRules{err: errors.New("db down")})
	_, err := r.Resolve(context.Background(), 7, 100, 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "restaurant 7")
	assert.Contains(t, err.Error(), "db down")
}

func TestSelectRule_TieBreak(t *testing.T) {
	rules := []domain.DeliveryRule{
		flatRule(9, 100, 0, nil, 10, 0, 0),
		flatRule(4, 0, 2, nil, 20, 0, 0),
		flatRule(3, 0, 2, nil, 30, 0, 0),
		flatRule(5, 0, 1, nil, 40, 0, 0),
	}

	got := SelectRule(rules, 300, 5)
	require.NotNil(t, got)
	assert.Equal(t, uint64(5), got.ID, "lowest minOrder then lowest minDistance")

	got = SelectRule(rules[:3], 300, 5)
	require.NotNil(t, got)
	assert.Equal(t, uint64(3), got.ID, "lowest id breaks a full tie")

	// Same answer regardless of input order.
	reversed := []domain.DeliveryRule{rules[3], rules[2], rules[1], rules[0]}
	assert.Equal(t, uint64(5), SelectRule(reversed, 300, 5).ID)
}

func TestChargeFor(t *testing.T) {
	tests := []struct {
		name     string
		rule     domain.DeliveryRule
		distance float64
		want     int64
	}{
		{"free", domain.DeliveryRule{ChargeType: domain.ChargeFree, ChargeAmount: decimal.NewFromInt(50)}, 9, 0},
		{"flat no per km", flatRule(1, 0, 0, nil, 25, 0, 0), 9, 25},
		{"fractional distance rounds", flatRule(1, 0, 0, nil, 20, 3, 5), 4.4, 27},
		{"exactly at base", flatRule(1, 0, 0, nil, 20, 3, 5), 3, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			assert.Equal(t, tt.want, ChargeFor(&rule, tt.distance))
		})
	}
}

func TestValidateRule(t *testing.T) {
	ok := flatRule(1, 0, 0, f(5), 20, 3, 5)
	assert.NoError(t, ValidateRule(&ok))

	bad := []struct {
		name   string
		mutate func(r *domain.DeliveryRule)
	}{
		{"unknown charge type", func(r *domain.DeliveryRule) { r.ChargeType = "SURGE" }},
		{"negative min order", func(r *domain.DeliveryRule) { r.MinOrder = decimal.NewFromInt(-1) }},
		{"negative per km", func(r *domain.DeliveryRule) { r.PerKmCharge = decimal.NewFromInt(-2) }},
		{"max order below min", func(r *domain.DeliveryRule) {
			r.MinOrder = decimal.NewFromInt(100)
			r.MaxOrder = decimal.NewNullDecimal(decimal.NewFromInt(50))
		}},
		{"max distance below min", func(r *domain.DeliveryRule) { r.MinDistance = 6 }},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			r := flatRule(1, 0, 0, f(5), 20, 3, 5)
			tt.mutate(&r)
			err := ValidateRule(&r)
			assert.ErrorIs(t, err, domain.ErrInvalidRule)
		})
	}
}

func TestDeliveryRule_Overlaps(t *testing.T) {
	near := flatRule(1, 0, 0, f(5), 20, 0, 0)
	far := flatRule(2, 0, 5.5, f(10), 30, 0, 0)
	touching := flatRule(3, 0, 5, nil, 30, 0, 0)

	assert.False(t, near.Overlaps(&far))
	assert.False(t, far.Overlaps(&near))
	assert.True(t, near.Overlaps(&touching), "inclusive bounds share the 5km point")

	bigOrders := flatRule(4, 1000, 0, f(5), 0, 0, 0)
	smallOrders := flatRule(5, 0, 0, f(5), 0, 0, 0)
	smallOrders.MaxOrder = decimal.NewNullDecimal(decimal.NewFromInt(999))
	assert.False(t, bigOrders.Overlaps(&smallOrders))
}
