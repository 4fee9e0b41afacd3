package mysql

import (
	"context"

	"fulfillment-service/internal/domain"

	"gorm.io/gorm"
)

type ruleRepo struct {
	db *gorm.DB
}

func (r *ruleRepo) ActiveRules(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error) {
	var out []domain.DeliveryRule
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *ruleRepo) ListByRestaurant(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error) {
	var out []domain.DeliveryRule
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("is_active DESC, min_order ASC, min_distance ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *ruleRepo) Create(ctx context.Context, rule *domain.DeliveryRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *ruleRepo) Deactivate(ctx context.Context, restaurantID, ruleID uint64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.DeliveryRule{}).
		Where("id = ? AND restaurant_id = ? AND is_active = ?", ruleID, restaurantID, true).
		Update("is_active", false)
	return res.RowsAffected == 1, res.Error
}
