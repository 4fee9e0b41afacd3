package mysql

import (
	"context"
	"errors"

	"fulfillment-service/internal/domain"

	"gorm.io/gorm"
)

type couponRepo struct {
	db *gorm.DB
}

func (r *couponRepo) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *couponRepo) CountRedemptions(ctx context.Context, couponID, userID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.CouponRedemption{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&n).Error
	return n, err
}

func (r *couponRepo) Consume(ctx context.Context, couponID uint64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Coupon{}).
		Where("id = ? AND is_active = ? AND (usage_limit IS NULL OR used_count < usage_limit)", couponID, true).
		Update("used_count", gorm.Expr("used_count + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *couponRepo) Redeem(ctx context.Context, red *domain.CouponRedemption) error {
	err := r.db.WithContext(ctx).Create(red).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrCouponAlreadyUsed
	}
	return err
}
