package mysql

import (
	"context"
	"errors"

	"fulfillment-service/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type partnerRepo struct {
	db *gorm.DB
}

func (r *partnerRepo) FindByID(ctx context.Context, id uint64) (*domain.DeliveryPartner, error) {
	var p domain.DeliveryPartner
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *partnerRepo) AdjustActiveOrders(ctx context.Context, id uint64, delta int) error {
	return r.db.WithContext(ctx).Model(&domain.DeliveryPartner{}).
		Where("id = ?", id).
		Update("active_orders", gorm.Expr("CASE WHEN active_orders + ? < 0 THEN 0 ELSE active_orders + ? END", delta, delta)).
		Error
}

type earningRepo struct {
	db *gorm.DB
}

func (r *earningRepo) Create(ctx context.Context, e *domain.DeliveryEarning) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *earningRepo) FindByOrder(ctx context.Context, orderID uint64) (*domain.DeliveryEarning, error) {
	var e domain.DeliveryEarning
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}
