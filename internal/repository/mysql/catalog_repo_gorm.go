package mysql

import (
	"context"
	"errors"

	"fulfillment-service/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type catalogRepo struct {
	db *gorm.DB
}

func (r *catalogRepo) FindRestaurant(ctx context.Context, id uint64) (*domain.Restaurant, error) {
	var rest domain.Restaurant
	if err := r.db.WithContext(ctx).First(&rest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rest, nil
}

func (r *catalogRepo) LockRestaurant(ctx context.Context, id uint64) (*domain.Restaurant, error) {
	var rest domain.Restaurant
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rest, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rest, nil
}

func (r *catalogRepo) FindAddress(ctx context.Context, id, userID uint64) (*domain.Address, error) {
	var a domain.Address
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *catalogRepo) FindProducts(ctx context.Context, ids []uint64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Preload("Extras").
		Where("id IN ?", ids).
		Find(&out).Error
	return out, err
}
