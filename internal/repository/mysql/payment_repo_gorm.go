package mysql

import (
	"context"
	"errors"
	"log"
	"time"

	"fulfillment-service/internal/domain"

	"gorm.io/gorm"
)

type paymentRepo struct {
	db *gorm.DB
}

func (r *paymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		log.Printf("payment create error: %v", err)
		return err
	}
	return nil
}

func (r *paymentRepo) first(q *gorm.DB) (*domain.Payment, error) {
	var p domain.Payment
	if err := q.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, id uint64) (*domain.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *paymentRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID))
}

func (r *paymentRepo) FindLatestForOrder(ctx context.Context, orderID uint64, status domain.PaymentStatus) (*domain.Payment, error) {
	return r.first(r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, status).
		Order("id DESC"))
}

func (r *paymentRepo) ListForOrder(ctx context.Context, orderID uint64, status domain.PaymentStatus) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, status).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *paymentRepo) UpdateIf(ctx context.Context, id uint64, from domain.PaymentStatus, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		log.Printf("payment %d update error: %v", id, res.Error)
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND gateway_order_id <> '' AND created_at < ?", domain.PaymentPending, before).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
