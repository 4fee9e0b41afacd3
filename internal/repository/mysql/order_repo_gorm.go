package mysql

import (
	"context"
	"errors"
	"log"
	"time"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/repository"

	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

// Create inserts the order together with its items and history rows.
func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	result := r.db.WithContext(ctx).Create(order)
	if result.Error != nil {
		log.Printf("order create error: %v", result.Error)
		return result.Error
	}
	if order.ID == 0 {
		return errors.New("failed to assign order ID")
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("order FindByID error: %v", err)
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID uint64) ([]domain.Order, error) {
	var out []domain.Order
	if err := r.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		log.Printf("order ListByUser error: %v", err)
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) UpdateIf(ctx context.Context, id uint64, guard repository.OrderGuard, fields map[string]any) (bool, error) {
	q := r.db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", id)
	if len(guard.Statuses) > 0 {
		q = q.Where("status IN ?", guard.Statuses)
	}
	if guard.RefundStatus != nil {
		q = q.Where("refund_status = ?", *guard.RefundStatus)
	}
	if guard.PartnerID != nil {
		q = q.Where("delivery_partner_id = ?", *guard.PartnerID)
	}
	res := q.Updates(fields)
	if res.Error != nil {
		log.Printf("order %d update error: %v", id, res.Error)
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepo) AppendHistory(ctx context.Context, h *domain.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *orderRepo) ListStaleRefunds(ctx context.Context, before time.Time, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.WithContext(ctx).
		Where("refund_status = ? AND updated_at < ?", domain.RefundPending, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *orderRepo) DeleteTerminal(ctx context.Context, id uint64) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status IN ?", id, []domain.OrderStatus{domain.StatusCancelled, domain.StatusDelivered}).
			Delete(&domain.Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		if err := tx.Where("order_id = ?", id).Delete(&domain.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Where("order_id = ?", id).Delete(&domain.OrderStatusHistory{}).Error
	})
	return deleted, err
}
