// Package repository declares the storage contracts used by the services.
// Finders return nil, nil when a row does not exist.
package repository

import (
	"context"
	"time"

	"fulfillment-service/internal/domain"
)

// Store groups the repositories and runs units of work atomically. The
// Store passed to fn is bound to the transaction; fn must not use the outer one.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error

	Orders() OrderRepository
	Catalog() CatalogRepository
	DeliveryRules() DeliveryRuleRepository
	Coupons() CouponRepository
	Payments() PaymentRepository
	Partners() PartnerRepository
	Earnings() EarningRepository
}

// OrderGuard restricts a conditional update. Empty Statuses means any status;
// a nil RefundStatus means any refund status.
type OrderGuard struct {
	Statuses     []domain.OrderStatus
	RefundStatus *domain.RefundStatus
	PartnerID    *uint64
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	ListByUser(ctx context.Context, userID uint64) ([]domain.Order, error)
	// UpdateIf applies fields only when the guard holds and reports whether a row changed.
	UpdateIf(ctx context.Context, id uint64, guard OrderGuard, fields map[string]any) (bool, error)
	AppendHistory(ctx context.Context, h *domain.OrderStatusHistory) error
	ListStaleRefunds(ctx context.Context, before time.Time, limit int) ([]domain.Order, error)
	// DeleteTerminal removes a CANCELLED or DELIVERED order with its items and history.
	DeleteTerminal(ctx context.Context, id uint64) (bool, error)
}

type CatalogRepository interface {
	FindRestaurant(ctx context.Context, id uint64) (*domain.Restaurant, error)
	// LockRestaurant loads the restaurant FOR UPDATE. Writers that check
	// per-restaurant invariants take it first so they run one at a time.
	LockRestaurant(ctx context.Context, id uint64) (*domain.Restaurant, error)
	FindAddress(ctx context.Context, id, userID uint64) (*domain.Address, error)
	// FindProducts loads products with their variants and extras.
	FindProducts(ctx context.Context, ids []uint64) ([]domain.Product, error)
}

type DeliveryRuleRepository interface {
	ActiveRules(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error)
	ListByRestaurant(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error)
	Create(ctx context.Context, rule *domain.DeliveryRule) error
	Deactivate(ctx context.Context, restaurantID, ruleID uint64) (bool, error)
}

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)
	CountRedemptions(ctx context.Context, couponID, userID uint64) (int64, error)
	// Consume increments used_count unless the usage limit is already reached.
	Consume(ctx context.Context, couponID uint64) (bool, error)
	// Redeem records a redemption. A second one-time redemption by the same
	// user fails with domain.ErrCouponAlreadyUsed.
	Redeem(ctx context.Context, r *domain.CouponRedemption) error
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	FindByID(ctx context.Context, id uint64) (*domain.Payment, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error)
	FindLatestForOrder(ctx context.Context, orderID uint64, status domain.PaymentStatus) (*domain.Payment, error)
	ListForOrder(ctx context.Context, orderID uint64, status domain.PaymentStatus) ([]domain.Payment, error)
	UpdateIf(ctx context.Context, id uint64, from domain.PaymentStatus, fields map[string]any) (bool, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error)
}

type PartnerRepository interface {
	FindByID(ctx context.Context, id uint64) (*domain.DeliveryPartner, error)
	// AdjustActiveOrders adds delta to the active order count, floored at zero.
	AdjustActiveOrders(ctx context.Context, id uint64, delta int) error
}

type EarningRepository interface {
	// Create inserts the earning unless one exists for the order and reports
	// whether it was inserted.
	Create(ctx context.Context, e *domain.DeliveryEarning) (bool, error)
	FindByOrder(ctx context.Context, orderID uint64) (*domain.DeliveryEarning, error)
}
