package services

import (
	"context"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/pricing"
)

type OrderServiceInterface interface {
	Quote(ctx context.Context, userID uint64, in CreateOrderInput) (*pricing.Quote, error)
	CreateOrder(ctx context.Context, userID uint64, in CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID uint64) (*domain.Order, error)
	ListOrders(ctx context.Context, userID uint64) ([]domain.Order, error)
}

type LifecycleServiceInterface interface {
	CancelOrder(ctx context.Context, orderID, userID uint64, reason string) (*CancelOutcome, error)
	AdminCancelOrder(ctx context.Context, orderID uint64, reason string) (*CancelOutcome, error)
	AdvanceStatus(ctx context.Context, orderID uint64, to domain.OrderStatus, role domain.Role) (*domain.Order, error)
	AssignDeliveryPartner(ctx context.Context, orderID, partnerID uint64) (*domain.Order, error)
	MarkDelivered(ctx context.Context, orderID, partnerID uint64) (*domain.Order, error)
	PurgeOrder(ctx context.Context, orderID uint64) error
}

type PaymentServiceInterface interface {
	CreatePaymentSession(ctx context.Context, userID, orderID uint64) (*domain.Payment, error)
	VerifyPayment(ctx context.Context, userID, orderID uint64) (*domain.Payment, error)
	HandleWebhook(ctx context.Context, timestamp, signature string, body []byte) error
}

type DeliveryRuleServiceInterface interface {
	CreateRule(ctx context.Context, restaurantID uint64, rule *domain.DeliveryRule) (*domain.DeliveryRule, error)
	ListRules(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error)
	DeactivateRule(ctx context.Context, restaurantID, ruleID uint64) error
}

var (
	_ OrderServiceInterface        = (*OrderService)(nil)
	_ LifecycleServiceInterface    = (*LifecycleService)(nil)
	_ PaymentServiceInterface      = (*PaymentService)(nil)
	_ DeliveryRuleServiceInterface = (*DeliveryRuleService)(nil)
)
