package mocks

import (
	"context"
	"time"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/infra/gateway"
	"fulfillment-service/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockStore hands out the repository mocks. WithTx runs fn against the same
// mocks and returns its error; Commits and Rollbacks count the outcomes.
type MockStore struct {
	OrderRepo   *MockOrderRepository
	CatalogRepo *MockCatalogRepository
	RuleRepo    *MockDeliveryRuleRepository
	CouponRepo  *MockCouponRepository
	PaymentRepo *MockPaymentRepository
	PartnerRepo *MockPartnerRepository
	EarningRepo *MockEarningRepository
	Commits     int
	Rollbacks   int
}

func NewMockStore() *MockStore {
	return &MockStore{
		OrderRepo:   new(MockOrderRepository),
		CatalogRepo: new(MockCatalogRepository),
		RuleRepo:    new(MockDeliveryRuleRepository),
		CouponRepo:  new(MockCouponRepository),
		PaymentRepo: new(MockPaymentRepository),
		PartnerRepo: new(MockPartnerRepository),
		EarningRepo: new(MockEarningRepository),
	}
}

func (m *MockStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := fn(m); err != nil {
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

func (m *MockStore) Orders() repository.OrderRepository               { return m.OrderRepo }
func (m *MockStore) Catalog() repository.CatalogRepository            { return m.CatalogRepo }
func (m *MockStore) DeliveryRules() repository.DeliveryRuleRepository { return m.RuleRepo }
func (m *MockStore) Coupons() repository.CouponRepository             { return m.CouponRepo }
func (m *MockStore) Payments() repository.PaymentRepository           { return m.PaymentRepo }
func (m *MockStore) Partners() repository.PartnerRepository           { return m.PartnerRepo }
func (m *MockStore) Earnings() repository.EarningRepository           { return m.EarningRepo }

// AssertExpectations checks every repository mock.
func (m *MockStore) AssertExpectations(t mock.TestingT) {
	m.OrderRepo.AssertExpectations(t)
	m.CatalogRepo.AssertExpectations(t)
	m.RuleRepo.AssertExpectations(t)
	m.CouponRepo.AssertExpectations(t)
	m.PaymentRepo.AssertExpectations(t)
	m.PartnerRepo.AssertExpectations(t)
	m.EarningRepo.AssertExpectations(t)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID uint64) ([]domain.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateIf(ctx context.Context, id uint64, guard repository.OrderGuard, fields map[string]any) (bool, error) {
	args := m.Called(ctx, id, guard, fields)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) AppendHistory(ctx context.Context, h *domain.OrderStatusHistory) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockOrderRepository) ListStaleRefunds(ctx context.Context, before time.Time, limit int) ([]domain.Order, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepository) DeleteTerminal(ctx context.Context, id uint64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) FindRestaurant(ctx context.Context, id uint64) (*domain.Restaurant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Restaurant), args.Error(1)
}

func (m *MockCatalogRepository) LockRestaurant(ctx context.Context, id uint64) (*domain.Restaurant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Restaurant), args.Error(1)
}

func (m *MockCatalogRepository) FindAddress(ctx context.Context, id, userID uint64) (*domain.Address, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

func (m *MockCatalogRepository) FindProducts(ctx context.Context, ids []uint64) ([]domain.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

type MockDeliveryRuleRepository struct {
	mock.Mock
}

func (m *MockDeliveryRuleRepository) ActiveRules(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error) {
	args := m.Called(ctx, restaurantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DeliveryRule), args.Error(1)
}

func (m *MockDeliveryRuleRepository) ListByRestaurant(ctx context.Context, restaurantID uint64) ([]domain.DeliveryRule, error) {
	args := m.Called(ctx, restaurantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DeliveryRule), args.Error(1)
}

func (m *MockDeliveryRuleRepository) Create(ctx context.Context, rule *domain.DeliveryRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockDeliveryRuleRepository) Deactivate(ctx context.Context, restaurantID, ruleID uint64) (bool, error) {
	args := m.Called(ctx, restaurantID, ruleID)
	return args.Bool(0), args.Error(1)
}

type MockCouponRepository struct {
	mock.Mock
}

func (m *MockCouponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *MockCouponRepository) CountRedemptions(ctx context.Context, couponID, userID uint64) (int64, error) {
	args := m.Called(ctx, couponID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCouponRepository) Consume(ctx context.Context, couponID uint64) (bool, error) {
	args := m.Called(ctx, couponID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCouponRepository) Redeem(ctx context.Context, r *domain.CouponRedemption) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uint64) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindLatestForOrder(ctx context.Context, orderID uint64, status domain.PaymentStatus) (*domain.Payment, error) {
	args := m.Called(ctx, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListForOrder(ctx context.Context, orderID uint64, status domain.PaymentStatus) ([]domain.Payment, error) {
	args := m.Called(ctx, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) UpdateIf(ctx context.Context, id uint64, from domain.PaymentStatus, fields map[string]any) (bool, error) {
	args := m.Called(ctx, id, from, fields)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payment), args.Error(1)
}

type MockPartnerRepository struct {
	mock.Mock
}

func (m *MockPartnerRepository) FindByID(ctx context.Context, id uint64) (*domain.DeliveryPartner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryPartner), args.Error(1)
}

func (m *MockPartnerRepository) AdjustActiveOrders(ctx context.Context, id uint64, delta int) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

type MockEarningRepository struct {
	mock.Mock
}

func (m *MockEarningRepository) Create(ctx context.Context, e *domain.DeliveryEarning) (bool, error) {
	args := m.Called(ctx, e)
	return args.Bool(0), args.Error(1)
}

func (m *MockEarningRepository) FindByOrder(ctx context.Context, orderID uint64) (*domain.DeliveryEarning, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryEarning), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Order), args.Error(1)
}

func (m *MockGateway) GetOrder(ctx context.Context, orderID string) (*gateway.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Order), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, orderID string, req gateway.RefundRequest) (*gateway.Refund, error) {
	args := m.Called(ctx, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Refund), args.Error(1)
}

func (m *MockGateway) GetRefund(ctx context.Context, orderID, refundID string) (*gateway.Refund, error) {
	args := m.Called(ctx, orderID, refundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Refund), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message any) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

var (
	_ repository.Store = (*MockStore)(nil)
	_ gateway.Client   = (*MockGateway)(nil)
)
