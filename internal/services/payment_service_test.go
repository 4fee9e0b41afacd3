package services

import (
	"context"
	"testing"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/infra/gateway"
	rabbit "fulfillment-service/internal/infra/rabbitmq"
	"fulfillment-service/internal/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec"

func newPaymentService(store *mocks.MockStore, gw *mocks.MockGateway, pub *mocks.MockPublisher) *PaymentService {
	var p rabbit.PublisherInterface
	if pub != nil {
		p = pub
	}
	s := NewPaymentService(store, gw, p, "INR", testWebhookSecret)
	s.SetClock(fixedClock(testNow))
	return s
}

func paidGatewayOrder(id string, amount int64) *gateway.Order {
	return &gateway.Order{OrderID: id, Amount: decimal.NewFromInt(amount), Currency: "INR", Status: gateway.OrderPaid}
}

func TestPaymentService_CreatePaymentSession(t *testing.T) {
	tests := []struct {
		name          string
		order         func() *domain.Order
		setupMocks    func(store *mocks.MockStore, gw *mocks.MockGateway)
		expectedError error
		expectedKind  domain.Kind
		session       string
	}{
		{
			name: "new session",
			order: func() *domain.Order {
				return CreateMockOrder(TestOrderID, domain.StatusPending, domain.PaymentOnline, domain.PaymentPending)
			},
			setupMocks: func(store *mocks.MockStore, gw *mocks.MockGateway) {
				store.PaymentRepo.On("FindLatestForOrder", mock.Anything, TestOrderID, domain.PaymentPending).Return(nil, nil)
				store.PaymentRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
					return p.Amount == TestFinal && p.Status == domain.PaymentPending && p.GatewayOrderID == ""
				})).Run(func(args mock.Arguments) { args.Get(1).(*domain.Payment).ID = 9 }).Return(nil)
				gw.On("CreateOrder", mock.Anything, gateway.CreateOrderRequest{
					OrderID:  "pay-9",
					Amount:   117,
					Currency: "INR",
					Customer: gateway.Customer{ID: "user-7"},
					Note:     "ORD-20260314-00000100",
				}).Return(&gateway.Order{OrderID: "pay-9", PaymentSessionID: "sess_1", Status: gateway.OrderActive}, nil)
				store.PaymentRepo.On("UpdateIf", mock.Anything, uint64(9), domain.PaymentPending, mock.MatchedBy(func(f map[string]any) bool {
					return f["gateway_order_id"] == "pay-9" && f["payment_session_id"] == "sess_1"
				})).Return(true, nil)
			},
			session: "sess_1",
		},
		{
			name: "reuses live session",
			order: func() *domain.Order {
				return CreateMockOrder(TestOrderID, domain.StatusPending, domain.PaymentOnline, domain.PaymentPending)
			},
			setupMocks: func(store *mocks.MockStore, gw *mocks.MockGateway) {
				p := CreateMockPayment(9, TestOrderID, domain.PaymentPending)
				p.PaymentSessionID = "sess_old"
				store.PaymentRepo.On("FindLatestForOrder", mock.Anything, TestOrderID, domain.PaymentPending).Return(p, nil)
			},
			session: "sess_old",
		},
		{
			name: "gateway failure keeps payment row",
			order: func() *domain.Order {
				return CreateMockOrder(TestOrderID, domain.StatusPending, domain.PaymentOnline, domain.PaymentPending)
			},
			setupMocks: func(store *mocks.MockStore, gw *mocks.MockGateway) {
				store.PaymentRepo.On("FindLatestForOrder", mock.Anything, TestOrderID, domain.PaymentPending).Return(nil, nil)
				store.PaymentRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
				gw.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, &gateway.APIError{StatusCode: 503, Message: "unavailable"})
			},
			expectedError: domain.ErrGateway,
			expectedKind:  domain.KindUpstream,
		},
		{
			name: "cash order",
			order: func() *domain.Order {
				return CreateMockOrder(TestOrderID, domain.StatusPending, domain.PaymentCOD, domain.PaymentPending)
			},
			expectedError: domain.ErrNotPayable,
			expectedKind:  domain.KindConflict,
		},
		{
			name: "cancelled order",
			order: func() *domain.Order {
				return CreateMockOrder(TestOrderID, domain.StatusCancelled, domain.PaymentOnline, domain.PaymentPending)
			},
			expectedError: domain.ErrNotPayable,
			expectedKind:  domain.KindConflict,
		},
		{
			name: "already paid",
			order: func() *domain.Order {
				return CreateMockOrder(TestOrderID, domain.StatusConfirmed, domain.PaymentOnline, domain.PaymentPaid)
			},
			expectedError: domain.ErrAlreadyPaid,
			expectedKind:  domain.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockStore()
			gw := new(mocks.MockGateway)
			store.OrderRepo.On("FindByID", mock.Anything, TestOrderID).Return(tt.order(), nil)
			if tt.setupMocks != nil {
				tt.setupMocks(store, gw)
			}

			s := newPaymentService(store, gw, nil)
			p, err := s.CreatePaymentSession(context.Background(), TestUserID, TestOrderID)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Equal(t, tt.expectedKind, domain.KindOf(err))
				assert.Nil(t, p)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.session, p.PaymentSessionID)
			}
			store.AssertExpectations(t)
			gw.AssertExpectations(t)
		})
	}
}

func expectSettlement(store *mocks.MockStore, pub *mocks.MockPublisher, paymentID uint64) {
	store.PaymentRepo.On("UpdateIf", mock.Anything, paymentID, domain.PaymentPending, mock.MatchedBy(func(f map[string]any) bool {
		return f["status"] == domain.PaymentPaid && f["paid_at"] == testNow
	})).Return(true, nil)
	store.OrderRepo.On("UpdateIf", mock.Anything, TestOrderID, mock.Anything, hasField("payment_status", domain.PaymentPaid)).Return(true, nil)
	store.OrderRepo.On("UpdateIf", mock.Anything, TestOrderID, mock.Anything, hasField("status", domain.StatusConfirmed)).Return(true, nil)
	store.OrderRepo.On("AppendHistory", mock.Anything, mock.MatchedBy(func(h *domain.OrderStatusHistory) bool {
		return h.Status == domain.StatusConfirmed && h.Role == domain.RoleSystem
	})).Return(nil)
	pub.On("Publish", mock.Anything, domain.EventPaymentPaid, domain.PaymentPaidEvent{
		PaymentID: paymentID, OrderID: TestOrderID, Amount: TestFinal, PaidAt: testNow,
	}).Return(nil)
}

func TestPaymentService_VerifyPayment(t *testing.T) {
	store := mocks.NewMockStore()
	gw := new(mocks.MockGateway)
	pub := new(mocks.MockPublisher)

	store.OrderRepo.On("FindByID", mock.Anything, TestOrderID).Return(CreateMockOrder(TestOrderID, domain.StatusPending, domain.PaymentOnline, domain.PaymentPending), nil)
	pending := CreateMockPayment(9, TestOrderID, domain.PaymentPending)
	store.PaymentRepo.On("FindLatestForOrder", mock.Anything, TestOrderID, domain.PaymentPending).Return(pending, nil)
	gw.On("GetOrder", mock.Anything, "pay-9").Return(paidGatewayOrder("pay-9", TestFinal), nil)
	expectSettlement(store, pub, 9)
	store.PaymentRepo.On("FindByID", mock.Anything, uint64(9)).Return(CreateMockPayment(9, TestOrderID, domain.PaymentPaid), nil)

	s := newPaymentService(store, gw, pub)
	p, err := s.VerifyPayment(context.Background(), TestUserID, TestOrderID)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, p.Status)
	assert.Equal(t, 1, store.Commits)
	store.AssertExpectations(t)
	gw.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestPaymentService_VerifyPaymentNotYetPaid(t *testing.T) {
	store := mocks.NewMockStore()
	gw := new(mocks.MockGateway)

	store.OrderRepo.On("FindByID", mock.Anything, TestOrderID).Return(CreateMockOrder(TestOrderID, domain.StatusPending, domain.PaymentOnline, domain.PaymentPending), nil)
	store.PaymentRepo.On("FindLatestForOrder", mock.Anything, TestOrderID, domain.PaymentPending).Return(CreateMockPayment(9, TestOrderID, domain.PaymentPending), nil)
	gw.On("GetOrder", mock.Anything, "pay-9").Return(&gateway.Order{OrderID: "pay-9", Status: gateway.OrderActive}, nil)

	s := newPaymentService(store, gw, nil)
	p, err := s.VerifyPayment(context.Background(), TestUserID, TestOrderID)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, p.Status)
	assert.Equal(t, 0, store.Commits)
	store.PaymentRepo.AssertNotCalled(t, "UpdateIf", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_AmountMismatchIsRejected(t *testing.T) {
	store := mocks.NewMockStore()
	gw := new(mocks.MockGateway)

	store.OrderRepo.On("FindByID", mock.Anything, TestOrderID).Return(CreateMockOrder(TestOrderID, domain.StatusPending, domain.PaymentOnline, domain.PaymentPending), nil)
	store.PaymentRepo.On("FindLatestForOrder", mock.Anything, TestOrderID, domain.PaymentPending).Return(CreateMockPayment(9, TestOrderID, domain.PaymentPending), nil)
	gw.On("GetOrder", mock.Anything, "pay-9").Return(paidGatewayOrder("pay-9", 1), nil)

	s := newPaymentService(store, gw, nil)
	_, err := s.VerifyPayment(context.Background(), TestUserID, TestOrderID)

	assert.ErrorIs(t, err, domain.ErrGateway)
	store.PaymentRepo.AssertNotCalled(t, "UpdateIf", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_SettleForCancelledOrder(t *testing.T) {
	store := mocks.NewMockStore()
	gw := new(mocks.MockGateway)
	pub := new(mocks.MockPublisher)

	pending := CreateMockPayment(9, TestOrderID, domain.PaymentPending)
	gw.On("GetOrder", mock.Anything, "pay-9").Return(paidGatewayOrder("pay-9", TestFinal), nil)
	store.PaymentRepo.On("UpdateIf", mock.Anything, uint64(9), domain.PaymentPending, mock.Anything).Return(true, nil)
	store.OrderRepo.On("UpdateIf", mock.Anything, TestOrderID, mock.Anything, hasField("payment_status", domain.PaymentPaid)).Return(false, nil)
	pub.On("Publish", mock.Anything, domain.EventPaymentPaid, mock.Anything).Return(nil)
	store.PaymentRepo.On("FindByID", mock.Anything, uint64(9)).Return(CreateMockPayment(9, TestOrderID, domain.PaymentPaid), nil)

	s := newPaymentService(store, gw, pub)
	p, err := s.settle(context.Background(), pending)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, p.Status)
	store.OrderRepo.AssertNotCalled(t, "UpdateIf", mock.Anything, TestOrderID, mock.Anything, hasField("status", domain.StatusConfirmed))
	store.OrderRepo.AssertNotCalled(t, "AppendHistory", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestPaymentService_HandleWebhook(t *testing.T) {
	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"pay-9"}}}`)
	ts := "1773489600"

	t.Run("bad signature", func(t *testing.T) {
		store := mocks.NewMockStore()
		s := newPaymentService(store, new(mocks.MockGateway), nil)
		err := s.HandleWebhook(context.Background(), ts, "bogus", body)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
		store.PaymentRepo.AssertNotCalled(t, "FindByGatewayOrderID", mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		bad := []byte(`{"data":{}}`)
		s := newPaymentService(mocks.NewMockStore(), new(mocks.MockGateway), nil)
		err := s.HandleWebhook(context.Background(), ts, gateway.Sign(testWebhookSecret, ts, bad), bad)
		assert.ErrorIs(t, err, domain.ErrInvalidWebhook)
	})

	t.Run("already settled is a no-op", func(t *testing.T) {
		store := mocks.NewMockStore()
		gw := new(mocks.MockGateway)
		store.PaymentRepo.On("FindByGatewayOrderID", mock.Anything, "pay-9").Return(CreateMockPayment(9, TestOrderID, domain.PaymentPaid), nil)
		s := newPaymentService(store, gw, nil)

		err := s.HandleWebhook(context.Background(), ts, gateway.Sign(testWebhookSecret, ts, body), body)
		assert.NoError(t, err)
		gw.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
	})

	t.Run("settles pending payment", func(t *testing.T) {
		store := mocks.NewMockStore()
		gw := new(mocks.MockGateway)
		pub := new(mocks.MockPublisher)
		store.PaymentRepo.On("FindByGatewayOrderID", mock.Anything, "pay-9").Return(CreateMockPayment(9, TestOrderID, domain.PaymentPending), nil)
		gw.On("GetOrder", mock.Anything, "pay-9").Return(paidGatewayOrder("pay-9", TestFinal), nil)
		expectSettlement(store, pub, 9)
		store.PaymentRepo.On("FindByID", mock.Anything, uint64(9)).Return(CreateMockPayment(9, TestOrderID, domain.PaymentPaid), nil)
		s := newPaymentService(store, gw, pub)

		err := s.HandleWebhook(context.Background(), ts, gateway.Sign(testWebhookSecret, ts, body), body)
		require.NoError(t, err)
		store.AssertExpectations(t)
		pub.AssertExpectations(t)
	})
}
