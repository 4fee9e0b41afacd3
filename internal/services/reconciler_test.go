package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/infra/gateway"
	"fulfillment-service/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newReconciler(store *mocks.MockStore, gw *mocks.MockGateway, pub *mocks.MockPublisher) *Reconciler {
	lifecycle := newLifecycle(store, gw, pub, testNow)
	payments := newPaymentService(store, gw, pub)
	r := NewReconciler(store, gw, lifecycle, payments, 10*time.Minute, 50)
	r.SetClock(fixedClock(testNow))
	return r
}

func claimedOrder(id uint64) domain.Order {
	o := CreateMockOrder(id, domain.StatusConfirmed, domain.PaymentOnline, domain.PaymentPaid)
	o.RefundStatus = domain.RefundPending
	o.CancelledByRole = domain.RoleUser
	return *o
}

func TestReconciler_ReconcileRefunds(t *testing.T) {
	tests := []struct {
		name       string
		refund     *gateway.Refund
		refundErr  error
		setupMocks func(store *mocks.MockStore, pub *mocks.MockPublisher)
		expected   ReconcileReport
	}{
		{
			name:   "gateway settled the refund",
			refund: &gateway.Refund{RefundID: "refund-9", Status: gateway.RefundSuccess},
			setupMocks: func(store *mocks.MockStore, pub *mocks.MockPublisher) {
				o := claimedOrder(TestOrderID)
				store.OrderRepo.On("FindByID", mock.Anything, TestOrderID).Return(&o, nil)
				store.OrderRepo.On("UpdateIf", mock.Anything, TestOrderID, mock.Anything, hasField("refund_status", domain.RefundRefunded)).Return(true, nil)
				store.PaymentRepo.On("UpdateIf", mock.Anything, uint64(9), domain.PaymentPaid, mock.Anything).Return(true, nil)
				store.OrderRepo.On("AppendHistory", mock.Anything, mock.Anything).Return(nil)
				pub.On("Publish", mock.Anything, domain.EventOrderCancelled, mock.Anything).Return(nil)
			},
			expected: ReconcileReport{Checked: 1, Resolved: 1},
		},
		{
			name:   "gateway never saw the refund",
			refund: nil,
			setupMocks: func(store *mocks.MockStore, pub *mocks.MockPublisher) {
				store.OrderRepo.On("UpdateIf", mock.Anything, TestOrderID, mock.Anything, hasField("refund_status", domain.RefundNone)).Return(true, nil)
			},
			expected: ReconcileReport{Checked: 1, Released: 1},
		},
		{
			name:     "still processing",
			refund:   &gateway.Refund{RefundID: "refund-9", Status: gateway.RefundOnHold},
			expected: ReconcileReport{Checked: 1},
		},
		{
			name:      "gateway unreachable",
			refundErr: errors.New("timeout"),
			expected:  ReconcileReport{Checked: 1, Failed: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockStore()
			gw := new(mocks.MockGateway)
			pub := new(mocks.MockPublisher)

			store.OrderRepo.On("ListStaleRefunds", mock.Anything, testNow.Add(-10*time.Minute), 50).Return([]domain.Order{claimedOrder(TestOrderID)}, nil)
			store.PaymentRepo.On("ListForOrder", mock.Anything, TestOrderID, domain.PaymentPaid).
				Return([]domain.Payment{*CreateMockPayment(9, TestOrderID, domain.PaymentPaid)}, nil)
			gw.On("GetRefund", mock.Anything, "pay-9", "refund-9").Return(tt.refund, tt.refundErr)
			if tt.setupMocks != nil {
				tt.setupMocks(store, pub)
			}

			rep, err := newReconciler(store, gw, pub).ReconcileRefunds(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.expected, rep)
			store.AssertExpectations(t)
			gw.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestReconciler_ReleasesClaimWithoutPayment(t *testing.T) {
	store := mocks.NewMockStore()
	gw := new(mocks.MockGateway)

	store.OrderRepo.On("ListStaleRefunds", mock.Anything, mock.Anything, 50).Return([]domain.Order{claimedOrder(TestOrderID)}, nil)
	store.PaymentRepo.On("ListForOrder", mock.Anything, TestOrderID, domain.PaymentPaid).Return([]domain.Payment{}, nil)
	store.OrderRepo.On("UpdateIf", mock.Anything, TestOrderID, mock.Anything, hasField("refund_status", domain.RefundNone)).Return(true, nil)

	rep, err := newReconciler(store, gw, nil).ReconcileRefunds(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Released: 1}, rep)
	gw.AssertNotCalled(t, "GetRefund", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_KeepsClaimWhenPaymentLookupFails(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(store *mocks.MockStore)
	}{
		{
			name: "database error",
			setupMocks: func(store *mocks.MockStore) {
				store.PaymentRepo.On("ListForOrder", mock.Anything, TestOrderID, domain.PaymentPaid).Return(nil, errors.New("db down"))
			},
		},
		{
			name: "ambiguous payment",
			setupMocks: func(store *mocks.MockStore) {
				store.PaymentRepo.On("ListForOrder", mock.Anything, TestOrderID, domain.PaymentPaid).Return([]domain.Payment{
					*CreateMockPayment(9, TestOrderID, domain.PaymentPaid),
					*CreateMockPayment(10, TestOrderID, domain.PaymentPaid),
				}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockStore()
			gw := new(mocks.MockGateway)
			store.OrderRepo.On("ListStaleRefunds", mock.Anything, mock.Anything, 50).Return([]domain.Order{claimedOrder(TestOrderID)}, nil)
			tt.setupMocks(store)

			rep, err := newReconciler(store, gw, nil).ReconcileRefunds(context.Background())

			require.NoError(t, err)
			assert.Equal(t, ReconcileReport{Checked: 1, Failed: 1}, rep)
			store.OrderRepo.AssertNotCalled(t, "UpdateIf", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			gw.AssertNotCalled(t, "GetRefund", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestReconciler_ReconcilePayments(t *testing.T) {
	store := mocks.NewMockStore()
	gw := new(mocks.MockGateway)
	pub := new(mocks.MockPublisher)

	paid := CreateMockPayment(9, TestOrderID, domain.PaymentPending)
	open := CreateMockPayment(10, TestOrderID+1, domain.PaymentPending)
	broken := CreateMockPayment(11, TestOrderID+2, domain.PaymentPending)
	store.PaymentRepo.On("ListStalePending", mock.Anything, testNow.Add(-10*time.Minute), 50).
		Return([]domain.Payment{*paid, *open, *broken}, nil)

	gw.On("GetOrder", mock.Anything, "pay-9").Return(paidGatewayOrder("pay-9", TestFinal), nil)
	gw.On("GetOrder", mock.Anything, "pay-10").Return(&gateway.Order{OrderID: "pay-10", Status: gateway.OrderActive}, nil)
	gw.On("GetOrder", mock.Anything, "pay-11").Return(nil, errors.New("boom"))
	expectSettlement(store, pub, 9)
	store.PaymentRepo.On("FindByID", mock.Anything, uint64(9)).Return(CreateMockPayment(9, TestOrderID, domain.PaymentPaid), nil)

	rep, err := newReconciler(store, gw, pub).ReconcilePayments(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 3, Resolved: 1, Failed: 1}, rep)
	gw.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestReconciler_ListFailure(t *testing.T) {
	store := mocks.NewMockStore()
	store.OrderRepo.On("ListStaleRefunds", mock.Anything, mock.Anything, 50).Return(nil, errors.New("db down"))

	_, err := newReconciler(store, new(mocks.MockGateway), nil).ReconcileRefunds(context.Background())
	assert.Error(t, err)
}
