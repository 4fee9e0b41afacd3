package services

import (
	"context"
	"testing"
	"time"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/infra/gateway"
	"fulfillment-service/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedOrder(t *testing.T, db *gorm.DB, status domain.OrderStatus, method domain.PaymentMethod, paid domain.PaymentStatus) *domain.Order {
	t.Helper()
	o := CreateMockOrder(0, status, method, paid)
	o.OrderNumber = "ORD-20260314-SQLITE01"
	require.NoError(t, db.Create(o).Error)
	return o
}

func TestLifecycleSQLite_DeliveredOnce(t *testing.T) {
	store, db := newSQLiteStore(t)
	ctx := context.Background()

	partner := CreateMockPartner(0)
	require.NoError(t, db.Create(partner).Error)
	o := seedOrder(t, db, domain.StatusOutForDelivery, domain.PaymentCOD, domain.PaymentPending)
	require.NoError(t, db.Model(o).Update("delivery_partner_id", partner.ID).Error)

	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, domain.EventOrderDelivered, mock.Anything).Return(nil).Once()
	s := NewLifecycleService(store, new(mocks.MockGateway), pub)
	s.SetClock(fixedClock(testNow))

	got, err := s.MarkDelivered(ctx, o.ID, partner.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, got.Status)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)

	_, err = s.MarkDelivered(ctx, o.ID, partner.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyDelivered)

	var earnings []domain.DeliveryEarning
	require.NoError(t, db.Where("order_id = ?", o.ID).Find(&earnings).Error)
	require.Len(t, earnings, 1)
	assert.Equal(t, int64(12), earnings[0].EarningAmount)

	var p domain.DeliveryPartner
	require.NoError(t, db.First(&p, partner.ID).Error)
	assert.Equal(t, 0, p.ActiveOrders)
	pub.AssertExpectations(t)
}

func TestLifecycleSQLite_ExistingEarningRollsBackDelivery(t *testing.T) {
	store, db := newSQLiteStore(t)
	ctx := context.Background()

	partner := CreateMockPartner(0)
	require.NoError(t, db.Create(partner).Error)
	o := seedOrder(t, db, domain.StatusOutForDelivery, domain.PaymentCOD, domain.PaymentPending)
	require.NoError(t, db.Model(o).Update("delivery_partner_id", partner.ID).Error)
	require.NoError(t, db.Create(&domain.DeliveryEarning{OrderID: o.ID, DeliveryPartnerID: partner.ID, OrderAmount: TestFinal, EarningAmount: 12}).Error)

	s := NewLifecycleService(store, new(mocks.MockGateway), nil)
	_, err := s.MarkDelivered(ctx, o.ID, partner.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyDelivered)

	cur, err := store.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOutForDelivery, cur.Status)
	assert.Equal(t, domain.PaymentPending, cur.PaymentStatus)
	assert.Empty(t, cur.History)

	var count int64
	require.NoError(t, db.Model(&domain.DeliveryEarning{}).Where("order_id = ?", o.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLifecycleSQLite_FailedRefundKeepsOrder(t *testing.T) {
	store, db := newSQLiteStore(t)
	ctx := context.Background()

	o := seedOrder(t, db, domain.StatusConfirmed, domain.PaymentOnline, domain.PaymentPaid)
	payment := CreateMockPayment(0, o.ID, domain.PaymentPaid)
	require.NoError(t, db.Create(payment).Error)

	gw := new(mocks.MockGateway)
	gw.On("Refund", mock.Anything, payment.GatewayOrderID, mock.Anything).Return(nil, &gateway.APIError{StatusCode: 400, Message: "payment not refundable"})
	s := NewLifecycleService(store, gw, nil)
	s.SetClock(fixedClock(testNow.Add(2 * time.Minute)))

	out, err := s.CancelOrder(ctx, o.ID, TestUserID, "wrong address")
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))

	cur, err := store.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, cur.Status)
	assert.Equal(t, domain.RefundNone, cur.RefundStatus)
	assert.Empty(t, cur.CancelReason)
	assert.Nil(t, cur.CancelledAt)
	assert.Empty(t, cur.History)

	pay, err := store.Payments().FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, pay.Status)
	gw.AssertExpectations(t)
}

func TestLifecycleSQLite_TimedOutRefundIsReconciled(t *testing.T) {
	store, db := newSQLiteStore(t)
	ctx := context.Background()

	o := seedOrder(t, db, domain.StatusConfirmed, domain.PaymentOnline, domain.PaymentPaid)
	payment := CreateMockPayment(0, o.ID, domain.PaymentPaid)
	require.NoError(t, db.Create(payment).Error)

	gw := new(mocks.MockGateway)
	gw.On("Refund", mock.Anything, payment.GatewayOrderID, mock.Anything).Return(nil, context.DeadlineExceeded).Once()
	s := NewLifecycleService(store, gw, nil)
	s.SetClock(fixedClock(testNow.Add(2 * time.Minute)))

	_, err := s.CancelOrder(ctx, o.ID, TestUserID, "wrong address")
	require.Error(t, err)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))

	cur, err := store.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, cur.Status)
	assert.Equal(t, domain.RefundPending, cur.RefundStatus)

	_, err = s.AdvanceStatus(ctx, o.ID, domain.StatusPreparing, domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrRefundInProgress)
	_, err = s.CancelOrder(ctx, o.ID, TestUserID, "again")
	assert.ErrorIs(t, err, domain.ErrRefundInProgress)

	gw.On("GetRefund", mock.Anything, payment.GatewayOrderID, payment.RefundKey()).
		Return(&gateway.Refund{RefundID: payment.RefundKey(), Status: gateway.RefundSuccess}, nil).Once()
	r := NewReconciler(store, gw, s, NewPaymentService(store, gw, nil, "INR", "whsec"), 10*time.Minute, 50)
	r.SetClock(func() time.Time { return time.Now().Add(time.Hour) })

	rep, err := r.ReconcileRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Resolved: 1}, rep)

	cur, err = store.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cur.Status)
	assert.Equal(t, domain.RefundRefunded, cur.RefundStatus)
	assert.Equal(t, TestFinal, cur.RefundAmount)
	assert.Equal(t, domain.RoleUser, cur.CancelledByRole)
	assert.Equal(t, "wrong address", cur.CancelReason)

	pay, err := store.Payments().FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, pay.Status)
	gw.AssertExpectations(t)
}
