package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/infra/gateway"
	rabbit "fulfillment-service/internal/infra/rabbitmq"
	"fulfillment-service/internal/repository"

	"github.com/shopspring/decimal"
)

type PaymentService struct {
	store         repository.Store
	gateway       gateway.Client
	publisher     rabbit.PublisherInterface
	currency      string
	webhookSecret string
	now           func() time.Time
}

func NewPaymentService(store repository.Store, gw gateway.Client, pub rabbit.PublisherInterface, currency, webhookSecret string) *PaymentService {
	return &PaymentService{
		store:         store,
		gateway:       gw,
		publisher:     pub,
		currency:      currency,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

func (s *PaymentService) SetClock(now func() time.Time) {
	s.now = now
}

// CreatePaymentSession opens a gateway checkout for an unpaid online order.
// The payment row, with the order's amount, is written before the gateway
// is called and only receives the gateway ids afterwards.
func (s *PaymentService) CreatePaymentSession(ctx context.Context, userID, orderID uint64) (*domain.Payment, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	if o.PaymentMethod != domain.PaymentOnline || o.Status == domain.StatusCancelled || o.RefundStatus != domain.RefundNone {
		return nil, domain.ErrNotPayable
	}
	if o.PaymentStatus == domain.PaymentPaid {
		return nil, domain.ErrAlreadyPaid
	}

	p, err := s.store.Payments().FindLatestForOrder(ctx, o.ID, domain.PaymentPending)
	if err != nil {
		return nil, err
	}
	if p != nil && p.PaymentSessionID != "" && p.Amount == o.FinalAmount {
		return p, nil
	}
	if p == nil || p.Amount != o.FinalAmount {
		p = &domain.Payment{
			UserID:        userID,
			ReferenceType: domain.ReferenceOrder,
			ReferenceID:   o.ID,
			OrderID:       &o.ID,
			Amount:        o.FinalAmount,
			Currency:      s.currency,
			Status:        domain.PaymentPending,
		}
		if err := s.store.Payments().Create(ctx, p); err != nil {
			return nil, err
		}
	}

	gw, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		OrderID:  p.GatewayReference(),
		Amount:   float64(p.Amount),
		Currency: p.Currency,
		Customer: gateway.Customer{ID: fmt.Sprintf("user-%d", userID)},
		Note:     o.OrderNumber,
	})
	if err != nil {
		log.Printf("create payment session for order %d: %v", o.ID, err)
		return nil, domain.Upstream(err)
	}

	gatewayID := gw.OrderID
	if gatewayID == "" {
		gatewayID = p.GatewayReference()
	}
	if _, err := s.store.Payments().UpdateIf(ctx, p.ID, domain.PaymentPending, map[string]any{
		"gateway_order_id":   gatewayID,
		"payment_session_id": gw.PaymentSessionID,
	}); err != nil {
		return nil, err
	}
	p.GatewayOrderID = gatewayID
	p.PaymentSessionID = gw.PaymentSessionID
	return p, nil
}

// VerifyPayment asks the gateway for the state of the order's pending payment
// and settles it when the gateway reports it paid.
func (s *PaymentService) VerifyPayment(ctx context.Context, userID, orderID uint64) (*domain.Payment, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	if o.PaymentStatus == domain.PaymentPaid {
		p, err := s.store.Payments().FindLatestForOrder(ctx, o.ID, domain.PaymentPaid)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}

	p, err := s.store.Payments().FindLatestForOrder(ctx, o.ID, domain.PaymentPending)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrPaymentNotFound
	}
	return s.settle(ctx, p)
}

// HandleWebhook authenticates a gateway notification and settles the payment
// it names. The body only identifies the payment; its state is re-read from
// the gateway.
func (s *PaymentService) HandleWebhook(ctx context.Context, timestamp, signature string, body []byte) error {
	if !gateway.VerifySignature(s.webhookSecret, timestamp, body, signature) {
		return domain.ErrInvalidSignature
	}
	evt, err := gateway.ParseWebhook(body)
	if err != nil || evt.Data.Order.OrderID == "" {
		return domain.ErrInvalidWebhook
	}

	p, err := s.store.Payments().FindByGatewayOrderID(ctx, evt.Data.Order.OrderID)
	if err != nil {
		return err
	}
	if p == nil {
		return domain.ErrPaymentNotFound
	}
	if p.Status != domain.PaymentPending {
		return nil
	}
	_, err = s.settle(ctx, p)
	return err
}

// settle marks p PAID when the gateway says so. A payment that arrives for an
// order cancelled in the meantime is recorded but leaves the order untouched.
func (s *PaymentService) settle(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	if p.GatewayOrderID == "" {
		return nil, domain.ErrPaymentNotFound.WithMessage("payment %d has no gateway session", p.ID)
	}
	gw, err := s.gateway.GetOrder(ctx, p.GatewayOrderID)
	if err != nil {
		return nil, domain.Upstream(err)
	}
	if gw.Status != gateway.OrderPaid {
		return p, nil
	}
	if !gw.Amount.Equal(decimal.NewFromInt(p.Amount)) {
		log.Printf("payment %d: gateway amount %s does not match %d", p.ID, gw.Amount, p.Amount)
		return nil, domain.ErrGateway.WithMessage("gateway amount does not match payment %d", p.ID)
	}

	now := s.now()
	var settled bool
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Payments().UpdateIf(ctx, p.ID, domain.PaymentPending, map[string]any{
			"status":  domain.PaymentPaid,
			"paid_at": now,
		})
		if err != nil || !ok {
			return err
		}
		settled = true
		if p.OrderID == nil {
			return nil
		}

		live := []domain.OrderStatus{domain.StatusPending, domain.StatusConfirmed, domain.StatusPreparing, domain.StatusOutForDelivery, domain.StatusDelivered}
		ok, err = tx.Orders().UpdateIf(ctx, *p.OrderID, repository.OrderGuard{Statuses: live}, map[string]any{
			"payment_status": domain.PaymentPaid,
		})
		if err != nil {
			return err
		}
		if !ok {
			log.Printf("payment %d settled for cancelled order %d, refund manually", p.ID, *p.OrderID)
			return nil
		}
		confirmed, err := tx.Orders().UpdateIf(ctx, *p.OrderID, repository.OrderGuard{Statuses: []domain.OrderStatus{domain.StatusPending}}, map[string]any{
			"status": domain.StatusConfirmed,
		})
		if err != nil {
			return err
		}
		if confirmed {
			return tx.Orders().AppendHistory(ctx, domain.NewHistory(*p.OrderID, domain.StatusConfirmed, domain.RoleSystem, "payment received"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if settled {
		evt := domain.PaymentPaidEvent{PaymentID: p.ID, Amount: p.Amount, PaidAt: now}
		if p.OrderID != nil {
			evt.OrderID = *p.OrderID
		}
		publish(ctx, s.publisher, domain.EventPaymentPaid, evt)
	}
	return s.store.Payments().FindByID(ctx, p.ID)
}
