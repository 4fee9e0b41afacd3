package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/infra/gateway"
	rabbit "fulfillment-service/internal/infra/rabbitmq"
	"fulfillment-service/internal/repository"
)

// CancelOutcome reports how a cancellation ended. RefundPending is set when
// the gateway accepted the refund but has not settled it yet; the reconciler
// completes the cancellation once it does.
type CancelOutcome struct {
	Order         *domain.Order `json:"order"`
	RefundPending bool          `json:"refundPending"`
}

type LifecycleService struct {
	store     repository.Store
	gateway   gateway.Client
	publisher rabbit.PublisherInterface
	now       func() time.Time
}

func NewLifecycleService(store repository.Store, gw gateway.Client, pub rabbit.PublisherInterface) *LifecycleService {
	return &LifecycleService{store: store, gateway: gw, publisher: pub, now: time.Now}
}

func (s *LifecycleService) SetClock(now func() time.Time) {
	s.now = now
}

// CancelOrder is the customer cancellation. Checks run in a fixed order:
// ownership, already cancelled, the 5 minute window, then the stage.
func (s *LifecycleService) CancelOrder(ctx context.Context, orderID, userID uint64, reason string) (*CancelOutcome, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status == domain.StatusCancelled {
		return nil, domain.ErrAlreadyCancelled
	}
	if s.now().Sub(o.CreatedAt) > CancelWindow {
		return nil, domain.ErrWindowExpired
	}
	if !domain.StatusIn(o.Status, domain.UserCancellableStatuses) {
		return nil, domain.ErrInvalidStage
	}
	return s.cancel(ctx, o, domain.RoleUser, reason, domain.UserCancellableStatuses)
}

// AdminCancelOrder has no time window and also accepts PREPARING orders.
func (s *LifecycleService) AdminCancelOrder(ctx context.Context, orderID uint64, reason string) (*CancelOutcome, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status == domain.StatusCancelled {
		return nil, domain.ErrAlreadyCancelled
	}
	if !domain.StatusIn(o.Status, domain.CancellableStatuses) {
		return nil, domain.ErrInvalidStage
	}
	return s.cancel(ctx, o, domain.RoleAdmin, reason, domain.CancellableStatuses)
}

func (s *LifecycleService) cancel(ctx context.Context, o *domain.Order, role domain.Role, reason string, from []domain.OrderStatus) (*CancelOutcome, error) {
	if o.PaymentMethod == domain.PaymentOnline && o.PaymentStatus == domain.PaymentPaid {
		return s.refundAndCancel(ctx, o, role, reason, from)
	}

	now := s.now()
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Orders().UpdateIf(ctx, o.ID, repository.OrderGuard{Statuses: from, RefundStatus: refundNone}, map[string]any{
			"status":            domain.StatusCancelled,
			"cancel_reason":     reason,
			"cancelled_by_role": role,
			"cancelled_at":      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errRaceLost
		}
		return s.afterCancel(ctx, tx, o, role, reason)
	})
	if errors.Is(err, errRaceLost) {
		return nil, s.lostRace(ctx, o.ID)
	}
	if err != nil {
		return nil, err
	}
	s.publishCancelled(ctx, o.ID, role, reason, 0, now)
	return s.outcome(ctx, o.ID, false)
}

// refundAndCancel is a saga: claim the refund, ask the gateway outside any
// transaction, then commit CANCELLED and REFUNDED together. A refund the
// gateway rejected releases the claim; any other failure keeps it for the
// reconciler. Either way the order is not cancelled.
func (s *LifecycleService) refundAndCancel(ctx context.Context, o *domain.Order, role domain.Role, reason string, from []domain.OrderStatus) (*CancelOutcome, error) {
	switch o.RefundStatus {
	case domain.RefundRefunded:
		return nil, domain.ErrAlreadyRefunded
	case domain.RefundPending:
		return nil, domain.ErrRefundInProgress
	}

	payment, err := s.paidPayment(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.Orders().UpdateIf(ctx, o.ID, repository.OrderGuard{Statuses: from, RefundStatus: refundNone}, map[string]any{
		"refund_status":     domain.RefundPending,
		"cancel_reason":     reason,
		"cancelled_by_role": role,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, o.ID)
	}

	refund, err := s.gateway.Refund(ctx, gatewayOrderID(payment), gateway.RefundRequest{
		Amount:   float64(o.FinalAmount),
		RefundID: payment.RefundKey(),
		Note:     reason,
	})
	if err == nil && refund == nil {
		err = errors.New("gateway returned no refund")
	}
	if err == nil && refund.Status == gateway.RefundCancelled {
		err = errRefundRejected
	}
	if err != nil {
		if !refundRejected(err) {
			// The gateway may still have refunded; the reconciler settles the claim.
			log.Printf("cancel order %d: refund outcome unknown, keeping claim: %v", o.ID, err)
			return nil, domain.Upstream(err)
		}
		log.Printf("cancel order %d: refund rejected: %v", o.ID, err)
		s.releaseRefund(ctx, o.ID)
		return nil, domain.Upstream(err)
	}

	if refund.Status != gateway.RefundSuccess {
		log.Printf("cancel order %d: refund %s is %s, leaving for reconciliation", o.ID, refund.RefundID, refund.Status)
		return s.outcome(ctx, o.ID, true)
	}

	if err := s.finishRefund(ctx, o, payment); err != nil {
		// The gateway has refunded; the reconciler retries the local commit.
		log.Printf("cancel order %d: refund succeeded but commit failed: %v", o.ID, err)
		return nil, err
	}
	return s.outcome(ctx, o.ID, false)
}

// finishRefund commits a confirmed refund. It only applies to an order whose
// refund is still claimed, so a repeat call is a no-op.
func (s *LifecycleService) finishRefund(ctx context.Context, o *domain.Order, payment *domain.Payment) error {
	now := s.now()
	var (
		role   domain.Role
		reason string
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cur, err := tx.Orders().FindByID(ctx, o.ID)
		if err != nil {
			return err
		}
		if cur == nil {
			return domain.ErrOrderNotFound
		}
		role, reason = cur.CancelledByRole, cur.CancelReason
		if role == "" {
			role = domain.RoleSystem
		}

		ok, err := tx.Orders().UpdateIf(ctx, o.ID, repository.OrderGuard{Statuses: domain.CancellableStatuses, RefundStatus: refundPending}, map[string]any{
			"status":            domain.StatusCancelled,
			"refund_status":     domain.RefundRefunded,
			"refund_amount":     cur.FinalAmount,
			"cancelled_by_role": role,
			"cancelled_at":      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyRefunded
		}
		if _, err := tx.Payments().UpdateIf(ctx, payment.ID, domain.PaymentPaid, map[string]any{"status": domain.PaymentRefunded}); err != nil {
			return err
		}
		return s.afterCancel(ctx, tx, cur, role, reason)
	})
	if err != nil {
		return err
	}
	s.publishCancelled(ctx, o.ID, role, reason, o.FinalAmount, now)
	return nil
}

// releaseRefund clears a refund claim so the order can be cancelled again.
func (s *LifecycleService) releaseRefund(ctx context.Context, orderID uint64) {
	_, err := s.store.Orders().UpdateIf(ctx, orderID, repository.OrderGuard{RefundStatus: refundPending}, map[string]any{
		"refund_status":     domain.RefundNone,
		"cancel_reason":     "",
		"cancelled_by_role": "",
	})
	if err != nil {
		log.Printf("order %d: release refund claim: %v", orderID, err)
	}
}

func (s *LifecycleService) afterCancel(ctx context.Context, tx repository.Store, o *domain.Order, role domain.Role, reason string) error {
	if err := tx.Orders().AppendHistory(ctx, domain.NewHistory(o.ID, domain.StatusCancelled, role, reason)); err != nil {
		return err
	}
	if o.DeliveryPartnerID != nil {
		return tx.Partners().AdjustActiveOrders(ctx, *o.DeliveryPartnerID, -1)
	}
	return nil
}

func (s *LifecycleService) paidPayment(ctx context.Context, orderID uint64) (*domain.Payment, error) {
	payments, err := s.store.Payments().ListForOrder(ctx, orderID, domain.PaymentPaid)
	if err != nil {
		return nil, err
	}
	switch len(payments) {
	case 0:
		return nil, domain.ErrPaymentNotFound
	case 1:
		return &payments[0], nil
	default:
		return nil, domain.ErrAmbiguousPayment
	}
}

var errRefundRejected = errors.New("refund was not accepted by the gateway")

// refundRejected reports whether err proves the gateway did not refund: a
// cancelled refund or a client error other than 429.
func refundRejected(err error) bool {
	if errors.Is(err, errRefundRejected) {
		return true
	}
	var apiErr *gateway.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
}

var errRaceLost = errors.New("guarded update matched no row")

// lostRace explains why a guarded update matched no row.
func (s *LifecycleService) lostRace(ctx context.Context, orderID uint64) error {
	cur, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	switch {
	case cur == nil:
		return domain.ErrOrderNotFound
	case cur.Status == domain.StatusCancelled:
		return domain.ErrAlreadyCancelled
	case cur.RefundStatus == domain.RefundPending:
		return domain.ErrRefundInProgress
	default:
		return domain.ErrInvalidStage
	}
}

func (s *LifecycleService) outcome(ctx context.Context, orderID uint64, pending bool) (*CancelOutcome, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &CancelOutcome{Order: o, RefundPending: pending}, nil
}

func (s *LifecycleService) publishCancelled(ctx context.Context, orderID uint64, role domain.Role, reason string, refund int64, at time.Time) {
	publish(ctx, s.publisher, domain.EventOrderCancelled, domain.OrderCancelledEvent{
		OrderID:      orderID,
		CancelledBy:  role,
		Reason:       reason,
		RefundAmount: refund,
		CancelledAt:  at,
	})
}

// AdvanceStatus moves an order one step along the happy path.
func (s *LifecycleService) AdvanceStatus(ctx context.Context, orderID uint64, to domain.OrderStatus, role domain.Role) (*domain.Order, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	if to == domain.StatusCancelled {
		return nil, domain.ErrInvalidTransition.WithMessage("use the cancel endpoint to cancel an order")
	}
	if o.Status.Next() != to {
		return nil, domain.ErrInvalidTransition.WithMessage("cannot move order from %s to %s", o.Status, to)
	}
	if o.RefundStatus == domain.RefundPending {
		return nil, domain.ErrRefundInProgress
	}
	if to == domain.StatusDelivered {
		return s.deliver(ctx, o, role)
	}
	if to == domain.StatusOutForDelivery && o.DeliveryPartnerID == nil {
		return nil, domain.ErrPartnerRequired
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Orders().UpdateIf(ctx, o.ID, repository.OrderGuard{Statuses: []domain.OrderStatus{o.Status}, RefundStatus: refundNone}, map[string]any{
			"status": to,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}
		return tx.Orders().AppendHistory(ctx, domain.NewHistory(o.ID, to, role, ""))
	})
	if err != nil {
		return nil, err
	}
	return s.store.Orders().FindByID(ctx, o.ID)
}

// AssignDeliveryPartner sets or replaces the partner of a CONFIRMED or
// PREPARING order and keeps the partners' active order counts in step.
func (s *LifecycleService) AssignDeliveryPartner(ctx context.Context, orderID, partnerID uint64) (*domain.Order, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	partner, err := s.store.Partners().FindByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, domain.ErrPartnerNotFound
	}
	assignable := []domain.OrderStatus{domain.StatusConfirmed, domain.StatusPreparing}
	if !domain.StatusIn(o.Status, assignable) {
		return nil, domain.ErrInvalidStage.WithMessage("a delivery partner can only be assigned to confirmed or preparing orders")
	}
	if o.DeliveryPartnerID != nil && *o.DeliveryPartnerID == partnerID {
		return o, nil
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Orders().UpdateIf(ctx, o.ID, repository.OrderGuard{Statuses: assignable}, map[string]any{
			"delivery_partner_id": partnerID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidStage
		}
		if o.DeliveryPartnerID != nil {
			if err := tx.Partners().AdjustActiveOrders(ctx, *o.DeliveryPartnerID, -1); err != nil {
				return err
			}
		}
		return tx.Partners().AdjustActiveOrders(ctx, partnerID, 1)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Orders().FindByID(ctx, o.ID)
}

// MarkDelivered is called by the assigned delivery partner.
func (s *LifecycleService) MarkDelivered(ctx context.Context, orderID, partnerID uint64) (*domain.Order, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.DeliveryPartnerID == nil || *o.DeliveryPartnerID != partnerID {
		return nil, domain.ErrOrderNotFound
	}
	if o.Status == domain.StatusDelivered {
		return nil, domain.ErrAlreadyDelivered
	}
	if o.Status != domain.StatusOutForDelivery {
		return nil, domain.ErrNotReady
	}
	return s.deliver(ctx, o, domain.RoleDelivery)
}

func (s *LifecycleService) deliver(ctx context.Context, o *domain.Order, role domain.Role) (*domain.Order, error) {
	if o.DeliveryPartnerID == nil {
		return nil, domain.ErrPartnerRequired
	}
	partner, err := s.store.Partners().FindByID(ctx, *o.DeliveryPartnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, domain.ErrPartnerNotFound
	}

	fields := map[string]any{"status": domain.StatusDelivered}
	if o.PaymentMethod == domain.PaymentCOD {
		fields["payment_status"] = domain.PaymentPaid
	}
	earning := &domain.DeliveryEarning{
		OrderID:           o.ID,
		DeliveryPartnerID: partner.ID,
		OrderAmount:       o.FinalAmount,
		EarningAmount:     partner.Earning(o.FinalAmount),
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Orders().UpdateIf(ctx, o.ID, repository.OrderGuard{
			Statuses:  []domain.OrderStatus{domain.StatusOutForDelivery},
			PartnerID: o.DeliveryPartnerID,
		}, fields)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyDelivered
		}
		if err := tx.Orders().AppendHistory(ctx, domain.NewHistory(o.ID, domain.StatusDelivered, role, "")); err != nil {
			return err
		}
		inserted, err := tx.Earnings().Create(ctx, earning)
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrAlreadyDelivered
		}
		return tx.Partners().AdjustActiveOrders(ctx, partner.ID, -1)
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, domain.EventOrderDelivered, domain.OrderDeliveredEvent{
		OrderID:           o.ID,
		DeliveryPartnerID: partner.ID,
		EarningAmount:     earning.EarningAmount,
		DeliveredAt:       s.now(),
	})
	return s.store.Orders().FindByID(ctx, o.ID)
}

// PurgeOrder hard deletes a CANCELLED or DELIVERED order.
func (s *LifecycleService) PurgeOrder(ctx context.Context, orderID uint64) error {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return domain.ErrOrderNotFound
	}
	if !o.Status.Terminal() {
		return domain.ErrNotTerminal
	}
	ok, err := s.store.Orders().DeleteTerminal(ctx, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotTerminal
	}
	return nil
}

func gatewayOrderID(p *domain.Payment) string {
	if p.GatewayOrderID != "" {
		return p.GatewayOrderID
	}
	return p.GatewayReference()
}
