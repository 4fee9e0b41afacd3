package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"fulfillment-service/internal/domain"
	"fulfillment-service/internal/infra/gateway"
	"fulfillment-service/internal/repository"

	"golang.org/x/sync/errgroup"
)

type ReconcileReport struct {
	Checked  int `json:"checked"`
	Resolved int `json:"resolved"`
	Released int `json:"released"`
	Failed   int `json:"failed"`
}

func (r *ReconcileReport) add(o ReconcileReport) {
	r.Checked += o.Checked
	r.Resolved += o.Resolved
	r.Released += o.Released
	r.Failed += o.Failed
}

// Reconciler repairs state left behind when a process dies between a
// gateway call and the local commit.
type Reconciler struct {
	store     repository.Store
	gateway   gateway.Client
	lifecycle *LifecycleService
	payments  *PaymentService
	after     time.Duration
	batch     int
	workers   int
	now       func() time.Time
}

func NewReconciler(store repository.Store, gw gateway.Client, lifecycle *LifecycleService, payments *PaymentService, after time.Duration, batch int) *Reconciler {
	return &Reconciler{
		store:     store,
		gateway:   gw,
		lifecycle: lifecycle,
		payments:  payments,
		after:     after,
		batch:     batch,
		workers:   4,
		now:       time.Now,
	}
}

func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// ReconcileRefunds resolves refund claims older than the grace period:
// a refund the gateway settled is committed locally, one it never received
// or rejected releases the claim, and one still in flight is left alone.
func (r *Reconciler) ReconcileRefunds(ctx context.Context) (ReconcileReport, error) {
	orders, err := r.store.Orders().ListStaleRefunds(ctx, r.now().Add(-r.after), r.batch)
	if err != nil {
		return ReconcileReport{}, err
	}
	return r.each(ctx, len(orders), func(ctx context.Context, i int) ReconcileReport {
		return r.reconcileRefund(ctx, &orders[i])
	}), nil
}

func (r *Reconciler) reconcileRefund(ctx context.Context, o *domain.Order) ReconcileReport {
	rep := ReconcileReport{Checked: 1}
	payment, err := r.lifecycle.paidPayment(ctx, o.ID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		log.Printf("reconcile refund for order %d: no paid payment, releasing claim", o.ID)
		r.lifecycle.releaseRefund(ctx, o.ID)
		rep.Released++
		return rep
	}
	if err != nil {
		// Nothing proves the gateway did not refund; try again next pass.
		log.Printf("reconcile refund for order %d: %v", o.ID, err)
		rep.Failed++
		return rep
	}

	refund, err := r.gateway.GetRefund(ctx, gatewayOrderID(payment), payment.RefundKey())
	if err != nil {
		log.Printf("reconcile refund for order %d: %v", o.ID, err)
		rep.Failed++
		return rep
	}

	switch {
	case refund == nil || refund.Status == gateway.RefundCancelled:
		r.lifecycle.releaseRefund(ctx, o.ID)
		rep.Released++
	case refund.Status == gateway.RefundSuccess:
		if err := r.lifecycle.finishRefund(ctx, o, payment); err != nil {
			log.Printf("reconcile refund for order %d: commit: %v", o.ID, err)
			rep.Failed++
			return rep
		}
		rep.Resolved++
	default:
		log.Printf("reconcile refund for order %d: refund still %s", o.ID, refund.Status)
	}
	return rep
}

// ReconcilePayments re-verifies pending payments that have a gateway order,
// catching webhooks that never arrived.
func (r *Reconciler) ReconcilePayments(ctx context.Context) (ReconcileReport, error) {
	pending, err := r.store.Payments().ListStalePending(ctx, r.now().Add(-r.after), r.batch)
	if err != nil {
		return ReconcileReport{}, err
	}
	return r.each(ctx, len(pending), func(ctx context.Context, i int) ReconcileReport {
		rep := ReconcileReport{Checked: 1}
		p, err := r.payments.settle(ctx, &pending[i])
		switch {
		case err != nil:
			log.Printf("reconcile payment %d: %v", pending[i].ID, err)
			rep.Failed++
		case p != nil && p.Status == domain.PaymentPaid:
			rep.Resolved++
		}
		return rep
	}), nil
}

func (r *Reconciler) each(ctx context.Context, n int, fn func(ctx context.Context, i int) ReconcileReport) ReconcileReport {
	var (
		mu    sync.Mutex
		total ReconcileReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			rep := fn(gctx, i)
			mu.Lock()
			total.add(rep)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return total
}
