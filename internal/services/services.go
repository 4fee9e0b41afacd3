// Package services holds the order fulfillment use cases: pricing and
// checkout, the order lifecycle, payment settlement and reconciliation.
package services

import (
	"context"
	"log"
	"time"

	"fulfillment-service/internal/domain"
	rabbit "fulfillment-service/internal/infra/rabbitmq"
)

// CancelWindow is how long after placing an order a customer may cancel it.
const CancelWindow = 5 * time.Minute

func ptr[T any](v T) *T { return &v }

var (
	refundNone    = ptr(domain.RefundNone)
	refundPending = ptr(domain.RefundPending)
)

// publish runs after the database commit. A broker failure is logged and
// does not fail the request.
func publish(ctx context.Context, pub rabbit.PublisherInterface, pattern string, data any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, pattern, data); err != nil {
		log.Printf("Failed to publish %s event: %v", pattern, err)
	}
}
