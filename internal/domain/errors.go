package domain

import (
	"errors"
	"fmt"
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUpstream
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "state_conflict"
	case KindUpstream:
		return "upstream"
	case KindInvariant:
		return "invariant"
	default:
		return "internal"
	}
}

// Error is the error type returned by services. Two errors are the same
// (errors.Is) when their codes match, so a wrapped copy still matches the
// sentinel it was built from.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

// WithMessage returns a copy of e with a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// KindOf reports the Kind of err, KindInternal when err is not a *Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Upstream wraps a failure of an external collaborator.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && de.Kind == KindUpstream {
		return err
	}
	return ErrGateway.Wrap(err)
}

var (
	ErrAddressRequired     = newError(KindValidation, "address_required", "delivery address is required")
	ErrAddressNotFound     = newError(KindValidation, "address_not_found", "delivery address not found")
	ErrEmptyCart           = newError(KindValidation, "empty_cart", "cart is empty")
	ErrInvalidQuantity     = newError(KindValidation, "invalid_quantity", "quantity must be at least 1")
	ErrInvalidPayment      = newError(KindValidation, "invalid_payment_method", "payment method must be COD or ONLINE")
	ErrMissingCoordinates  = newError(KindValidation, "missing_coordinates", "delivery coordinates are required")
	ErrInvalidCoordinates  = newError(KindValidation, "invalid_coordinates", "delivery coordinates are out of range")
	ErrProductUnavailable  = newError(KindValidation, "product_unavailable", "product is not available")
	ErrVariantRequired     = newError(KindValidation, "variant_required", "a variant must be selected for this product")
	ErrInvalidVariant      = newError(KindValidation, "invalid_variant", "variant does not belong to product")
	ErrInvalidExtra        = newError(KindValidation, "invalid_extra", "extra does not belong to product")
	ErrRestaurantClosed    = newError(KindValidation, "restaurant_closed", "restaurant is not accepting orders")
	ErrInvalidCoupon       = newError(KindValidation, "invalid_coupon", "coupon is invalid or expired")
	ErrCouponExhausted     = newError(KindValidation, "coupon_exhausted", "coupon usage limit reached")
	ErrCouponAlreadyUsed   = newError(KindValidation, "coupon_already_used", "coupon already used")
	ErrInvalidRule         = newError(KindValidation, "invalid_delivery_rule", "delivery rule is invalid")
	ErrInvalidStatus       = newError(KindValidation, "invalid_status", "unknown order status")
	ErrInvalidSignature    = newError(KindValidation, "invalid_signature", "webhook signature mismatch")
	ErrInvalidWebhook      = newError(KindValidation, "invalid_webhook", "webhook payload is malformed")
	ErrCrossRestaurantCart = newError(KindInvariant, "cross_restaurant_cart", "all items must come from the same restaurant")
	ErrNegativeAmount      = newError(KindInvariant, "negative_amount", "final amount cannot be negative")

	ErrOrderNotFound      = newError(KindNotFound, "order_not_found", "order not found")
	ErrPaymentNotFound    = newError(KindNotFound, "payment_not_found", "payment not found")
	ErrRestaurantNotFound = newError(KindNotFound, "restaurant_not_found", "restaurant not found")
	ErrPartnerNotFound    = newError(KindNotFound, "delivery_partner_not_found", "delivery partner not found")
	ErrRuleNotFound       = newError(KindNotFound, "delivery_rule_not_found", "delivery rule not found")

	ErrAlreadyCancelled  = newError(KindConflict, "already_cancelled", "order is already cancelled")
	ErrWindowExpired     = newError(KindConflict, "cancel_window_expired", "orders can only be cancelled within 5 minutes of placing them")
	ErrInvalidStage      = newError(KindConflict, "invalid_stage", "order can no longer be cancelled")
	ErrAlreadyRefunded   = newError(KindConflict, "already_refunded", "order is already refunded")
	ErrRefundInProgress  = newError(KindConflict, "refund_in_progress", "a refund is already in progress for this order")
	ErrAmbiguousPayment  = newError(KindConflict, "ambiguous_payment", "order has more than one paid payment")
	ErrAlreadyDelivered  = newError(KindConflict, "already_delivered", "order is already delivered")
	ErrNotReady          = newError(KindConflict, "not_ready", "order is not out for delivery")
	ErrInvalidTransition = newError(KindConflict, "invalid_transition", "status transition not allowed")
	ErrPartnerRequired   = newError(KindConflict, "delivery_partner_required", "order has no delivery partner")
	ErrNotTerminal       = newError(KindConflict, "not_terminal", "only cancelled or delivered orders can be purged")
	ErrNotPayable        = newError(KindConflict, "not_payable", "order does not accept online payment")
	ErrAlreadyPaid       = newError(KindConflict, "already_paid", "order is already paid")
	ErrRuleOverlap       = newError(KindConflict, "delivery_rule_overlap", "an active delivery rule already covers this range")

	ErrGateway = newError(KindUpstream, "gateway_error", "payment gateway request failed")
)
