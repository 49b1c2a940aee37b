package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies an error by how the caller is expected to recover from it.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindResource   Kind = "resource"
	KindExternal   Kind = "external"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindInternal   Kind = "internal"
)

type Error struct {
	kind Kind
	code string
	msg  string
	err  error
}

func New(kind Kind, code, msg string) *Error {
	return &Error{kind: kind, code: code, msg: msg}
}

// External wraps a failure of the store, a gateway or the event stream.
func External(code string, err error) *Error {
	return &Error{kind: KindExternal, code: code, msg: code, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }
func (e *Error) Code() string  { return e.code }

// Is matches on kind and code so wrapped copies still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind && e.code == t.code
}

var (
	ErrInvalidQuantity  = New(KindValidation, "invalid_quantity", "quantity must be greater than zero")
	ErrDiscountNegative = New(KindValidation, "discount_negative", "discount cannot be negative")
	ErrInvalidPrice     = New(KindValidation, "invalid_price", "price cannot be negative")
	ErrInactiveProduct  = New(KindValidation, "inactive_product", "product is not available for sale")
	ErrMissingReason    = New(KindValidation, "missing_reason", "stock movement requires a reason")
	ErrInvalidMovement  = New(KindValidation, "invalid_movement_type", "unknown stock movement type")
	ErrInvalidAmount    = New(KindValidation, "invalid_amount", "amount must be greater than zero")
	ErrMissingMethod    = New(KindValidation, "missing_method", "payment method is required")
	ErrEmptyOrder       = New(KindValidation, "empty_order", "cannot place an order without items")
	ErrInvalidStatus    = New(KindValidation, "invalid_status", "unknown status")
	ErrInvalidOrderType = New(KindValidation, "invalid_order_type", "unknown order type")

	ErrStaleState       = New(KindConflict, "stale_state", "entity was modified by another terminal, refetch and retry")
	ErrTentativePending = New(KindConflict, "tentative_pending", "a local change for this entity is still awaiting reconciliation")
	ErrOrderClosed      = New(KindConflict, "order_closed", "order no longer accepts payments")
	ErrNotRefundable    = New(KindConflict, "not_refundable", "only completed charges can be refunded")

	ErrNotFound  = New(KindNotFound, "not_found", "resource not found")
	ErrForbidden = New(KindForbidden, "forbidden", "actor is not allowed to perform this action")
	ErrBusy      = New(KindExternal, "busy", "system busy, please try again later")
)

type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Kind() Kind { return KindResource }

type DiscountExceedsSubtotalError struct {
	Discount decimal.Decimal
	Subtotal decimal.Decimal
}

func (e *DiscountExceedsSubtotalError) Error() string {
	return fmt.Sprintf("discount %s exceeds subtotal %s", e.Discount.StringFixed(2), e.Subtotal.StringFixed(2))
}

func (e *DiscountExceedsSubtotalError) Kind() Kind { return KindResource }

type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Kind() Kind { return KindConflict }

// PaymentRuleError reports a violated method rule. Limit is set for amount ceilings.
type PaymentRuleError struct {
	Method string
	Rule   string
	Limit  *decimal.Decimal
}

func (e *PaymentRuleError) Error() string {
	if e.Limit != nil {
		return fmt.Sprintf("payment method %s: %s (limit %s)", e.Method, e.Rule, e.Limit.StringFixed(2))
	}
	return fmt.Sprintf("payment method %s: %s", e.Method, e.Rule)
}

func (e *PaymentRuleError) Kind() Kind {
	if e.Limit != nil {
		return KindResource
	}
	return KindValidation
}

type kinded interface {
	Kind() Kind
}

// KindOf walks the wrap chain and returns the first classification found.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// FromStore classifies a repository error. Errors that already carry a kind
// pass through; anything else is a store failure.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	var k kinded
	if errors.As(err, &k) {
		return err
	}
	return External("store_unavailable", err)
}
