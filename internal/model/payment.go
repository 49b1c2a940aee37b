package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCash    PaymentMethod = "cash"
	MethodCard    PaymentMethod = "card"
	MethodMobile  PaymentMethod = "mobile"
	MethodVoucher PaymentMethod = "voucher"
)

type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentFailed    PaymentState = "failed"
)

func (s PaymentState) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment is a charge (positive amount) or a refund (negative amount with
// RefundOf set). Records are never rewritten after they resolve.
type Payment struct {
	ID            string          `db:"id" json:"id"`
	BranchID      string          `db:"branch_id" json:"branch_id"`
	OrderID       string          `db:"order_id" json:"order_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Tip           decimal.Decimal `db:"tip" json:"tip"`
	Method        PaymentMethod   `db:"method" json:"method"`
	Status        PaymentState    `db:"status" json:"status"`
	ReferenceID   *string         `db:"reference_id" json:"reference_id"`
	RefundOf      *string         `db:"refund_of" json:"refund_of"`
	FailureReason *string         `db:"failure_reason" json:"failure_reason"`
	ProcessedBy   string          `db:"processed_by" json:"processed_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt    *time.Time      `db:"resolved_at" json:"resolved_at"`
}

func (p *Payment) IsRefund() bool {
	return p.Amount.IsNegative()
}

// CompletedSum adds the amounts of every completed record, refunds included.
func CompletedSum(payments []Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		if p.Status == PaymentCompleted {
			sum = sum.Add(p.Amount)
		}
	}
	return sum
}

// DerivePaymentStatus folds the completed records of an order. The order is
// paid once the net completed sum reaches its total.
func DerivePaymentStatus(total decimal.Decimal, payments []Payment) PaymentStatus {
	charged := decimal.Zero
	refunded := decimal.Zero
	for _, p := range payments {
		if p.Status != PaymentCompleted {
			continue
		}
		if p.IsRefund() {
			refunded = refunded.Add(p.Amount.Neg())
		} else {
			charged = charged.Add(p.Amount)
		}
	}

	net := charged.Sub(refunded)
	switch {
	case charged.IsZero():
		return PaymentUnpaid
	case !refunded.IsZero() && !net.IsPositive():
		return PaymentRefunded
	case net.GreaterThanOrEqual(total):
		return PaymentPaid
	case net.IsPositive():
		return PaymentPartial
	}
	return PaymentUnpaid
}
