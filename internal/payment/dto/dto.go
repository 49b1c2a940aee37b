package dto

import (
	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

type SubmitPaymentInput struct {
	OrderID     string
	Amount      decimal.Decimal
	Tip         decimal.Decimal
	Method      model.PaymentMethod
	ReferenceID string
}

// RefundInput refunds part or all of a completed charge. Amount is positive.
type RefundInput struct {
	PaymentID string
	Amount    decimal.Decimal
}

type Summary struct {
	OrderID  string              `json:"order_id"`
	Total    decimal.Decimal     `json:"total"`
	Charged  decimal.Decimal     `json:"charged"`
	Refunded decimal.Decimal     `json:"refunded"`
	Net      decimal.Decimal     `json:"net"`
	Balance  decimal.Decimal     `json:"balance"`
	Status   model.PaymentStatus `json:"status"`
}
