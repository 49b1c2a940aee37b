package payment

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

// Rule constrains submissions of one payment method. MaxAmount bounds the
// amount plus tip.
type Rule struct {
	RequiresReference bool
	AllowsTips        bool
	MaxAmount         decimal.Decimal
}

var Rules = map[model.PaymentMethod]Rule{
	model.MethodCash:    {RequiresReference: false, AllowsTips: true, MaxAmount: decimal.NewFromInt(10000)},
	model.MethodCard:    {RequiresReference: true, AllowsTips: true, MaxAmount: decimal.NewFromInt(50000)},
	model.MethodMobile:  {RequiresReference: true, AllowsTips: true, MaxAmount: decimal.NewFromInt(25000)},
	model.MethodVoucher: {RequiresReference: true, AllowsTips: false, MaxAmount: decimal.NewFromInt(500)},
}

// Validate checks a charge against the method table before any record exists.
func Validate(method model.PaymentMethod, amount, tip decimal.Decimal, reference string) error {
	if !amount.IsPositive() {
		return apperr.ErrInvalidAmount
	}
	if method == "" {
		return apperr.ErrMissingMethod
	}

	rule, ok := Rules[method]
	if !ok {
		return &apperr.PaymentRuleError{Method: string(method), Rule: "unsupported payment method"}
	}
	if tip.IsNegative() {
		return &apperr.PaymentRuleError{Method: string(method), Rule: "tip cannot be negative"}
	}
	if !rule.AllowsTips && tip.IsPositive() {
		return &apperr.PaymentRuleError{Method: string(method), Rule: "tips are not accepted"}
	}
	if rule.RequiresReference && strings.TrimSpace(reference) == "" {
		return &apperr.PaymentRuleError{Method: string(method), Rule: "reference is required"}
	}
	if amount.Add(tip).GreaterThan(rule.MaxAmount) {
		limit := rule.MaxAmount
		return &apperr.PaymentRuleError{Method: string(method), Rule: "amount exceeds method limit", Limit: &limit}
	}
	return nil
}
