package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

func TestValidate(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name   string
		method model.PaymentMethod
		amount string
		tip    string
		ref    string
		rule   string
		kind   apperr.Kind
	}{
		{"cash without reference", model.MethodCash, "50.00", "5.00", "", "", ""},
		{"card with reference", model.MethodCard, "120.00", "10.00", "auth-1", "", ""},
		{"card without reference", model.MethodCard, "120.00", "0", "", "reference is required", apperr.KindValidation},
		{"mobile without reference", model.MethodMobile, "10.00", "0", " ", "reference is required", apperr.KindValidation},
		{"voucher with tip", model.MethodVoucher, "20.00", "1.00", "v-1", "tips are not accepted", apperr.KindValidation},
		{"voucher over limit", model.MethodVoucher, "500.01", "0", "v-1", "amount exceeds method limit", apperr.KindResource},
		{"cash tip pushes over limit", model.MethodCash, "9990.00", "20.00", "", "amount exceeds method limit", apperr.KindResource},
		{"negative tip", model.MethodCash, "10.00", "-1", "", "tip cannot be negative", apperr.KindValidation},
		{"unknown method", model.PaymentMethod("barter"), "10.00", "0", "", "unsupported payment method", apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.method, d(tt.amount), d(tt.tip), tt.ref)
			if tt.rule == "" {
				assert.NoError(t, err)
				return
			}
			var ruleErr *apperr.PaymentRuleError
			require.ErrorAs(t, err, &ruleErr)
			assert.Equal(t, tt.rule, ruleErr.Rule)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestValidate_AmountAndMethod(t *testing.T) {
	assert.ErrorIs(t, Validate(model.MethodCash, decimal.Zero, decimal.Zero, ""), apperr.ErrInvalidAmount)
	assert.ErrorIs(t, Validate(model.MethodCash, decimal.NewFromInt(-5), decimal.Zero, ""), apperr.ErrInvalidAmount)
	assert.ErrorIs(t, Validate("", decimal.NewFromInt(5), decimal.Zero, ""), apperr.ErrMissingMethod)
}

func TestValidate_LimitIsReported(t *testing.T) {
	err := Validate(model.MethodVoucher, decimal.NewFromInt(600), decimal.Zero, "v-1")
	var ruleErr *apperr.PaymentRuleError
	require.ErrorAs(t, err, &ruleErr)
	require.NotNil(t, ruleErr.Limit)
	assert.Equal(t, "500.00", ruleErr.Limit.StringFixed(2))
}
