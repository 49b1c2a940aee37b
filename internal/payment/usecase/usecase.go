package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/audit"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/payment"
	"github.com/fekuna/omnipos-order-service/internal/payment/dto"
)

const (
	resolveAttempts = 3
	lockAttempts    = 3
)

var (
	errUnresolved = errors.New("payment processing did not finish")
	errAbandoned  = errors.New("payment abandoned before resolution")
)

// Locker serializes refunds of one charge across terminals.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type Orders interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	RefreshPaymentStatus(ctx context.Context, id string) (*model.Order, error)
}

// CompletionHook runs after a charge completes. It must not fail the payment.
type CompletionHook interface {
	OnPaymentCompleted(ctx context.Context, order *model.Order, p *model.Payment)
}

type paymentUseCase struct {
	repo     payment.Repository
	orders   Orders
	gateways map[model.PaymentMethod]payment.Gateway
	hook     CompletionHook
	locker   Locker
	audit    audit.Recorder
	logger   logger.ZapLogger
	timeout  time.Duration
	now      func() time.Time

	retryDelay time.Duration
}

func NewPaymentUseCase(
	repo payment.Repository,
	orders Orders,
	gateways map[model.PaymentMethod]payment.Gateway,
	hook CompletionHook,
	locker Locker,
	recorder audit.Recorder,
	timeout time.Duration,
	log logger.ZapLogger,
) payment.UseCase {
	return &paymentUseCase{
		repo:     repo,
		orders:   orders,
		gateways: gateways,
		hook:     hook,
		locker:   locker,
		audit:    recorder,
		logger:   log,
		timeout:  timeout,
		now:      time.Now,

		retryDelay: 100 * time.Millisecond,
	}
}

func (uc *paymentUseCase) Submit(ctx context.Context, s auth.Session, input *dto.SubmitPaymentInput) (*model.Payment, error) {
	if !s.Can(auth.ResourcePayments, auth.ActionCreate) {
		return nil, apperr.ErrForbidden
	}
	if err := payment.Validate(input.Method, input.Amount, input.Tip, input.ReferenceID); err != nil {
		return nil, err
	}
	gw, err := uc.gateway(input.Method)
	if err != nil {
		return nil, err
	}

	o, err := uc.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status == model.OrderCancelled {
		return nil, apperr.ErrOrderClosed
	}

	p := uc.newRecord(s, o.ID, input.Amount, input.Method)
	p.Tip = input.Tip
	if input.ReferenceID != "" {
		ref := input.ReferenceID
		p.ReferenceID = &ref
	}
	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, apperr.FromStore(err)
	}
	uc.record(ctx, s, audit.ActionPaymentCreated, p, model.Details{
		"order_id": p.OrderID,
		"amount":   p.Amount.StringFixed(2),
		"tip":      p.Tip.StringFixed(2),
		"method":   string(p.Method),
	})

	if err := uc.process(ctx, s, p, func(ctx context.Context) error {
		return gw.Charge(ctx, p)
	}); err != nil {
		return p, apperr.External("payment_failed", err)
	}

	updated, err := uc.orders.RefreshPaymentStatus(ctx, o.ID)
	if err != nil {
		uc.logger.Error("failed to refresh order payment status", zap.String("order_id", o.ID), zap.Error(err))
		updated = o
	}
	if uc.hook != nil {
		uc.hook.OnPaymentCompleted(ctx, updated, p)
	}
	return p, nil
}

func (uc *paymentUseCase) Refund(ctx context.Context, s auth.Session, input *dto.RefundInput) (*model.Payment, error) {
	if !s.Can(auth.ResourcePayments, auth.ActionRefund) {
		return nil, apperr.ErrForbidden
	}
	if !input.Amount.IsPositive() {
		return nil, apperr.ErrInvalidAmount
	}

	original, err := uc.repo.FindByID(ctx, input.PaymentID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if original.IsRefund() || original.Status != model.PaymentCompleted {
		return nil, apperr.ErrNotRefundable
	}

	// The refundable remainder is computed and consumed under one lock.
	release, err := uc.lockRefunds(ctx, original.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	siblings, err := uc.repo.ListByOrder(ctx, original.OrderID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	remaining := original.Amount
	for _, p := range siblings {
		if p.RefundOf != nil && *p.RefundOf == original.ID && p.Status != model.PaymentFailed {
			remaining = remaining.Add(p.Amount)
		}
	}
	if input.Amount.GreaterThan(remaining) {
		return nil, &apperr.PaymentRuleError{Method: string(original.Method), Rule: "refund exceeds refundable amount", Limit: &remaining}
	}

	gw, err := uc.gateway(original.Method)
	if err != nil {
		return nil, err
	}

	p := uc.newRecord(s, original.OrderID, input.Amount.Neg(), original.Method)
	p.RefundOf = &original.ID
	p.ReferenceID = original.ReferenceID
	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, apperr.FromStore(err)
	}
	uc.record(ctx, s, audit.ActionPaymentCreated, p, model.Details{
		"order_id":  p.OrderID,
		"amount":    p.Amount.StringFixed(2),
		"refund_of": original.ID,
	})

	if err := uc.process(ctx, s, p, func(ctx context.Context) error {
		return gw.Refund(ctx, p, original)
	}); err != nil {
		return p, apperr.External("refund_failed", err)
	}

	if _, err := uc.orders.RefreshPaymentStatus(ctx, p.OrderID); err != nil {
		uc.logger.Error("failed to refresh order payment status", zap.String("order_id", p.OrderID), zap.Error(err))
	}
	return p, nil
}

func (uc *paymentUseCase) lockRefunds(ctx context.Context, paymentID string) (func(), error) {
	key := "lock:refund:" + paymentID
	token := uuid.New().String()
	// Held across the gateway call, which is bounded by the timeout.
	ttl := uc.timeout + 5*time.Second

	for i := 0; i < lockAttempts; i++ {
		ok, err := uc.locker.AcquireLock(ctx, key, token, ttl)
		if err != nil {
			uc.logger.Error("failed to acquire lock redis error", zap.String("key", key), zap.Error(err))
		}
		if ok {
			return func() {
				if err := uc.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
					uc.logger.Warn("failed to release refund lock", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		if i == lockAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(uc.retryDelay):
		}
	}
	return nil, apperr.ErrBusy
}

func (uc *paymentUseCase) IsFullyPaid(ctx context.Context, orderID string) (bool, error) {
	summary, err := uc.Summary(ctx, orderID)
	if err != nil {
		return false, err
	}
	return summary.Net.GreaterThanOrEqual(summary.Total), nil
}

func (uc *paymentUseCase) Summary(ctx context.Context, orderID string) (*dto.Summary, error) {
	o, err := uc.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payments, err := uc.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	charged, refunded := decimal.Zero, decimal.Zero
	for _, p := range payments {
		if p.Status != model.PaymentCompleted {
			continue
		}
		if p.IsRefund() {
			refunded = refunded.Sub(p.Amount)
		} else {
			charged = charged.Add(p.Amount)
		}
	}
	net := model.CompletedSum(payments)
	return &dto.Summary{
		OrderID:  orderID,
		Total:    o.Total,
		Charged:  charged,
		Refunded: refunded,
		Net:      net,
		Balance:  o.Total.Sub(net),
		Status:   model.DerivePaymentStatus(o.Total, payments),
	}, nil
}

func (uc *paymentUseCase) ListByOrder(ctx context.Context, orderID string) ([]model.Payment, error) {
	payments, err := uc.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return payments, nil
}

func (uc *paymentUseCase) FailAbandoned(ctx context.Context, s auth.Session, createdBefore time.Time) (int, error) {
	pending, err := uc.repo.ListPending(ctx, s.BranchID, createdBefore)
	if err != nil {
		return 0, apperr.FromStore(err)
	}

	failed := 0
	touched := make(map[string]bool)
	for i := range pending {
		p := &pending[i]
		if err := uc.resolve(ctx, s, p, errAbandoned); err != nil {
			return failed, err
		}
		if p.Status == model.PaymentFailed {
			failed++
			touched[p.OrderID] = true
		}
	}
	for orderID := range touched {
		if _, err := uc.orders.RefreshPaymentStatus(ctx, orderID); err != nil {
			uc.logger.Error("failed to refresh order payment status", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	return failed, nil
}

// process runs the gateway call under the configured timeout. The deferred
// resolver moves the record out of pending on every path, panics included.
func (uc *paymentUseCase) process(ctx context.Context, s auth.Session, p *model.Payment, call func(context.Context) error) (err error) {
	err = errUnresolved
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("payment processing panicked: %v", r)
		}
		if rerr := uc.resolve(context.WithoutCancel(ctx), s, p, err); rerr != nil && err == nil {
			err = rerr
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	err = invoke(callCtx, call)
	return err
}

// invoke stops waiting at the deadline even if the gateway ignores ctx.
func invoke(ctx context.Context, call func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("payment gateway panicked: %v", r)
			}
		}()
		done <- call(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (uc *paymentUseCase) resolve(ctx context.Context, s auth.Session, p *model.Payment, cause error) error {
	status := model.PaymentCompleted
	var reason *string
	if cause != nil {
		status = model.PaymentFailed
		msg := cause.Error()
		if errors.Is(cause, context.DeadlineExceeded) {
			msg = "payment gateway timed out"
		}
		reason = &msg
	}

	now := uc.now()
	var resolved bool
	var err error
	for attempt := 0; attempt < resolveAttempts; attempt++ {
		resolved, err = uc.repo.Resolve(ctx, p.ID, status, reason, now)
		if err == nil {
			break
		}
	}
	if err != nil {
		uc.logger.Error("failed to resolve payment", zap.String("payment_id", p.ID), zap.String("status", string(status)), zap.Error(err))
		return apperr.FromStore(err)
	}
	if !resolved {
		uc.logger.Warn("payment already resolved", zap.String("payment_id", p.ID))
		return nil
	}
	p.Status = status
	p.FailureReason = reason
	p.ResolvedAt = &now

	uc.record(ctx, s, audit.ActionPaymentResolved, p, audit.Transition(string(model.PaymentPending), string(status)))
	if cause != nil {
		uc.logger.Warn("payment failed", zap.String("payment_id", p.ID), zap.String("order_id", p.OrderID), zap.Error(cause))
	}
	return nil
}

func (uc *paymentUseCase) gateway(method model.PaymentMethod) (payment.Gateway, error) {
	gw, ok := uc.gateways[method]
	if !ok {
		return nil, apperr.External("gateway_unavailable", fmt.Errorf("no gateway for %s", method))
	}
	return gw, nil
}

func (uc *paymentUseCase) newRecord(s auth.Session, orderID string, amount decimal.Decimal, method model.PaymentMethod) *model.Payment {
	return &model.Payment{
		ID:          uuid.New().String(),
		BranchID:    s.BranchID,
		OrderID:     orderID,
		Amount:      amount,
		Tip:         decimal.Zero,
		Method:      method,
		Status:      model.PaymentPending,
		ProcessedBy: s.ActorID,
		CreatedAt:   uc.now(),
	}
}

func (uc *paymentUseCase) record(ctx context.Context, s auth.Session, action string, p *model.Payment, details model.Details) {
	if err := uc.audit.Record(ctx, s, action, audit.ResourcePayment, p.ID, details); err != nil {
		uc.logger.Warn("activity not recorded", zap.String("action", action), zap.String("payment_id", p.ID), zap.Error(err))
	}
}
