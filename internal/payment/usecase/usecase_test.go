package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/payment"
	"github.com/fekuna/omnipos-order-service/internal/payment/dto"
)

var (
	cashier = auth.Session{ActorID: "c-1", Role: auth.RoleCashier, BranchID: "b-1"}
	manager = auth.Session{ActorID: "m-1", Role: auth.RoleManager, BranchID: "b-1"}
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	uc       *paymentUseCase
	repo     *mockRepo
	orders   *mockOrders
	gateway  *mockGateway
	hook     *mockHook
	locker   *mockLocker
	recorder *mockRecorder
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: &mockRepo{},
		orders: &mockOrders{order: &model.Order{
			BaseModel:     model.BaseModel{ID: "o-1"},
			Status:        model.OrderServed,
			Total:         d("50.00"),
			PaymentStatus: model.PaymentUnpaid,
		}},
		gateway:  &mockGateway{},
		hook:     &mockHook{},
		locker:   &mockLocker{held: map[string]string{}},
		recorder: &mockRecorder{},
	}
	f.orders.payments = f.repo
	gateways := map[model.PaymentMethod]payment.Gateway{
		model.MethodCash: f.gateway,
		model.MethodCard: f.gateway,
	}
	f.uc = NewPaymentUseCase(f.repo, f.orders, gateways, f.hook, f.locker, f.recorder, 50*time.Millisecond, logger.NewNop()).(*paymentUseCase)
	f.uc.retryDelay = time.Millisecond
	return f
}

func (f *fixture) charge(t *testing.T, amount string) *model.Payment {
	t.Helper()
	p, err := f.uc.Submit(context.Background(), cashier, &dto.SubmitPaymentInput{
		OrderID:     "o-1",
		Amount:      d(amount),
		Method:      model.MethodCard,
		ReferenceID: "auth-1",
	})
	require.NoError(t, err)
	return p
}

func TestSubmit_Success(t *testing.T) {
	f := setup(t)

	p, err := f.uc.Submit(context.Background(), cashier, &dto.SubmitPaymentInput{
		OrderID: "o-1",
		Amount:  d("50.00"),
		Tip:     d("5.00"),
		Method:  model.MethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, p.Status)
	assert.NotNil(t, p.ResolvedAt)
	assert.Equal(t, model.PaymentCompleted, f.repo.get(p.ID).Status)

	assert.Equal(t, 1, f.orders.refreshes)
	assert.Equal(t, model.PaymentPaid, f.orders.order.PaymentStatus)
	require.Len(t, f.hook.calls, 1)
	assert.Equal(t, p.ID, f.hook.calls[0].ID)

	actions := f.recorder.actions()
	assert.Equal(t, []string{"payment.created", "payment.status_changed"}, actions)
}

func TestSubmit_GatewayErrorResolvesFailed(t *testing.T) {
	f := setup(t)
	f.gateway.chargeErr = errors.New("card declined")

	p, err := f.uc.Submit(context.Background(), cashier, &dto.SubmitPaymentInput{
		OrderID: "o-1",
		Amount:  d("50.00"),
		Method:  model.MethodCash,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))

	require.NotNil(t, p)
	assert.Equal(t, model.PaymentFailed, p.Status)
	assert.Equal(t, model.PaymentFailed, f.repo.get(p.ID).Status)
	require.NotNil(t, p.FailureReason)
	assert.Equal(t, "card declined", *p.FailureReason)

	assert.Equal(t, model.OrderServed, f.orders.order.Status)
	assert.Equal(t, model.PaymentUnpaid, f.orders.order.PaymentStatus)
	assert.Empty(t, f.hook.calls)
}

func TestSubmit_GatewayPanicResolvesFailed(t *testing.T) {
	f := setup(t)
	f.gateway.panics = true

	p, err := f.uc.Submit(context.Background(), cashier, &dto.SubmitPaymentInput{
		OrderID: "o-1",
		Amount:  d("50.00"),
		Method:  model.MethodCash,
	})
	require.Error(t, err)
	assert.Equal(t, model.PaymentFailed, f.repo.get(p.ID).Status)
}

func TestSubmit_TimeoutResolvesFailed(t *testing.T) {
	f := setup(t)
	block := make(chan struct{})
	defer close(block)
	f.gateway.block = block

	start := time.Now()
	p, err := f.uc.Submit(context.Background(), cashier, &dto.SubmitPaymentInput{
		OrderID: "o-1",
		Amount:  d("20.00"),
		Method:  model.MethodCash,
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	stored := f.repo.get(p.ID)
	assert.Equal(t, model.PaymentFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, "payment gateway timed out", *stored.FailureReason)
}

func TestSubmit_CallerCancellationStillResolves(t *testing.T) {
	f := setup(t)
	block := make(chan struct{})
	defer close(block)
	f.gateway.block = block

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	p, err := f.uc.Submit(ctx, cashier, &dto.SubmitPaymentInput{OrderID: "o-1", Amount: d("20.00"), Method: model.MethodCash})
	require.Error(t, err)
	assert.Equal(t, model.PaymentFailed, f.repo.get(p.ID).Status)
}

func TestSubmit_RejectedBeforeRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("Fail on method rule", func(t *testing.T) {
		f := setup(t)
		_, err := f.uc.Submit(ctx, cashier, &dto.SubmitPaymentInput{OrderID: "o-1", Amount: d("10.00"), Method: model.MethodCard})
		var ruleErr *apperr.PaymentRuleError
		require.ErrorAs(t, err, &ruleErr)
		assert.Empty(t, f.repo.payments)
	})

	t.Run("Fail on missing gateway", func(t *testing.T) {
		f := setup(t)
		_, err := f.uc.Submit(ctx, cashier, &dto.SubmitPaymentInput{OrderID: "o-1", Amount: d("10.00"), Method: model.MethodMobile, ReferenceID: "m-1"})
		assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))
		assert.Empty(t, f.repo.payments)
	})

	t.Run("Fail on cancelled order", func(t *testing.T) {
		f := setup(t)
		f.orders.order.Status = model.OrderCancelled
		_, err := f.uc.Submit(ctx, cashier, &dto.SubmitPaymentInput{OrderID: "o-1", Amount: d("10.00"), Method: model.MethodCash})
		assert.ErrorIs(t, err, apperr.ErrOrderClosed)
		assert.Empty(t, f.repo.payments)
	})

	t.Run("Fail on forbidden role", func(t *testing.T) {
		f := setup(t)
		kitchen := auth.Session{ActorID: "k-1", Role: auth.RoleKitchen}
		_, err := f.uc.Submit(ctx, kitchen, &dto.SubmitPaymentInput{OrderID: "o-1", Amount: d("10.00"), Method: model.MethodCash})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})
}

func TestRefund(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	original := f.charge(t, "50.00")

	t.Run("Fail on cashier", func(t *testing.T) {
		_, err := f.uc.Refund(ctx, cashier, &dto.RefundInput{PaymentID: original.ID, Amount: d("10.00")})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("Partial refund is a new negative record", func(t *testing.T) {
		r, err := f.uc.Refund(ctx, manager, &dto.RefundInput{PaymentID: original.ID, Amount: d("20.00")})
		require.NoError(t, err)
		assert.Equal(t, "-20.00", r.Amount.StringFixed(2))
		assert.Equal(t, model.PaymentCompleted, r.Status)
		require.NotNil(t, r.RefundOf)
		assert.Equal(t, original.ID, *r.RefundOf)

		// The charge itself is untouched.
		stored := f.repo.get(original.ID)
		assert.Equal(t, "50.00", stored.Amount.StringFixed(2))
		assert.Equal(t, model.PaymentCompleted, stored.Status)
		assert.Equal(t, model.PaymentPartial, f.orders.order.PaymentStatus)
	})

	t.Run("Failed refunds do not consume the limit", func(t *testing.T) {
		f.gateway.refundErr = errors.New("processor offline")
		r, err := f.uc.Refund(ctx, manager, &dto.RefundInput{PaymentID: original.ID, Amount: d("30.00")})
		require.Error(t, err)
		assert.Equal(t, model.PaymentFailed, r.Status)
		f.gateway.refundErr = nil
	})

	t.Run("Fail above the refundable remainder", func(t *testing.T) {
		_, err := f.uc.Refund(ctx, manager, &dto.RefundInput{PaymentID: original.ID, Amount: d("30.01")})
		var ruleErr *apperr.PaymentRuleError
		require.ErrorAs(t, err, &ruleErr)
		require.NotNil(t, ruleErr.Limit)
		assert.Equal(t, "30.00", ruleErr.Limit.StringFixed(2))
		assert.Equal(t, apperr.KindResource, apperr.KindOf(err))
	})

	t.Run("Refund the rest", func(t *testing.T) {
		_, err := f.uc.Refund(ctx, manager, &dto.RefundInput{PaymentID: original.ID, Amount: d("30.00")})
		require.NoError(t, err)
		assert.Equal(t, model.PaymentRefunded, f.orders.order.PaymentStatus)
	})

	t.Run("Fail on refunding a refund", func(t *testing.T) {
		var refundID string
		for _, p := range f.repo.payments {
			if p.IsRefund() {
				refundID = p.ID
			}
		}
		_, err := f.uc.Refund(ctx, manager, &dto.RefundInput{PaymentID: refundID, Amount: d("1.00")})
		assert.ErrorIs(t, err, apperr.ErrNotRefundable)
	})
}

func TestRefund_ConcurrentRefundsStayWithinCharge(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	original := f.charge(t, "50.00")

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.uc.Refund(ctx, manager, &dto.RefundInput{PaymentID: original.ID, Amount: d("40.00")})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var ruleErr *apperr.PaymentRuleError
		if !errors.As(err, &ruleErr) && !errors.Is(err, apperr.ErrBusy) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)

	refunded := decimal.Zero
	for _, p := range f.repo.snapshot() {
		if p.IsRefund() && p.Status != model.PaymentFailed {
			refunded = refunded.Add(p.Amount.Neg())
		}
	}
	assert.Equal(t, "40.00", refunded.StringFixed(2))
	assert.Empty(t, f.locker.held)
}

func TestRefund_BusyWhenLockUnavailable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	original := f.charge(t, "50.00")
	f.locker.held["lock:refund:"+original.ID] = "other-terminal"

	_, err := f.uc.Refund(ctx, manager, &dto.RefundInput{PaymentID: original.ID, Amount: d("10.00")})
	assert.ErrorIs(t, err, apperr.ErrBusy)
	assert.Equal(t, 3, f.locker.attempts)
	assert.Len(t, f.repo.snapshot(), 1)
}

func TestSummaryAndIsFullyPaid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.charge(t, "30.00")
	paid, err := f.uc.IsFullyPaid(ctx, "o-1")
	require.NoError(t, err)
	assert.False(t, paid)

	f.charge(t, "20.00")
	paid, err = f.uc.IsFullyPaid(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, paid)

	summary, err := f.uc.Summary(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "50.00", summary.Charged.StringFixed(2))
	assert.Equal(t, "0.00", summary.Refunded.StringFixed(2))
	assert.Equal(t, "0.00", summary.Balance.StringFixed(2))
	assert.Equal(t, model.PaymentPaid, summary.Status)
}

func TestFailAbandoned(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	f.repo.payments = []*model.Payment{
		{ID: "p-old", BranchID: "b-1", OrderID: "o-1", Amount: d("10.00"), Status: model.PaymentPending, CreatedAt: old},
		{ID: "p-new", BranchID: "b-1", OrderID: "o-1", Amount: d("10.00"), Status: model.PaymentPending, CreatedAt: time.Now()},
		{ID: "p-done", BranchID: "b-1", OrderID: "o-1", Amount: d("10.00"), Status: model.PaymentCompleted, CreatedAt: old},
	}

	n, err := f.uc.FailAbandoned(ctx, auth.System("b-1"), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored := f.repo.get("p-old")
	assert.Equal(t, model.PaymentFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, "payment abandoned before resolution", *stored.FailureReason)
	assert.Equal(t, model.PaymentPending, f.repo.get("p-new").Status)
	assert.Equal(t, 1, f.orders.refreshes)
}

type mockRepo struct {
	mu       sync.Mutex
	payments []*model.Payment
}

func (m *mockRepo) Create(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.payments = append(m.payments, &c)
	return nil
}

func (m *mockRepo) get(id string) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ID == id {
			c := *p
			return &c
		}
	}
	return nil
}

func (m *mockRepo) snapshot() []model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Payment, len(m.payments))
	for i, p := range m.payments {
		out[i] = *p
	}
	return out
}

func (m *mockRepo) FindByID(_ context.Context, id string) (*model.Payment, error) {
	if p := m.get(id); p != nil {
		return p, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *mockRepo) ListByOrder(_ context.Context, orderID string) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Payment
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) ListPending(_ context.Context, branchID string, createdBefore time.Time) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Payment
	for _, p := range m.payments {
		if p.BranchID == branchID && p.Status == model.PaymentPending && p.CreatedAt.Before(createdBefore) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) Resolve(_ context.Context, id string, status model.PaymentState, reason *string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ID == id && p.Status == model.PaymentPending {
			p.Status = status
			p.FailureReason = reason
			p.ResolvedAt = &at
			return true, nil
		}
	}
	return false, nil
}

type mockOrders struct {
	mu        sync.Mutex
	order     *model.Order
	payments  *mockRepo
	refreshes int
}

func (m *mockOrders) GetOrder(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order.ID != id {
		return nil, apperr.ErrNotFound
	}
	c := *m.order
	return &c, nil
}

func (m *mockOrders) RefreshPaymentStatus(ctx context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	payments, _ := m.payments.ListByOrder(ctx, id)
	m.order.PaymentStatus = model.DerivePaymentStatus(m.order.Total, payments)
	c := *m.order
	return &c, nil
}

type mockGateway struct {
	chargeErr error
	refundErr error
	panics    bool
	block     chan struct{}
}

func (m *mockGateway) Charge(_ context.Context, _ *model.Payment) error {
	if m.panics {
		panic("driver crashed")
	}
	if m.block != nil {
		<-m.block
	}
	return m.chargeErr
}

func (m *mockGateway) Refund(_ context.Context, _, _ *model.Payment) error {
	return m.refundErr
}

type mockHook struct {
	calls []*model.Payment
}

func (m *mockHook) OnPaymentCompleted(_ context.Context, _ *model.Order, p *model.Payment) {
	m.calls = append(m.calls, p)
}

type mockLocker struct {
	mu       sync.Mutex
	held     map[string]string
	attempts int
}

func (m *mockLocker) AcquireLock(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if _, ok := m.held[key]; ok {
		return false, nil
	}
	m.held[key] = value
	return true, nil
}

func (m *mockLocker) ReleaseLock(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == value {
		delete(m.held, key)
	}
	return nil
}

type mockRecorder struct {
	mu      sync.Mutex
	entries []model.ActivityLog
}

func (m *mockRecorder) Record(_ context.Context, s auth.Session, action, resourceType, resourceID string, details model.Details) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, model.ActivityLog{ActorID: s.ActorID, Action: action, ResourceType: resourceType, ResourceID: resourceID, Details: details})
	return nil
}

func (m *mockRecorder) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}
