package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/audit"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	inventorydto "github.com/fekuna/omnipos-order-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/order"
	"github.com/fekuna/omnipos-order-service/internal/order/dto"
	"github.com/fekuna/omnipos-order-service/internal/view"
)

const tentativeEntity = "orders"

// StockRecorder is the part of the stock validator checkout and
// cancellation go through.
type StockRecorder interface {
	RecordSale(ctx context.Context, s auth.Session, orderID string, lines []inventorydto.StockLine) error
	RecordReturn(ctx context.Context, s auth.Session, orderID string, lines []inventorydto.StockLine) error
}

type PaymentReader interface {
	ListByOrder(ctx context.Context, orderID string) ([]model.Payment, error)
}

type Views interface {
	view.Invalidator
	BeginTentative(entityType, id string, value any) (string, error)
	ResolveTentative(entityType, id, token string)
}

type orderUseCase struct {
	repo     order.Repository
	stock    StockRecorder
	payments PaymentReader
	views    Views
	audit    audit.Recorder
	logger   logger.ZapLogger
	now      func() time.Time
}

func NewOrderUseCase(
	repo order.Repository,
	stock StockRecorder,
	payments PaymentReader,
	views Views,
	recorder audit.Recorder,
	log logger.ZapLogger,
) order.UseCase {
	return &orderUseCase{
		repo:     repo,
		stock:    stock,
		payments: payments,
		views:    views,
		audit:    recorder,
		logger:   log,
		now:      time.Now,
	}
}

func (uc *orderUseCase) CreateOrder(ctx context.Context, s auth.Session, input *dto.CreateOrderInput) (*model.Order, error) {
	if !s.Can(auth.ResourceOrders, auth.ActionCreate) {
		return nil, apperr.ErrForbidden
	}
	if len(input.Cart.Items) == 0 {
		return nil, apperr.ErrEmptyOrder
	}
	if !input.OrderType.Valid() {
		return nil, apperr.ErrInvalidOrderType
	}

	now := uc.now()
	id := uuid.New().String()
	totals := input.Cart.Totals
	o := &model.Order{
		BaseModel:       model.BaseModel{ID: id, CreatedAt: now, UpdatedAt: now},
		BranchID:        s.BranchID,
		Number:          orderNumber(id, now),
		Status:          model.OrderPending,
		OrderType:       input.OrderType,
		TableID:         input.TableID,
		CustomerID:      input.Cart.CustomerID,
		SpecialRequests: input.Cart.SpecialRequests,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		ServiceCharge:   totals.ServiceCharge,
		Discount:        totals.Discount,
		Total:           totals.Total,
		PaymentStatus:   model.PaymentUnpaid,
		CreatedBy:       s.ActorID,
		Version:         1,
	}
	for _, line := range input.Cart.Items {
		o.Items = append(o.Items, model.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   id,
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.Product.UnitPrice,
			Subtotal:  line.Subtotal,
			Modifiers: model.Modifiers(line.Modifiers),
			Notes:     line.Notes,
			Status:    model.ItemPending,
			UpdatedAt: now,
		})
	}

	lines := stockLines(o)
	if err := uc.stock.RecordSale(ctx, s, id, lines); err != nil {
		return nil, err
	}

	if err := uc.repo.Create(ctx, o); err != nil {
		// The sale movements are already in the ledger; put the stock back.
		if rerr := uc.stock.RecordReturn(context.WithoutCancel(ctx), s, id, lines); rerr != nil {
			uc.logger.Error("failed to return stock of unsaved order", zap.String("order_id", id), zap.Error(rerr))
		}
		return nil, apperr.FromStore(err)
	}

	details := model.Details{"order_number": o.Number, "total": o.Total.StringFixed(2), "items": len(o.Items)}
	uc.record(ctx, s, audit.ActionOrderCreated, audit.ResourceOrder, o.ID, details)
	uc.views.Invalidate(ctx, affectedViews(o)...)

	uc.logger.Info("order created", zap.String("order_id", o.ID), zap.String("order_number", o.Number))
	return o, nil
}

func (uc *orderUseCase) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return o, nil
}

func (uc *orderUseCase) ListActive(ctx context.Context, branchID string) ([]model.Order, error) {
	orders, err := uc.repo.ListActive(ctx, branchID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return orders, nil
}

// Transition checks legality against the fetched order, tags the change as
// tentative, re-checks against the latest state and then submits a
// compare-and-set. Losing the race leaves no trace.
func (uc *orderUseCase) Transition(ctx context.Context, s auth.Session, orderID string, to model.OrderStatus) (*model.Order, error) {
	if !to.Valid() {
		return nil, apperr.ErrInvalidStatus
	}
	action := auth.ActionUpdateStatus
	if to == model.OrderCancelled {
		action = auth.ActionCancel
	}
	if !s.Can(auth.ResourceOrders, action) {
		return nil, apperr.ErrForbidden
	}

	current, err := uc.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(current.Status, to) {
		return nil, invalidTransition(current.Status, to)
	}

	token, err := uc.views.BeginTentative(tentativeEntity, orderID, to)
	if err != nil {
		return nil, err
	}
	defer uc.views.ResolveTentative(tentativeEntity, orderID, token)

	latest, err := uc.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(latest.Status, to) {
		return nil, invalidTransition(latest.Status, to)
	}

	if err := uc.apply(ctx, s, latest, to); err != nil {
		return nil, err
	}

	if to == model.OrderCancelled {
		if err := uc.stock.RecordReturn(ctx, s, latest.ID, stockLines(latest)); err != nil {
			uc.logger.Error("failed to return stock of cancelled order", zap.String("order_id", latest.ID), zap.Error(err))
		}
	}
	return latest, nil
}

func (uc *orderUseCase) UpdateItemStatus(ctx context.Context, s auth.Session, orderID, itemID string, to model.ItemStatus) (*model.Order, error) {
	if !to.Valid() {
		return nil, apperr.ErrInvalidStatus
	}
	if !s.Can(auth.ResourceOrderItems, auth.ActionUpdateStatus) {
		return nil, apperr.ErrForbidden
	}

	o, err := uc.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	item, ok := o.Item(itemID)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	from := item.Status
	if o.Status.Terminal() || !model.CanTransitionItem(from, to) {
		return nil, &apperr.InvalidTransitionError{Entity: "order_item", From: string(from), To: string(to)}
	}

	now := uc.now()
	updated, err := uc.repo.UpdateItemStatus(ctx, orderID, itemID, from, to, now)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if !updated {
		return nil, apperr.ErrStaleState
	}
	item.Status = to
	item.UpdatedAt = now

	details := audit.Transition(string(from), string(to))
	details["order_id"] = orderID
	uc.record(ctx, s, audit.ActionItemStatusChanged, audit.ResourceOrderItem, itemID, details)
	uc.views.Invalidate(ctx, view.OrderList, view.KitchenQueue)

	if to == model.ItemReady {
		if _, err := uc.EvaluateAutoReady(ctx, orderID); err != nil {
			uc.logger.Warn("auto-ready evaluation failed", zap.String("order_id", orderID), zap.Error(err))
		}
		return uc.GetOrder(ctx, orderID)
	}
	return o, nil
}

func (uc *orderUseCase) EvaluateAutoReady(ctx context.Context, orderID string) (bool, error) {
	o, err := uc.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status != model.OrderPreparing || !o.AllItemsReady() {
		return false, nil
	}

	err = uc.apply(ctx, auth.System(o.BranchID), o, model.OrderReady)
	if apperr.IsConflict(err) {
		// Another evaluation already moved it.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (uc *orderUseCase) RefreshPaymentStatus(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := uc.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payments, err := uc.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	status := model.DerivePaymentStatus(o.Total, payments)
	if status == o.PaymentStatus {
		return o, nil
	}
	now := uc.now()
	if err := uc.repo.UpdatePaymentStatus(ctx, orderID, status, now); err != nil {
		return nil, apperr.FromStore(err)
	}
	o.PaymentStatus = status
	o.UpdatedAt = now

	uc.views.Invalidate(ctx, view.OrderList)
	return o, nil
}

// apply submits the compare-and-set for o and, when it wins, audits exactly
// one record and refreshes the dependent views.
func (uc *orderUseCase) apply(ctx context.Context, s auth.Session, o *model.Order, to model.OrderStatus) error {
	from := o.Status
	now := uc.now()

	updated, err := uc.repo.UpdateStatus(ctx, o.ID, from, o.Version, to, now)
	if err != nil {
		return apperr.FromStore(err)
	}
	if !updated {
		return apperr.ErrStaleState
	}
	o.Status = to
	o.Version++
	o.UpdatedAt = now

	uc.record(ctx, s, audit.ActionOrderStatusChanged, audit.ResourceOrder, o.ID, audit.Transition(string(from), string(to)))
	uc.views.Invalidate(ctx, affectedViews(o)...)

	uc.logger.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", s.ActorID),
	)
	return nil
}

func (uc *orderUseCase) record(ctx context.Context, s auth.Session, action, resourceType, resourceID string, details model.Details) {
	if err := uc.audit.Record(ctx, s, action, resourceType, resourceID, details); err != nil {
		uc.logger.Warn("activity not recorded", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func invalidTransition(from, to model.OrderStatus) error {
	return &apperr.InvalidTransitionError{Entity: "order", From: string(from), To: string(to)}
}

func affectedViews(o *model.Order) []string {
	names := []string{view.OrderList, view.KitchenQueue}
	if o.TableID != nil {
		names = append(names, view.TableGrid)
	}
	return names
}

func stockLines(o *model.Order) []inventorydto.StockLine {
	lines := make([]inventorydto.StockLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, inventorydto.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// orderNumber is short enough to call out across a counter.
func orderNumber(id string, at time.Time) string {
	return fmt.Sprintf("%s-%s", at.Format("060102"), strings.ToUpper(strings.ReplaceAll(id, "-", "")[:6]))
}
