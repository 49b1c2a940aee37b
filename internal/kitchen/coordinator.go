package kitchen

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/view"
)

type Orders interface {
	ListActive(ctx context.Context, branchID string) ([]model.Order, error)
	EvaluateAutoReady(ctx context.Context, orderID string) (bool, error)
}

type Coordinator struct {
	orders Orders
	views  view.Invalidator
	logger logger.ZapLogger
	now    func() time.Time
}

func NewCoordinator(orders Orders, views view.Invalidator, log logger.ZapLogger) *Coordinator {
	return &Coordinator{
		orders: orders,
		views:  views,
		logger: log,
		now:    time.Now,
	}
}

// Queue builds the display queue with urgency as of now. It is the read path
// for kitchen display clients: the kitchen_queue snapshot carries the sorted
// orders without urgency, since urgency changes with the clock.
func (c *Coordinator) Queue(ctx context.Context, branchID string) ([]Ticket, error) {
	orders, err := c.orders.ListActive(ctx, branchID)
	if err != nil {
		return nil, err
	}
	return BuildQueue(orders, c.now()), nil
}

// Load is the kitchen_queue view loader. The snapshot holds the sorted
// orders only; urgency is derived by Queue on every read.
func (c *Coordinator) Load(ctx context.Context, branchID string) (any, error) {
	orders, err := c.orders.ListActive(ctx, branchID)
	if err != nil {
		return nil, err
	}
	return Sort(orders), nil
}

// HandleItemStatusChanged runs the auto-ready rule for the one order the
// event touched.
func (c *Coordinator) HandleItemStatusChanged(ctx context.Context, orderID string) error {
	moved, err := c.orders.EvaluateAutoReady(ctx, orderID)
	if err != nil {
		return err
	}
	if moved {
		c.logger.Info("order auto-advanced to ready", zap.String("order_id", orderID))
	}
	c.views.Invalidate(ctx, view.KitchenQueue)
	return nil
}
