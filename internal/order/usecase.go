package order

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/order/dto"
)

type UseCase interface {
	CreateOrder(ctx context.Context, s auth.Session, input *dto.CreateOrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListActive(ctx context.Context, branchID string) ([]model.Order, error)

	Transition(ctx context.Context, s auth.Session, orderID string, to model.OrderStatus) (*model.Order, error)
	UpdateItemStatus(ctx context.Context, s auth.Session, orderID, itemID string, to model.ItemStatus) (*model.Order, error)

	// EvaluateAutoReady moves a preparing order whose items are all ready to
	// ready. It reports whether this call made the transition.
	EvaluateAutoReady(ctx context.Context, orderID string) (bool, error)
	RefreshPaymentStatus(ctx context.Context, orderID string) (*model.Order, error)
}
