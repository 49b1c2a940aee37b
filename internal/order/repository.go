package order

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

type Repository interface {
	// Create persists the order and its items in one transaction.
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	// ListActive returns non-terminal orders of a branch, oldest first, with items.
	ListActive(ctx context.Context, branchID string) ([]model.Order, error)

	// UpdateStatus is a compare-and-set on (status, version). It reports false
	// when another writer got there first.
	UpdateStatus(ctx context.Context, id string, from model.OrderStatus, version int, to model.OrderStatus, at time.Time) (bool, error)
	UpdateItemStatus(ctx context.Context, orderID, itemID string, from, to model.ItemStatus, at time.Time) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus, at time.Time) error
}
