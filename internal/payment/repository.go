package payment

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

type Repository interface {
	Create(ctx context.Context, p *model.Payment) error
	FindByID(ctx context.Context, id string) (*model.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]model.Payment, error)
	ListPending(ctx context.Context, branchID string, createdBefore time.Time) ([]model.Payment, error)

	// Resolve moves a pending record to completed or failed. It reports false
	// if the record was no longer pending.
	Resolve(ctx context.Context, id string, status model.PaymentState, failureReason *string, at time.Time) (bool, error)
}
