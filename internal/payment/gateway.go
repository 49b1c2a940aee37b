package payment

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

// Gateway settles charges and refunds of one method. Implementations should
// honour ctx; the processor stops waiting at its deadline either way.
type Gateway interface {
	Charge(ctx context.Context, p *model.Payment) error
	Refund(ctx context.Context, refund, original *model.Payment) error
}

// CashGateway settles at the till; the drawer is opened by the device hub.
type CashGateway struct{}

func (CashGateway) Charge(context.Context, *model.Payment) error { return nil }

func (CashGateway) Refund(context.Context, *model.Payment, *model.Payment) error { return nil }
