package payment

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/payment/dto"
)

type UseCase interface {
	Submit(ctx context.Context, s auth.Session, input *dto.SubmitPaymentInput) (*model.Payment, error)
	Refund(ctx context.Context, s auth.Session, input *dto.RefundInput) (*model.Payment, error)

	IsFullyPaid(ctx context.Context, orderID string) (bool, error)
	Summary(ctx context.Context, orderID string) (*dto.Summary, error)
	ListByOrder(ctx context.Context, orderID string) ([]model.Payment, error)

	// FailAbandoned resolves records a crashed process left pending. It
	// returns how many were moved to failed.
	FailAbandoned(ctx context.Context, s auth.Session, createdBefore time.Time) (int, error)
}
