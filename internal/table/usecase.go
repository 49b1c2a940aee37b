package table

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

type UseCase interface {
	SetStatus(ctx context.Context, s auth.Session, tableID string, status model.TableStatus) (*model.RestaurantTable, error)
	List(ctx context.Context, branchID string) ([]model.RestaurantTable, error)
}
