package table

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

type Repository interface {
	FindByID(ctx context.Context, id string) (*model.RestaurantTable, error)
	ListByBranch(ctx context.Context, branchID string) ([]model.RestaurantTable, error)
	// UpdateStatus applies the change only if version still matches.
	UpdateStatus(ctx context.Context, id string, version int, status model.TableStatus, at time.Time) (bool, error)
}
