package inventory

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

type UseCase interface {
	CurrentStock(ctx context.Context, productID string) (int, error)
	ValidateAdjustment(ctx context.Context, movement *model.StockMovement) error
	AdjustStock(ctx context.Context, s auth.Session, input *dto.AdjustStockInput) (*model.StockMovement, error)

	// RecordSale validates every line before appending any sale movement.
	RecordSale(ctx context.Context, s auth.Session, orderID string, lines []dto.StockLine) error
	RecordReturn(ctx context.Context, s auth.Session, orderID string, lines []dto.StockLine) error

	StockLevels(ctx context.Context, branchID string) ([]dto.StockLevel, error)
	ListLowStock(ctx context.Context, branchID string) ([]dto.StockLevel, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
