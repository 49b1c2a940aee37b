package inventory

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

// Repository is the append-only stock ledger. There is no update or delete.
type Repository interface {
	ListByProduct(ctx context.Context, productID string) ([]model.StockMovement, error)
	ListByBranch(ctx context.Context, branchID string) ([]model.StockMovement, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)

	// AppendMovements writes every movement in one transaction.
	AppendMovements(ctx context.Context, movements []*model.StockMovement) error
}
