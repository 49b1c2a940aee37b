package product

import (
	"context"

	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/product/dto"
)

type UseCase interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	LookupBarcode(ctx context.Context, branchID, barcode string) (*model.Product, error)
	ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
}
