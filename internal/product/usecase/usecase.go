package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/product"
	"github.com/fekuna/omnipos-order-service/internal/product/dto"
)

const listCacheTTL = 5 * time.Minute

// StockReader fills the derived stock of a product.
type StockReader interface {
	CurrentStock(ctx context.Context, productID string) (int, error)
}

// Cache stores serialized product lists. cache.RedisClient satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type productUseCase struct {
	repo   product.Repository
	stock  StockReader
	cache  Cache
	logger logger.ZapLogger
}

func NewProductUseCase(repo product.Repository, stock StockReader, cache Cache, log logger.ZapLogger) product.UseCase {
	return &productUseCase{
		repo:   repo,
		stock:  stock,
		cache:  cache,
		logger: log,
	}
}

func (uc *productUseCase) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.withStock(ctx, p)
}

func (uc *productUseCase) LookupBarcode(ctx context.Context, branchID, barcode string) (*model.Product, error) {
	p, err := uc.repo.FindByBarcode(ctx, branchID, barcode)
	if err != nil {
		return nil, err
	}
	return uc.withStock(ctx, p)
}

// ListProducts serves catalog pages from the cache when it can. Stock is not
// part of the cached page since it moves with every sale.
func (uc *productUseCase) ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error) {
	cacheKey, err := uc.generateCacheKey(filters)
	if err == nil && uc.cache != nil {
		raw, ok, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			uc.logger.Warn("product list cache read failed", zap.Error(err))
		}
		if ok {
			var result struct {
				Products []model.Product
				Count    int
			}
			if err := json.Unmarshal(raw, &result); err == nil {
				return result.Products, result.Count, nil
			}
		}
	}

	products, count, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, 0, err
	}

	if cacheKey != "" && uc.cache != nil {
		cacheData := struct {
			Products []model.Product
			Count    int
		}{
			Products: products,
			Count:    count,
		}
		if data, err := json.Marshal(cacheData); err == nil {
			if err := uc.cache.Set(ctx, cacheKey, data, listCacheTTL); err != nil {
				uc.logger.Warn("product list cache write failed", zap.Error(err))
			}
		}
	}

	return products, count, nil
}

func (uc *productUseCase) withStock(ctx context.Context, p *model.Product) (*model.Product, error) {
	if uc.stock == nil {
		return p, nil
	}
	current, err := uc.stock.CurrentStock(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.CurrentStock = current
	return p, nil
}

func (uc *productUseCase) generateCacheKey(filters *dto.ProductFilters) (string, error) {
	data, err := json.Marshal(filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("products:list:%s:%x", filters.BranchID, md5.Sum(data)), nil
}
