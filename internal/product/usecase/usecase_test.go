package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/product/dto"
)

func setup(t *testing.T) (*productUseCase, *mockRepo, *mockCache) {
	t.Helper()
	code := "8991234"
	repo := &mockRepo{products: []model.Product{
		{BaseModel: model.BaseModel{ID: "p-1"}, BranchID: "b-1", Name: "Espresso", Barcode: &code, UnitPrice: decimal.NewFromInt(3), IsActive: true},
		{BaseModel: model.BaseModel{ID: "p-2"}, BranchID: "b-1", Name: "Croissant", UnitPrice: decimal.NewFromInt(4), IsActive: true},
	}}
	c := &mockCache{data: map[string][]byte{}}
	uc := NewProductUseCase(repo, mockStock{"p-1": 7}, c, logger.NewNop()).(*productUseCase)
	return uc, repo, c
}

func TestLookupBarcode(t *testing.T) {
	uc, _, _ := setup(t)
	ctx := context.Background()

	p, err := uc.LookupBarcode(ctx, "b-1", "8991234")
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, 7, p.CurrentStock)

	_, err = uc.LookupBarcode(ctx, "b-1", "000")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListProducts_Cached(t *testing.T) {
	uc, repo, c := setup(t)
	ctx := context.Background()
	filters := &dto.ProductFilters{BranchID: "b-1"}

	products, count, err := uc.ListProducts(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 2, count)
	assert.Len(t, c.data, 1)

	_, _, err = uc.ListProducts(ctx, filters)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
}

type mockRepo struct {
	products  []model.Product
	listCalls int
}

func (m *mockRepo) FindByID(_ context.Context, id string) (*model.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockRepo) FindByBarcode(_ context.Context, branchID, barcode string) (*model.Product, error) {
	for _, p := range m.products {
		if p.BranchID == branchID && p.Barcode != nil && *p.Barcode == barcode {
			p := p
			return &p, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockRepo) FindAll(_ context.Context, f *dto.ProductFilters) ([]model.Product, int, error) {
	m.listCalls++
	var out []model.Product
	for _, p := range m.products {
		if f.BranchID == "" || p.BranchID == f.BranchID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

type mockStock map[string]int

func (m mockStock) CurrentStock(_ context.Context, productID string) (int, error) {
	return m[productID], nil
}

type mockCache struct {
	data map[string][]byte
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}
