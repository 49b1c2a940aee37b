package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/audit"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/inventory"
	"github.com/fekuna/omnipos-order-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/product"
	productdto "github.com/fekuna/omnipos-order-service/internal/product/dto"
	"github.com/fekuna/omnipos-order-service/internal/view"
)

const (
	lockTTL      = 5 * time.Second
	lockAttempts = 3
)

// Locker serialises validate-then-append per product across terminals.
// cache.RedisClient satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type inventoryUseCase struct {
	repo       inventory.Repository
	products   product.Repository
	locker     Locker
	audit      audit.Recorder
	views      view.Invalidator
	logger     logger.ZapLogger
	now        func() time.Time
	retryDelay time.Duration
}

func NewInventoryUseCase(
	repo inventory.Repository,
	products product.Repository,
	locker Locker,
	recorder audit.Recorder,
	views view.Invalidator,
	log logger.ZapLogger,
) inventory.UseCase {
	return &inventoryUseCase{
		repo:       repo,
		products:   products,
		locker:     locker,
		audit:      recorder,
		views:      views,
		logger:     log,
		now:        time.Now,
		retryDelay: 100 * time.Millisecond,
	}
}

func (uc *inventoryUseCase) CurrentStock(ctx context.Context, productID string) (int, error) {
	movements, err := uc.repo.ListByProduct(ctx, productID)
	if err != nil {
		return 0, apperr.FromStore(err)
	}
	return model.FoldStock(movements), nil
}

func (uc *inventoryUseCase) ValidateAdjustment(ctx context.Context, m *model.StockMovement) error {
	_, err := uc.validate(ctx, m)
	return err
}

func (uc *inventoryUseCase) AdjustStock(ctx context.Context, s auth.Session, input *dto.AdjustStockInput) (*model.StockMovement, error) {
	if !s.Can(auth.ResourceInventory, auth.ActionAdjust) {
		return nil, apperr.ErrForbidden
	}

	m := uc.newMovement(s, input.ProductID, input.Type, input.Quantity, input.Reason)
	if input.ReferenceType != "" {
		refType := input.ReferenceType
		m.ReferenceType = &refType
	}
	if input.ReferenceID != "" {
		refID := input.ReferenceID
		m.ReferenceID = &refID
	}

	release, err := uc.lock(ctx, []string{input.ProductID})
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := uc.validate(ctx, m)
	if err != nil {
		return nil, err
	}
	m.QuantityBefore = current
	m.QuantityAfter = current + m.Delta()

	if err := uc.repo.AppendMovements(ctx, []*model.StockMovement{m}); err != nil {
		return nil, apperr.FromStore(err)
	}

	details := model.Details{
		"product_id": m.ProductID,
		"type":       string(m.Type),
		"quantity":   m.Quantity,
		"reason":     m.Reason,
	}
	if err := uc.audit.Record(ctx, s, audit.ActionStockAdjusted, audit.ResourceStock, m.ID, details); err != nil {
		uc.logger.Warn("stock adjustment not audited", zap.String("movement_id", m.ID), zap.Error(err))
	}

	uc.views.Invalidate(ctx, view.StockLevels)
	return m, nil
}

func (uc *inventoryUseCase) RecordSale(ctx context.Context, s auth.Session, orderID string, lines []dto.StockLine) error {
	return uc.appendLines(ctx, s, orderID, lines, model.MovementSale, "order sale")
}

func (uc *inventoryUseCase) RecordReturn(ctx context.Context, s auth.Session, orderID string, lines []dto.StockLine) error {
	return uc.appendLines(ctx, s, orderID, lines, model.MovementReturn, "order cancelled")
}

func (uc *inventoryUseCase) StockLevels(ctx context.Context, branchID string) ([]dto.StockLevel, error) {
	products, _, err := uc.products.FindAll(ctx, &productdto.ProductFilters{BranchID: branchID})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	movements, err := uc.repo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	byProduct := make(map[string][]model.StockMovement)
	for _, m := range movements {
		byProduct[m.ProductID] = append(byProduct[m.ProductID], m)
	}

	levels := make([]dto.StockLevel, 0, len(products))
	for _, p := range products {
		current := model.FoldStock(byProduct[p.ID])
		levels = append(levels, dto.StockLevel{
			ProductID: p.ID,
			Name:      p.Name,
			Current:   current,
			MinStock:  p.MinStock,
			Low:       current <= p.MinStock,
		})
	}
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Name < levels[j].Name
	})
	return levels, nil
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context, branchID string) ([]dto.StockLevel, error) {
	levels, err := uc.StockLevels(ctx, branchID)
	if err != nil {
		return nil, err
	}
	low := levels[:0]
	for _, l := range levels {
		if l.Low {
			low = append(low, l)
		}
	}
	return low, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	movements, count, err := uc.repo.ListMovements(ctx, filters)
	return movements, count, apperr.FromStore(err)
}

// appendLines validates every line under the product locks and then appends
// all movements in one write, so a checkout either moves all stock or none.
func (uc *inventoryUseCase) appendLines(ctx context.Context, s auth.Session, orderID string, lines []dto.StockLine, typ model.MovementType, reason string) error {
	totals := make(map[string]int)
	for _, l := range lines {
		if l.Quantity <= 0 {
			return apperr.ErrInvalidQuantity
		}
		totals[l.ProductID] += l.Quantity
	}
	if len(totals) == 0 {
		return nil
	}

	productIDs := make([]string, 0, len(totals))
	for id := range totals {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	release, err := uc.lock(ctx, productIDs)
	if err != nil {
		return err
	}
	defer release()

	refType := "order"
	movements := make([]*model.StockMovement, 0, len(productIDs))
	for _, id := range productIDs {
		m := uc.newMovement(s, id, typ, totals[id], reason)
		m.ReferenceType = &refType
		m.ReferenceID = &orderID

		current, err := uc.validate(ctx, m)
		if err != nil {
			return err
		}
		m.QuantityBefore = current
		m.QuantityAfter = current + m.Delta()
		movements = append(movements, m)
	}

	if err := uc.repo.AppendMovements(ctx, movements); err != nil {
		return apperr.FromStore(err)
	}

	uc.views.Invalidate(ctx, view.StockLevels)
	return nil
}

func (uc *inventoryUseCase) validate(ctx context.Context, m *model.StockMovement) (int, error) {
	if m.Quantity <= 0 {
		return 0, apperr.ErrInvalidQuantity
	}
	if strings.TrimSpace(m.Reason) == "" {
		return 0, apperr.ErrMissingReason
	}
	if !m.Type.Valid() {
		return 0, apperr.ErrInvalidMovement
	}

	current, err := uc.CurrentStock(ctx, m.ProductID)
	if err != nil {
		return 0, err
	}
	if m.Type.Decreasing() && current < m.Quantity {
		return 0, &apperr.InsufficientStockError{ProductID: m.ProductID, Available: current, Requested: m.Quantity}
	}
	return current, nil
}

func (uc *inventoryUseCase) newMovement(s auth.Session, productID string, typ model.MovementType, qty int, reason string) *model.StockMovement {
	var createdBy *string
	if s.ActorID != "" {
		actor := s.ActorID
		createdBy = &actor
	}
	return &model.StockMovement{
		ID:        uuid.New().String(),
		BranchID:  s.BranchID,
		ProductID: productID,
		Type:      typ,
		Quantity:  qty,
		Reason:    reason,
		CreatedBy: createdBy,
		CreatedAt: uc.now(),
	}
}

// lock takes the per-product locks in order. The returned func releases
// whatever was acquired.
func (uc *inventoryUseCase) lock(ctx context.Context, productIDs []string) (func(), error) {
	if uc.locker == nil {
		return func() {}, nil
	}

	type held struct{ key, token string }
	var acquired []held
	release := func() {
		releaseCtx := context.WithoutCancel(ctx)
		for _, h := range acquired {
			if err := uc.locker.ReleaseLock(releaseCtx, h.key, h.token); err != nil {
				uc.logger.Warn("failed to release stock lock", zap.String("key", h.key), zap.Error(err))
			}
		}
	}

	for _, id := range productIDs {
		key := "lock:stock:" + id
		token := uuid.New().String()
		ok, err := uc.acquire(ctx, key, token)
		if err != nil || !ok {
			release()
			if err != nil {
				return nil, err
			}
			return nil, apperr.ErrBusy
		}
		acquired = append(acquired, held{key, token})
	}
	return release, nil
}

func (uc *inventoryUseCase) acquire(ctx context.Context, key, token string) (bool, error) {
	for i := 0; i < lockAttempts; i++ {
		ok, err := uc.locker.AcquireLock(ctx, key, token, lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire lock redis error", zap.String("key", key), zap.Error(err))
		}
		if ok {
			return true, nil
		}
		if i == lockAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(uc.retryDelay):
		}
	}
	return false, nil
}
