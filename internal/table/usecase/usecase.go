package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/audit"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/table"
	"github.com/fekuna/omnipos-order-service/internal/view"
)

const tentativeEntity = "restaurant_tables"

type Views interface {
	view.Invalidator
	BeginTentative(entityType, id string, value any) (string, error)
	ResolveTentative(entityType, id, token string)
}

type tableUseCase struct {
	repo   table.Repository
	views  Views
	audit  audit.Recorder
	logger logger.ZapLogger
	now    func() time.Time
}

func NewTableUseCase(repo table.Repository, views Views, recorder audit.Recorder, log logger.ZapLogger) table.UseCase {
	return &tableUseCase{
		repo:   repo,
		views:  views,
		audit:  recorder,
		logger: log,
		now:    time.Now,
	}
}

func (uc *tableUseCase) SetStatus(ctx context.Context, s auth.Session, tableID string, status model.TableStatus) (*model.RestaurantTable, error) {
	if !status.Valid() {
		return nil, apperr.ErrInvalidStatus
	}
	if !s.Can(auth.ResourceTables, auth.ActionUpdateStatus) {
		return nil, apperr.ErrForbidden
	}

	token, err := uc.views.BeginTentative(tentativeEntity, tableID, status)
	if err != nil {
		return nil, err
	}
	defer uc.views.ResolveTentative(tentativeEntity, tableID, token)

	t, err := uc.repo.FindByID(ctx, tableID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if t.Status == status {
		return t, nil
	}

	from := t.Status
	now := uc.now()
	updated, err := uc.repo.UpdateStatus(ctx, t.ID, t.Version, status, now)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if !updated {
		return nil, apperr.ErrStaleState
	}
	t.Status = status
	t.Version++
	t.UpdatedAt = now

	if err := uc.audit.Record(ctx, s, audit.ActionTableStatusChanged, audit.ResourceTable, t.ID, audit.Transition(string(from), string(status))); err != nil {
		uc.logger.Warn("activity not recorded", zap.String("action", audit.ActionTableStatusChanged), zap.String("table_id", t.ID), zap.Error(err))
	}
	uc.views.Invalidate(ctx, view.TableGrid)
	return t, nil
}

func (uc *tableUseCase) List(ctx context.Context, branchID string) ([]model.RestaurantTable, error) {
	tables, err := uc.repo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return tables, nil
}
