// Package view keeps the read-shared snapshots the terminals render from and
// the tentative local states that are still awaiting reconciliation.
package view

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/logger"
)

const (
	OrderList    = "order_list"
	KitchenQueue = "kitchen_queue"
	StockLevels  = "stock_levels"
	TableGrid    = "table_grid"
)

// Loader recomputes a view from authoritative state.
type Loader func(ctx context.Context, branchID string) (any, error)

// Store holds serialized snapshots. cache.RedisClient satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Invalidator is the narrow dependency usecases take after a committed change.
type Invalidator interface {
	Invalidate(ctx context.Context, names ...string)
}

// staleTentativeAfter bounds how long an attempt may hold its tentative state
// before a reconcile treats it as abandoned.
const staleTentativeAfter = 30 * time.Second

type tentativeKey struct {
	entityType string
	id         string
}

type tentative struct {
	value   any
	token   string
	started time.Time
}

type Registry struct {
	branchID string
	store    Store
	ttl      time.Duration
	logger   logger.ZapLogger

	mu         sync.RWMutex
	loaders    map[string]Loader
	tentatives map[tentativeKey]tentative
	now        func() time.Time
}

func NewRegistry(branchID string, store Store, ttl time.Duration, log logger.ZapLogger) *Registry {
	return &Registry{
		branchID:   branchID,
		store:      store,
		ttl:        ttl,
		logger:     log,
		loaders:    make(map[string]Loader),
		tentatives: make(map[tentativeKey]tentative),
		now:        time.Now,
	}
}

func (r *Registry) Register(name string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[name] = loader
}

// Names lists the registered views.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	return names
}

// Get decodes the snapshot of name into out, loading it on a miss.
func (r *Registry) Get(ctx context.Context, name string, out any) error {
	raw, ok, err := r.store.Get(ctx, r.key(name))
	if err != nil {
		r.logger.Warn("view store read failed, loading from source", zap.String("view", name), zap.Error(err))
	}
	if !ok || err != nil {
		raw, err = r.load(ctx, name)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, out)
}

// Refresh recomputes a view and replaces its snapshot.
func (r *Registry) Refresh(ctx context.Context, name string) error {
	_, err := r.load(ctx, name)
	return err
}

// Invalidate drops the snapshots and recomputes them. Failures are logged:
// the next Get loads from source anyway.
func (r *Registry) Invalidate(ctx context.Context, names ...string) {
	if len(names) == 0 {
		return
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = r.key(name)
	}
	if err := r.store.Delete(ctx, keys...); err != nil {
		r.logger.Warn("view store delete failed", zap.Strings("views", names), zap.Error(err))
	}
	for _, name := range names {
		if err := r.Refresh(ctx, name); err != nil {
			r.logger.Warn("view refresh failed", zap.String("view", name), zap.Error(err))
		}
	}
}

// BeginTentative tags a local optimistic change. At most one may exist per
// entity. The returned token identifies the owner for ResolveTentative.
func (r *Registry) BeginTentative(entityType, id string, value any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := tentativeKey{entityType, id}
	if _, exists := r.tentatives[k]; exists {
		return "", apperr.ErrTentativePending
	}
	token := uuid.New().String()
	r.tentatives[k] = tentative{value: value, token: token, started: r.now()}
	return token, nil
}

// ResolveTentative drops the tentative state once authoritative state arrived
// or the attempt was discarded. Only the owner's entry is removed.
func (r *Registry) ResolveTentative(entityType, id, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := tentativeKey{entityType, id}
	if t, ok := r.tentatives[k]; ok && t.token == token {
		delete(r.tentatives, k)
	}
}

func (r *Registry) Tentative(entityType, id string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tentatives[tentativeKey{entityType, id}]
	return t.value, ok
}

// ClearTentatives drops tentative states left behind by abandoned attempts.
// Entries younger than staleTentativeAfter belong to calls still in flight
// and are kept.
func (r *Registry) ClearTentatives() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-staleTentativeAfter)
	for k, t := range r.tentatives {
		if t.started.Before(cutoff) {
			delete(r.tentatives, k)
		}
	}
}

func (r *Registry) load(ctx context.Context, name string) ([]byte, error) {
	r.mu.RLock()
	loader, ok := r.loaders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("view %q is not registered", name)
	}

	value, err := loader(ctx, r.branchID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, r.key(name), raw, r.ttl); err != nil {
		r.logger.Warn("view store write failed", zap.String("view", name), zap.Error(err))
	}
	return raw, nil
}

func (r *Registry) key(name string) string {
	return "view:" + r.branchID + ":" + name
}
