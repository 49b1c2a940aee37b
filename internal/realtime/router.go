// Package realtime turns the store's change stream into view invalidations
// and user notifications, and reconciles after connectivity gaps.
package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/view"
)

type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateDegraded     State = "degraded"
)

// Dependencies lists the views to recompute when a collection changes.
var Dependencies = map[string][]string{
	TableOrders:         {view.OrderList, view.KitchenQueue, view.TableGrid},
	TableOrderItems:     {view.OrderList, view.KitchenQueue},
	TablePayments:       {view.OrderList},
	TableStockMovements: {view.StockLevels},
	TableProducts:       {view.StockLevels},
	TableTables:         {view.TableGrid},
}

type Views interface {
	Invalidate(ctx context.Context, names ...string)
	Refresh(ctx context.Context, name string) error
	ClearTentatives()
}

type Kitchen interface {
	HandleItemStatusChanged(ctx context.Context, orderID string) error
}

type Config struct {
	BranchID          string
	Schema            string
	Collections       []string
	SubscribeTimeout  time.Duration
	ReconnectBackoff  time.Duration
	ReconcileInterval time.Duration
	DedupeCapacity    int
}

type Router struct {
	cfg      Config
	stream   Stream
	views    Views
	kitchen  Kitchen
	notifier Notifier
	seen     *seenSet
	logger   logger.ZapLogger

	mu        sync.Mutex
	states    map[string]State
	state     State
	listeners []func(State)
}

func NewRouter(cfg Config, stream Stream, views Views, kitchen Kitchen, notifier Notifier, log logger.ZapLogger) *Router {
	states := make(map[string]State, len(cfg.Collections))
	for _, c := range cfg.Collections {
		states[c] = StateDisconnected
	}
	return &Router{
		cfg:      cfg,
		stream:   stream,
		views:    views,
		kitchen:  kitchen,
		notifier: notifier,
		seen:     newSeenSet(cfg.DedupeCapacity),
		logger:   log.With(zap.String("branch_id", cfg.BranchID)),
		states:   states,
		state:    StateDisconnected,
	}
}

// OnStateChange registers fn to be called with every change of the overall state.
func (r *Router) OnStateChange(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run keeps one subscription per watched collection until ctx is done.
func (r *Router) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, table := range r.cfg.Collections {
		g.Go(func() error {
			r.watch(ctx, table)
			return nil
		})
	}
	if r.cfg.ReconcileInterval > 0 {
		g.Go(func() error {
			r.reconcileEvery(ctx, r.cfg.ReconcileInterval)
			return nil
		})
	}
	return g.Wait()
}

// Handle applies one change event. It returns false for a version already seen.
// Events without a version are keyed by commit time instead.
func (r *Router) Handle(ctx context.Context, ev model.ChangeEvent) bool {
	key := eventKey{entityType: ev.Table, entityID: ev.EntityID(), version: ev.Version}
	if key.version == 0 {
		key.version = ev.CommitTime.UnixNano()
	}
	if ev.Kind != model.ChangeTruncate && !r.seen.Add(key) {
		r.logger.Debug("duplicate change event dropped",
			zap.String("table", ev.Table), zap.String("id", key.entityID), zap.Int64("version", ev.Version))
		return false
	}

	if names := Dependencies[ev.Table]; len(names) > 0 {
		r.views.Invalidate(ctx, names...)
	}

	// Auto-ready evaluation is idempotent, so a key-only before image still triggers it.
	itemStatus := ev.Changed("status") || !ev.Before.Has("status")
	if ev.Table == TableOrderItems && ev.Kind == model.ChangeUpdate && itemStatus && r.kitchen != nil {
		orderID := ev.After.String("order_id")
		if err := r.kitchen.HandleItemStatusChanged(ctx, orderID); err != nil {
			r.logger.Error("auto-ready evaluation failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	if n, ok := Classify(ev); ok && r.notifier != nil {
		r.notifier.Notify(ctx, n)
	}
	return true
}

// Reconcile recomputes every view fed by a watched collection and drops all
// tentative states. Missed events are not replayed.
func (r *Router) Reconcile(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range r.watchedViews() {
		g.Go(func() error {
			return r.views.Refresh(gctx, name)
		})
	}
	err := g.Wait()
	r.views.ClearTentatives()
	if err != nil {
		return err
	}
	r.logger.Info("views reconciled")
	return nil
}

func (r *Router) watch(ctx context.Context, table string) {
	log := r.logger.With(zap.String("table", table))
	hadConnection := false

	for ctx.Err() == nil {
		subCtx, cancel := context.WithTimeout(ctx, r.cfg.SubscribeTimeout)
		sub, err := r.stream.Subscribe(subCtx, r.cfg.BranchID, r.cfg.Schema, table)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warn("subscription timed out, views may be stale", zap.Duration("timeout", r.cfg.SubscribeTimeout))
				r.setState(table, StateDegraded)
			} else {
				log.Warn("subscription failed", zap.Error(err))
				r.setState(table, StateDisconnected)
			}
			if !sleep(ctx, r.cfg.ReconnectBackoff) {
				return
			}
			continue
		}

		r.setState(table, StateConnected)
		if hadConnection {
			if err := r.Reconcile(ctx); err != nil && ctx.Err() == nil {
				log.Error("reconciliation failed", zap.Error(err))
			}
		}
		hadConnection = true

		err = r.consume(ctx, sub)
		if cerr := sub.Close(); cerr != nil {
			log.Warn("failed to close subscription", zap.Error(cerr))
		}
		if ctx.Err() != nil {
			return
		}
		log.Warn("subscription dropped", zap.Error(err))
		r.setState(table, StateDisconnected)
		if !sleep(ctx, r.cfg.ReconnectBackoff) {
			return
		}
	}
}

func (r *Router) consume(ctx context.Context, sub Subscription) error {
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return err
		}
		r.Handle(ctx, ev)
	}
}

func (r *Router) reconcileEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("periodic reconciliation failed", zap.Error(err))
			}
		}
	}
}

func (r *Router) watchedViews() []string {
	set := make(map[string]struct{})
	for _, table := range r.cfg.Collections {
		for _, name := range Dependencies[table] {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// setState records one collection's state and recomputes the overall one:
// any disconnected collection wins over degraded, which wins over connected.
func (r *Router) setState(table string, s State) {
	r.mu.Lock()
	r.states[table] = s

	overall := StateConnected
	for _, st := range r.states {
		if st == StateDisconnected {
			overall = StateDisconnected
			break
		}
		if st == StateDegraded {
			overall = StateDegraded
		}
	}
	changed := overall != r.state
	r.state = overall
	listeners := append([]func(State){}, r.listeners...)
	r.mu.Unlock()

	if !changed {
		return
	}
	r.logger.Info("connectivity changed", zap.String("state", string(overall)))
	for _, fn := range listeners {
		fn(overall)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
