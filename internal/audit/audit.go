// Package audit appends one activity record per state transition.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

const (
	ActionOrderCreated       = "order.created"
	ActionOrderStatusChanged = "order.status_changed"
	ActionItemStatusChanged  = "order_item.status_changed"
	ActionPaymentCreated     = "payment.created"
	ActionPaymentResolved    = "payment.status_changed"
	ActionStockAdjusted      = "inventory.adjusted"
	ActionTableStatusChanged = "table.status_changed"
)

const (
	ResourceOrder     = "orders"
	ResourceOrderItem = "order_items"
	ResourcePayment   = "payments"
	ResourceStock     = "stock_movements"
	ResourceTable     = "restaurant_tables"
)

// Sink is the append-only store behind the emitter.
type Sink interface {
	Append(ctx context.Context, entry *model.ActivityLog) error
}

type Recorder interface {
	Record(ctx context.Context, s auth.Session, action, resourceType, resourceID string, details model.Details) error
}

type Emitter struct {
	sink Sink
	now  func() time.Time
}

func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink, now: time.Now}
}

// Record appends the entry. A sink failure is returned for the caller to log;
// it never undoes a committed change.
func (e *Emitter) Record(ctx context.Context, s auth.Session, action, resourceType, resourceID string, details model.Details) error {
	entry := &model.ActivityLog{
		ID:           uuid.New().String(),
		ActorID:      s.ActorID,
		BranchID:     s.BranchID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		CreatedAt:    e.now(),
	}

	if err := e.sink.Append(ctx, entry); err != nil {
		return apperr.External("audit_sink_unavailable", err)
	}
	return nil
}

// Transition builds the details of a status change record.
func Transition(from, to string) model.Details {
	return model.Details{"from": from, "to": to}
}
