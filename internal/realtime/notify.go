package realtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

const (
	TableOrders         = "orders"
	TableOrderItems     = "order_items"
	TablePayments       = "payments"
	TableStockMovements = "stock_movements"
	TableProducts       = "products"
	TableTables         = "restaurant_tables"
	TableActivityLogs   = "activity_logs"
)

type NotificationKind string

const (
	NotifyOrderCreated     NotificationKind = "order_created"
	NotifyOrderStatus      NotificationKind = "order_status_changed"
	NotifyItemReady        NotificationKind = "item_ready"
	NotifyPaymentCompleted NotificationKind = "payment_completed"
	NotifyPaymentFailed    NotificationKind = "payment_failed"
	NotifyTableStatus      NotificationKind = "table_status_changed"
	NotifyStockDepleted    NotificationKind = "stock_depleted"
)

type Notification struct {
	Kind       NotificationKind
	EntityType string
	EntityID   string
	Version    int64
	Message    string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

var notifiedOrderStatuses = map[string]bool{
	string(model.OrderConfirmed): true,
	string(model.OrderPreparing): true,
	string(model.OrderReady):     true,
	string(model.OrderServed):    true,
	string(model.OrderCompleted): true,
	string(model.OrderCancelled): true,
}

// Classify decides whether a change event is worth telling a person about.
// It has no side effects.
func Classify(ev model.ChangeEvent) (Notification, bool) {
	if ev.Internal || ev.Kind == model.ChangeTruncate || ev.Table == TableActivityLogs {
		return Notification{}, false
	}

	n := Notification{EntityType: ev.Table, EntityID: ev.EntityID(), Version: ev.Version}
	status := ev.After.String("status")

	switch ev.Table {
	case TableOrders:
		if ev.Kind == model.ChangeInsert {
			n.Kind = NotifyOrderCreated
			n.Message = fmt.Sprintf("New order %s", orderLabel(ev))
			return n, true
		}
		if ev.Kind == model.ChangeUpdate && ev.Changed("status") && notifiedOrderStatuses[status] {
			n.Kind = NotifyOrderStatus
			n.Message = fmt.Sprintf("Order %s is %s", orderLabel(ev), status)
			return n, true
		}

	case TableOrderItems:
		if ev.Kind == model.ChangeUpdate && ev.Changed("status") && status == string(model.ItemReady) {
			n.Kind = NotifyItemReady
			n.Message = fmt.Sprintf("Item %s is ready", ev.After.String("name"))
			return n, true
		}

	case TablePayments:
		if ev.Kind == model.ChangeDelete || !ev.Changed("status") {
			break
		}
		switch status {
		case string(model.PaymentCompleted):
			n.Kind = NotifyPaymentCompleted
			n.Message = fmt.Sprintf("Payment of %s completed", ev.After.String("amount"))
			return n, true
		case string(model.PaymentFailed):
			n.Kind = NotifyPaymentFailed
			n.Message = fmt.Sprintf("Payment of %s failed", ev.After.String("amount"))
			return n, true
		}

	case TableTables:
		if ev.Kind == model.ChangeUpdate && ev.Changed("status") {
			n.Kind = NotifyTableStatus
			n.Message = fmt.Sprintf("Table %s is %s", ev.After.String("table_number"), status)
			return n, true
		}

	case TableStockMovements:
		if ev.Kind != model.ChangeInsert {
			break
		}
		after, ok := ev.After.Int("quantity_after")
		if !ok || after != 0 {
			break
		}
		if before, ok := ev.After.Int("quantity_before"); ok && before <= 0 {
			break
		}
		n.EntityType = TableProducts
		n.EntityID = ev.After.String("product_id")
		n.Kind = NotifyStockDepleted
		n.Message = fmt.Sprintf("Product %s is out of stock", n.EntityID)
		return n, true
	}
	return Notification{}, false
}

func orderLabel(ev model.ChangeEvent) string {
	if number := ev.After.String("order_number"); number != "" {
		return number
	}
	return ev.EntityID()
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct {
	logger logger.ZapLogger
}

func NewLogNotifier(log logger.ZapLogger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Notify(_ context.Context, note Notification) {
	n.logger.Info(note.Message,
		zap.String("kind", string(note.Kind)),
		zap.String("entity_type", note.EntityType),
		zap.String("entity_id", note.EntityID),
	)
}
