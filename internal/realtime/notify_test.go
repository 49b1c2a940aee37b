package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		ev     model.ChangeEvent
		want   NotificationKind
		notify bool
	}{
		{
			name:   "new order",
			ev:     model.ChangeEvent{Table: TableOrders, Kind: model.ChangeInsert, After: model.Record{"id": "o-1", "status": "pending"}},
			want:   NotifyOrderCreated,
			notify: true,
		},
		{
			name: "order confirmed",
			ev: model.ChangeEvent{Table: TableOrders, Kind: model.ChangeUpdate,
				Before: model.Record{"id": "o-1", "status": "pending"}, After: model.Record{"id": "o-1", "status": "confirmed"}},
			want:   NotifyOrderStatus,
			notify: true,
		},
		{
			name: "order touched without status change",
			ev: model.ChangeEvent{Table: TableOrders, Kind: model.ChangeUpdate,
				Before: model.Record{"id": "o-1", "status": "preparing"}, After: model.Record{"id": "o-1", "status": "preparing"}},
		},
		{
			name: "order payment settled with a key-only before image",
			ev: model.ChangeEvent{Table: TableOrders, Kind: model.ChangeUpdate,
				Before: model.Record{"id": "o-1"}, After: model.Record{"id": "o-1", "status": "served", "payment_status": "paid"}},
		},
		{
			name: "payment status moved to pending",
			ev: model.ChangeEvent{Table: TablePayments, Kind: model.ChangeInsert,
				After: model.Record{"id": "p-1", "status": "pending"}},
		},
		{
			name: "payment completed",
			ev: model.ChangeEvent{Table: TablePayments, Kind: model.ChangeUpdate,
				Before: model.Record{"id": "p-1", "status": "pending"}, After: model.Record{"id": "p-1", "status": "completed", "amount": "50.00"}},
			want:   NotifyPaymentCompleted,
			notify: true,
		},
		{
			name: "payment failed",
			ev: model.ChangeEvent{Table: TablePayments, Kind: model.ChangeUpdate,
				Before: model.Record{"id": "p-1", "status": "pending"}, After: model.Record{"id": "p-1", "status": "failed"}},
			want:   NotifyPaymentFailed,
			notify: true,
		},
		{
			name: "item ready",
			ev: model.ChangeEvent{Table: TableOrderItems, Kind: model.ChangeUpdate,
				Before: model.Record{"id": "i-1", "status": "preparing"}, After: model.Record{"id": "i-1", "status": "ready"}},
			want:   NotifyItemReady,
			notify: true,
		},
		{
			name: "item preparing",
			ev: model.ChangeEvent{Table: TableOrderItems, Kind: model.ChangeUpdate,
				Before: model.Record{"id": "i-1", "status": "pending"}, After: model.Record{"id": "i-1", "status": "preparing"}},
		},
		{
			name: "table status changed",
			ev: model.ChangeEvent{Table: TableTables, Kind: model.ChangeUpdate,
				Before: model.Record{"id": "t-1", "status": "available"}, After: model.Record{"id": "t-1", "status": "occupied"}},
			want:   NotifyTableStatus,
			notify: true,
		},
		{
			name: "stock driven to zero",
			ev: model.ChangeEvent{Table: TableStockMovements, Kind: model.ChangeInsert,
				After: model.Record{"id": "m-1", "product_id": "p-9", "quantity_before": float64(3), "quantity_after": float64(0)}},
			want:   NotifyStockDepleted,
			notify: true,
		},
		{
			name: "stock still positive",
			ev: model.ChangeEvent{Table: TableStockMovements, Kind: model.ChangeInsert,
				After: model.Record{"id": "m-1", "product_id": "p-9", "quantity_before": float64(3), "quantity_after": float64(1)}},
		},
		{
			name: "internal housekeeping",
			ev: model.ChangeEvent{Table: TableOrders, Kind: model.ChangeInsert, Internal: true,
				After: model.Record{"id": "o-1"}},
		},
		{
			name: "truncate",
			ev:   model.ChangeEvent{Table: TableOrders, Kind: model.ChangeTruncate},
		},
		{
			name: "activity log",
			ev:   model.ChangeEvent{Table: TableActivityLogs, Kind: model.ChangeInsert, After: model.Record{"id": "a-1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := Classify(tt.ev)
			assert.Equal(t, tt.notify, ok)
			if tt.notify {
				assert.Equal(t, tt.want, n.Kind)
				assert.NotEmpty(t, n.Message)
			}
		})
	}
}

func TestClassify_StockDepletedPointsAtProduct(t *testing.T) {
	n, ok := Classify(model.ChangeEvent{Table: TableStockMovements, Kind: model.ChangeInsert,
		After: model.Record{"id": "m-1", "product_id": "p-9", "quantity_after": float64(0)}})
	assert.True(t, ok)
	assert.Equal(t, TableProducts, n.EntityType)
	assert.Equal(t, "p-9", n.EntityID)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "omnipos.changes.b-1.public.orders", Topic("omnipos.changes", "b-1", "public", "orders"))
}
