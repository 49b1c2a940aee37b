package kitchen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

var now = time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)

func order(id string, status model.OrderStatus, age time.Duration) model.Order {
	return model.Order{
		BaseModel: model.BaseModel{ID: id, CreatedAt: now.Add(-age)},
		Status:    status,
	}
}

func TestUrgencyOf(t *testing.T) {
	tests := []struct {
		status model.OrderStatus
		age    time.Duration
		want   Urgency
	}{
		{model.OrderReady, 0, UrgencyHigh},
		{model.OrderPreparing, 20 * time.Minute, UrgencyLow},
		{model.OrderPreparing, 21 * time.Minute, UrgencyHigh},
		{model.OrderConfirmed, 10 * time.Minute, UrgencyLow},
		{model.OrderConfirmed, 11 * time.Minute, UrgencyMedium},
		{model.OrderPending, 5 * time.Minute, UrgencyLow},
		{model.OrderPending, 6 * time.Minute, UrgencyHigh},
		{model.OrderServed, time.Hour, UrgencyLow},
	}
	for _, tt := range tests {
		got := UrgencyOf(order("o", tt.status, tt.age), now)
		assert.Equal(t, tt.want, got, "%s after %s", tt.status, tt.age)
	}
}

func TestBuildQueue_SortsByPriorityThenAge(t *testing.T) {
	orders := []model.Order{
		order("ready-new", model.OrderReady, time.Minute),
		order("pending-old", model.OrderPending, 30*time.Minute),
		order("preparing", model.OrderPreparing, 2*time.Minute),
		order("pending-new", model.OrderPending, time.Minute),
		order("served", model.OrderServed, time.Hour),
		order("confirmed", model.OrderConfirmed, 3*time.Minute),
		order("ready-old", model.OrderReady, 9*time.Minute),
	}

	queue := BuildQueue(orders, now)

	ids := make([]string, len(queue))
	for i, ticket := range queue {
		ids[i] = ticket.Order.ID
	}
	assert.Equal(t, []string{"pending-old", "pending-new", "confirmed", "preparing", "ready-old", "ready-new"}, ids)

	// The overdue pending order is urgent but stays where its status puts it.
	assert.Equal(t, UrgencyHigh, queue[0].Urgency)
	assert.Equal(t, 30*time.Minute, queue[0].Elapsed)
	assert.Equal(t, UrgencyLow, queue[3].Urgency)
	assert.Equal(t, 4, queue[5].Priority)
}

func TestCoordinator(t *testing.T) {
	orders := &mockOrders{
		active: []model.Order{order("b", model.OrderConfirmed, time.Minute), order("a", model.OrderPending, 7*time.Minute)},
		moves:  map[string]bool{"a": true},
	}
	views := &mockViews{}
	c := NewCoordinator(orders, views, logger.NewNop())
	c.now = func() time.Time { return now }
	ctx := context.Background()

	queue, err := c.Queue(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "a", queue[0].Order.ID)
	assert.Equal(t, UrgencyHigh, queue[0].Urgency)

	loaded, err := c.Load(ctx, "b-1")
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	require.NoError(t, c.HandleItemStatusChanged(ctx, "a"))
	assert.Equal(t, []string{"a"}, orders.evaluated)
	assert.Equal(t, []string{"kitchen_queue"}, views.invalidated)
}

func TestCoordinator_QueueUrgencyFollowsClock(t *testing.T) {
	orders := &mockOrders{active: []model.Order{order("b", model.OrderConfirmed, time.Minute)}}
	c := NewCoordinator(orders, &mockViews{}, logger.NewNop())
	ctx := context.Background()

	// The stored snapshot never changes while the order waits.
	loaded, err := c.Load(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, orders.active, loaded)

	c.now = func() time.Time { return now }
	queue, err := c.Queue(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, UrgencyLow, queue[0].Urgency)

	c.now = func() time.Time { return now.Add(15 * time.Minute) }
	queue, err = c.Queue(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, UrgencyMedium, queue[0].Urgency)
	assert.Equal(t, 16*time.Minute, queue[0].Elapsed)
}

type mockOrders struct {
	active    []model.Order
	moves     map[string]bool
	evaluated []string
}

func (m *mockOrders) ListActive(context.Context, string) ([]model.Order, error) {
	return m.active, nil
}

func (m *mockOrders) EvaluateAutoReady(_ context.Context, orderID string) (bool, error) {
	m.evaluated = append(m.evaluated, orderID)
	return m.moves[orderID], nil
}

type mockViews struct {
	invalidated []string
}

func (m *mockViews) Invalidate(_ context.Context, names ...string) {
	m.invalidated = append(m.invalidated, names...)
}
