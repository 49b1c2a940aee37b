// Package kitchen derives the prioritised work queue of the kitchen display.
package kitchen

import (
	"sort"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/model"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

const (
	pendingLimit   = 5 * time.Minute
	confirmedLimit = 10 * time.Minute
	preparingLimit = 20 * time.Minute
)

var priorities = map[model.OrderStatus]int{
	model.OrderPending:   1,
	model.OrderConfirmed: 2,
	model.OrderPreparing: 3,
	model.OrderReady:     4,
}

// Ticket is one order on the kitchen display. Urgency and Elapsed are
// computed when the queue is built and never stored.
type Ticket struct {
	Order    model.Order   `json:"order"`
	Priority int           `json:"priority"`
	Urgency  Urgency       `json:"urgency"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Priority is zero for statuses with no kitchen work left.
func Priority(status model.OrderStatus) int {
	return priorities[status]
}

func UrgencyOf(o model.Order, now time.Time) Urgency {
	elapsed := now.Sub(o.CreatedAt)
	switch o.Status {
	case model.OrderReady:
		return UrgencyHigh
	case model.OrderPreparing:
		if elapsed > preparingLimit {
			return UrgencyHigh
		}
	case model.OrderConfirmed:
		if elapsed > confirmedLimit {
			return UrgencyMedium
		}
	case model.OrderPending:
		if elapsed > pendingLimit {
			return UrgencyHigh
		}
	}
	return UrgencyLow
}

// Sort orders by status priority, then oldest first. Orders without kitchen
// work are dropped.
func Sort(orders []model.Order) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if Priority(o.Status) > 0 {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := Priority(out[i].Status), Priority(out[j].Status)
		if pi != pj {
			return pi < pj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// BuildQueue sorts the orders and attaches urgency. Urgency never affects
// the order of the queue.
func BuildQueue(orders []model.Order, now time.Time) []Ticket {
	sorted := Sort(orders)
	tickets := make([]Ticket, len(sorted))
	for i, o := range sorted {
		tickets[i] = Ticket{
			Order:    o,
			Priority: Priority(o.Status),
			Urgency:  UrgencyOf(o, now),
			Elapsed:  now.Sub(o.CreatedAt),
		}
	}
	return tickets
}
