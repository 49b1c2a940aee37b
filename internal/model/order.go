package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// orderTransitions is the complete edge set. Anything absent is illegal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady, OrderCancelled},
	OrderReady:     {OrderServed, OrderCancelled},
	OrderServed:    {OrderCompleted},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady, OrderServed, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:   {ItemPreparing, ItemReady},
	ItemPreparing: {ItemReady},
}

func (s ItemStatus) Valid() bool {
	return s == ItemPending || s == ItemPreparing || s == ItemReady
}

func CanTransitionItem(from, to ItemStatus) bool {
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type OrderType string

const (
	OrderDineIn   OrderType = "dine_in"
	OrderTakeaway OrderType = "takeaway"
	OrderDelivery OrderType = "delivery"
)

func (t OrderType) Valid() bool {
	return t == OrderDineIn || t == OrderTakeaway || t == OrderDelivery
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Order struct {
	BaseModel
	BranchID        string          `db:"branch_id" json:"branch_id"`
	Number          string          `db:"order_number" json:"order_number"`
	Status          OrderStatus     `db:"status" json:"status"`
	OrderType       OrderType       `db:"order_type" json:"order_type"`
	TableID         *string         `db:"table_id" json:"table_id"`
	CustomerID      *string         `db:"customer_id" json:"customer_id"`
	SpecialRequests string          `db:"special_requests" json:"special_requests"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax             decimal.Decimal `db:"tax" json:"tax"`
	ServiceCharge   decimal.Decimal `db:"service_charge" json:"service_charge"`
	Discount        decimal.Decimal `db:"discount" json:"discount"`
	Total           decimal.Decimal `db:"total" json:"total"`
	PaymentStatus   PaymentStatus   `db:"payment_status" json:"payment_status"`
	CreatedBy       string          `db:"created_by" json:"created_by"`
	Version         int             `db:"version" json:"version"`
	Items           []OrderItem     `db:"-" json:"items"`
}

// AllItemsReady reports whether the order has items and every one is ready.
func (o *Order) AllItemsReady() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.Status != ItemReady {
			return false
		}
	}
	return true
}

func (o *Order) Item(id string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], true
		}
	}
	return nil, false
}

type OrderItem struct {
	ID        string          `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`
	Modifiers Modifiers       `db:"modifiers" json:"modifiers"`
	Notes     string          `db:"notes" json:"notes"`
	Status    ItemStatus      `db:"status" json:"status"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
