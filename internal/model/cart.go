package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Modifier struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ModifierKey serializes an ordered modifier list. Order matters: the same
// modifiers listed differently are different lines.
func ModifierKey(mods []Modifier) string {
	parts := make([]string, len(mods))
	for i, m := range mods {
		parts[i] = m.Name + ":" + m.Price.String()
	}
	return strings.Join(parts, ",")
}

type LineKey struct {
	ProductID   string
	ModifierKey string
}

type CartItem struct {
	Product   Product         `json:"product"`
	Quantity  int             `json:"quantity"`
	Modifiers []Modifier      `json:"modifiers"`
	Notes     string          `json:"notes"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func (i CartItem) Key() LineKey {
	return LineKey{ProductID: i.Product.ID, ModifierKey: ModifierKey(i.Modifiers)}
}

// UnitTotal is the unit price plus every modifier price.
func (i CartItem) UnitTotal() decimal.Decimal {
	total := i.Product.UnitPrice
	for _, m := range i.Modifiers {
		total = total.Add(m.Price)
	}
	return total
}

type CartTotals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
}

// CartSnapshot is the immutable view of a cart handed to checkout.
type CartSnapshot struct {
	Items           []CartItem `json:"items"`
	CustomerID      *string    `json:"customer_id"`
	SpecialRequests string     `json:"special_requests"`
	Totals          CartTotals `json:"totals"`
}
