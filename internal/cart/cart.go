// Package cart prices the line items of a terminal session before checkout.
// A Cart is owned by one session; totals are recomputed after every mutation
// and a failed mutation leaves the cart exactly as it was.
package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

type Config struct {
	TaxRate           decimal.Decimal
	ServiceChargeRate decimal.Decimal
}

func NewConfig(taxRate, serviceChargeRate float64) Config {
	return Config{
		TaxRate:           decimal.NewFromFloat(taxRate),
		ServiceChargeRate: decimal.NewFromFloat(serviceChargeRate),
	}
}

// StockChecker reports the ledger-derived stock of a product.
type StockChecker interface {
	CurrentStock(ctx context.Context, productID string) (int, error)
}

type Cart struct {
	mu              sync.Mutex
	cfg             Config
	stock           StockChecker
	items           []model.CartItem
	customerID      *string
	discount        decimal.Decimal
	specialRequests string
	totals          model.CartTotals
}

func New(cfg Config, stock StockChecker) *Cart {
	c := &Cart{cfg: cfg, stock: stock}
	c.recompute()
	return c
}

func (c *Cart) AddItem(ctx context.Context, product model.Product, qty int, modifiers []model.Modifier, notes string) error {
	if qty <= 0 {
		return apperr.ErrInvalidQuantity
	}
	if !product.IsActive {
		return apperr.ErrInactiveProduct
	}
	if product.UnitPrice.IsNegative() {
		return apperr.ErrInvalidPrice
	}
	for _, m := range modifiers {
		if m.Price.IsNegative() {
			return apperr.ErrInvalidPrice
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := model.LineKey{ProductID: product.ID, ModifierKey: model.ModifierKey(modifiers)}
	candidate := c.productQuantity(product.ID) + qty
	if err := c.checkStock(ctx, product.ID, candidate); err != nil {
		return err
	}

	if i := c.indexOf(key); i >= 0 {
		c.items[i].Quantity += qty
		if notes != "" {
			c.items[i].Notes = notes
		}
	} else {
		mods := make([]model.Modifier, len(modifiers))
		copy(mods, modifiers)
		c.items = append(c.items, model.CartItem{
			Product:   product,
			Quantity:  qty,
			Modifiers: mods,
			Notes:     notes,
		})
	}

	c.recompute()
	return nil
}

func (c *Cart) RemoveItem(productID, modifierKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(model.LineKey{ProductID: productID, ModifierKey: modifierKey})
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less removes it.
func (c *Cart) UpdateQuantity(ctx context.Context, key model.LineKey, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(key)
	if i < 0 {
		return apperr.ErrNotFound
	}
	if qty <= 0 {
		c.removeLocked(key)
		return nil
	}

	current := c.items[i].Quantity
	if qty > current {
		candidate := c.productQuantity(key.ProductID) - current + qty
		if err := c.checkStock(ctx, key.ProductID, candidate); err != nil {
			return err
		}
	}

	c.items[i].Quantity = qty
	c.recompute()
	return nil
}

func (c *Cart) ApplyDiscount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperr.ErrDiscountNegative
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if amount.GreaterThan(c.totals.Subtotal) {
		return &apperr.DiscountExceedsSubtotalError{Discount: amount, Subtotal: c.totals.Subtotal}
	}
	c.discount = amount
	c.recompute()
	return nil
}

func (c *Cart) SetCustomer(customerID *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customerID = customerID
}

func (c *Cart) SetSpecialRequests(requests string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specialRequests = requests
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.customerID = nil
	c.discount = decimal.Zero
	c.specialRequests = ""
	c.recompute()
}

func (c *Cart) Items() []model.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Totals() model.CartTotals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

func (c *Cart) Snapshot() model.CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]model.CartItem, len(c.items))
	for i, item := range c.items {
		item.Modifiers = append([]model.Modifier(nil), item.Modifiers...)
		items[i] = item
	}
	var customer *string
	if c.customerID != nil {
		id := *c.customerID
		customer = &id
	}
	return model.CartSnapshot{
		Items:           items,
		CustomerID:      customer,
		SpecialRequests: c.specialRequests,
		Totals:          c.totals,
	}
}

func (c *Cart) removeLocked(key model.LineKey) {
	i := c.indexOf(key)
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.recompute()
}

func (c *Cart) checkStock(ctx context.Context, productID string, requested int) error {
	if c.stock == nil {
		return nil
	}
	available, err := c.stock.CurrentStock(ctx, productID)
	if err != nil {
		return err
	}
	if requested > available {
		return &apperr.InsufficientStockError{ProductID: productID, Available: available, Requested: requested}
	}
	return nil
}

func (c *Cart) indexOf(key model.LineKey) int {
	for i, item := range c.items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}

// productQuantity counts every line of the product, whatever its modifiers.
func (c *Cart) productQuantity(productID string) int {
	total := 0
	for _, item := range c.items {
		if item.Product.ID == productID {
			total += item.Quantity
		}
	}
	return total
}

func (c *Cart) recompute() {
	subtotal := decimal.Zero
	for i := range c.items {
		line := c.items[i].UnitTotal().Mul(decimal.NewFromInt(int64(c.items[i].Quantity)))
		c.items[i].Subtotal = line
		subtotal = subtotal.Add(line)
	}

	// Removing lines can drop the subtotal below an applied discount.
	if c.discount.GreaterThan(subtotal) {
		c.discount = subtotal
	}

	tax := subtotal.Mul(c.cfg.TaxRate)
	service := subtotal.Mul(c.cfg.ServiceChargeRate)

	c.totals = model.CartTotals{
		Subtotal:      subtotal,
		Tax:           tax,
		ServiceCharge: service,
		Discount:      c.discount,
		Total:         subtotal.Add(tax).Add(service).Sub(c.discount),
	}
}
