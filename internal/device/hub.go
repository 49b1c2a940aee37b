package device

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-order-service/internal/cart"
	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

type ProductLookup interface {
	LookupBarcode(ctx context.Context, branchID, barcode string) (*model.Product, error)
}

type Config struct {
	Printer Settings
	Drawer  Settings
	Scanner Settings
}

type Hub struct {
	branchID string
	printer  Printer
	drawer   CashDrawer
	scanner  Scanner
	products ProductLookup
	session  *cart.Cart
	logger   logger.ZapLogger
	now      func() time.Time
}

// NewHub attaches the devices to the terminal's session cart, which receives
// every scan.
func NewHub(branchID string, printer Printer, drawer CashDrawer, scanner Scanner, products ProductLookup, session *cart.Cart, log logger.ZapLogger) *Hub {
	return &Hub{
		branchID: branchID,
		printer:  printer,
		drawer:   drawer,
		scanner:  scanner,
		products: products,
		session:  session,
		logger:   log,
		now:      time.Now,
	}
}

// Configure applies settings to every device and reports all failures together.
func (h *Hub) Configure(cfg Config) error {
	var err error
	err = multierr.Append(err, errors.Wrap(h.printer.Configure(cfg.Printer), "printer"))
	err = multierr.Append(err, errors.Wrap(h.drawer.Configure(cfg.Drawer), "cash drawer"))
	err = multierr.Append(err, errors.Wrap(h.scanner.Configure(cfg.Scanner), "scanner"))
	return err
}

func (h *Hub) Close() error {
	return multierr.Combine(
		errors.Wrap(h.printer.Close(), "printer"),
		errors.Wrap(h.drawer.Close(), "cash drawer"),
		errors.Wrap(h.scanner.Close(), "scanner"),
	)
}

// OnPaymentCompleted prints the receipt and opens the drawer.
func (h *Hub) OnPaymentCompleted(ctx context.Context, order *model.Order, p *model.Payment) {
	if err := h.printer.PrintReceipt(ctx, h.receipt(order, p)); err != nil {
		h.logger.Warn("receipt not printed", zap.String("order_id", order.ID), zap.String("payment_id", p.ID), zap.Error(err))
	}
	if err := h.drawer.Open(ctx); err != nil {
		h.logger.Warn("cash drawer did not open", zap.String("payment_id", p.ID), zap.Error(err))
	}
}

// Cart is the terminal's session cart.
func (h *Hub) Cart() *cart.Cart {
	return h.session
}

// Scan is the entry point for scanner drivers.
func (h *Hub) Scan(ctx context.Context, code string) error {
	return h.HandleScan(ctx, code, h.session)
}

// HandleScan adds one unit of the scanned product to c.
func (h *Hub) HandleScan(ctx context.Context, code string, c *cart.Cart) error {
	product, err := h.products.LookupBarcode(ctx, h.branchID, code)
	if err != nil {
		h.logger.Warn("scanned code not resolved", zap.String("code", code), zap.Error(err))
		return err
	}
	return c.AddItem(ctx, *product, 1, nil, "")
}

func (h *Hub) receipt(order *model.Order, p *model.Payment) Receipt {
	lines := make([]ReceiptLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, ReceiptLine{Name: item.Name, Quantity: item.Quantity, Amount: item.Subtotal})
	}
	return Receipt{
		OrderNumber: order.Number,
		Lines:       lines,
		Subtotal:    order.Subtotal,
		Tax:         order.Tax,
		Service:     order.ServiceCharge,
		Discount:    order.Discount,
		Total:       order.Total,
		Method:      string(p.Method),
		Paid:        p.Amount,
		Tip:         p.Tip,
		PrintedAt:   h.now(),
	}
}
