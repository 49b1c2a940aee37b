// Package device drives the terminal peripherals. Device failures never undo
// a committed domain change; the hub logs them as warnings.
package device

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Settings struct {
	Enabled bool
	Address string
	Options map[string]string
}

type Printer interface {
	Configure(s Settings) error
	PrintReceipt(ctx context.Context, r Receipt) error
	Close() error
}

type CashDrawer interface {
	Configure(s Settings) error
	Open(ctx context.Context) error
	Close() error
}

// Scanner delivers codes through Hub.Scan.
type Scanner interface {
	Configure(s Settings) error
	Close() error
}

type ReceiptLine struct {
	Name     string
	Quantity int
	Amount   decimal.Decimal
}

type Receipt struct {
	OrderNumber string
	Lines       []ReceiptLine
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Service     decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	Method      string
	Paid        decimal.Decimal
	Tip         decimal.Decimal
	PrintedAt   time.Time
}

// Nop devices accept every call. They are the default when no hardware is attached.
type (
	NopPrinter    struct{}
	NopCashDrawer struct{}
	NopScanner    struct{}
)

func (NopPrinter) Configure(Settings) error                    { return nil }
func (NopPrinter) PrintReceipt(context.Context, Receipt) error { return nil }
func (NopPrinter) Close() error                                { return nil }
func (NopCashDrawer) Configure(Settings) error                 { return nil }
func (NopCashDrawer) Open(context.Context) error               { return nil }
func (NopCashDrawer) Close() error                             { return nil }
func (NopScanner) Configure(Settings) error                    { return nil }
func (NopScanner) Close() error                                { return nil }
