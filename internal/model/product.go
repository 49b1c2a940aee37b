package model

import "github.com/shopspring/decimal"

// Product is owned by the catalog. CurrentStock is derived from the stock ledger
// and never read from the products table.
type Product struct {
	BaseModel
	BranchID     string          `db:"branch_id" json:"branch_id"`
	CategoryID   *string         `db:"category_id" json:"category_id"`
	SKU          string          `db:"sku" json:"sku"`
	Barcode      *string         `db:"barcode" json:"barcode"`
	Name         string          `db:"name" json:"name"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	Cost         decimal.Decimal `db:"cost" json:"cost"`
	MinStock     int             `db:"min_stock" json:"min_stock"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	CurrentStock int             `db:"-" json:"current_stock"`
}
