package dto

import (
	"github.com/fekuna/omnipos-order-service/internal/model"
)

type AdjustStockInput struct {
	ProductID     string
	Type          model.MovementType
	Quantity      int
	Reason        string
	ReferenceType string
	ReferenceID   string
}

// StockLine is one product quantity of a sale or return.
type StockLine struct {
	ProductID string
	Quantity  int
}

type StockLevel struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Current   int    `json:"current"`
	MinStock  int    `json:"min_stock"`
	Low       bool   `json:"low"`
}

type MovementFilters struct {
	BranchID     string
	ProductID    string
	MovementType string
	Page         int
	PageSize     int
}
