package model

import (
	"sort"
	"time"
)

type MovementType string

const (
	MovementIncrease    MovementType = "increase"
	MovementDecrease    MovementType = "decrease"
	MovementSale        MovementType = "sale"
	MovementWaste       MovementType = "waste"
	MovementTransferIn  MovementType = "transfer_in"
	MovementTransferOut MovementType = "transfer_out"
	MovementReturn      MovementType = "return"
)

// Sign is +1 for movements that add stock, -1 for movements that remove it and
// 0 for unknown types.
func (t MovementType) Sign() int {
	switch t {
	case MovementIncrease, MovementTransferIn, MovementReturn:
		return 1
	case MovementDecrease, MovementSale, MovementWaste, MovementTransferOut:
		return -1
	}
	return 0
}

func (t MovementType) Valid() bool { return t.Sign() != 0 }

func (t MovementType) Decreasing() bool { return t.Sign() < 0 }

// StockMovement is an append-only ledger entry. QuantityBefore/After record
// the fold at append time for display; stock is always recomputed from the ledger.
type StockMovement struct {
	ID             string       `db:"id" json:"id"`
	BranchID       string       `db:"branch_id" json:"branch_id"`
	ProductID      string       `db:"product_id" json:"product_id"`
	Type           MovementType `db:"movement_type" json:"type"`
	Quantity       int          `db:"quantity" json:"quantity"`
	QuantityBefore int          `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int          `db:"quantity_after" json:"quantity_after"`
	Reason         string       `db:"reason" json:"reason"`
	ReferenceType  *string      `db:"reference_type" json:"reference_type"`
	ReferenceID    *string      `db:"reference_id" json:"reference_id"`
	CreatedBy      *string      `db:"created_by" json:"created_by"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// Delta is the signed contribution of the movement to current stock.
func (m StockMovement) Delta() int {
	return m.Type.Sign() * m.Quantity
}

// FoldStock sums the ledger in creation order.
func FoldStock(movements []StockMovement) int {
	ordered := make([]StockMovement, len(movements))
	copy(ordered, movements)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	stock := 0
	for _, m := range ordered {
		stock += m.Delta()
	}
	return stock
}
