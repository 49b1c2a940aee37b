package model

import "time"

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
	TableCleaning  TableStatus = "cleaning"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved, TableCleaning:
		return true
	}
	return false
}

type RestaurantTable struct {
	ID        string      `db:"id" json:"id"`
	BranchID  string      `db:"branch_id" json:"branch_id"`
	Number    string      `db:"table_number" json:"table_number"`
	Seats     int         `db:"seats" json:"seats"`
	Status    TableStatus `db:"status" json:"status"`
	Version   int         `db:"version" json:"version"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}
