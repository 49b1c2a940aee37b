package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Details map[string]any

func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *Details) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	}
	return fmt.Errorf("details: unsupported source type %T", src)
}

type ActivityLog struct {
	ID           string    `db:"id" json:"id"`
	ActorID      string    `db:"actor_id" json:"actor_id"`
	BranchID     string    `db:"branch_id" json:"branch_id"`
	Action       string    `db:"action" json:"action"`
	ResourceType string    `db:"resource_type" json:"resource_type"`
	ResourceID   string    `db:"resource_id" json:"resource_id"`
	Details      Details   `db:"details" json:"details"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
