package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Modifiers is stored as a JSON array column.
type Modifiers []Modifier

func (m Modifiers) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

func (m *Modifiers) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("modifiers: unsupported source type %T", src)
	}
	return json.Unmarshal(data, m)
}
