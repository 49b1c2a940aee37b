package model

import (
	"fmt"
	"time"
)

type ChangeKind string

const (
	ChangeInsert   ChangeKind = "insert"
	ChangeUpdate   ChangeKind = "update"
	ChangeDelete   ChangeKind = "delete"
	ChangeTruncate ChangeKind = "truncate"
)

// Record is one row image carried by a change event.
type Record map[string]any

func (r Record) String(key string) string {
	if r == nil {
		return ""
	}
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Has reports whether the image carries key at all.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Int reads a numeric field. JSON numbers decode as float64.
func (r Record) Int(key string) (int, bool) {
	if r == nil {
		return 0, false
	}
	switch v := r[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// ChangeEvent is what the external store pushes for every committed row change.
type ChangeEvent struct {
	Schema     string     `json:"schema"`
	Table      string     `json:"table"`
	Kind       ChangeKind `json:"type"`
	Before     Record     `json:"old_record"`
	After      Record     `json:"record"`
	Version    int64      `json:"version"`
	BranchID   string     `json:"branch_id"`
	CommitTime time.Time  `json:"commit_timestamp"`
	Internal   bool       `json:"internal"`
}

func (e ChangeEvent) EntityID() string {
	if id := e.After.String("id"); id != "" {
		return id
	}
	return e.Before.String("id")
}

// Changed reports whether field differs between the before and after images.
// Inserts count as a change when the field is present. An update whose before
// image lacks the field (a key-only old record) is not a known change.
func (e ChangeEvent) Changed(field string) bool {
	if e.Kind == ChangeInsert {
		return e.After.String(field) != ""
	}
	if e.Kind == ChangeUpdate && !e.Before.Has(field) {
		return false
	}
	return e.Before.String(field) != e.After.String(field)
}
