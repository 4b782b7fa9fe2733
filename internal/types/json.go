package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap is an opaque metadata bag persisted as a JSON text column, the same
// "marshal to string, store as text" approach the teacher uses for
// execution.Position.Metadata in execution/adapter.go.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return errors.New("types: JSONMap.Scan: unsupported source type")
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// JSONList is an ordered list of strings persisted as JSON text, used for
// Decision.Reasoning (the orchestrator's ordered rule-hit trail).
type JSONList []string

func (l JSONList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *JSONList) Scan(src any) error {
	if src == nil {
		*l = JSONList{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return errors.New("types: JSONList.Scan: unsupported source type")
	}
	if len(b) == 0 {
		*l = JSONList{}
		return nil
	}
	return json.Unmarshal(b, l)
}

// JSONValue generically persists any JSON-marshalable struct as a text column
// pointer, used for Signal.ValidationResult (null until the signal processor
// writes it exactly once).
type JSONValue[T any] struct {
	Val T
}

func (v JSONValue[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(v.Val)
	return string(b), err
}

func (v *JSONValue[T]) Scan(src any) error {
	var b []byte
	switch x := src.(type) {
	case string:
		b = []byte(x)
	case []byte:
		b = x
	default:
		return errors.New("types: JSONValue.Scan: unsupported source type")
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, &v.Val)
}
