package model

import (
	"bytes"
	"encoding/json"
)

// Optional records whether a JSON field was present, and whether it was an
// explicit null, so partial updates can tell "leave alone" from "clear".
//
//	{}                  → Set=false
//	{"parent_id": null} → Set=true, Null=true
//	{"parent_id": "x"}  → Set=true, Value="x"
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// Some builds a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null builds a present, explicitly-null Optional.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}
