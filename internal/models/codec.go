package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ToDoc converts a typed model into the JSON-like document tree the
// replicated store holds (maps, slices, strings, numbers, bools).
func ToDoc(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document tree: %w", err)
	}
	return doc, nil
}

// FromDoc converts a document tree back into a typed model. Numeric fields
// declared as integers reject fractional values, which is what keeps
// non-integer cents from ever entering the typed layer.
func FromDoc[T any](doc map[string]any) (*T, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document tree: %w", err)
	}
	out := new(T)
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}
