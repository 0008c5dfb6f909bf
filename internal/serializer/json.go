package serializer

import (
	"encoding/json"
	"fmt"
)

// JSON serializes values with encoding/json. Decoding yields the generic
// JSON model: float64 numbers, map[string]any objects and []any arrays.
type JSON struct{}

// Compile-time check that JSON implements Serializer.
var _ Serializer = (*JSON)(nil)

// NewJSON returns a JSON serializer.
func NewJSON() *JSON {
	return &JSON{}
}

// Name returns "json".
func (j *JSON) Name() string { return "json" }

// Marshal encodes value as JSON.
func (j *JSON) Marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

// Unmarshal decodes JSON into the generic model.
func (j *JSON) Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return v, nil
}
