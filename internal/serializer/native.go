package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

func init() {
	// Generic containers are what JSON-shaped values decode into; gob needs
	// them registered to carry them inside an interface.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(map[string]string{})
	gob.Register(map[string]int{})
}

// Native serializes values with encoding/gob, preserving exact Go types.
// Concrete types stored behind interfaces must be registered with Register.
type Native struct{}

// Compile-time check that Native implements Serializer.
var _ Serializer = (*Native)(nil)

// NewNative returns a gob-backed serializer.
func NewNative() *Native {
	return &Native{}
}

// envelope lets gob carry an arbitrary dynamic type.
type envelope struct {
	V any
}

// Name returns "native".
func (n *Native) Name() string { return "native" }

// Marshal encodes value inside a gob envelope.
func (n *Native) Marshal(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&envelope{V: value}); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a gob envelope.
func (n *Native) Unmarshal(data []byte) (any, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return env.V, nil
}

// Register records a concrete type so values of that type can be stored
// with the native serializer.
func Register(value any) {
	gob.Register(value)
}
