// Package serializer converts cache values to and from bytes.
package serializer

import "fmt"

// Serializer encodes and decodes values.
type Serializer interface {
	// Name returns the serializer name as used in configuration.
	Name() string

	// Marshal serializes value.
	Marshal(value any) ([]byte, error)

	// Unmarshal deserializes data produced by Marshal.
	Unmarshal(data []byte) (any, error)
}

// New returns the serializer registered under name.
func New(name string) (Serializer, error) {
	switch name {
	case "native":
		return NewNative(), nil
	case "json":
		return NewJSON(), nil
	default:
		return nil, fmt.Errorf("serializer: unsupported serializer %q", name)
	}
}
