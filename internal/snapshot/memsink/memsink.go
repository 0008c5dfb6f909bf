// Package memsink provides an in-memory snapshot sink for testing.
package memsink

import (
	"bytes"
	"context"
	"io"
	"slices"
	"sync"

	"github.com/discochess/filecache/internal/snapshot"
)

// Compile-time check that Sink implements snapshot.Sink.
var _ snapshot.Sink = (*Sink)(nil)

// Sink is an in-memory sink for testing.
type Sink struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory sink.
func New() *Sink {
	return &Sink{
		objects: make(map[string][]byte),
	}
}

// SetObject stores data under name (for test setup).
// The data is copied to prevent caller mutations from affecting the sink.
func (s *Sink) SetObject(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = bytes.Clone(data)
}

// Object returns a copy of the data stored under name.
func (s *Sink) Object(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[name]
	return bytes.Clone(data), ok
}

// Put stores the content of r under name.
func (s *Sink) Put(ctx context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.SetObject(name, data)
	return nil
}

// Get returns a reader over the object stored under name.
func (s *Sink) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	data, ok := s.Object(name)
	if !ok {
		return nil, snapshot.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// List returns the sorted object names.
func (s *Sink) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.objects))
	for name := range s.objects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Close is a no-op for the memory sink.
func (s *Sink) Close() error {
	return nil
}
