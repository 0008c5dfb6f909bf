// Package noopcodec stores entry payloads uncompressed. Entries below the
// compression threshold, and every entry when compression is disabled, are
// written through it.
package noopcodec

import (
	"io"

	"github.com/discochess/filecache/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec passes payload bytes through unchanged.
type Codec struct{}

// New returns a pass-through codec.
func New() *Codec {
	return &Codec{}
}

// Reader returns r unchanged. Closing the result never closes r.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Writer returns w unchanged. Closing the result never closes w, so the
// entry buffer stays usable after the payload is written.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return passThrough{w}, nil
}

// Name returns "none".
func (c *Codec) Name() string {
	return "none"
}

type passThrough struct {
	io.Writer
}

func (passThrough) Close() error { return nil }
