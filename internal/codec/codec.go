// Package codec provides compression and decompression for entry payloads.
package codec

import "io"

// Codec provides compression and decompression functionality.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Name returns the algorithm name (e.g., "zstd", "gzip").
	// Returns "none" for no compression.
	Name() string
}
