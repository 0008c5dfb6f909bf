// Package entry encodes and decodes cache entry files: a fixed binary
// header followed by the serialized, optionally compressed payload.
package entry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// HeaderSize is the length in bytes of the fixed entry header.
const HeaderSize = 32

var magic = [4]byte{'F', 'C', 'E', '1'}

const flagCompressed = 1 << 0

// Compression identifiers stored in the header.
const (
	CompressionNone byte = 0
	CompressionGzip byte = 1
	CompressionZstd byte = 2
)

// Serializer identifiers stored in the header.
const (
	SerializerNative byte = 1
	SerializerJSON   byte = 2
)

// ErrCorrupt indicates that entry bytes could not be decoded.
var ErrCorrupt = errors.New("entry: corrupt entry")

// Header is the metadata stored at the start of every entry file.
type Header struct {
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Compressed  bool
	Compression byte
	Serializer  byte
	// RawSize is the serialized payload length before compression.
	RawSize int64
}

// Expired reports whether the entry is expired at now.
func (h Header) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// TTL returns the lifetime the entry was written with.
func (h Header) TTL() time.Duration {
	return h.ExpiresAt.Sub(h.CreatedAt)
}

// MarshalBinary encodes the header into HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.put(buf)
	return buf, nil
}

func (h Header) put(buf []byte) {
	copy(buf[0:4], magic[:])
	var flags byte
	if h.Compressed {
		flags |= flagCompressed
	}
	buf[4] = flags
	buf[5] = h.Compression
	buf[6] = h.Serializer
	buf[7] = 0
	binary.BigEndian.PutUint64(buf[8:16], uint64(h.CreatedAt.UnixNano()))
	binary.BigEndian.PutUint64(buf[16:24], uint64(h.ExpiresAt.UnixNano()))
	binary.BigEndian.PutUint64(buf[24:32], uint64(h.RawSize))
}

// ParseHeader decodes the header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: truncated header (%d bytes)", ErrCorrupt, len(data))
	}
	if [4]byte(data[0:4]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrCorrupt, data[0:4])
	}

	h := Header{
		Compressed:  data[4]&flagCompressed != 0,
		Compression: data[5],
		Serializer:  data[6],
		CreatedAt:   time.Unix(0, int64(binary.BigEndian.Uint64(data[8:16]))),
		ExpiresAt:   time.Unix(0, int64(binary.BigEndian.Uint64(data[16:24]))),
		RawSize:     int64(binary.BigEndian.Uint64(data[24:32])),
	}
	if h.RawSize < 0 {
		return Header{}, fmt.Errorf("%w: negative raw size", ErrCorrupt)
	}
	if h.Compressed == (h.Compression == CompressionNone) {
		return Header{}, fmt.Errorf("%w: compression flag/id mismatch", ErrCorrupt)
	}
	return h, nil
}

// ReadHeader reads only the header of the entry file at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: truncated header", ErrCorrupt)
		}
		return Header{}, err
	}
	return ParseHeader(buf)
}
