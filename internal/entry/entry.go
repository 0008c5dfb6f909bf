package entry

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/discochess/filecache/internal/codec"
	"github.com/discochess/filecache/internal/codec/gzipcodec"
	"github.com/discochess/filecache/internal/codec/noopcodec"
	"github.com/discochess/filecache/internal/codec/zstdcodec"
	"github.com/discochess/filecache/internal/serializer"
)

// Codec turns values into entry bytes and back.
// A Codec is safe for concurrent use by multiple goroutines.
type Codec struct {
	serializer  serializer.Serializer
	serID       byte
	compressor  codec.Codec
	compID      byte
	compress    bool
	threshold   int
	serializers map[byte]serializer.Serializer
	readers     map[byte]codec.Codec
}

// Options configures a Codec.
type Options struct {
	// Serializer is "native" or "json".
	Serializer string
	// Compression enables compressing payloads larger than Threshold.
	Compression bool
	// Algorithm is "gzip" or "zstd".
	Algorithm string
	// Level is the compression level, 1-9.
	Level int
	// Threshold is the payload size in bytes above which payloads are compressed.
	Threshold int
}

// NewCodec creates a Codec. Entries written with any supported serializer
// or compression algorithm can be decoded regardless of options.
func NewCodec(opts Options) (*Codec, error) {
	ser, err := serializer.New(opts.Serializer)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		serializer: ser,
		serID:      serializerID(ser.Name()),
		compress:   opts.Compression,
		threshold:  opts.Threshold,
		serializers: map[byte]serializer.Serializer{
			SerializerNative: serializer.NewNative(),
			SerializerJSON:   serializer.NewJSON(),
		},
		readers: map[byte]codec.Codec{
			CompressionNone: noopcodec.New(),
			CompressionGzip: gzipcodec.New(opts.Level),
			CompressionZstd: zstdcodec.New(opts.Level),
		},
	}

	if opts.Compression {
		switch opts.Algorithm {
		case "gzip", "":
			c.compressor, c.compID = gzipcodec.New(opts.Level), CompressionGzip
		case "zstd":
			c.compressor, c.compID = zstdcodec.New(opts.Level), CompressionZstd
		default:
			return nil, fmt.Errorf("entry: unsupported compression algorithm %q", opts.Algorithm)
		}
	}

	return c, nil
}

// codecFor returns the codec and header id for a serialized payload of n
// bytes.
func (c *Codec) codecFor(n int) (codec.Codec, byte) {
	if c.compress && n > c.threshold {
		return c.compressor, c.compID
	}
	return c.readers[CompressionNone], CompressionNone
}

func serializerID(name string) byte {
	if name == "json" {
		return SerializerJSON
	}
	return SerializerNative
}

// Encode serializes value into a complete entry file.
func (c *Codec) Encode(value any, createdAt, expiresAt time.Time) ([]byte, Header, error) {
	raw, err := c.serializer.Marshal(value)
	if err != nil {
		return nil, Header{}, err
	}

	h := Header{
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		Serializer: c.serID,
		RawSize:    int64(len(raw)),
	}

	comp, id := c.codecFor(len(raw))
	h.Compression = id
	h.Compressed = id != CompressionNone

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(raw))
	buf.Write(make([]byte, HeaderSize))
	w, err := comp.Writer(&buf)
	if err != nil {
		return nil, Header{}, fmt.Errorf("creating %s writer: %w", comp.Name(), err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, Header{}, fmt.Errorf("writing %s payload: %w", comp.Name(), err)
	}
	if err := w.Close(); err != nil {
		return nil, Header{}, fmt.Errorf("writing %s payload: %w", comp.Name(), err)
	}

	out := buf.Bytes()
	h.put(out[:HeaderSize])
	return out, h, nil
}

// Decode parses a complete entry file. Every structural failure wraps
// ErrCorrupt.
func (c *Codec) Decode(data []byte) (any, Header, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, Header{}, err
	}

	dec, ok := c.readers[h.Compression]
	if !ok {
		return nil, h, fmt.Errorf("%w: unknown compression id %d", ErrCorrupt, h.Compression)
	}
	r, err := dec.Reader(bytes.NewReader(data[HeaderSize:]))
	if err != nil {
		return nil, h, fmt.Errorf("%w: creating %s reader: %v", ErrCorrupt, dec.Name(), err)
	}
	raw, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, h, fmt.Errorf("%w: reading %s payload: %v", ErrCorrupt, dec.Name(), err)
	}
	if int64(len(raw)) != h.RawSize {
		return nil, h, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(raw), h.RawSize)
	}

	ser, ok := c.serializers[h.Serializer]
	if !ok {
		return nil, h, fmt.Errorf("%w: unknown serializer id %d", ErrCorrupt, h.Serializer)
	}
	v, err := ser.Unmarshal(raw)
	if err != nil {
		return nil, h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return v, h, nil
}
