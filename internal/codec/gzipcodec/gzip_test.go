package gzipcodec

import (
	"bytes"
	"io"
	"testing"
)

func roundTrip(t *testing.T, c *Codec, original []byte) (compressed int, out []byte) {
	t.Helper()

	var buf bytes.Buffer
	writer, err := c.Writer(&buf)
	if err != nil {
		t.Fatalf("Writer() error = %v", err)
	}
	if _, err := writer.Write(original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	compressed = buf.Len()

	reader, err := c.Reader(&buf)
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	out, err = io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if err := reader.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return compressed, out
}

func TestCodec_Name(t *testing.T) {
	if got := New(6).Name(); got != "gzip" {
		t.Errorf("Name() = %q, want %q", got, "gzip")
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	original := []byte("Hello, World! This is test data for gzip compression.")

	for _, level := range []int{1, 6, 9} {
		_, got := roundTrip(t, New(level), original)
		if !bytes.Equal(got, original) {
			t.Errorf("level %d: round-trip failed: got %q, want %q", level, got, original)
		}
	}
}

func TestCodec_RoundTrip_LargeData(t *testing.T) {
	original := bytes.Repeat([]byte("ABCDEFGHIJ"), 10000) // 100KB of repetitive data

	n, got := roundTrip(t, New(9), original)
	if n >= len(original) {
		t.Errorf("Expected compression, got %d bytes from %d bytes", n, len(original))
	}
	if !bytes.Equal(got, original) {
		t.Error("Round-trip failed for large data")
	}
}

func TestCodec_RoundTrip_EmptyData(t *testing.T) {
	_, got := roundTrip(t, New(6), []byte{})
	if len(got) != 0 {
		t.Errorf("Round-trip failed for empty data: got %q", got)
	}
}

func TestNew_OutOfRangeLevel(t *testing.T) {
	original := []byte("level fallback")
	for _, level := range []int{0, 10, -3} {
		_, got := roundTrip(t, New(level), original)
		if !bytes.Equal(got, original) {
			t.Errorf("level %d: round-trip failed", level)
		}
	}
}

func TestCodec_Reader_InvalidData(t *testing.T) {
	_, err := New(6).Reader(bytes.NewReader([]byte("not gzip data")))
	if err == nil {
		t.Error("Reader() expected error for invalid gzip data, got nil")
	}
}
