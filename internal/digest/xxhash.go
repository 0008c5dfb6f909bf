package digest

import "github.com/cespare/xxhash/v2"

// XXH64 implements the 64-bit xxHash.
type XXH64 struct{}

// Compile-time check that XXH64 implements Hasher.
var _ Hasher = (*XXH64)(nil)

// Name returns "xxh64".
func (x *XXH64) Name() string { return "xxh64" }

// Width returns 16.
func (x *XXH64) Width() int { return 16 }

// Sum returns the zero-padded hex xxHash of s.
func (x *XXH64) Sum(s string) string {
	return padHex(xxhash.Sum64String(s))
}
