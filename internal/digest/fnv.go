package digest

import "strconv"

// FNV1a64 implements the 64-bit FNV-1a hash.
//
// It is fast but not collision resistant against adversarial keys.
type FNV1a64 struct{}

// Compile-time check that FNV1a64 implements Hasher.
var _ Hasher = (*FNV1a64)(nil)

// Name returns "fnv1a64".
func (f *FNV1a64) Name() string { return "fnv1a64" }

// Width returns 16.
func (f *FNV1a64) Width() int { return 16 }

// Sum returns the zero-padded hex FNV-1a digest of s.
func (f *FNV1a64) Sum(s string) string {
	return padHex(fnv1a64(s))
}

// fnv1a64 computes the FNV-1a 64-bit hash of a string.
func fnv1a64(s string) uint64 {
	var h uint64 = 14695981039346656037 // FNV offset basis
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211 // FNV prime
	}
	return h
}

func padHex(v uint64) string {
	s := strconv.FormatUint(v, 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}
