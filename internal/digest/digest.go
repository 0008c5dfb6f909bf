// Package digest defines the key hashing strategies used to derive entry
// filenames.
package digest

import (
	"fmt"
	"sort"
)

// Hasher maps a composite key to a fixed-width lowercase hex digest.
type Hasher interface {
	// Name returns the algorithm name as used in configuration.
	Name() string

	// Width returns the number of hex characters Sum produces.
	Width() int

	// Sum computes the digest of s.
	//
	// Implementations must be deterministic across processes and platforms,
	// since the digest is the on-disk filename.
	Sum(s string) string
}

var registry = map[string]func() Hasher{
	"md5":     func() Hasher { return newCrypto("md5") },
	"sha1":    func() Hasher { return newCrypto("sha1") },
	"sha256":  func() Hasher { return newCrypto("sha256") },
	"sha512":  func() Hasher { return newCrypto("sha512") },
	"xxh64":   func() Hasher { return &XXH64{} },
	"fnv1a64": func() Hasher { return &FNV1a64{} },
}

// New returns the hasher registered under name.
func New(name string) (Hasher, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("digest: unsupported algorithm %q", name)
	}
	return ctor(), nil
}

// Supported returns the sorted list of algorithm names.
func Supported() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
