package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
)

// Crypto wraps one of the standard library cryptographic hashes.
type Crypto struct {
	name  string
	size  int
	newFn func() hash.Hash
}

// Compile-time check that Crypto implements Hasher.
var _ Hasher = (*Crypto)(nil)

func newCrypto(name string) *Crypto {
	switch name {
	case "md5":
		return &Crypto{name: name, size: md5.Size, newFn: md5.New}
	case "sha1":
		return &Crypto{name: name, size: sha1.Size, newFn: sha1.New}
	case "sha512":
		return &Crypto{name: name, size: sha512.Size, newFn: sha512.New}
	default:
		return &Crypto{name: "sha256", size: sha256.Size, newFn: sha256.New}
	}
}

// Name returns the algorithm name.
func (c *Crypto) Name() string { return c.name }

// Width returns twice the digest size in bytes.
func (c *Crypto) Width() int { return c.size * 2 }

// Sum hashes s and hex-encodes the result.
func (c *Crypto) Sum(s string) string {
	h := c.newFn()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
