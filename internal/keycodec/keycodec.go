// Package keycodec derives the on-disk relative path of a cache entry from
// its logical key.
package keycodec

import (
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/discochess/filecache/internal/digest"
)

// Codec maps logical keys to relative entry paths.
// A Codec is safe for concurrent use by multiple goroutines.
type Codec struct {
	hasher    digest.Hasher
	namespace string
	prefix    string
	depth     int
	ext       string

	memo *lru.Cache[string, string]
}

// New creates a Codec. A depth of 0 disables sharding. If memoSize is
// positive, up to memoSize derived paths are remembered.
func New(hasher digest.Hasher, namespace, prefix string, depth int, ext string, memoSize int) (*Codec, error) {
	c := &Codec{
		hasher:    hasher,
		namespace: namespace,
		prefix:    prefix,
		depth:     depth,
		ext:       ext,
	}
	if memoSize > 0 {
		memo, err := lru.New[string, string](memoSize)
		if err != nil {
			return nil, err
		}
		c.memo = memo
	}
	return c, nil
}

// Digest returns the hex digest for key. The namespace takes part in the
// hash input, so equal keys in different namespaces never share a file.
func (c *Codec) Digest(key string) string {
	return c.hasher.Sum(c.namespace + "\x00" + c.prefix + key)
}

// Path returns the entry path for key relative to the cache directory,
// using the OS path separator.
func (c *Codec) Path(key string) string {
	if c.memo != nil {
		if p, ok := c.memo.Get(key); ok {
			return p
		}
	}

	p := c.pathFor(c.Digest(key))
	if c.memo != nil {
		c.memo.Add(key, p)
	}
	return p
}

func (c *Codec) pathFor(sum string) string {
	parts := make([]string, 0, c.depth+1)
	for i := 0; i < c.depth && (i+1)*2 <= len(sum); i++ {
		parts = append(parts, sum[i*2:i*2+2])
	}
	parts = append(parts, sum+c.ext)
	return filepath.Join(parts...)
}

// Extension returns the entry file extension, including the leading dot.
func (c *Codec) Extension() string {
	return c.ext
}

// IsEntry reports whether a base filename looks like an entry file.
func (c *Codec) IsEntry(name string) bool {
	return strings.HasSuffix(name, c.ext) && !strings.HasPrefix(name, ".")
}
