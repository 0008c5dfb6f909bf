package filecache

import "context"

// Usage describes what is currently stored in the cache directory.
type Usage struct {
	// Entries is the number of readable entry files, expired ones included.
	Entries int
	// Expired is how many of Entries have passed their expiry time.
	Expired int
	// Corrupt is the number of entry files with an unreadable header.
	Corrupt int
	// RawBytes is the summed serialized size of every entry, the figure
	// compared against MaxCacheSize.
	RawBytes int64
	// DiskBytes is the summed on-disk size of every entry file.
	DiskBytes int64
}

// Usage walks the cache directory and reports its contents. It does not
// modify anything.
func (c *Cache) Usage(ctx context.Context) (Usage, error) {
	s, err := c.walk(ctx)
	if err != nil {
		return Usage{}, c.fail("usage", "", ErrIO, err)
	}

	now := c.now()
	u := Usage{Entries: len(s.entries), Corrupt: len(s.corrupt)}
	for _, e := range s.entries {
		if e.header.Expired(now) {
			u.Expired++
		}
		u.RawBytes += e.header.RawSize
		u.DiskBytes += e.diskSize
	}
	return u, nil
}
