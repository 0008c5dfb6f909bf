package filecache

import (
	"context"
	"slices"
)

// The batch operations apply the single-key operations one after another.
// They are not atomic as a group: when one key fails, the keys handled
// before it keep their new state.

// SetMultiple stores every value in values, in sorted key order. It reports
// true only if every Set succeeded. With ErrorHandlingThrow the first
// failure stops the batch.
func (c *Cache) SetMultiple(ctx context.Context, values map[string]any, opts ...SetOption) (bool, error) {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "" {
			return false, ErrInvalidKey
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)

	all := true
	for _, key := range keys {
		ok, err := c.Set(ctx, key, values[key], opts...)
		if err != nil {
			return false, err
		}
		all = all && ok
	}
	return all, nil
}

// GetMultiple returns a value for each key, def for keys that miss.
func (c *Cache) GetMultiple(ctx context.Context, keys []string, def any) (map[string]any, error) {
	if slices.Contains(keys, "") {
		return nil, ErrInvalidKey
	}

	out := make(map[string]any, len(keys))
	for _, key := range keys {
		v, err := c.Get(ctx, key, def)
		if err != nil {
			return out, err
		}
		out[key] = v
	}
	return out, nil
}

// DeleteMultiple deletes each key and reports per key whether a file was
// removed.
func (c *Cache) DeleteMultiple(ctx context.Context, keys []string) (map[string]bool, error) {
	if slices.Contains(keys, "") {
		return nil, ErrInvalidKey
	}

	out := make(map[string]bool, len(keys))
	for _, key := range keys {
		ok, err := c.Delete(ctx, key)
		if err != nil {
			return out, err
		}
		out[key] = ok
	}
	return out, nil
}
