package detset

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
)

// ErrDuplicateKey is returned by Put when a key has already been written.
var ErrDuplicateKey = errors.New("key already present in collection")

// Range is a half-open offset range [Begin, End) into a collection's
// backing storage.
type Range struct {
	Begin int
	End   int
}

// Len returns the number of values in the range.
func (r Range) Len() int { return r.End - r.Begin }

type entry[K cmp.Ordered] struct {
	key K
	Range
}

// Collection maps keys to contiguous ranges of values.
// It is not safe for concurrent writers; readers may share a collection
// once it has been handed off.
type Collection[K cmp.Ordered, T any] struct {
	data    []T
	entries []entry[K] // insertion order
	index   map[K]int  // key -> position in entries
}

// New returns an empty collection sized for the given number of keys and
// values. Both hints may be zero.
func New[K cmp.Ordered, T any](keyHint, valueHint int) *Collection[K, T] {
	return &Collection[K, T]{
		data:    make([]T, 0, valueHint),
		entries: make([]entry[K], 0, keyHint),
		index:   make(map[K]int, keyHint),
	}
}

// Put appends values under key as one contiguous range. A second Put for
// the same key fails with ErrDuplicateKey and leaves the collection
// unchanged. Putting an empty slice records the key with an empty range;
// callers that want presence to mean "has values" must filter first.
func (c *Collection[K, T]) Put(key K, values []T) error {
	if c.index == nil {
		c.index = make(map[K]int)
	}
	if _, ok := c.index[key]; ok {
		return fmt.Errorf("put %v: %w", key, ErrDuplicateKey)
	}
	begin := len(c.data)
	c.data = append(c.data, values...)
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, entry[K]{key: key, Range: Range{Begin: begin, End: len(c.data)}})
	return nil
}

// Get returns the values stored under key, or an empty slice when the key
// was never written. The result is a view into the backing storage: it is
// not copied, and its capacity is clipped so that appending to it cannot
// overwrite a neighbouring range. Callers must not modify the elements.
func (c *Collection[K, T]) Get(key K) []T {
	v, _ := c.Lookup(key)
	return v
}

// Lookup is Get with an explicit presence flag.
func (c *Collection[K, T]) Lookup(key K) ([]T, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.index[key]
	if !ok {
		return nil, false
	}
	r := c.entries[i].Range
	return c.data[r.Begin:r.End:r.End], true
}

// RangeOf returns the offset range stored for key.
func (c *Collection[K, T]) RangeOf(key K) (Range, bool) {
	if c == nil {
		return Range{}, false
	}
	i, ok := c.index[key]
	if !ok {
		return Range{}, false
	}
	return c.entries[i].Range, true
}

// Has reports whether key has been written.
func (c *Collection[K, T]) Has(key K) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[key]
	return ok
}

// Keys returns the keys in insertion order. The slice is freshly allocated.
func (c *Collection[K, T]) Keys() []K {
	if c == nil {
		return nil
	}
	keys := make([]K, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.key
	}
	return keys
}

// All iterates keys and their value views in insertion order.
func (c *Collection[K, T]) All() iter.Seq2[K, []T] {
	return func(yield func(K, []T) bool) {
		if c == nil {
			return
		}
		for _, e := range c.entries {
			if !yield(e.key, c.data[e.Begin:e.End:e.End]) {
				return
			}
		}
	}
}

// Values returns a view over every stored value, in storage order.
func (c *Collection[K, T]) Values() []T {
	if c == nil {
		return nil
	}
	return c.data[:len(c.data):len(c.data)]
}

// Len returns the number of keys.
func (c *Collection[K, T]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Size returns the total number of stored values.
func (c *Collection[K, T]) Size() int {
	if c == nil {
		return 0
	}
	return len(c.data)
}

// Empty reports whether no key has been written.
func (c *Collection[K, T]) Empty() bool { return c.Len() == 0 }
