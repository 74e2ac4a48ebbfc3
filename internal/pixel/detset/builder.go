package detset

import (
	"cmp"
	"slices"
)

// Builder groups values that arrive interleaved across keys and produces a
// Collection whose keys enumerate in ascending order. Values under one key
// keep their arrival order.
type Builder[K cmp.Ordered, T any] struct {
	groups map[K][]T
	total  int
}

// NewBuilder returns an empty builder.
func NewBuilder[K cmp.Ordered, T any]() *Builder[K, T] {
	return &Builder[K, T]{groups: make(map[K][]T)}
}

// Add appends v under key.
func (b *Builder[K, T]) Add(key K, v T) {
	b.groups[key] = append(b.groups[key], v)
	b.total++
}

// Touch registers key without adding a value, so that the key appears in
// the built collection with an empty range.
func (b *Builder[K, T]) Touch(key K) {
	if _, ok := b.groups[key]; !ok {
		b.groups[key] = nil
	}
}

// Build packs the grouped values into a Collection with ascending keys.
// The builder can be reused afterwards; it starts empty.
func (b *Builder[K, T]) Build() *Collection[K, T] {
	keys := make([]K, 0, len(b.groups))
	for k := range b.groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	c := New[K, T](len(keys), b.total)
	for _, k := range keys {
		// Keys are unique by construction.
		_ = c.Put(k, b.groups[k])
	}

	b.groups = make(map[K][]T)
	b.total = 0
	return c
}

// FromMap builds a collection with ascending keys from a map.
func FromMap[K cmp.Ordered, T any](m map[K][]T) *Collection[K, T] {
	b := NewBuilder[K, T]()
	for k, vs := range m {
		b.Touch(k)
		for _, v := range vs {
			b.Add(k, v)
		}
	}
	return b.Build()
}
