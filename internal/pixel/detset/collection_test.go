package detset

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_PutGet(t *testing.T) {
	t.Parallel()

	c := New[uint32, int](0, 0)
	require.NoError(t, c.Put(5, []int{1, 2}))
	require.NoError(t, c.Put(9, []int{3}))
	require.NoError(t, c.Put(2, []int{4, 5, 6}))

	assert.Equal(t, []int{1, 2}, c.Get(5))
	assert.Equal(t, []int{3}, c.Get(9))
	assert.Equal(t, []int{4, 5, 6}, c.Get(2))
	assert.Empty(t, c.Get(7))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 6, c.Size())
	assert.Equal(t, []uint32{5, 9, 2}, c.Keys(), "keys keep insertion order")
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, c.Values())

	r, ok := c.RangeOf(9)
	require.True(t, ok)
	assert.Equal(t, Range{Begin: 2, End: 3}, r)
	assert.Equal(t, 1, r.Len())
}

func TestCollection_DuplicatePut(t *testing.T) {
	t.Parallel()

	c := New[uint32, string](1, 1)
	require.NoError(t, c.Put(1, []string{"a"}))

	err := c.Put(1, []string{"b", "c"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateKey))

	// Unchanged after the rejected write.
	assert.Equal(t, []string{"a"}, c.Get(1))
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, 1, c.Len())
}

func TestCollection_ViewCannotClobberNeighbour(t *testing.T) {
	t.Parallel()

	c := New[int, int](2, 8)
	require.NoError(t, c.Put(1, []int{10, 11}))
	require.NoError(t, c.Put(2, []int{20, 21}))

	v := c.Get(1)
	assert.Equal(t, len(v), cap(v), "view capacity must be clipped")
	v = append(v, 99)
	_ = v

	assert.Equal(t, []int{20, 21}, c.Get(2))
}

func TestCollection_EmptyRange(t *testing.T) {
	t.Parallel()

	c := New[int, int](0, 0)
	require.NoError(t, c.Put(3, nil))

	v, ok := c.Lookup(3)
	assert.True(t, ok)
	assert.Empty(t, v)
	assert.True(t, c.Has(3))
	assert.False(t, c.Has(4))
	assert.False(t, c.Empty())
}

func TestCollection_ZeroValueUsable(t *testing.T) {
	t.Parallel()

	var c Collection[int, int]
	require.NoError(t, c.Put(1, []int{1}))
	assert.Equal(t, []int{1}, c.Get(1))
}

func TestCollection_NilReceiver(t *testing.T) {
	t.Parallel()

	var c *Collection[int, int]
	assert.Nil(t, c.Get(1))
	assert.False(t, c.Has(1))
	assert.Nil(t, c.Keys())
	assert.Nil(t, c.Values())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Size())
	assert.True(t, c.Empty())
	for range c.All() {
		t.Fatal("nil collection must not yield")
	}
}

func TestCollection_All(t *testing.T) {
	t.Parallel()

	c := New[int, rune](0, 0)
	require.NoError(t, c.Put(3, []rune("ab")))
	require.NoError(t, c.Put(1, []rune("c")))
	require.NoError(t, c.Put(2, []rune("de")))

	got := map[int]string{}
	var order []int
	for k, v := range c.All() {
		order = append(order, k)
		got[k] = string(v)
	}
	if diff := cmp.Diff([]int{3, 1, 2}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[int]string{3: "ab", 1: "c", 2: "de"}, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	// Early break stops iteration.
	n := 0
	for range c.All() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestCollection_GetDoesNotAllocate(t *testing.T) {
	c := New[uint32, int](64, 64)
	for i := uint32(0); i < 64; i++ {
		require.NoError(t, c.Put(i, []int{int(i)}))
	}

	allocs := testing.AllocsPerRun(100, func() {
		_ = c.Get(31)
		_ = c.Get(1000)
	})
	assert.Zero(t, allocs)
}
