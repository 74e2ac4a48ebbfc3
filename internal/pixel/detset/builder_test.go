package detset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_AscendingKeysStableValues(t *testing.T) {
	t.Parallel()

	b := NewBuilder[uint32, string]()
	b.Add(9, "9a")
	b.Add(5, "5a")
	b.Add(9, "9b")
	b.Touch(7)
	b.Add(5, "5b")
	b.Add(5, "5c")

	c := b.Build()
	assert.Equal(t, []uint32{5, 7, 9}, c.Keys())
	assert.Equal(t, []string{"5a", "5b", "5c"}, c.Get(5))
	assert.Empty(t, c.Get(7))
	assert.True(t, c.Has(7))
	assert.Equal(t, []string{"9a", "9b"}, c.Get(9))
	assert.Equal(t, 5, c.Size())

	// Builder resets after Build.
	empty := b.Build()
	assert.True(t, empty.Empty())
}

func TestBuilder_TouchDoesNotDropValues(t *testing.T) {
	t.Parallel()

	b := NewBuilder[int, int]()
	b.Add(1, 10)
	b.Touch(1)
	assert.Equal(t, []int{10}, b.Build().Get(1))
}

func TestFromMap(t *testing.T) {
	t.Parallel()

	c := FromMap(map[uint32][]int{
		42: {1},
		3:  {2, 3},
		17: nil,
	})
	assert.Equal(t, []uint32{3, 17, 42}, c.Keys())
	assert.Equal(t, []int{2, 3}, c.Get(3))
	assert.True(t, c.Has(17))
}
