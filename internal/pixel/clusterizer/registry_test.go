package clusterizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	assert.Equal(t, []string{ThresholdName}, Names())

	c, err := New(ThresholdName, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, ThresholdName, c.Name())
	assert.Equal(t, DefaultParams(), c.GetParams())
}

func TestRegistry_UnknownMode(t *testing.T) {
	_, err := New("Foo", DefaultParams())
	require.Error(t, err)
	assert.Equal(t, "choice Foo is invalid. Possible choices: PixelThresholdClusterizer", err.Error())
	assert.True(t, errors.Is(err, ErrUnknownMode))

	var ume *UnknownModeError
	require.True(t, errors.As(err, &ume))
	assert.Equal(t, "Foo", ume.Name)
	assert.Equal(t, []string{ThresholdName}, ume.Valid)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	build := func(p Params) (Clusterizer, error) { return NewThresholdClusterizer(p) }

	require.NoError(t, r.Register("b", build))
	require.NoError(t, r.Register("a", build))
	assert.Error(t, r.Register("a", build), "duplicate name")
	assert.Error(t, r.Register("", build), "empty name")
	assert.Error(t, r.Register("c", nil), "nil factory")
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistry_FactoryError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, r.Register("broken", func(Params) (Clusterizer, error) { return nil, boom }))

	_, err := r.New("broken", DefaultParams())
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrUnknownMode))
}
