package orderedmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMapKeepsInsertionOrder(t *testing.T) {
	om := New[string, int]()
	om.Set("c", 1)
	om.Set("a", 2)
	om.Set("b", 3)
	om.Set("a", 4)

	assert.Equal(t, []string{"c", "a", "b"}, om.Keys())
	assert.Equal(t, []int{1, 4, 3}, om.Values())

	v, ok := om.Delete("a")
	require.True(t, ok)
	assert.Equal(t, 4, v)
	assert.Equal(t, []string{"c", "b"}, om.Keys())

	_, ok = om.Delete("a")
	assert.False(t, ok)
	assert.Equal(t, 2, om.Len())
}

func TestOrderedMapCloneIsIndependent(t *testing.T) {
	om := New[string, int]()
	om.Set("x", 1)
	cp := om.Clone()
	cp.Set("y", 2)
	om.Clear()

	assert.Equal(t, 0, om.Len())
	assert.Equal(t, []string{"x", "y"}, cp.Keys())
}

func TestOrderedMapRangeStopsOnError(t *testing.T) {
	var zero OrderedMap[int, string]
	zero.Set(1, "a")
	zero.Set(2, "b")

	stop := errors.New("stop")
	var seen []int
	err := zero.Range(func(k int, _ string) error {
		seen = append(seen, k)
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []int{1}, seen)
}
