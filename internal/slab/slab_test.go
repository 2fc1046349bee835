package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGetRemove(t *testing.T) {
	s := New[string](4)

	i0 := s.Insert("a")
	i1 := s.Insert("b")
	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)
	assert.Equal(t, 2, s.Len())

	v, ok := s.Get(i0)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	removed, ok := s.Remove(i0)
	require.True(t, ok)
	assert.Equal(t, "a", removed)
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Contains(i0))
}

func TestIndexReuse(t *testing.T) {
	s := New[int](2)

	a := s.Insert(1)
	b := s.Insert(2)
	s.Remove(a)
	c := s.Insert(3)

	assert.Equal(t, a, c, "freed index should be reused by the next insert")

	v, ok := s.Get(b)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestFreeListOrderLIFO(t *testing.T) {
	s := New[int](4)
	a := s.Insert(1)
	b := s.Insert(2)
	c := s.Insert(3)

	s.Remove(a)
	s.Remove(b)
	s.Remove(c)

	// free list is LIFO: the most recently freed index comes back first.
	assert.Equal(t, c, s.Insert(30))
	assert.Equal(t, b, s.Insert(20))
	assert.Equal(t, a, s.Insert(10))
}

func TestGetPtrMutatesInPlace(t *testing.T) {
	s := New[int](1)
	i := s.Insert(1)

	p := s.GetPtr(i)
	require.NotNil(t, p)
	*p = 42

	v, ok := s.Get(i)
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestGetMissingIndex(t *testing.T) {
	s := New[int](1)

	_, ok := s.Get(-1)
	assert.False(t, ok)

	_, ok = s.Get(0)
	assert.False(t, ok)

	i := s.Insert(1)
	s.Remove(i)
	_, ok = s.Get(i)
	assert.False(t, ok)
}

func TestRemoveTwiceFails(t *testing.T) {
	s := New[int](1)
	i := s.Insert(5)

	_, ok := s.Remove(i)
	require.True(t, ok)

	_, ok = s.Remove(i)
	assert.False(t, ok)
}
